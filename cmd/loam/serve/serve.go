// Package servecmder provides the serve command for exposing memories over
// MCP stdio or HTTP.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/loamhq/loam/api"
	"github.com/loamhq/loam/api/mcp"
	"github.com/loamhq/loam/cmd/loam/bootstrap"
	"github.com/loamhq/loam/pkg/worker"
)

const serveLongDesc string = `Serve memories to agents.

By default speaks MCP over stdio, the transport agent hosts spawn
directly. With --http, runs the HTTP server instead: REST endpoints for
search, recall, stats, and notify, plus MCP over streamable HTTP at
/mcp.

Examples:
  loam serve
  loam serve --http
  loam serve --http --listen :9090`

const serveShortDesc string = "Serve memories over MCP or HTTP"

type serveCommander struct {
	http   bool
	listen string
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			debug, _ := cmd.Flags().GetBool("debug")
			return cmder.run(cmd, configDir, debug)
		},
	}

	cmd.Flags().BoolVar(&cmder.http, "http", false, "Serve HTTP instead of stdio MCP")
	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "HTTP listen address (default: configured api.listen_addr)")

	return cmd
}

func (c *serveCommander) run(cmd *cobra.Command, configDir string, debug bool) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	opts := bootstrap.Options{ConfigDir: configDir, Debug: debug}
	if !c.http {
		opts.LogWriter = os.Stderr
	}

	rt, err := bootstrap.Open(cwd, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	mcpServer, err := mcp.NewServer(mcp.Config{
		Driver:       rt.Driver,
		Ingestor:     rt.Ingestor,
		Redactor:     rt.Redactor,
		Spool:        rt.Spool,
		DefaultScope: rt.DefaultScope,
		RecallLimit:  rt.Config.Query.RecallLimit,
		Logger:       rt.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !c.http {
		return mcpServer.MCP().Run(ctx, &sdkmcp.StdioTransport{})
	}

	return c.runHTTP(ctx, rt, mcpServer)
}

func (c *serveCommander) runHTTP(ctx context.Context, rt *bootstrap.Runtime, mcpServer *mcp.Server) error {
	pool, err := worker.NewPool(&worker.Config{
		Ingestor: rt.Ingestor,
		Logger:   rt.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating ingest pool: %w", err)
	}

	listen := c.listen
	if listen == "" {
		listen = rt.Config.API.ListenAddr
	}

	server, err := api.NewServer(
		api.Config{
			ListenAddr:   listen,
			DefaultScope: rt.DefaultScope,
			RecallLimit:  rt.Config.Query.RecallLimit,
		},
		rt.Driver,
		pool,
		mcpServer.Handler(),
		rt.Logger,
	)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		rt.Logger.Info("shutting down")
		return server.Shutdown()
	}
}
