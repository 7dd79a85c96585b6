package notifycmder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// followPayloads tails a JSONL stream file and calls handle for each full
// line appended after the tail starts. Existing content is skipped so a
// restarted follower does not re-ingest history.
func followPayloads(ctx context.Context, path string, handle func([]byte)) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening payload stream: %w", err)
	}
	defer file.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating stream watcher: %w", err)
	}
	defer watcher.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat payload stream: %w", err)
	}

	if _, err := file.Seek(stat.Size(), io.SeekStart); err != nil {
		return fmt.Errorf("seek payload stream: %w", err)
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching stream dir: %w", err)
	}

	var pending []byte
	buf := make([]byte, 4096)

	readAvailable := func() error {
		for {
			n, err := file.Read(buf)
			if n > 0 {
				pending = append(pending, buf[:n]...)
				for {
					idx := bytes.IndexByte(pending, '\n')
					if idx < 0 {
						break
					}
					line := bytes.TrimSpace(pending[:idx])
					pending = pending[idx+1:]
					if len(line) > 0 {
						handle(line)
					}
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
		}
	}

	if err := readAvailable(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-watcher.Events:
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := readAvailable(); err != nil {
				return err
			}
		case err := <-watcher.Errors:
			return fmt.Errorf("stream watcher error: %w", err)
		}
	}
}
