package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loamhq/loam/pkg/dedupe"
	"github.com/loamhq/loam/pkg/extract"
	"github.com/loamhq/loam/pkg/ingest"
	"github.com/loamhq/loam/pkg/logger"
	"github.com/loamhq/loam/pkg/memory"
	"github.com/loamhq/loam/pkg/redact"
	"github.com/loamhq/loam/pkg/store/inmemory"
	"github.com/loamhq/loam/pkg/worker"
)

func TestAPI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "API Suite")
}

var _ = Describe("Server", func() {
	var (
		server *Server
		driver *inmemory.Driver
		pool   *worker.Pool
		ctx    context.Context
	)

	seed := func(kind memory.Kind, text string, importance int) {
		_, err := driver.Insert(ctx, &memory.Memory{
			Kind:       kind,
			Text:       text,
			Scope:      "/proj",
			Importance: importance,
		})
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()

		ingestor := ingest.New(ingest.Config{
			Redactor:  redact.New(nil, nil),
			Extractor: extract.NewEngine(extract.Config{}),
			Dedupe:    dedupe.NewEngine(dedupe.Config{Driver: driver}),
		})

		var err error
		pool, err = worker.NewPool(&worker.Config{Ingestor: ingestor})
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(
			Config{ListenAddr: ":0", DefaultScope: "/proj", RecallLimit: 12},
			driver,
			pool,
			nil,
			logger.Nop(),
		)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		pool.Close()
	})

	It("requires a store driver", func() {
		_, err := NewServer(Config{}, nil, nil, nil, nil)
		Expect(err).To(MatchError(ErrNoDriver))
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			req, err := http.NewRequest(http.MethodGet, "/ping", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("pong"))
		})
	})

	Describe("GET /v1/search", func() {
		It("returns 400 when the query parameter is missing", func() {
			req, err := http.NewRequest(http.MethodGet, "/v1/search", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("query parameter is required"))
		})

		It("returns matching memories", func() {
			seed(memory.KindDecision, "we chose postgres over mysql", 4)
			seed(memory.KindFact, "deploys run on fridays", 3)

			req, err := http.NewRequest(http.MethodGet, "/v1/search?query=postgres", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var payload struct {
				Count    int              `json:"count"`
				Memories []*memory.Memory `json:"memories"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&payload)).To(Succeed())
			Expect(payload.Count).To(Equal(1))
			Expect(payload.Memories[0].Text).To(ContainSubstring("postgres"))
		})

		It("rejects an unknown kind", func() {
			req, err := http.NewRequest(http.MethodGet, "/v1/search?query=x&kind=opinion", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects a non-numeric limit", func() {
			req, err := http.NewRequest(http.MethodGet, "/v1/search?query=x&limit=lots", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("GET /v1/recall", func() {
		It("uses the default scope", func() {
			seed(memory.KindPreference, "tabs over spaces", 5)

			req, err := http.NewRequest(http.MethodGet, "/v1/recall", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var payload struct {
				Scope string `json:"scope"`
				Count int    `json:"count"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&payload)).To(Succeed())
			Expect(payload.Scope).To(Equal("/proj"))
			Expect(payload.Count).To(Equal(1))
		})

		It("filters by min_importance", func() {
			seed(memory.KindFact, "low detail", 1)
			seed(memory.KindFact, "high detail", 5)

			req, err := http.NewRequest(http.MethodGet, "/v1/recall?min_importance=4", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())

			var payload struct {
				Count int `json:"count"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&payload)).To(Succeed())
			Expect(payload.Count).To(Equal(1))
		})
	})

	Describe("GET /v1/stats", func() {
		It("reports totals for the scope", func() {
			seed(memory.KindFact, "one", 3)
			seed(memory.KindTodo, "two", 3)

			req, err := http.NewRequest(http.MethodGet, "/v1/stats?scope=/proj", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var stats memory.Stats
			Expect(json.NewDecoder(resp.Body).Decode(&stats)).To(Succeed())
			Expect(stats.Total).To(Equal(int64(2)))
		})
	})

	Describe("POST /v1/notify", func() {
		It("returns 400 on an empty body", func() {
			req, err := http.NewRequest(http.MethodPost, "/v1/notify", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("accepts a hook payload and ingests it", func() {
			projRoot := GinkgoT().TempDir()
			Expect(os.Mkdir(filepath.Join(projRoot, ".git"), 0o755)).To(Succeed())

			payload, err := json.Marshal(map[string]any{
				"input_messages": []map[string]string{
					{"role": "user", "content": "always run gofmt before committing."},
				},
				"cwd": projRoot,
			})
			Expect(err).NotTo(HaveOccurred())

			req, err := http.NewRequest(http.MethodPost, "/v1/notify", bytes.NewReader(payload))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusAccepted))

			Eventually(func() int {
				return driver.Count()
			}).Should(BeNumerically(">", 0))
		})

		It("returns 503 when ingest is not configured", func() {
			bare, err := NewServer(Config{ListenAddr: ":0"}, driver, nil, nil, nil)
			Expect(err).NotTo(HaveOccurred())

			req, err := http.NewRequest(http.MethodPost, "/v1/notify", bytes.NewReader([]byte("{}")))
			Expect(err).NotTo(HaveOccurred())

			resp, err := bare.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
		})
	})
})
