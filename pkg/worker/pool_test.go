package worker_test

import (
	"context"
	"sync"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loamhq/loam/pkg/ingest"
	"github.com/loamhq/loam/pkg/worker"
)

func TestWorker(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Worker Pool Suite")
}

// countingNotifier records every payload it sees.
type countingNotifier struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (n *countingNotifier) Notify(_ context.Context, payload []byte) (*ingest.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, payload)
	return &ingest.Result{Outcome: ingest.OutcomeCommitted, Inserted: 1}, nil
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.payloads)
}

var _ = Describe("Pool", func() {
	It("requires an ingestor", func() {
		_, err := worker.NewPool(&worker.Config{})
		Expect(err).To(HaveOccurred())
	})

	It("processes every enqueued job before Close returns", func() {
		notifier := &countingNotifier{}
		pool, err := worker.NewPool(&worker.Config{Ingestor: notifier})
		Expect(err).NotTo(HaveOccurred())

		for range 20 {
			Expect(pool.Enqueue(worker.Job{Payload: []byte(`{}`)})).To(BeTrue())
		}
		pool.Close()

		Expect(notifier.count()).To(Equal(20))
	})

	It("drops jobs when the queue is full", func() {
		blocked := make(chan struct{})
		notifier := &blockingNotifier{started: make(chan struct{}), release: blocked}
		pool, err := worker.NewPool(&worker.Config{
			Ingestor:   notifier,
			NumWorkers: 1,
			QueueSize:  1,
		})
		Expect(err).NotTo(HaveOccurred())

		// First job occupies the worker, second fills the queue.
		Expect(pool.Enqueue(worker.Job{Payload: []byte(`{}`)})).To(BeTrue())
		Eventually(notifier.started).Should(BeClosed())
		Expect(pool.Enqueue(worker.Job{Payload: []byte(`{}`)})).To(BeTrue())
		Expect(pool.Enqueue(worker.Job{Payload: []byte(`{}`)})).To(BeFalse())

		close(blocked)
		pool.Close()
	})
})

// blockingNotifier holds its worker until released.
type blockingNotifier struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (n *blockingNotifier) Notify(context.Context, []byte) (*ingest.Result, error) {
	n.once.Do(func() {
		if n.started != nil {
			close(n.started)
		}
	})
	<-n.release
	return &ingest.Result{Outcome: ingest.OutcomeCommitted}, nil
}
