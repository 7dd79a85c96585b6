package inmemory_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loamhq/loam/pkg/memory"
	"github.com/loamhq/loam/pkg/store"
	"github.com/loamhq/loam/pkg/store/inmemory"
)

func TestInMemory(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "In-Memory Store Suite")
}

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		driver *inmemory.Driver
	)

	mem := func(kind memory.Kind, text string, importance int) *memory.Memory {
		return &memory.Memory{
			Kind:       kind,
			Text:       text,
			Scope:      "/proj",
			Importance: importance,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
	})

	It("assigns increasing ids", func() {
		a, err := driver.Insert(ctx, mem(memory.KindFact, "first", 3))
		Expect(err).NotTo(HaveOccurred())
		b, err := driver.Insert(ctx, mem(memory.KindFact, "second", 3))
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(BeNumerically(">", a))
	})

	It("rejects inserting an id that already exists", func() {
		m := mem(memory.KindFact, "claims id", 3)
		m.ID = 7
		_, err := driver.Insert(ctx, m)
		Expect(err).NotTo(HaveOccurred())

		dup := mem(memory.KindFact, "same id", 3)
		dup.ID = 7
		_, err = driver.Insert(ctx, dup)
		Expect(err).To(MatchError(store.ErrConflict{ID: 7}))
	})

	It("returns clones that do not alias internal state", func() {
		id, err := driver.Insert(ctx, mem(memory.KindFact, "original", 3))
		Expect(err).NotTo(HaveOccurred())

		got, err := driver.Get(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		got.Text = "mutated"

		again, err := driver.Get(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Text).To(Equal("original"))
	})

	It("requires every query token to match", func() {
		_, err := driver.Insert(ctx, mem(memory.KindFact, "postgres runs on port 5432", 3))
		Expect(err).NotTo(HaveOccurred())

		hits, err := driver.Search(ctx, "postgres port", "/proj", memory.Filters{}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(1))

		hits, err = driver.Search(ctx, "postgres missing", "/proj", memory.Filters{}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(BeEmpty())
	})

	It("degrades wildcard queries to recall", func() {
		_, err := driver.Insert(ctx, mem(memory.KindFact, "low", 2))
		Expect(err).NotTo(HaveOccurred())
		_, err = driver.Insert(ctx, mem(memory.KindFact, "high", 5))
		Expect(err).NotTo(HaveOccurred())

		hits, err := driver.Search(ctx, "*", "/proj", memory.Filters{}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(2))
		Expect(hits[0].Importance).To(Equal(5))
	})

	It("reports not found on a double forget", func() {
		id, err := driver.Insert(ctx, mem(memory.KindTodo, "cleanup", 3))
		Expect(err).NotTo(HaveOccurred())

		Expect(driver.Forget(ctx, id)).To(Succeed())
		Expect(store.IsNotFound(driver.Forget(ctx, id))).To(BeTrue())
	})

	It("clamps importance on update", func() {
		id, err := driver.Insert(ctx, mem(memory.KindFact, "a fact", 3))
		Expect(err).NotTo(HaveOccurred())

		importance := -3
		Expect(driver.Update(ctx, id, memory.Patch{Importance: &importance})).To(Succeed())

		got, err := driver.Get(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Importance).To(Equal(0))
	})

	It("filters by time window", func() {
		old := mem(memory.KindFact, "old", 3)
		old.UpdatedAt = time.Now().UTC().Add(-48 * time.Hour)
		old.CreatedAt = old.UpdatedAt
		_, err := driver.Insert(ctx, old)
		Expect(err).NotTo(HaveOccurred())

		_, err = driver.Insert(ctx, mem(memory.KindFact, "fresh", 3))
		Expect(err).NotTo(HaveOccurred())

		hits, err := driver.Recall(ctx, "/proj", memory.Filters{Since: time.Now().UTC().Add(-time.Hour)}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(1))
		Expect(hits[0].Text).To(Equal("fresh"))
	})

	It("applies since and until bounds across sub-second updates", func() {
		base := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

		recent := mem(memory.KindFact, "recent entry", 3)
		recent.CreatedAt = base.Add(500 * time.Millisecond)
		recent.UpdatedAt = recent.CreatedAt
		_, err := driver.Insert(ctx, recent)
		Expect(err).NotTo(HaveOccurred())

		stale := mem(memory.KindFact, "stale entry", 3)
		stale.CreatedAt = base.Add(-time.Hour)
		stale.UpdatedAt = stale.CreatedAt
		_, err = driver.Insert(ctx, stale)
		Expect(err).NotTo(HaveOccurred())

		hits, err := driver.Recall(ctx, "/proj", memory.Filters{Since: base}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(1))
		Expect(hits[0].Text).To(Equal("recent entry"))

		hits, err = driver.Recall(ctx, "/proj", memory.Filters{Until: base}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(1))
		Expect(hits[0].Text).To(Equal("stale entry"))
	})

	It("orders the recent window by fractional-second update times", func() {
		base := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

		newer := mem(memory.KindFact, "newer entry", 3)
		newer.CreatedAt = base.Add(150 * time.Millisecond)
		newer.UpdatedAt = newer.CreatedAt
		_, err := driver.Insert(ctx, newer)
		Expect(err).NotTo(HaveOccurred())

		older := mem(memory.KindFact, "older entry", 3)
		older.CreatedAt = base.Add(100 * time.Millisecond)
		older.UpdatedAt = older.CreatedAt
		_, err = driver.Insert(ctx, older)
		Expect(err).NotTo(HaveOccurred())

		window, err := driver.RecentByKind(ctx, "/proj", memory.KindFact, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(window).To(HaveLen(2))
		Expect(window[0].Text).To(Equal("newer entry"))
		Expect(window[1].Text).To(Equal("older entry"))
	})

	It("limits recall results", func() {
		for i := 0; i < 5; i++ {
			_, err := driver.Insert(ctx, mem(memory.KindFact, "fact", 3))
			Expect(err).NotTo(HaveOccurred())
		}

		hits, err := driver.Recall(ctx, "/proj", memory.Filters{}, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(3))
	})

	It("aggregates stats across scopes when scope is empty", func() {
		_, err := driver.Insert(ctx, mem(memory.KindFact, "a", 3))
		Expect(err).NotTo(HaveOccurred())

		other := mem(memory.KindTodo, "b", 3)
		other.Scope = "/other"
		_, err = driver.Insert(ctx, other)
		Expect(err).NotTo(HaveOccurred())

		stats, err := driver.Stats(ctx, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Total).To(Equal(int64(2)))
	})
})
