package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loamhq/loam/pkg/memory"
	"github.com/loamhq/loam/pkg/store"
	"github.com/loamhq/loam/pkg/store/sqlite"
)

func TestSQLite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "SQLite Store Suite")
}

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		driver *sqlite.Driver
	)

	mem := func(kind memory.Kind, text string, importance int) *memory.Memory {
		return &memory.Memory{
			Kind:       kind,
			Text:       text,
			Scope:      "/proj",
			Importance: importance,
			SourceTurn: "hash-1",
		}
	}

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		driver, err = sqlite.New(filepath.Join(GinkgoT().TempDir(), "loam.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(driver.Close()).To(Succeed())
	})

	It("round-trips a memory through insert and get", func() {
		m := mem(memory.KindPreference, "I always use tabs, not spaces", 4)
		id, err := driver.Insert(ctx, m)
		Expect(err).NotTo(HaveOccurred())
		Expect(id).NotTo(BeZero())

		got, err := driver.Get(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Kind).To(Equal(memory.KindPreference))
		Expect(got.Text).To(Equal("I always use tabs, not spaces"))
		Expect(got.Scope).To(Equal("/proj"))
		Expect(got.Importance).To(Equal(4))
		Expect(got.SourceTurn).To(Equal("hash-1"))
		Expect(got.CreatedAt).NotTo(BeZero())
	})

	It("finds inserted text by search immediately", func() {
		_, err := driver.Insert(ctx, mem(memory.KindDecision, "we chose postgres over mysql", 3))
		Expect(err).NotTo(HaveOccurred())

		hits, err := driver.Search(ctx, "postgres", "/proj", memory.Filters{}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(1))
		Expect(hits[0].Text).To(ContainSubstring("postgres"))
	})

	It("handles punctuation and FTS operators in queries", func() {
		_, err := driver.Insert(ctx, mem(memory.KindFact, "the api lives at api.example.com", 3))
		Expect(err).NotTo(HaveOccurred())

		hits, err := driver.Search(ctx, `api.example.com AND "quotes" (parens)`, "/proj", memory.Filters{}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).NotTo(BeEmpty())
	})

	It("degrades an empty query to recall ordering", func() {
		_, err := driver.Insert(ctx, mem(memory.KindFact, "low importance", 2))
		Expect(err).NotTo(HaveOccurred())
		_, err = driver.Insert(ctx, mem(memory.KindFact, "high importance", 5))
		Expect(err).NotTo(HaveOccurred())

		hits, err := driver.Search(ctx, "  ", "/proj", memory.Filters{}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(2))
		Expect(hits[0].Importance).To(Equal(5))
	})

	It("reports not found for a missing id", func() {
		_, err := driver.Get(ctx, 999)
		Expect(store.IsNotFound(err)).To(BeTrue())
	})

	It("reports not found on a double forget", func() {
		id, err := driver.Insert(ctx, mem(memory.KindTodo, "remove the shim", 3))
		Expect(err).NotTo(HaveOccurred())

		Expect(driver.Forget(ctx, id)).To(Succeed())
		err = driver.Forget(ctx, id)
		Expect(store.IsNotFound(err)).To(BeTrue())
	})

	It("drops index entries when a memory is forgotten", func() {
		id, err := driver.Insert(ctx, mem(memory.KindPitfall, "flaky zeta test on arm", 3))
		Expect(err).NotTo(HaveOccurred())
		Expect(driver.Forget(ctx, id)).To(Succeed())

		hits, err := driver.Search(ctx, "zeta", "/proj", memory.Filters{}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(BeEmpty())
		Expect(driver.Quick(ctx)).To(Succeed())
	})

	It("updates fields through a patch and keeps the index in sync", func() {
		id, err := driver.Insert(ctx, mem(memory.KindTodo, "old text about widgets", 3))
		Expect(err).NotTo(HaveOccurred())

		text := "new text about gadgets"
		importance := 9
		Expect(driver.Update(ctx, id, memory.Patch{Text: &text, Importance: &importance})).To(Succeed())

		got, err := driver.Get(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Text).To(Equal(text))
		Expect(got.Importance).To(Equal(5))

		hits, err := driver.Search(ctx, "gadgets", "/proj", memory.Filters{}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(1))

		stale, err := driver.Search(ctx, "widgets", "/proj", memory.Filters{}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(stale).To(BeEmpty())
	})

	It("absorbs a duplicate and bumps the merge count", func() {
		id, err := driver.Insert(ctx, mem(memory.KindPreference, "tabs over spaces", 3))
		Expect(err).NotTo(HaveOccurred())

		Expect(driver.Absorb(ctx, id, "tabs over spaces everywhere", 5)).To(Succeed())

		got, err := driver.Get(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.MergeCount).To(Equal(1))
		Expect(got.Importance).To(Equal(5))
		Expect(got.Text).To(ContainSubstring("\n- tabs over spaces everywhere"))
	})

	It("leaves contained text alone when absorbing", func() {
		id, err := driver.Insert(ctx, mem(memory.KindPreference, "tabs over spaces everywhere", 3))
		Expect(err).NotTo(HaveOccurred())

		Expect(driver.Absorb(ctx, id, "tabs over spaces", 3)).To(Succeed())

		got, err := driver.Get(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Text).To(Equal("tabs over spaces everywhere"))
		Expect(got.MergeCount).To(Equal(1))
	})

	It("scopes search and recall", func() {
		_, err := driver.Insert(ctx, mem(memory.KindFact, "shared keyword alpha", 3))
		Expect(err).NotTo(HaveOccurred())

		other := mem(memory.KindFact, "shared keyword alpha", 3)
		other.Scope = "/other"
		_, err = driver.Insert(ctx, other)
		Expect(err).NotTo(HaveOccurred())

		hits, err := driver.Search(ctx, "alpha", "/proj", memory.Filters{}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(1))
		Expect(hits[0].Scope).To(Equal("/proj"))
	})

	It("applies kind and importance filters", func() {
		_, err := driver.Insert(ctx, mem(memory.KindPreference, "keep it simple", 2))
		Expect(err).NotTo(HaveOccurred())
		_, err = driver.Insert(ctx, mem(memory.KindDecision, "keep it simple", 5))
		Expect(err).NotTo(HaveOccurred())

		hits, err := driver.Recall(ctx, "/proj", memory.Filters{Kind: memory.KindDecision}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(1))
		Expect(hits[0].Kind).To(Equal(memory.KindDecision))

		hits, err = driver.Recall(ctx, "/proj", memory.Filters{MinImportance: 4}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(1))
		Expect(hits[0].Importance).To(Equal(5))
	})

	It("applies since and until date-range filters across sub-second updates", func() {
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

	It("orders the recent window by update time", func() {
		first := mem(memory.KindFact, "older fact", 3)
		first.CreatedAt = time.Now().UTC().Add(-time.Hour)
		first.UpdatedAt = first.CreatedAt
		_, err := driver.Insert(ctx, first)
		Expect(err).NotTo(HaveOccurred())

		_, err = driver.Insert(ctx, mem(memory.KindFact, "newer fact", 3))
		Expect(err).NotTo(HaveOccurred())

		window, err := driver.RecentByKind(ctx, "/proj", memory.KindFact, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(window).To(HaveLen(2))
		Expect(window[0].Text).To(Equal("newer fact"))
	})

	It("counts by kind in stats", func() {
		_, err := driver.Insert(ctx, mem(memory.KindFact, "one", 3))
		Expect(err).NotTo(HaveOccurred())
		_, err = driver.Insert(ctx, mem(memory.KindFact, "two", 3))
		Expect(err).NotTo(HaveOccurred())
		_, err = driver.Insert(ctx, mem(memory.KindTodo, "three", 3))
		Expect(err).NotTo(HaveOccurred())

		stats, err := driver.Stats(ctx, "/proj")
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Total).To(Equal(int64(3)))
		Expect(stats.ByKind[memory.KindFact]).To(Equal(int64(2)))
		Expect(stats.ByKind[memory.KindTodo]).To(Equal(int64(1)))
		Expect(stats.SizeBytes).To(BeNumerically(">", 0))
	})

	It("survives reopen with data intact", func() {
		path := filepath.Join(GinkgoT().TempDir(), "persist.db")
		d1, err := sqlite.New(path)
		Expect(err).NotTo(HaveOccurred())
		_, err = d1.Insert(ctx, mem(memory.KindReference, "see the runbook", 3))
		Expect(err).NotTo(HaveOccurred())
		Expect(d1.Close()).To(Succeed())

		d2, err := sqlite.New(path)
		Expect(err).NotTo(HaveOccurred())
		defer d2.Close()

		hits, err := d2.Search(ctx, "runbook", "/proj", memory.Filters{}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(1))
	})
})
