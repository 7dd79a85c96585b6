package dedupe_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loamhq/loam/pkg/dedupe"
	"github.com/loamhq/loam/pkg/memory"
	"github.com/loamhq/loam/pkg/store/inmemory"
)

func TestDedupe(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Dedupe Suite")
}

var _ = Describe("Lexical", func() {
	ctx := context.Background()
	var sim dedupe.Lexical

	It("scores identical normalized text as 1.0", func() {
		Expect(sim.Score(ctx, "Use Tabs, not spaces!", "use tabs not spaces")).To(BeNumerically("==", 1.0))
	})

	It("scores disjoint text as 0", func() {
		Expect(sim.Score(ctx, "alpha beta", "gamma delta")).To(BeNumerically("==", 0))
	})

	It("is commutative", func() {
		a, b := "prefer rebase over merge commits", "merge commits are worse than rebase"
		Expect(sim.Score(ctx, a, b)).To(Equal(sim.Score(ctx, b, a)))
	})

	It("stays within [0,1] for partial overlap", func() {
		score := sim.Score(ctx, "always run gofmt before commit", "always run tests before commit")
		Expect(score).To(BeNumerically(">", 0))
		Expect(score).To(BeNumerically("<", 1))
	})
})

var _ = Describe("Engine", func() {
	var (
		ctx    context.Context
		driver *inmemory.Driver
		engine *dedupe.Engine
	)

	cand := func(text string) memory.Candidate {
		return memory.Candidate{
			Kind:       memory.KindPreference,
			Text:       text,
			Importance: 3,
			Confidence: 0.8,
			Scope:      "/proj",
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		engine = dedupe.NewEngine(dedupe.Config{Driver: driver})
	})

	It("inserts a candidate into an empty scope", func() {
		m, merged, err := engine.Apply(ctx, cand("I always use tabs, not spaces"))
		Expect(err).NotTo(HaveOccurred())
		Expect(merged).To(BeFalse())
		Expect(m.ID).NotTo(BeZero())
		Expect(m.MergeCount).To(Equal(0))
	})

	It("merges a near-duplicate and increments the merge count", func() {
		first, _, err := engine.Apply(ctx, cand("I always use tabs, not spaces"))
		Expect(err).NotTo(HaveOccurred())

		second, merged, err := engine.Apply(ctx, cand("I always use tabs, not spaces"))
		Expect(err).NotTo(HaveOccurred())
		Expect(merged).To(BeTrue())
		Expect(second.ID).To(Equal(first.ID))
		Expect(second.MergeCount).To(Equal(1))
		Expect(driver.Count()).To(Equal(1))
	})

	It("does not duplicate text the memory already contains", func() {
		first, _, err := engine.Apply(ctx, cand("always use tabs"))
		Expect(err).NotTo(HaveOccurred())

		merged, wasMerged, err := engine.Apply(ctx, cand("always use tabs"))
		Expect(err).NotTo(HaveOccurred())
		Expect(wasMerged).To(BeTrue())
		Expect(merged.Text).To(Equal(first.Text))
	})

	It("widens text when the duplicate adds information", func() {
		_, _, err := engine.Apply(ctx, cand("always use tabs for indentation in Go files"))
		Expect(err).NotTo(HaveOccurred())

		merged, wasMerged, err := engine.Apply(ctx, cand("use tabs for indentation in Go files always"))
		Expect(err).NotTo(HaveOccurred())
		Expect(wasMerged).To(BeTrue())
		Expect(merged.Text).To(ContainSubstring("\n- "))
	})

	It("keeps the max importance when absorbing", func() {
		low := cand("never commit secrets to the repo")
		low.Importance = 2
		_, _, err := engine.Apply(ctx, low)
		Expect(err).NotTo(HaveOccurred())

		high := cand("never commit secrets to the repo")
		high.Importance = 5
		m, _, err := engine.Apply(ctx, high)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Importance).To(Equal(5))
	})

	It("never merges across scopes", func() {
		_, _, err := engine.Apply(ctx, cand("I always use tabs, not spaces"))
		Expect(err).NotTo(HaveOccurred())

		other := cand("I always use tabs, not spaces")
		other.Scope = "/other"
		_, merged, err := engine.Apply(ctx, other)
		Expect(err).NotTo(HaveOccurred())
		Expect(merged).To(BeFalse())
		Expect(driver.Count()).To(Equal(2))
	})

	It("never merges across kinds", func() {
		_, _, err := engine.Apply(ctx, cand("we always deploy on fridays"))
		Expect(err).NotTo(HaveOccurred())

		fact := cand("we always deploy on fridays")
		fact.Kind = memory.KindFact
		_, merged, err := engine.Apply(ctx, fact)
		Expect(err).NotTo(HaveOccurred())
		Expect(merged).To(BeFalse())
		Expect(driver.Count()).To(Equal(2))
	})

	It("keeps distinct memories below the threshold", func() {
		_, _, err := engine.Apply(ctx, cand("I prefer tabs for indentation"))
		Expect(err).NotTo(HaveOccurred())

		_, merged, err := engine.Apply(ctx, cand("I prefer dark terminal themes"))
		Expect(err).NotTo(HaveOccurred())
		Expect(merged).To(BeFalse())
		Expect(driver.Count()).To(Equal(2))
	})

	It("is commutative in outcome for mutually-similar candidates", func() {
		a := cand("always run gofmt before committing changes")
		b := cand("always run gofmt before committing the changes")

		first := inmemory.NewDriver()
		e1 := dedupe.NewEngine(dedupe.Config{Driver: first})
		_, _, err := e1.Apply(ctx, a)
		Expect(err).NotTo(HaveOccurred())
		_, merged1, err := e1.Apply(ctx, b)
		Expect(err).NotTo(HaveOccurred())

		second := inmemory.NewDriver()
		e2 := dedupe.NewEngine(dedupe.Config{Driver: second})
		_, _, err = e2.Apply(ctx, b)
		Expect(err).NotTo(HaveOccurred())
		_, merged2, err := e2.Apply(ctx, a)
		Expect(err).NotTo(HaveOccurred())

		Expect(merged1).To(BeTrue())
		Expect(merged2).To(BeTrue())
		Expect(first.Count()).To(Equal(1))
		Expect(second.Count()).To(Equal(1))
	})
})
