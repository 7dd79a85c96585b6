package extract_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loamhq/loam/pkg/extract"
	"github.com/loamhq/loam/pkg/memory"
	"github.com/loamhq/loam/pkg/turn"
)

func TestExtract(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Extract Suite")
}

func userTurn(texts ...string) *turn.Turn {
	t := &turn.Turn{Scope: "/proj", Hash: "hash-1"}
	for _, text := range texts {
		t.Utterances = append(t.Utterances, turn.Utterance{Role: turn.RoleUser, Text: text})
	}
	return t
}

type stubBackend struct {
	candidates []memory.Candidate
	err        error
}

func (s stubBackend) Extract(context.Context, *turn.Turn) ([]memory.Candidate, error) {
	return s.candidates, s.err
}

var _ = Describe("Engine", func() {
	var engine *extract.Engine

	BeforeEach(func() {
		engine = extract.NewEngine(extract.Config{})
	})

	It("classifies a preference sentence as a preference, not a fact", func() {
		out := engine.Extract(context.Background(), userTurn("I always use tabs, not spaces"))

		Expect(out).To(HaveLen(1))
		Expect(out[0].Kind).To(Equal(memory.KindPreference))
		Expect(out[0].Text).To(ContainSubstring("tabs"))
		Expect(out[0].Importance).To(Equal(5))
		Expect(out[0].Scope).To(Equal("/proj"))
		Expect(out[0].SourceTurn).To(Equal("hash-1"))
	})

	DescribeTable("kind classification",
		func(sentence string, kind memory.Kind) {
			out := engine.Extract(context.Background(), userTurn(sentence))
			Expect(out).To(HaveLen(1))
			Expect(out[0].Kind).To(Equal(kind))
		},
		Entry("decision", "We decided to ship on Friday", memory.KindDecision),
		Entry("todo", "TODO: wire the importer", memory.KindTodo),
		Entry("pitfall", "Avoid the flaky mirror", memory.KindPitfall),
		Entry("workflow note", "The release workflow has three stages", memory.KindWorkflowNote),
		Entry("reference", "See the architecture doc for details", memory.KindReference),
		Entry("fact fallback", "The service is running Postgres 16", memory.KindFact),
	)

	It("yields zero candidates for a turn with no rule matches", func() {
		out := engine.Extract(context.Background(), userTurn("Hello there!", "Good morning."))
		Expect(out).To(BeEmpty())
	})

	It("caps output at the configured maximum", func() {
		engine = extract.NewEngine(extract.Config{MaxPerTurn: 3})
		out := engine.Extract(context.Background(), userTurn(
			"I prefer short names. I always rebase. We decided on sqlite. TODO check disk. Avoid symlinks. Use WAL mode.",
		))
		Expect(out).To(HaveLen(3))
	})

	It("sorts by confidence desc, discovery order asc, without reordering ties", func() {
		out := engine.Extract(context.Background(), userTurn(
			"Use spaces here.",        // fact, importance 3 -> 0.8
			"I always run gofmt.",     // preference, importance 5 -> 1.0
			"Maybe use a cache here.", // fact, importance 2 -> 0.7
			"Use the staging bucket.", // fact, importance 3 -> 0.8
		))

		Expect(out).To(HaveLen(4))
		Expect(out[0].Text).To(ContainSubstring("gofmt"))
		// equal-confidence candidates keep their discovery order
		Expect(out[1].Text).To(ContainSubstring("spaces"))
		Expect(out[2].Text).To(ContainSubstring("staging"))
		Expect(out[3].Text).To(ContainSubstring("cache"))
		for i := 1; i < len(out); i++ {
			Expect(out[i-1].Confidence).To(BeNumerically(">=", out[i].Confidence))
		}
	})

	It("splits sentences on terminators and newlines", func() {
		out := engine.Extract(context.Background(), userTurn("I prefer tabs\nWe decided on fiber"))
		Expect(out).To(HaveLen(2))
		Expect(out[0].Kind).To(Equal(memory.KindPreference))
		Expect(out[1].Kind).To(Equal(memory.KindDecision))
	})

	Describe("remote backend", func() {
		It("merges backend candidates into the same ranking and cap", func() {
			engine = extract.NewEngine(extract.Config{
				MaxPerTurn: 2,
				Backend: stubBackend{candidates: []memory.Candidate{
					{Kind: memory.KindFact, Text: "project targets go 1.25", Confidence: 0.95},
				}},
			})

			out := engine.Extract(context.Background(), userTurn("Maybe use a queue.", "I always use tabs."))

			Expect(out).To(HaveLen(2))
			Expect(out[0].Text).To(ContainSubstring("tabs"))
			Expect(out[1].Text).To(Equal("project targets go 1.25"))
			Expect(out[1].Scope).To(Equal("/proj"))
			Expect(out[1].SourceTurn).To(Equal("hash-1"))
		})

		It("falls back to rule output when the backend errors", func() {
			engine = extract.NewEngine(extract.Config{
				Backend: stubBackend{err: errors.New("timeout")},
			})

			out := engine.Extract(context.Background(), userTurn("I always use tabs."))
			Expect(out).To(HaveLen(1))
			Expect(out[0].Kind).To(Equal(memory.KindPreference))
		})

		It("defaults backend confidence when omitted", func() {
			engine = extract.NewEngine(extract.Config{
				Backend: stubBackend{candidates: []memory.Candidate{
					{Kind: memory.KindFact, Text: "no confidence supplied"},
				}},
			})

			out := engine.Extract(context.Background(), &turn.Turn{Scope: "/proj", Hash: "h"})
			Expect(out).To(HaveLen(1))
			Expect(out[0].Confidence).To(BeNumerically("==", 0.7))
		})
	})
})
