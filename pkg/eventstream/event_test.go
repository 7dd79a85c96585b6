package eventstream_test

import (
	"encoding/json"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loamhq/loam/pkg/eventstream"
	"github.com/loamhq/loam/pkg/memory"
)

func TestEventstream(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Eventstream Suite")
}

var _ = Describe("Event", func() {
	It("marshals TurnIngestedEvent with expected top-level keys", func() {
		now := time.Unix(1735689600, 0).UTC()
		event := eventstream.TurnIngestedEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeTurnIngested,
			EventID:       "evt_123",
			EmittedAt:     now,
			Scope:         "/home/dev/proj",
			Surface:       "codex",
			TurnHash:      "abc123",
			Outcome:       "committed",
			Inserted:      2,
			Merged:        1,
			Kinds:         []memory.Kind{memory.KindPreference, memory.KindDecision},
		}

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("scope"))
		Expect(got).To(HaveKey("turn_hash"))
		Expect(got).To(HaveKey("inserted"))
		Expect(got).To(HaveKey("merged"))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypeTurnIngested).To(Equal("loam.turn.ingested"))
	})

	It("provides ErrNilEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilEvent).To(MatchError("nil ingest event"))
	})
})
