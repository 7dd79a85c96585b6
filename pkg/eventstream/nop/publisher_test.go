package nop_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loamhq/loam/pkg/eventstream"
	"github.com/loamhq/loam/pkg/eventstream/nop"
)

func TestNop(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Nop Publisher Suite")
}

var _ = Describe("Publisher", func() {
	It("accepts a valid event", func() {
		p := nop.NewPublisher()
		err := p.PublishIngest(context.Background(), &eventstream.TurnIngestedEvent{EventID: "e1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Close()).To(Succeed())
	})

	It("rejects a nil event", func() {
		p := nop.NewPublisher()
		Expect(p.PublishIngest(context.Background(), nil)).To(MatchError(eventstream.ErrNilEvent))
	})
})
