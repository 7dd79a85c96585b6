package dedupe

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/loamhq/loam/pkg/embeddings"
)

// Similarity scores how alike two texts are. Implementations must be
// commutative, bounded in [0,1], and score 1.0 for identical normalized text.
type Similarity interface {
	Score(ctx context.Context, a, b string) float64
}

// Lexical is the default strategy: a Dice coefficient over lowercased,
// punctuation-stripped token multisets. Unlike an edit-distance ratio it is
// commutative by construction, which the merge-commutativity property needs.
type Lexical struct{}

// Score computes 2·|A∩B| / (|A|+|B|) over token multisets.
func (Lexical) Score(_ context.Context, a, b string) float64 {
	ta, tb := tokens(a), tokens(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	counts := make(map[string]int, len(ta))
	for _, tok := range ta {
		counts[tok]++
	}

	common := 0
	for _, tok := range tb {
		if counts[tok] > 0 {
			counts[tok]--
			common++
		}
	}

	return 2 * float64(common) / float64(len(ta)+len(tb))
}

func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
}

// Semantic scores by cosine over embedding vectors, falling back to lexical
// when the embedder fails so merge decisions never depend on an external
// service being up.
type Semantic struct {
	embedder embeddings.Embedder
	fallback Lexical
	logger   *slog.Logger
}

// NewSemantic builds a Semantic strategy over the given embedder.
func NewSemantic(embedder embeddings.Embedder, log *slog.Logger) *Semantic {
	return &Semantic{embedder: embedder, logger: log}
}

// Score embeds both texts and returns their cosine similarity clamped to
// [0,1].
func (s *Semantic) Score(ctx context.Context, a, b string) float64 {
	va, err := s.embedder.Embed(ctx, a)
	if err != nil {
		s.logger.Debug("embedding failed, falling back to lexical", "error", err)
		return s.fallback.Score(ctx, a, b)
	}
	vb, err := s.embedder.Embed(ctx, b)
	if err != nil {
		s.logger.Debug("embedding failed, falling back to lexical", "error", err)
		return s.fallback.Score(ctx, a, b)
	}

	return cosine(va, vb)
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}

	score := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

var (
	_ Similarity = Lexical{}
	_ Similarity = (*Semantic)(nil)
)
