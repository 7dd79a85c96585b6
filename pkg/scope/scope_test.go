package scope_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loamhq/loam/pkg/logger"
	"github.com/loamhq/loam/pkg/scope"
)

func TestScope(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Scope Suite")
}

var _ = Describe("DetectRoot", func() {
	var root string

	BeforeEach(func() {
		root = GinkgoT().TempDir()
	})

	It("finds the directory holding a marker above cwd", func() {
		Expect(os.MkdirAll(filepath.Join(root, ".git"), 0o755)).To(Succeed())
		nested := filepath.Join(root, "sub", "deeper")
		Expect(os.MkdirAll(nested, 0o755)).To(Succeed())

		Expect(scope.DetectRoot(nested, []string{".git"})).To(Equal(root))
	})

	It("honors custom markers", func() {
		Expect(os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x\n"), 0o600)).To(Succeed())
		nested := filepath.Join(root, "pkg")
		Expect(os.MkdirAll(nested, 0o755)).To(Succeed())

		Expect(scope.DetectRoot(nested, []string{"go.mod"})).To(Equal(root))
	})

	It("falls back to cwd when no marker exists", func() {
		nested := filepath.Join(root, "plain")
		Expect(os.MkdirAll(nested, 0o755)).To(Succeed())

		Expect(scope.DetectRoot(nested, []string{".loam-root-marker-missing"})).To(Equal(nested))
	})
})

var _ = Describe("Policy", func() {
	It("allows everything when both lists are empty", func() {
		p := scope.NewPolicy(nil, nil, logger.Nop())
		Expect(p.Check("/home/dev/proj")).To(Succeed())
	})

	It("denies scopes matching a deny glob", func() {
		p := scope.NewPolicy(nil, []string{"/home/dev/secret*"}, logger.Nop())
		Expect(p.Check("/home/dev/secret-proj")).To(MatchError(scope.ErrDenied))
		Expect(p.Check("/home/dev/proj")).To(Succeed())
	})

	It("requires a match when an allow list is present", func() {
		p := scope.NewPolicy([]string{"/home/dev/*"}, nil, logger.Nop())
		Expect(p.Check("/home/dev/proj")).To(Succeed())
		Expect(p.Check("/tmp/elsewhere")).To(MatchError(scope.ErrDenied))
	})

	It("lets deny win when both lists match", func() {
		p := scope.NewPolicy([]string{"/home/dev/*"}, []string{"/home/dev/secret*"}, logger.Nop())
		Expect(p.Check("/home/dev/secret-proj")).To(MatchError(scope.ErrDenied))
	})

	It("skips invalid globs instead of failing", func() {
		p := scope.NewPolicy([]string{"["}, nil, logger.Nop())
		Expect(p.Check("/anywhere")).To(Succeed())
	})
})
