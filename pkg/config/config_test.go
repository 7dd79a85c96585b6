package config_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loamhq/loam/pkg/config"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("ParseConfigTOML", func() {
	It("returns defaults for empty input", func() {
		cfg, err := config.ParseConfigTOML(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Version).To(Equal(config.CurrentV))
		Expect(cfg.Ingest.MaxPerTurn).To(Equal(5))
		Expect(cfg.Ingest.SpoolEnabled).To(BeTrue())
		Expect(cfg.Ingest.BusyTimeoutMS).To(Equal(250))
		Expect(cfg.Query.BusyTimeoutMS).To(Equal(5000))
		Expect(cfg.Query.RecallLimit).To(Equal(12))
		Expect(cfg.Merge.Threshold).To(Equal(0.82))
		Expect(cfg.Merge.Window).To(Equal(8))
		Expect(cfg.Merge.Similarity).To(Equal(config.SimilarityLexical))
		Expect(cfg.Scope.Markers).To(Equal([]string{".git"}))
		Expect(cfg.Remote.Enabled).To(BeFalse())
		Expect(cfg.Remote.Model).To(Equal("gpt-4o-mini"))
		Expect(cfg.Events.Topic).To(Equal("loam.ingest"))
		Expect(cfg.API.ListenAddr).To(Equal(":8787"))
	})

	It("overrides only the keys the file sets", func() {
		cfg, err := config.ParseConfigTOML([]byte(`
[merge]
threshold = 0.9

[ingest]
spool_enabled = false
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Merge.Threshold).To(Equal(0.9))
		Expect(cfg.Merge.Window).To(Equal(8))
		Expect(cfg.Ingest.SpoolEnabled).To(BeFalse())
		Expect(cfg.Ingest.MaxPerTurn).To(Equal(5))
	})

	It("accepts an explicit current version", func() {
		_, err := config.ParseConfigTOML([]byte("version = 1\n"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects an unsupported version", func() {
		_, err := config.ParseConfigTOML([]byte("version = 99\n"))
		Expect(err).To(MatchError(ContainSubstring("unsupported config version")))
	})

	It("rejects malformed TOML", func() {
		_, err := config.ParseConfigTOML([]byte("[store\npath = ???"))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Configer", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("loads defaults when no config file exists", func() {
		cfger, err := config.NewConfiger(dir)
		Expect(err).NotTo(HaveOccurred())

		cfg, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Merge.Threshold).To(Equal(0.82))
	})

	It("round-trips a config through save and load", func() {
		cfger, err := config.NewConfiger(dir)
		Expect(err).NotTo(HaveOccurred())

		cfg := config.NewDefaultConfig()
		cfg.Store.Path = "/tmp/custom.db"
		cfg.Scope.Deny = []string{"/home/*/secrets/**"}
		Expect(cfger.SaveConfig(cfg)).To(Succeed())

		loaded, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Store.Path).To(Equal("/tmp/custom.db"))
		Expect(loaded.Scope.Deny).To(Equal([]string{"/home/*/secrets/**"}))
	})

	It("sets and gets values by dotted key", func() {
		cfger, err := config.NewConfiger(dir)
		Expect(err).NotTo(HaveOccurred())

		Expect(cfger.SetConfigValue("merge.threshold", "0.9")).To(Succeed())
		got, err := cfger.GetConfigValue("merge.threshold")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal("0.9"))
	})

	It("handles list-valued keys as comma-separated strings", func() {
		cfger, err := config.NewConfiger(dir)
		Expect(err).NotTo(HaveOccurred())

		Expect(cfger.SetConfigValue("scope.allow", "/work/**, /home/dev/**")).To(Succeed())
		got, err := cfger.GetConfigValue("scope.allow")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal("/work/**,/home/dev/**"))
	})

	It("rejects unknown keys", func() {
		cfger, err := config.NewConfiger(dir)
		Expect(err).NotTo(HaveOccurred())

		Expect(cfger.SetConfigValue("nope.nope", "x")).To(MatchError(ContainSubstring("unknown config key")))
		_, err = cfger.GetConfigValue("nope.nope")
		Expect(err).To(MatchError(ContainSubstring("unknown config key")))
	})

	It("rejects invalid values", func() {
		cfger, err := config.NewConfiger(dir)
		Expect(err).NotTo(HaveOccurred())

		Expect(cfger.SetConfigValue("merge.threshold", "2.5")).To(HaveOccurred())
		Expect(cfger.SetConfigValue("merge.similarity", "psychic")).To(HaveOccurred())
		Expect(cfger.SetConfigValue("ingest.max_per_turn", "many")).To(HaveOccurred())
	})
})

var _ = Describe("ValidConfigKeys", func() {
	It("covers every key the map supports", func() {
		keys := config.ValidConfigKeys()
		Expect(keys).To(ContainElements(
			"store.path", "merge.threshold", "scope.deny", "events.topic", "api.listen_addr",
		))
		for _, k := range keys {
			Expect(config.IsValidConfigKey(k)).To(BeTrue(), k)
		}
	})
})

var _ = Describe("InitViper", func() {
	It("applies env overrides with the LOAM_ prefix", func() {
		dir := GinkgoT().TempDir()
		Expect(os.Setenv("LOAM_MERGE_THRESHOLD", "0.95")).To(Succeed())
		defer os.Unsetenv("LOAM_MERGE_THRESHOLD")

		v, err := config.InitViper(dir)
		Expect(err).NotTo(HaveOccurred())

		cfg := config.FromViper(v)
		Expect(cfg.Merge.Threshold).To(Equal(0.95))
	})

	It("reads values from config.toml in the target dir", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "config.toml")
		Expect(os.WriteFile(path, []byte("[query]\nrecall_limit = 3\n"), 0o600)).To(Succeed())

		v, err := config.InitViper(dir)
		Expect(err).NotTo(HaveOccurred())

		cfg := config.FromViper(v)
		Expect(cfg.Query.RecallLimit).To(Equal(3))
		Expect(cfg.Merge.Window).To(Equal(8))
	})
})
