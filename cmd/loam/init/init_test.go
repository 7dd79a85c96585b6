package initcmder_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/loamhq/loam/cmd/loam/init"
)

func TestInitCmd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Init Command Suite")
}

var _ = Describe("Init command", func() {
	var (
		tmpDir  string
		origDir string
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "loam-init-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		err = os.Chdir(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		err := os.Chdir(origDir)
		Expect(err).NotTo(HaveOccurred())
		os.RemoveAll(tmpDir)
	})

	It("creates the directory, config, and store", func() {
		cmd := initcmder.NewInitCmd()
		cmd.SetArgs([]string{"--local"})
		Expect(cmd.Execute()).To(Succeed())

		dir := filepath.Join(tmpDir, ".loam")
		info, err := os.Stat(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())

		_, err = os.Stat(filepath.Join(dir, "config.toml"))
		Expect(err).NotTo(HaveOccurred())

		_, err = os.Stat(filepath.Join(dir, "loam.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("is idempotent", func() {
		first := initcmder.NewInitCmd()
		first.SetArgs([]string{"--local"})
		Expect(first.Execute()).To(Succeed())

		second := initcmder.NewInitCmd()
		second.SetArgs([]string{"--local"})
		Expect(second.Execute()).To(Succeed())
	})

	It("does not overwrite an existing config", func() {
		dir := filepath.Join(tmpDir, ".loam")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())

		marker := []byte("version = 1\n\n[merge]\nthreshold = 0.9\n")
		configPath := filepath.Join(dir, "config.toml")
		Expect(os.WriteFile(configPath, marker, 0o600)).To(Succeed())

		cmd := initcmder.NewInitCmd()
		cmd.SetArgs([]string{"--local"})
		Expect(cmd.Execute()).To(Succeed())

		data, err := os.ReadFile(configPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("threshold = 0.9"))
	})

	It("rejects positional arguments", func() {
		cmd := initcmder.NewInitCmd()
		cmd.SetArgs([]string{"extra"})
		Expect(cmd.Execute()).To(HaveOccurred())
	})
})
