package sqlitepath

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ResolveSQLitePath", func() {
	var homeDir, cwd string

	BeforeEach(func() {
		homeDir = GinkgoT().TempDir()
		cwd = GinkgoT().TempDir()

		GinkgoT().Setenv("HOME", homeDir)
		GinkgoT().Setenv("XDG_DATA_HOME", "")
		GinkgoT().Setenv("SKETCHTABLE_SQLITE", "")

		origCwd, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(cwd)).To(Succeed())
		DeferCleanup(os.Chdir, origCwd)
	})

	It("returns the override unchanged", func() {
		Expect(ResolveSQLitePath("/tmp/explicit.db")).To(Equal("/tmp/explicit.db"))
	})

	It("prefers SKETCHTABLE_SQLITE when set", func() {
		GinkgoT().Setenv("SKETCHTABLE_SQLITE", "/tmp/custom.db")

		Expect(ResolveSQLitePath("")).To(Equal("/tmp/custom.db"))
	})

	It("resolves ~/.sketchtable/history.db when present", func() {
		dbPath := filepath.Join(homeDir, ".sketchtable", "history.db")
		Expect(os.MkdirAll(filepath.Dir(dbPath), 0o755)).To(Succeed())
		Expect(os.WriteFile(dbPath, []byte("test"), 0o644)).To(Succeed())

		Expect(ResolveSQLitePath("")).To(Equal(dbPath))
	})

	It("prefers the XDG data dir over home", func() {
		xdg := GinkgoT().TempDir()
		GinkgoT().Setenv("XDG_DATA_HOME", xdg)

		for _, p := range []string{
			filepath.Join(homeDir, ".sketchtable", "history.db"),
			filepath.Join(xdg, "sketchtable", "history.db"),
		} {
			Expect(os.MkdirAll(filepath.Dir(p), 0o755)).To(Succeed())
			Expect(os.WriteFile(p, []byte("test"), 0o644)).To(Succeed())
		}

		Expect(ResolveSQLitePath("")).To(Equal(filepath.Join(xdg, "sketchtable", "history.db")))
	})

	It("falls back to ./history.db", func() {
		Expect(os.WriteFile(filepath.Join(cwd, "history.db"), []byte("test"), 0o644)).To(Succeed())

		Expect(ResolveSQLitePath("")).To(Equal("history.db"))
	})

	It("returns ErrNotFound when nothing exists", func() {
		_, err := ResolveSQLitePath("")
		Expect(err).To(MatchError(ErrNotFound))
	})
})
