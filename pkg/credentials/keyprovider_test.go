package credentials_test

import (
	"io"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/sketchtable/pkg/credentials"
)

// pipeWith returns a read end that yields input followed by EOF.
func pipeWith(input string) *os.File {
	r, w, err := os.Pipe()
	Expect(err).NotTo(HaveOccurred())
	_, err = w.WriteString(input)
	Expect(err).NotTo(HaveOccurred())
	Expect(w.Close()).To(Succeed())
	DeferCleanup(r.Close)
	return r
}

var _ = Describe("KeyProvider", func() {
	var (
		mgr  *credentials.Manager
		home string
	)

	BeforeEach(func() {
		home = GinkgoT().TempDir()
		GinkgoT().Setenv("HOME", home)
		GinkgoT().Setenv("OPENAI_API_KEY", "")
		GinkgoT().Setenv("OPENROUTER_API_KEY", "")

		var err error
		mgr, err = credentials.NewManager(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
	})

	It("prefers the environment variable", func() {
		GinkgoT().Setenv("OPENAI_API_KEY", " sk-env ")
		Expect(mgr.SetKey("openai", "sk-stored")).To(Succeed())

		p := credentials.NewKeyProvider("openai", mgr)
		Expect(p.Key()).To(Equal("sk-env"))
	})

	It("falls back to stored credentials", func() {
		Expect(mgr.SetKey("openai", "sk-stored")).To(Succeed())

		p := credentials.NewKeyProvider("openai", mgr)
		p.Interactive = false
		Expect(p.Key()).To(Equal("sk-stored"))
	})

	It("reads the codex auth file for openai", func() {
		Expect(os.MkdirAll(filepath.Join(home, ".codex"), 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(home, ".codex", "auth.json"),
			[]byte(`{"OPENAI_API_KEY":"sk-codex"}`), 0o600)).To(Succeed())

		p := credentials.NewKeyProvider("openai", mgr)
		p.Interactive = false
		Expect(p.Key()).To(Equal("sk-codex"))
	})

	It("ignores the codex auth file for other providers", func() {
		Expect(os.MkdirAll(filepath.Join(home, ".codex"), 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(home, ".codex", "auth.json"),
			[]byte(`{"OPENAI_API_KEY":"sk-codex"}`), 0o600)).To(Succeed())

		p := credentials.NewKeyProvider("openrouter", mgr)
		p.Interactive = false
		_, err := p.Key()
		Expect(err).To(MatchError(credentials.ErrMissingKey))
	})

	It("returns ErrMissingKey when non-interactive and nothing is configured", func() {
		p := credentials.NewKeyProvider("openai", mgr)
		p.Interactive = false

		_, err := p.Key()
		Expect(err).To(MatchError(credentials.ErrMissingKey))
		Expect(err.Error()).To(ContainSubstring("OPENAI_API_KEY"))
	})

	It("reads a piped key and stores it", func() {
		p := credentials.NewKeyProvider("openai", mgr)
		p.In = pipeWith("sk-piped\n")
		p.Out = io.Discard

		Expect(p.Key()).To(Equal("sk-piped"))
		Expect(mgr.GetKey("openai")).To(Equal("sk-piped"))
	})

	It("returns ErrMissingKey for an empty piped line", func() {
		p := credentials.NewKeyProvider("openai", mgr)
		p.In = pipeWith("   \n")
		p.Out = io.Discard

		_, err := p.Key()
		Expect(err).To(MatchError(credentials.ErrMissingKey))
		Expect(mgr.GetKey("openai")).To(BeEmpty())
	})

	It("returns ErrMissingKey when stdin is closed", func() {
		p := credentials.NewKeyProvider("openai", mgr)
		p.In = pipeWith("")
		p.Out = io.Discard

		_, err := p.Key()
		Expect(err).To(MatchError(credentials.ErrMissingKey))
	})
})
