package initcmder_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/sketchtable/cmd/sketchtable/init"
	"github.com/papercomputeco/sketchtable/pkg/config"
)

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{})).To(Succeed())
		Expect(cmd.Args(cmd, []string{"extra"})).To(HaveOccurred())
	})

	It("has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var tmpDir string

	execute := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		DeferCleanup(os.Chdir, origDir)
	})

	It("creates a .sketchtable directory with a default config", func() {
		Expect(execute()).To(Succeed())

		info, err := os.Stat(filepath.Join(tmpDir, ".sketchtable"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())

		cfg := loadConfig(tmpDir)
		Expect(cfg.Version).To(Equal(config.CurrentV))
		Expect(cfg.API.Endpoint).To(Equal("https://api.openai.com/v1/chat/completions"))
		Expect(cfg.API.Model).To(Equal("gpt-4o"))
		Expect(cfg.Stream.ProgressCap).To(Equal(4096))
	})

	It("does not overwrite existing contents when already initialized", func() {
		dir := filepath.Join(tmpDir, ".sketchtable")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[api]\nmodel = \"mine\"\n"), 0o600)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "last.json"), []byte(`{"prompt":"x"}`), 0o600)).To(Succeed())

		Expect(execute()).To(Succeed())

		Expect(loadConfig(tmpDir).API.Model).To(Equal("mine"))
		data, err := os.ReadFile(filepath.Join(dir, "last.json"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`{"prompt":"x"}`))
	})

	Describe("--preset", func() {
		It("writes the ollama preset", func() {
			Expect(execute("--preset", "ollama")).To(Succeed())

			cfg := loadConfig(tmpDir)
			Expect(cfg.API.Endpoint).To(Equal("http://localhost:11434/v1/chat/completions"))
			Expect(cfg.API.Model).To(Equal("llava"))
		})

		It("overwrites config.toml when re-run with a different preset", func() {
			Expect(execute("--preset", "ollama")).To(Succeed())
			Expect(execute("--preset", "lmstudio")).To(Succeed())

			Expect(loadConfig(tmpDir).API.Endpoint).To(Equal("http://localhost:1234/v1/chat/completions"))
		})

		It("rejects unknown preset names without creating the directory", func() {
			err := execute("--preset", "invalid-provider")
			Expect(err).To(MatchError(ContainSubstring("unknown preset")))

			_, statErr := os.Stat(filepath.Join(tmpDir, ".sketchtable"))
			Expect(os.IsNotExist(statErr)).To(BeTrue())
		})
	})

	Describe("--preset with remote URL", func() {
		It("fetches and writes remote config.toml", func() {
			remoteCfg := `version = 0

[api]
endpoint = "https://openrouter.ai/api/v1/chat/completions"
model = "openai/gpt-4o"

[stream]
progress_cap = 8192
`
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				fmt.Fprint(w, remoteCfg)
			}))
			defer server.Close()

			Expect(execute("--preset", server.URL)).To(Succeed())

			cfg := loadConfig(tmpDir)
			Expect(cfg.API.Endpoint).To(Equal("https://openrouter.ai/api/v1/chat/completions"))
			Expect(cfg.API.Model).To(Equal("openai/gpt-4o"))
			Expect(cfg.Stream.ProgressCap).To(Equal(8192))
		})

		It("returns error for non-200 HTTP response", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}))
			defer server.Close()

			Expect(execute("--preset", server.URL)).To(MatchError(ContainSubstring("HTTP 404")))
		})

		It("returns error for invalid TOML from URL", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, "this is not valid toml [[[")
			}))
			defer server.Close()

			Expect(execute("--preset", server.URL)).To(MatchError(ContainSubstring("parsing")))
		})

		It("returns error for unreachable URL", func() {
			Expect(execute("--preset", "http://127.0.0.1:1")).To(MatchError(ContainSubstring("fetching remote config")))
		})
	})
})

// loadConfig is a test helper that reads and parses the config.toml from the
// .sketchtable directory within the given base directory.
func loadConfig(baseDir string) *config.Config {
	configPath := filepath.Join(baseDir, ".sketchtable", "config.toml")
	data, err := os.ReadFile(configPath)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())

	cfg := &config.Config{}
	err = toml.Unmarshal(data, cfg)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return cfg
}
