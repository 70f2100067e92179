package authcmder_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/sketchtable/cmd/sketchtable/auth"
	"github.com/papercomputeco/sketchtable/pkg/credentials"
)

// newCmd returns the auth command with the root's persistent config-dir flag.
func newCmd(out *bytes.Buffer, args ...string) *cobra.Command {
	cmd := authcmder.NewAuthCmd()
	cmd.PersistentFlags().String("config-dir", "", "Override path to .sketchtable/ config directory")
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	return cmd
}

var _ = Describe("Auth Command", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	Describe("NewAuthCmd", func() {
		It("creates a command with expected properties", func() {
			cmd := authcmder.NewAuthCmd()
			Expect(cmd.Use).To(Equal("auth [provider]"))
			Expect(cmd.Short).NotTo(BeEmpty())
			Expect(cmd.Flags().Lookup("list")).NotTo(BeNil())
			Expect(cmd.Flags().Lookup("remove")).NotTo(BeNil())
		})

		It("rejects more than one argument", func() {
			cmd := authcmder.NewAuthCmd()
			Expect(cmd.Args(cmd, []string{"openai", "extra"})).To(HaveOccurred())
		})
	})

	Describe("--list flag", func() {
		It("shows no credentials when none stored", func() {
			Expect(newCmd(out, "--list", "--config-dir", tmpDir).Execute()).To(Succeed())
			Expect(out.String()).To(ContainSubstring("No stored credentials"))
		})

		It("lists stored credentials", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.SetKey("openai", "sk-test")).To(Succeed())

			Expect(newCmd(out, "--list", "--config-dir", tmpDir).Execute()).To(Succeed())
			Expect(out.String()).To(ContainSubstring("openai"))
			Expect(out.String()).To(ContainSubstring("OPENAI_API_KEY"))
			Expect(out.String()).NotTo(ContainSubstring("sk-test"))
		})
	})

	Describe("--remove flag", func() {
		It("removes stored credentials", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.SetKey("openai", "sk-test")).To(Succeed())

			Expect(newCmd(out, "--remove", "openai", "--config-dir", tmpDir).Execute()).To(Succeed())

			key, err := mgr.GetKey("openai")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(BeEmpty())
		})
	})

	Describe("provider validation", func() {
		It("requires a provider", func() {
			err := newCmd(out, "--config-dir", tmpDir).Execute()
			Expect(err).To(MatchError(ContainSubstring("provider argument required")))
		})

		It("rejects unsupported providers", func() {
			err := newCmd(out, "anthropic", "--config-dir", tmpDir).Execute()
			Expect(err).To(MatchError(ContainSubstring("unsupported provider")))
		})
	})
})
