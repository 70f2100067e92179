package historycmder_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	historycmder "github.com/papercomputeco/sketchtable/cmd/sketchtable/history"
	"github.com/papercomputeco/sketchtable/cmd/sketchtable/sqlitepath"
	"github.com/papercomputeco/sketchtable/pkg/dotdir"
	"github.com/papercomputeco/sketchtable/pkg/storage"
	"github.com/papercomputeco/sketchtable/pkg/storage/sqlite"
	"github.com/papercomputeco/sketchtable/pkg/storage/storagetest"
)

var _ = Describe("History command", func() {
	var (
		configDir string
		dbPath    string
		out       *bytes.Buffer
		base      time.Time
	)

	run := func(args ...string) error {
		cmd := historycmder.NewHistoryCmd()
		cmd.PersistentFlags().String("config-dir", "", "")
		cmd.PersistentFlags().Bool("debug", false, "")
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(append(args, "--config-dir", configDir))
		return cmd.Execute()
	}

	seed := func(records ...*storage.Record) {
		driver, err := sqlite.NewDriver(context.Background(), dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()
		for _, rec := range records {
			_, err := driver.Put(context.Background(), rec)
			Expect(err).NotTo(HaveOccurred())
		}
	}

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		dbPath = filepath.Join(GinkgoT().TempDir(), "history.db")
		out = &bytes.Buffer{}
		base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

		GinkgoT().Setenv("SKETCHTABLE_STORAGE_SQLITE_PATH", "")
		GinkgoT().Setenv("SKETCHTABLE_STORAGE_POSTGRES_DSN", "")
		GinkgoT().Setenv("SKETCHTABLE_SQLITE", "")
	})

	It("has show and delete subcommands", func() {
		cmd := historycmder.NewHistoryCmd()
		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("show", "delete"))
	})

	Describe("list", func() {
		It("lists recorded analyses newest first", func() {
			older := storagetest.NewRecord("analysis-old", base)
			older.Prompt = "first sketch"
			newer := storagetest.NewRecord("analysis-new", base.Add(time.Hour))
			newer.Prompt = "second sketch\nwith more lines"
			seed(older, newer)

			Expect(run("--sqlite", dbPath)).To(Succeed())

			output := out.String()
			Expect(output).To(ContainSubstring("analysis-old"))
			Expect(output).To(ContainSubstring("analysis-new"))
			Expect(output).To(ContainSubstring("second sketch"))
			Expect(output).NotTo(ContainSubstring("with more lines"))
			Expect(output).To(ContainSubstring("$0.0012"))
			Expect(bytes.Index(out.Bytes(), []byte("analysis-new"))).
				To(BeNumerically("<", bytes.Index(out.Bytes(), []byte("analysis-old"))))
		})

		It("honors --limit", func() {
			seed(
				storagetest.NewRecord("analysis-1", base),
				storagetest.NewRecord("analysis-2", base.Add(time.Minute)),
			)

			Expect(run("--sqlite", dbPath, "--limit", "1")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("analysis-2"))
			Expect(out.String()).NotTo(ContainSubstring("analysis-1"))
		})

		It("reports an empty history", func() {
			Expect(run("--sqlite", dbPath)).To(Succeed())
			Expect(out.String()).To(ContainSubstring("No analyses recorded yet."))
		})

		It("reads the database named by SKETCHTABLE_SQLITE when nothing is configured", func() {
			seed(storagetest.NewRecord("analysis-env", base))
			GinkgoT().Setenv("SKETCHTABLE_SQLITE", dbPath)

			Expect(run()).To(Succeed())
			Expect(out.String()).To(ContainSubstring("analysis-env"))
		})

		It("fails when no database can be found", func() {
			GinkgoT().Setenv("HOME", GinkgoT().TempDir())
			GinkgoT().Setenv("XDG_DATA_HOME", "")

			origCwd, err := os.Getwd()
			Expect(err).NotTo(HaveOccurred())
			Expect(os.Chdir(GinkgoT().TempDir())).To(Succeed())
			DeferCleanup(os.Chdir, origCwd)

			Expect(run()).To(MatchError(sqlitepath.ErrNotFound))
		})
	})

	Describe("show", func() {
		It("prints the analysis details, table and usage", func() {
			rec := storagetest.NewRecord("analysis-show", base)
			seed(rec)

			Expect(run("show", "analysis-show", "--sqlite", dbPath)).To(Succeed())

			output := out.String()
			Expect(output).To(ContainSubstring("Analysis analysis-show"))
			Expect(output).To(ContainSubstring("what is drawn here?"))
			Expect(output).To(ContainSubstring("gpt-4o"))
			Expect(output).To(ContainSubstring("Tokens used: 12 - Total cost: $0.0012"))
		})

		It("prints the failure reason of a failed analysis", func() {
			rec := storagetest.NewRecord("analysis-failed", base)
			rec.State = "failed"
			rec.Error = "unexpected status 500"
			rec.Text = ""
			rec.TableHeader = nil
			rec.TableRows = nil
			seed(rec)

			Expect(run("show", "analysis-failed", "--sqlite", dbPath)).To(Succeed())
			Expect(out.String()).To(ContainSubstring("unexpected status 500"))
		})

		It("returns a not found error for unknown IDs", func() {
			seed()
			err := run("show", "missing", "--sqlite", dbPath)
			Expect(err).To(MatchError(storage.ErrNotFound))
		})
	})

	Describe("delete", func() {
		It("removes the analysis", func() {
			seed(storagetest.NewRecord("analysis-delete", base))

			Expect(run("delete", "analysis-delete", "--sqlite", dbPath)).To(Succeed())
			Expect(out.String()).To(ContainSubstring("Deleted analysis analysis-delete"))

			driver, err := sqlite.NewDriver(context.Background(), dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer driver.Close()
			has, err := driver.Has(context.Background(), "analysis-delete")
			Expect(err).NotTo(HaveOccurred())
			Expect(has).To(BeFalse())
		})

		It("returns a not found error for unknown IDs", func() {
			seed()
			Expect(run("delete", "missing", "--sqlite", dbPath)).To(MatchError(storage.ErrNotFound))
		})

		It("forgets the last analysis when it is deleted", func() {
			seed(storagetest.NewRecord("analysis-last", base))
			ddm := dotdir.NewManager()
			Expect(ddm.SaveLastAnalysis(&dotdir.LastAnalysis{ID: "analysis-last", ImagePath: "/tmp/a.png"}, configDir)).To(Succeed())

			Expect(run("delete", "analysis-last", "--sqlite", dbPath)).To(Succeed())

			last, err := ddm.LoadLastAnalysis(configDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(last).To(BeNil())
		})

		It("keeps the last analysis when another one is deleted", func() {
			seed(storagetest.NewRecord("analysis-other", base))
			ddm := dotdir.NewManager()
			Expect(ddm.SaveLastAnalysis(&dotdir.LastAnalysis{ID: "analysis-last", ImagePath: "/tmp/a.png"}, configDir)).To(Succeed())

			Expect(run("delete", "analysis-other", "--sqlite", dbPath)).To(Succeed())

			last, err := ddm.LoadLastAnalysis(configDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(last.ID).To(Equal("analysis-last"))
		})
	})
})
