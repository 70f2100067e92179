package history_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/sketchtable/pkg/config"
	"github.com/papercomputeco/sketchtable/pkg/history"
	"github.com/papercomputeco/sketchtable/pkg/llm"
	"github.com/papercomputeco/sketchtable/pkg/stream"
	"github.com/papercomputeco/sketchtable/pkg/table"
	"github.com/papercomputeco/sketchtable/pkg/usage"
)

var _ = Describe("NewRecord", func() {
	var res stream.Result

	BeforeEach(func() {
		started := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		res = stream.Result{
			ID: "abc",
			Request: llm.StreamRequest{
				Endpoint: "http://localhost/v1/chat/completions",
				Payload: llm.ChatPayload{
					Model: "gpt-4o",
					Messages: []llm.Message{
						llm.NewTextMessage("system", "instructions"),
						llm.NewImageMessage("describe the boxes", "image/png", "AAAA"),
					},
				},
			},
			Text:       "| A | B |\n| 1 | 2 |\n",
			Table:      table.Extract("| A | B |\n| 1 | 2 |\n"),
			Usage:      usage.State{Tokens: 8, CostUSD: 0.5},
			State:      stream.StateCompleted,
			Deltas:     3,
			StartedAt:  started,
			FinishedAt: started.Add(time.Second),
		}
	})

	It("copies the result into a record", func() {
		rec := history.NewRecord(res, "/tmp/sketch.png")

		Expect(rec.ID).To(Equal("abc"))
		Expect(rec.ImagePath).To(Equal("/tmp/sketch.png"))
		Expect(rec.Prompt).To(Equal("describe the boxes"))
		Expect(rec.Model).To(Equal("gpt-4o"))
		Expect(rec.Endpoint).To(Equal("http://localhost/v1/chat/completions"))
		Expect(rec.State).To(Equal("completed"))
		Expect(rec.Error).To(BeEmpty())
		Expect(rec.TableHeader).To(Equal([]string{"A", "B"}))
		Expect(rec.TableRows).To(Equal([][]string{{"1", "2"}}))
		Expect(rec.Tokens).To(Equal(8))
		Expect(rec.Deltas).To(Equal(3))
		Expect(rec.Duration()).To(Equal(time.Second))
	})

	It("records the failure and omits an empty table", func() {
		res.State = stream.StateFailed
		res.Err = errors.New("server returned 500")
		res.Text = ""
		res.Table = table.Extract("")

		rec := history.NewRecord(res, "")
		Expect(rec.State).To(Equal("failed"))
		Expect(rec.Error).To(Equal("server returned 500"))
		Expect(rec.TableRows).To(BeNil())
	})
})

var _ = Describe("OpenDriver", func() {
	ctx := context.Background()

	It("defaults to memory", func() {
		d, backend, err := history.OpenDriver(ctx, config.StorageConfig{}, "")
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()
		Expect(backend).To(Equal(history.BackendMemory))
	})

	It("opens sqlite relative to the base dir", func() {
		base := GinkgoT().TempDir()
		d, backend, err := history.OpenDriver(ctx, config.StorageConfig{SQLitePath: "db/history.db"}, base)
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		Expect(backend).To(Equal(history.BackendSQLite))
		_, err = os.Stat(filepath.Join(base, "db", "history.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("reports postgres connection failures", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, _, err := history.OpenDriver(cctx, config.StorageConfig{
			SQLitePath:  "ignored.db",
			PostgresDSN: "postgres://nobody@127.0.0.1:1/none?sslmode=disable",
		}, GinkgoT().TempDir())
		Expect(err).To(MatchError(ContainSubstring("postgres")))
	})
})
