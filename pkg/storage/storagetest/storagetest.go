// Package storagetest holds the behaviors every storage.Driver must satisfy.
package storagetest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/sketchtable/pkg/storage"
)

// NewRecord returns a completed record that started at started.
func NewRecord(id string, started time.Time) *storage.Record {
	return &storage.Record{
		ID:          id,
		ImagePath:   "/tmp/" + id + ".png",
		Prompt:      "what is drawn here?",
		Model:       "gpt-4o",
		Endpoint:    "https://api.openai.com/v1/chat/completions",
		State:       "completed",
		Text:        "| A | B |\n| 1 | 2 |\n",
		TableHeader: []string{"A", "B"},
		TableRows:   [][]string{{"1", "2"}},
		Tokens:      12,
		CostUSD:     0.0012,
		Deltas:      4,
		StartedAt:   started.UTC(),
		FinishedAt:  started.Add(1500 * time.Millisecond).UTC(),
	}
}

// DriverBehaviors registers the specs shared by all drivers. newDriver is
// called before each test and must return an empty store.
func DriverBehaviors(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
		base   time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		driver = newDriver()
		DeferCleanup(driver.Close)
	})

	Describe("Put and Get", func() {
		It("stores and retrieves a record", func() {
			rec := NewRecord("a1", base)

			inserted, err := driver.Put(ctx, rec)
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())

			got, err := driver.Get(ctx, "a1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(rec.ID))
			Expect(got.Prompt).To(Equal(rec.Prompt))
			Expect(got.Text).To(Equal(rec.Text))
			Expect(got.TableHeader).To(Equal(rec.TableHeader))
			Expect(got.TableRows).To(Equal(rec.TableRows))
			Expect(got.Tokens).To(Equal(12))
			Expect(got.CostUSD).To(BeNumerically("~", 0.0012, 1e-9))
			Expect(got.StartedAt.Equal(rec.StartedAt)).To(BeTrue())
			Expect(got.Duration()).To(Equal(1500 * time.Millisecond))
		})

		It("stores a failed record without a table", func() {
			rec := NewRecord("f1", base)
			rec.State = "failed"
			rec.Error = "server returned 500"
			rec.Text = ""
			rec.TableHeader = nil
			rec.TableRows = nil

			_, err := driver.Put(ctx, rec)
			Expect(err).NotTo(HaveOccurred())

			got, err := driver.Get(ctx, "f1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.State).To(Equal("failed"))
			Expect(got.Error).To(Equal("server returned 500"))
			Expect(got.TableRows).To(BeEmpty())
		})

		It("returns ErrNotFound for an unknown id", func() {
			_, err := driver.Get(ctx, "missing")
			Expect(err).To(MatchError(storage.ErrNotFound))

			var nf storage.NotFoundError
			Expect(err).To(BeAssignableToTypeOf(nf))
		})

		It("is idempotent for duplicate puts", func() {
			rec := NewRecord("dup", base)

			inserted, err := driver.Put(ctx, rec)
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())

			changed := NewRecord("dup", base)
			changed.Prompt = "changed"
			inserted, err = driver.Put(ctx, changed)
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeFalse())

			got, err := driver.Get(ctx, "dup")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Prompt).To(Equal(rec.Prompt))
		})

		It("rejects nil and id-less records", func() {
			_, err := driver.Put(ctx, nil)
			Expect(err).To(HaveOccurred())

			_, err = driver.Put(ctx, &storage.Record{})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Has", func() {
		It("reports existence", func() {
			_, err := driver.Put(ctx, NewRecord("h1", base))
			Expect(err).NotTo(HaveOccurred())

			Expect(driver.Has(ctx, "h1")).To(BeTrue())
			Expect(driver.Has(ctx, "h2")).To(BeFalse())
		})
	})

	Describe("List", func() {
		It("returns an empty result for an empty store", func() {
			records, err := driver.List(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("returns records newest first", func() {
			for i, id := range []string{"old", "mid", "new"} {
				_, err := driver.Put(ctx, NewRecord(id, base.Add(time.Duration(i)*time.Minute)))
				Expect(err).NotTo(HaveOccurred())
			}

			records, err := driver.List(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			ids := make([]string, 0, len(records))
			for _, r := range records {
				ids = append(ids, r.ID)
			}
			Expect(ids).To(Equal([]string{"new", "mid", "old"}))
		})

		It("honors the limit", func() {
			for i, id := range []string{"a", "b", "c"} {
				_, err := driver.Put(ctx, NewRecord(id, base.Add(time.Duration(i)*time.Second)))
				Expect(err).NotTo(HaveOccurred())
			}

			records, err := driver.List(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
			Expect(records[0].ID).To(Equal("c"))
		})
	})

	Describe("Delete", func() {
		It("removes a record", func() {
			_, err := driver.Put(ctx, NewRecord("d1", base))
			Expect(err).NotTo(HaveOccurred())

			Expect(driver.Delete(ctx, "d1")).To(Succeed())
			Expect(driver.Has(ctx, "d1")).To(BeFalse())
		})

		It("returns ErrNotFound for an unknown id", func() {
			Expect(driver.Delete(ctx, "nope")).To(MatchError(storage.ErrNotFound))
		})
	})
}
