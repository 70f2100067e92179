package inmemory_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/sketchtable/pkg/storage"
	"github.com/papercomputeco/sketchtable/pkg/storage/inmemory"
	"github.com/papercomputeco/sketchtable/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DriverBehaviors(func() storage.Driver {
		return inmemory.NewDriver()
	})

	It("returns copies that do not alias stored records", func() {
		ctx := context.Background()
		d := inmemory.NewDriver()

		rec := storagetest.NewRecord("x", time.Now())
		_, err := d.Put(ctx, rec)
		Expect(err).NotTo(HaveOccurred())
		rec.TableRows[0][0] = "mutated"

		got, err := d.Get(ctx, "x")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.TableRows[0][0]).To(Equal("1"))
		Expect(d.Count()).To(Equal(1))
	})
})
