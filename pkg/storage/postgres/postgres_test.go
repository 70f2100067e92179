package postgres_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/sketchtable/pkg/storage"
	"github.com/papercomputeco/sketchtable/pkg/storage/postgres"
	"github.com/papercomputeco/sketchtable/pkg/storage/storagetest"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("SKETCHTABLE_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("SKETCHTABLE_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Driver", func() {
	storagetest.DriverBehaviors(func() storage.Driver {
		ctx := context.Background()

		driver, err := postgres.NewDriver(ctx, connStr())
		Expect(err).NotTo(HaveOccurred())

		// Clean all records before each test for isolation.
		_, err = driver.DB.ExecContext(ctx, "DELETE FROM analyses")
		Expect(err).NotTo(HaveOccurred())

		return driver
	})

	It("fails fast for an unreachable server", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := postgres.NewDriver(ctx, "postgres://nobody@127.0.0.1:1/none?sslmode=disable")
		Expect(err).To(HaveOccurred())
	})
})
