package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/sketchtable/pkg/cliui"
)

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds under a second", func() {
		Expect(cliui.FormatDuration(250 * time.Millisecond)).To(Equal("250ms"))
	})

	It("uses seconds with one decimal otherwise", func() {
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("Step", func() {
	It("returns the error from fn and prints the message", func() {
		var buf bytes.Buffer
		err := cliui.Step(&buf, "connecting", func() error {
			return errors.New("boom")
		})
		Expect(err).To(MatchError("boom"))
		Expect(buf.String()).To(ContainSubstring("connecting"))
	})
})

var _ = Describe("RenderTable", func() {
	It("includes headers and every cell", func() {
		out := cliui.RenderTable([]string{"Shape", "Count"}, [][]string{{"box", "2"}, {"arrow", "5"}})
		for _, s := range []string{"Shape", "Count", "box", "2", "arrow", "5"} {
			Expect(out).To(ContainSubstring(s))
		}
	})
})
