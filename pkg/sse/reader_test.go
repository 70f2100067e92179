package sse

import (
	"bufio"
	"bytes"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

var _ = Describe("Reader", func() {
	Describe("Next", func() {
		Context("with data lines", func() {
			It("parses a single data line", func() {
				r := NewReader(strings.NewReader("data: hello world\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.IsData()).To(BeTrue())
				Expect(ev.Value).To(Equal("hello world"))
				Expect(ev.Line).To(Equal("data: hello world"))

				ev, err = r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev).To(BeNil())
			})

			It("yields one event per line, not per blank-line block", func() {
				r := NewReader(strings.NewReader("data: first\ndata: second\n\n"))

				ev1, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev1.Value).To(Equal("first"))

				ev2, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev2.Value).To(Equal("second"))

				ev3, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev3).To(BeNil())
			})

			It("parses OpenAI streaming chunks", func() {
				input := "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n" +
					"data: {\"choices\":[{\"delta\":{\"content\":\" world\"}}]}\n\n" +
					"data: [DONE]\n\n"
				r := NewReader(strings.NewReader(input))

				ev1, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev1.Value).To(Equal("{\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}"))

				ev2, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev2.Value).To(ContainSubstring(" world"))

				ev3, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev3.Value).To(Equal("[DONE]"))

				ev4, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev4).To(BeNil())
			})

			It("handles data field with no space after colon", func() {
				r := NewReader(strings.NewReader("data:no-space\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.IsData()).To(BeTrue())
				Expect(ev.Value).To(Equal("no-space"))
			})

			It("strips carriage returns from CRLF framing", func() {
				r := NewReader(strings.NewReader("data: crlf\r\n\r\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Value).To(Equal("crlf"))

				ev, err = r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev).To(BeNil())
			})
		})

		Context("with non-data lines", func() {
			It("skips comment lines", func() {
				r := NewReader(strings.NewReader(": keep-alive\ndata: hello\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Value).To(Equal("hello"))
			})

			It("surfaces other fields so the caller can reject them", func() {
				r := NewReader(strings.NewReader("event: ping\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.IsData()).To(BeFalse())
				Expect(ev.Field).To(Equal("event"))
				Expect(ev.Value).To(Equal("ping"))
			})

			It("treats a line with no colon as a bare field name", func() {
				r := NewReader(strings.NewReader("garbage\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Field).To(Equal("garbage"))
				Expect(ev.Value).To(BeEmpty())
			})
		})

		Context("edge cases", func() {
			It("returns nil on empty input", func() {
				r := NewReader(strings.NewReader(""))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev).To(BeNil())
			})

			It("returns nil on input with only blank lines", func() {
				r := NewReader(strings.NewReader("\n \n\t\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev).To(BeNil())
			})

			It("cuts an oversized line, marks it and keeps reading", func() {
				long := "data: " + strings.Repeat("x", 100)
				r := &Reader{
					src:     bufio.NewReaderSize(strings.NewReader(long+"\ndata: next\n"), 16),
					maxLine: 32,
				}

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Oversized).To(BeTrue())
				Expect(ev.Line).To(Equal(long[:32]))
				Expect(ev.IsData()).To(BeTrue())

				ev, err = r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Oversized).To(BeFalse())
				Expect(ev.Value).To(Equal("next"))
			})

			It("does not mark a line of exactly the limit as oversized", func() {
				line := "data: " + strings.Repeat("y", 26)
				r := &Reader{
					src:     bufio.NewReaderSize(strings.NewReader(line+"\r\n"), 16),
					maxLine: 32,
				}

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Oversized).To(BeFalse())
				Expect(ev.Line).To(Equal(line))
			})

			It("yields the last line when the stream ends without a newline", func() {
				r := NewReader(strings.NewReader("data: unterminated"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Value).To(Equal("unterminated"))
			})
		})
	})

	Describe("NewTeeReader", func() {
		It("forwards all bytes including blank lines and comments", func() {
			input := ": comment\ndata: first\n\ndata: second\n\n"
			dst := &bytes.Buffer{}
			r := NewTeeReader(strings.NewReader(input), dst)

			for {
				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				if ev == nil {
					break
				}
			}

			Expect(dst.String()).To(Equal(input))
		})

		It("copies CRLF framing and oversized lines verbatim", func() {
			input := "data: first\r\n\r\ndata: " + strings.Repeat("z", 64) + "\r\ndata: last\r\n\r\n"
			dst := &bytes.Buffer{}
			r := &Reader{
				src:     bufio.NewReaderSize(strings.NewReader(input), 16),
				dest:    dst,
				maxLine: 32,
			}

			var values []string
			for {
				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				if ev == nil {
					break
				}
				if !ev.Oversized {
					values = append(values, ev.Value)
				}
			}

			Expect(values).To(Equal([]string{"first", "last"}))
			Expect(dst.String()).To(Equal(input))
		})

		It("returns the destination write error", func() {
			r := NewTeeReader(strings.NewReader("data: x\n"), failingWriter{})

			ev, err := r.Next()
			Expect(err).To(MatchError("disk full"))
			Expect(ev).To(BeNil())
		})
	})
})
