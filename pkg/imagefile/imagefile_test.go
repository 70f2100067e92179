package imagefile_test

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/sketchtable/pkg/imagefile"
)

func pngBytes(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Encode", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("encodes a PNG with its dimensions", func() {
		data := pngBytes(1024, 768)
		path := filepath.Join(dir, "sketch.png")
		Expect(os.WriteFile(path, data, 0o600)).To(Succeed())

		enc, err := imagefile.Encode(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(enc.MediaType).To(Equal("image/png"))
		Expect(enc.Width).To(Equal(1024))
		Expect(enc.Height).To(Equal(768))
		Expect(enc.Size).To(Equal(len(data)))

		decoded, err := base64.StdEncoding.DecodeString(enc.Base64)
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded).To(Equal(data))
	})

	It("detects JPEG by content regardless of extension", func() {
		img := image.NewGray(image.Rect(0, 0, 10, 20))
		var buf bytes.Buffer
		Expect(jpeg.Encode(&buf, img, nil)).To(Succeed())
		path := filepath.Join(dir, "sketch.bin")
		Expect(os.WriteFile(path, buf.Bytes(), 0o600)).To(Succeed())

		enc, err := imagefile.Encode(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(enc.MediaType).To(Equal("image/jpeg"))
		Expect(enc.Width).To(Equal(10))
		Expect(enc.Height).To(Equal(20))
	})

	It("returns ErrFileNotFound for a missing file", func() {
		_, err := imagefile.Encode(filepath.Join(dir, "nope.png"))
		Expect(err).To(MatchError(imagefile.ErrFileNotFound))
	})

	It("rejects files that are not images", func() {
		path := filepath.Join(dir, "notes.png")
		Expect(os.WriteFile(path, []byte("hello"), 0o600)).To(Succeed())

		_, err := imagefile.Encode(path)
		Expect(err).To(HaveOccurred())
		Expect(err).NotTo(MatchError(imagefile.ErrFileNotFound))
	})

	It("rejects empty files", func() {
		path := filepath.Join(dir, "empty.png")
		Expect(os.WriteFile(path, nil, 0o600)).To(Succeed())

		_, err := imagefile.Encode(path)
		Expect(err).To(HaveOccurred())
	})
})
