// Package imagefile encodes sketch images for inline transport in a chat
// request.
package imagefile

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"os"
)

// ErrFileNotFound is returned when the image path does not exist.
var ErrFileNotFound = errors.New("image file not found")

// Encoded is an image ready to be embedded in a data URI.
type Encoded struct {
	Path      string
	MediaType string
	Base64    string
	Width     int
	Height    int
	Size      int
}

// Encode reads the image at path, base64-encodes it, and reports its MIME
// type and pixel dimensions.
func Encode(path string) (*Encoded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("reading image: %w", err)
	}

	return EncodeBytes(path, data)
}

// EncodeBytes is Encode for image data already in memory. name is used in
// errors and copied to Path.
func EncodeBytes(name string, data []byte) (*Encoded, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("image %s is empty", name)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image dimensions: %w", err)
	}

	return &Encoded{
		Path:      name,
		MediaType: "image/" + format,
		Base64:    base64.StdEncoding.EncodeToString(data),
		Width:     cfg.Width,
		Height:    cfg.Height,
		Size:      len(data),
	}, nil
}
