// Package qrcode renders the PointZero hand-off code field teams scan to
// navigate to the last known location.
package qrcode

import (
	"errors"
	"fmt"

	goqrcode "github.com/skip2/go-qrcode"
)

const (
	minSize = 64
	maxSize = 1024
)

// ErrSize is returned for image sizes outside [64, 1024] pixels.
var ErrSize = fmt.Errorf("qr size must be between %d and %d pixels", minSize, maxSize)

// Encoder implements ports.QREncoder.
type Encoder struct {
	level goqrcode.RecoveryLevel
}

// New returns an encoder using medium error correction, which survives a
// creased printout.
func New() *Encoder {
	return &Encoder{level: goqrcode.Medium}
}

// EncodePNG renders content as a square PNG of size pixels.
func (e *Encoder) EncodePNG(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, errors.New("qr content is empty")
	}
	if size < minSize || size > maxSize {
		return nil, ErrSize
	}
	png, err := goqrcode.Encode(content, e.level, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
