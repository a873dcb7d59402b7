package qrcode

import (
	"bytes"
	"errors"
	"image/png"
	"testing"
)

func TestEncodePNG(t *testing.T) {
	data, err := New().EncodePNG("geo:43.013000,-2.788000", 256)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if w := img.Bounds().Dx(); w != 256 {
		t.Errorf("width = %d, want 256", w)
	}
}

func TestEncodePNG_Rejects(t *testing.T) {
	enc := New()
	if _, err := enc.EncodePNG("", 256); err == nil {
		t.Error("expected error for empty content")
	}
	for _, size := range []int{0, 63, 1025} {
		if _, err := enc.EncodePNG("geo:0,0", size); !errors.Is(err, ErrSize) {
			t.Errorf("size %d: got %v, want ErrSize", size, err)
		}
	}
}
