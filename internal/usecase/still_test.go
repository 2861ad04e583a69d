package usecase

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image/jpeg"
	"strings"
	"testing"
)

func TestStillCaptureEncodesCurrentFrame(t *testing.T) {
	t.Parallel()

	stream := newFakeStream(false)
	stream.frame = testJPEG(64, 48)

	data, err := StillCapture{}.Capture(stream)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("still is not a jpeg: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Fatalf("unexpected dimensions: %v", b)
	}
}

func TestStillCaptureWithoutFrame(t *testing.T) {
	t.Parallel()

	if _, err := (StillCapture{}).Capture(nil); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("expected ErrNoFrame for nil stream, got %v", err)
	}

	stream := newFakeStream(false)
	if _, err := (StillCapture{}).Capture(stream); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("expected ErrNoFrame before first frame, got %v", err)
	}

	stream.frame = testJPEG(8, 8)
	_ = stream.Stop()
	if _, err := (StillCapture{}).Capture(stream); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("expected ErrNoFrame for stopped stream, got %v", err)
	}

	broken := newFakeStream(false)
	broken.frame = []byte("not a jpeg")
	if _, err := (StillCapture{}).Capture(broken); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("expected ErrNoFrame for corrupt frame, got %v", err)
	}
}

func TestStillCaptureDataURL(t *testing.T) {
	t.Parallel()

	stream := newFakeStream(false)
	stream.frame = testJPEG(16, 16)

	url, err := StillCapture{}.CaptureDataURL(stream)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	const prefix = "data:image/jpeg;base64,"
	if !strings.HasPrefix(url, prefix) {
		t.Fatalf("unexpected data url: %q", url)
	}
	if _, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, prefix)); err != nil {
		t.Fatalf("payload is not base64: %v", err)
	}
}
