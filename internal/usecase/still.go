package usecase

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"camclinic/internal/ports"
)

var ErrNoFrame = errors.New("no frame available")

const stillQuality = 90

// StillCapture freezes the current frame of a live stream into a JPEG.
type StillCapture struct{}

// Capture samples the latest frame and re-encodes it at a fixed quality.
func (StillCapture) Capture(stream ports.MediaStream) ([]byte, error) {
	if stream == nil || !stream.Active() {
		return nil, ErrNoFrame
	}
	frame, ok := stream.LatestFrame()
	if !ok || len(frame) == 0 {
		return nil, ErrNoFrame
	}

	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoFrame, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, ErrNoFrame
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: stillQuality}); err != nil {
		return nil, fmt.Errorf("encode still: %w", err)
	}
	return out.Bytes(), nil
}

// CaptureDataURL returns the still as a data URL for direct display.
func (s StillCapture) CaptureDataURL(stream ports.MediaStream) (string, error) {
	data, err := s.Capture(stream)
	if err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data), nil
}
