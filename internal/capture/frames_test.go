package capture

import (
	"bytes"
	"strings"
	"testing"
)

func fakeJPEG(body string) []byte {
	out := append([]byte{}, jpegStart...)
	out = append(out, body...)
	return append(out, jpegEnd...)
}

func TestReadFramesSplitsConcatenatedImages(t *testing.T) {
	t.Parallel()

	var stream bytes.Buffer
	stream.WriteString("noise")
	stream.Write(fakeJPEG("first"))
	stream.Write([]byte{0x00, 0xFF})
	stream.Write(fakeJPEG("second"))
	stream.Write(jpegStart)
	stream.WriteString("truncated")

	var frames []string
	err := readFrames(&stream, func(frame []byte) {
		frames = append(frames, string(frame[2:len(frame)-2]))
	})
	if err != nil {
		t.Fatalf("read frames: %v", err)
	}
	if strings.Join(frames, ",") != "first,second" {
		t.Fatalf("unexpected frames: %v", frames)
	}
}

func TestSplitJPEGRequestsMoreDataForPartialFrame(t *testing.T) {
	t.Parallel()

	data := append([]byte("xx"), jpegStart...)
	data = append(data, "partial"...)
	advance, token, err := splitJPEG(data, false)
	if err != nil || token != nil {
		t.Fatalf("unexpected token %q err %v", token, err)
	}
	if advance != 2 {
		t.Fatalf("expected to skip leading garbage only, advanced %d", advance)
	}
}

func TestSplitJPEGKeepsTrailingMarkerByte(t *testing.T) {
	t.Parallel()

	advance, token, _ := splitJPEG([]byte{0x01, 0x02, 0xFF}, false)
	if token != nil || advance != 2 {
		t.Fatalf("expected to keep trailing 0xFF, advance=%d token=%v", advance, token)
	}
}
