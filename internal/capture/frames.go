package capture

import (
	"bufio"
	"bytes"
	"io"
)

const maxFrameSize = 16 << 20

var (
	jpegStart = []byte{0xFF, 0xD8}
	jpegEnd   = []byte{0xFF, 0xD9}
)

// splitJPEG is a bufio.SplitFunc yielding whole JPEG images from an MJPEG
// byte stream. Bytes outside SOI..EOI are discarded.
func splitJPEG(data []byte, atEOF bool) (int, []byte, error) {
	start := bytes.Index(data, jpegStart)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		if len(data) > 1 {
			// Keep a trailing 0xFF that may begin the next marker.
			return len(data) - 1, nil, nil
		}
		return 0, nil, nil
	}

	end := bytes.Index(data[start+len(jpegStart):], jpegEnd)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}
	end += start + len(jpegStart) + len(jpegEnd)
	return end, data[start:end], nil
}

// readFrames calls onFrame with a private copy of every JPEG in r until r
// is exhausted.
func readFrames(r io.Reader, onFrame func([]byte)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256<<10), maxFrameSize)
	scanner.Split(splitJPEG)
	for scanner.Scan() {
		onFrame(append([]byte(nil), scanner.Bytes()...))
	}
	return scanner.Err()
}
