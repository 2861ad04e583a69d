package usecase

import (
	"sync"

	"camclinic/internal/domain"
	"camclinic/internal/ports"
)

// segmentAccumulator keeps local-mode segments in emission order.
type segmentAccumulator struct {
	mu     sync.Mutex
	chunks [][]byte
	size   int
}

func newSegmentAccumulator() *segmentAccumulator {
	return &segmentAccumulator{}
}

func (a *segmentAccumulator) Add(segment domain.Segment) {
	if len(segment.Data) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chunks = append(a.chunks, segment.Data)
	a.size += len(segment.Data)
}

// Bytes concatenates everything accumulated so far.
func (a *segmentAccumulator) Bytes() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]byte, 0, a.size)
	for _, chunk := range a.chunks {
		out = append(out, chunk...)
	}
	return out
}

// pumpSegments drains the recorder's segment sequence until it closes,
// handing every segment to sink in order.
func pumpSegments(
	session ports.RecorderSession,
	active *activeRecording,
	sink func(domain.Segment),
	done chan struct{},
) {
	defer close(done)

	for segment := range session.Segments() {
		if len(segment.Data) == 0 {
			continue
		}
		active.countSegment(segment)
		sink(segment)
	}
}
