package usecase

import (
	"sync"

	"camclinic/internal/domain"
	"camclinic/internal/ports"
)

type activeRecording struct {
	session     ports.RecorderSession
	mode        domain.RecordingMode
	destination string
	mimeType    string

	stateMu  sync.Mutex
	state    domain.RecordingState
	segments int
	bytes    int64

	accumulator   *segmentAccumulator
	failedAtStart int
	pumpDone      chan struct{}
}

func (r *activeRecording) setState(state domain.RecordingState) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	r.state = state
}

// transition moves from one state to another only if the current state matches.
func (r *activeRecording) transition(from, to domain.RecordingState) bool {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	if r.state != from {
		return false
	}
	r.state = to
	return true
}

func (r *activeRecording) countSegment(segment domain.Segment) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	r.segments++
	r.bytes += int64(len(segment.Data))
}

func (r *activeRecording) totals() (int, int64) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.segments, r.bytes
}

func (r *activeRecording) status() domain.RecordingStatus {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return domain.RecordingStatus{
		State:           r.state,
		Mode:            r.mode,
		DestinationName: r.destination,
		MimeType:        r.mimeType,
		Segments:        r.segments,
	}
}
