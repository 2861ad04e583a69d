package ports

import (
	"context"
	"time"

	"camclinic/internal/domain"
)

// MediaStream is a live handle to camera (and optionally microphone) tracks.
type MediaStream interface {
	ID() string
	HasAudio() bool
	Active() bool
	// LatestFrame returns the most recent complete JPEG frame.
	LatestFrame() ([]byte, bool)
	// Subscribe returns the encoded A/V feed. The returned func releases it.
	Subscribe() (<-chan []byte, func())
	// Stop releases the hardware. Safe to call more than once.
	Stop() error
}

// MediaSource acquires camera streams and lists devices.
type MediaSource interface {
	Acquire(ctx context.Context, constraints domain.CaptureConstraints, withAudio bool) (MediaStream, error)
	Devices(ctx context.Context) ([]domain.Device, error)
}

// RecorderOptions configures one recorder session.
type RecorderOptions struct {
	MimeType  string
	Timeslice time.Duration
}

// RecorderSession produces segments until stopped. The channel is closed
// after the final flush segment has been sent.
type RecorderSession interface {
	Segments() <-chan domain.Segment
	Stop() error
}

// Recorder encodes a media stream into segments.
type Recorder interface {
	IsTypeSupported(mimeType string) bool
	Start(ctx context.Context, stream MediaStream, opts RecorderOptions) (RecorderSession, error)
}

// UploadTransport delivers one segment to the remote append sink.
type UploadTransport interface {
	Deliver(ctx context.Context, destinationName string, data []byte) error
}

// LocalSaveSink writes artifacts into a user-granted directory.
type LocalSaveSink interface {
	Grant(dir string) error
	Granted() bool
	Save(path string, content []byte) (string, error)
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.RecordingState, reason domain.SessionStateReason)
	SessionError(code domain.ErrorCode, detail string)
}

// SettingsStore persists user preferences as string key/values.
type SettingsStore interface {
	Get(key string) (string, bool)
	Set(key string, value string) error
}

// WorklistProvider is the read-only patient worklist.
type WorklistProvider interface {
	List(ctx context.Context) ([]domain.Patient, error)
	ByID(ctx context.Context, id string) (domain.Patient, bool, error)
}
