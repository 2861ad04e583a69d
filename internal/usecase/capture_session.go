package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"camclinic/internal/domain"
	"camclinic/internal/ports"
)

var (
	ErrCaptureFailed = errors.New("camera capture failed")
	ErrNoStream      = errors.New("no active camera stream")
)

// CaptureSession owns the single live camera stream.
type CaptureSession struct {
	source ports.MediaSource
	events ports.EventSink
	log    *slog.Logger

	mu          sync.Mutex
	current     ports.MediaStream
	constraints domain.CaptureConstraints
}

func NewCaptureSession(source ports.MediaSource, events ports.EventSink, log *slog.Logger) *CaptureSession {
	return &CaptureSession{source: source, events: events, log: log}
}

// Start acquires a new stream, falling back to video only when the combined
// request fails. The previous stream is stopped before it is replaced. When
// both attempts fail the previous stream stays current; if the source had to
// release its device to try, the previous stream is reopened.
func (c *CaptureSession) Start(ctx context.Context, constraints domain.CaptureConstraints) (ports.MediaStream, error) {
	stream, err := c.source.Acquire(ctx, constraints, true)
	degraded := false
	if err != nil {
		c.log.Warn("audio+video acquisition failed, retrying without audio",
			slog.String("device", constraints.DeviceID),
			slog.String("error", err.Error()))
		stream, err = c.source.Acquire(ctx, constraints, false)
		if err != nil {
			c.events.SessionError(domain.ErrorCodeCameraDenied, err.Error())
			c.restorePrevious(ctx)
			return nil, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
		}
		degraded = true
	}

	c.mu.Lock()
	previous := c.current
	if previous != nil {
		if stopErr := previous.Stop(); stopErr != nil {
			c.log.Warn("failed to stop previous stream", slog.String("error", stopErr.Error()))
		}
	}
	c.current = stream
	c.constraints = constraints
	c.mu.Unlock()

	reason := domain.SessionReasonCameraStarted
	if previous != nil {
		reason = domain.SessionReasonCameraRestarted
	}
	if degraded {
		reason = domain.SessionReasonAudioDisabled
	}
	c.events.SessionStateChanged(domain.RecordingStateIdle, reason)
	return stream, nil
}

// Stop releases the current stream, if any.
func (c *CaptureSession) Stop() {
	c.mu.Lock()
	stream := c.current
	c.current = nil
	c.mu.Unlock()

	if stream == nil {
		return
	}
	if err := stream.Stop(); err != nil {
		c.log.Warn("failed to stop camera stream", slog.String("error", err.Error()))
	}
	c.events.SessionStateChanged(domain.RecordingStateIdle, domain.SessionReasonCameraStopped)
}

// restorePrevious reopens the current stream with its own constraints when a
// failed acquisition left it stopped.
func (c *CaptureSession) restorePrevious(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	previous := c.current
	if previous == nil || previous.Active() {
		return
	}
	restored, err := c.source.Acquire(ctx, c.constraints, previous.HasAudio())
	if err != nil {
		c.current = nil
		c.log.Error("failed to reopen previous camera", slog.String("error", err.Error()))
		c.events.SessionStateChanged(domain.RecordingStateIdle, domain.SessionReasonCameraStopped)
		return
	}
	c.current = restored
	c.log.Info("previous camera reopened", slog.String("device", c.constraints.DeviceID))
	c.events.SessionStateChanged(domain.RecordingStateIdle, domain.SessionReasonCameraRestarted)
}

// Stream returns the live stream or nil.
func (c *CaptureSession) Stream() ports.MediaStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || !c.current.Active() {
		return nil
	}
	return c.current
}

func (c *CaptureSession) Active() bool {
	return c.Stream() != nil
}
