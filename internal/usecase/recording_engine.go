package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"camclinic/internal/domain"
	"camclinic/internal/ports"
)

var (
	ErrRecordingActive  = errors.New("a recording is already active")
	ErrNotRecording     = errors.New("no active recording")
	ErrNoSupportedCodec = errors.New("no supported recording format")
)

// codecPreference lists recorder formats in the order they are tried.
var codecPreference = []struct {
	mimeType  string
	extension string
}{
	{mimeType: "video/webm;codecs=vp9", extension: ".webm"},
	{mimeType: "video/webm", extension: ".webm"},
	{mimeType: "video/mp4", extension: ".mp4"},
}

// EngineConfig controls recording behavior.
type EngineConfig struct {
	// Timeslice is the segment cadence in network mode.
	Timeslice time.Duration
}

// RecordingEngine drives one recorder session at a time against a live
// stream: Idle -> Recording -> Stopping -> Idle.
type RecordingEngine struct {
	recorder  ports.Recorder
	queue     *UploadQueue
	finalizer artifactFinalizer
	events    ports.EventSink
	log       *slog.Logger
	cfg       EngineConfig

	// opMu serializes Start and Stop; mu guards current.
	opMu    sync.Mutex
	mu      sync.Mutex
	current *activeRecording
}

func NewRecordingEngine(
	recorder ports.Recorder,
	queue *UploadQueue,
	local ports.LocalSaveSink,
	events ports.EventSink,
	log *slog.Logger,
	cfg EngineConfig,
) *RecordingEngine {
	if cfg.Timeslice <= 0 {
		cfg.Timeslice = time.Second
	}
	return &RecordingEngine{
		recorder:  recorder,
		queue:     queue,
		finalizer: newArtifactFinalizer(local, events, log),
		events:    events,
		log:       log,
		cfg:       cfg,
	}
}

// Start begins recording stream into destinationName. An empty name is
// replaced by a generated one matching the negotiated container.
func (e *RecordingEngine) Start(ctx context.Context, stream ports.MediaStream, destinationName string, mode domain.RecordingMode) error {
	if stream == nil || !stream.Active() {
		return ErrNoStream
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()
	if e.Status().State != domain.RecordingStateIdle {
		return ErrRecordingActive
	}
	if mode != domain.RecordingModeLocal {
		mode = domain.RecordingModeNetwork
	}
	if mode == domain.RecordingModeLocal {
		if err := e.finalizer.Ready(); err != nil {
			return err
		}
	}

	mimeType, extension := e.negotiateCodec()
	if mimeType == "" {
		return ErrNoSupportedCodec
	}
	if destinationName == "" {
		destinationName = "recording-" + uuid.NewString() + extension
	}

	active := &activeRecording{
		mode:        mode,
		destination: destinationName,
		mimeType:    mimeType,
		state:       domain.RecordingStateRecording,
		accumulator: newSegmentAccumulator(),
		pumpDone:    make(chan struct{}),
	}

	timeslice := e.cfg.Timeslice
	if mode == domain.RecordingModeLocal {
		timeslice = 0
	}

	session, err := e.recorder.Start(ctx, stream, ports.RecorderOptions{MimeType: mimeType, Timeslice: timeslice})
	if err != nil {
		e.events.SessionError(domain.ErrorCodeRecorder, err.Error())
		return fmt.Errorf("start recorder: %w", err)
	}
	active.session = session

	e.mu.Lock()
	e.current = active
	e.mu.Unlock()

	sink := active.accumulator.Add
	if mode == domain.RecordingModeNetwork {
		active.failedAtStart = e.queue.Stats().Failed
		sink = func(segment domain.Segment) {
			e.queue.Enqueue(segment, destinationName)
		}
	}
	go pumpSegments(session, active, sink, active.pumpDone)

	e.log.Info("recording started",
		slog.String("destination", destinationName),
		slog.String("mode", string(mode)),
		slog.String("mime_type", mimeType))
	e.events.SessionStateChanged(domain.RecordingStateRecording, domain.SessionReasonRecordingStarted)
	return nil
}

// Stop ends the active recording. It returns only after the recorder's
// final flush has been consumed and, in network mode, every queued upload
// has settled. In local mode the concatenated recording is saved.
func (e *RecordingEngine) Stop(ctx context.Context) (domain.RecordingResult, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	active := e.current
	e.mu.Unlock()
	if active == nil || !active.transition(domain.RecordingStateRecording, domain.RecordingStateStopping) {
		return domain.RecordingResult{}, ErrNotRecording
	}
	e.events.SessionStateChanged(domain.RecordingStateStopping, domain.SessionReasonFlushing)

	if err := active.session.Stop(); err != nil {
		e.log.Warn("recorder stop reported an error", slog.String("error", err.Error()))
		e.events.SessionError(domain.ErrorCodeRecorder, err.Error())
	}

	select {
	case <-active.pumpDone:
	case <-ctx.Done():
		e.finish(active, domain.SessionReasonRecordingFailed)
		return domain.RecordingResult{}, ctx.Err()
	}

	segments, size := active.totals()
	result := domain.RecordingResult{
		Mode:            active.mode,
		DestinationName: active.destination,
		MimeType:        active.mimeType,
		Segments:        segments,
		Bytes:           size,
	}

	if active.mode == domain.RecordingModeNetwork {
		if err := e.queue.Drain(ctx); err != nil {
			e.finish(active, domain.SessionReasonRecordingFailed)
			return result, err
		}
		result.FailedUploads = e.queue.Stats().Failed - active.failedAtStart
		e.finish(active, domain.SessionReasonUploadsSettled)
		return result, nil
	}

	path, reason, err := e.finalizer.Finalize(active.destination, active.accumulator.Bytes())
	e.finish(active, reason)
	if err != nil {
		return result, err
	}
	result.ArtifactPath = path
	return result, nil
}

// Status reports the engine state.
func (e *RecordingEngine) Status() domain.RecordingStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return domain.RecordingStatus{State: domain.RecordingStateIdle}
	}
	return e.current.status()
}

func (e *RecordingEngine) negotiateCodec() (string, string) {
	for _, candidate := range codecPreference {
		if e.recorder.IsTypeSupported(candidate.mimeType) {
			return candidate.mimeType, candidate.extension
		}
	}
	return "", ""
}

func (e *RecordingEngine) finish(active *activeRecording, reason domain.SessionStateReason) {
	active.setState(domain.RecordingStateIdle)

	e.mu.Lock()
	if e.current == active {
		e.current = nil
	}
	e.mu.Unlock()

	e.events.SessionStateChanged(domain.RecordingStateIdle, reason)
}
