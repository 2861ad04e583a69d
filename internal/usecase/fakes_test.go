package usecase

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"sync"
	"time"

	"camclinic/internal/domain"
	"camclinic/internal/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type acquireCall struct {
	constraints domain.CaptureConstraints
	withAudio   bool
}

type fakeSource struct {
	mu       sync.Mutex
	audioErr error
	videoErr error
	devices  []domain.Device
	listErr  error
	calls    []acquireCall
	streams  []*fakeStream

	// exclusive stops every live stream before each attempt, like a camera
	// that only one process may open. failDevice rejects one device.
	exclusive  bool
	failDevice string
}

func (f *fakeSource) Acquire(_ context.Context, constraints domain.CaptureConstraints, withAudio bool) (ports.MediaStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, acquireCall{constraints: constraints, withAudio: withAudio})
	if f.exclusive {
		for _, held := range f.streams {
			_ = held.Stop()
		}
	}
	if f.failDevice != "" && constraints.DeviceID == f.failDevice {
		return nil, errors.New("device busy")
	}
	if withAudio && f.audioErr != nil {
		return nil, f.audioErr
	}
	if !withAudio && f.videoErr != nil {
		return nil, f.videoErr
	}
	stream := newFakeStream(withAudio)
	f.streams = append(f.streams, stream)
	return stream, nil
}

func (f *fakeSource) Devices(_ context.Context) ([]domain.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices, f.listErr
}

func (f *fakeSource) fail(device string, audioErr, videoErr error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDevice = device
	f.audioErr = audioErr
	f.videoErr = videoErr
}

func (f *fakeSource) stream(i int) *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[i]
}

func (f *fakeSource) snapshotCalls() []acquireCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]acquireCall, len(f.calls))
	copy(out, f.calls)
	return out
}

type fakeStream struct {
	mu        sync.Mutex
	audio     bool
	stopped   bool
	stopCalls int
	frame     []byte
}

func newFakeStream(audio bool) *fakeStream {
	return &fakeStream{audio: audio}
}

func (s *fakeStream) ID() string     { return "fake" }
func (s *fakeStream) HasAudio() bool { return s.audio }

func (s *fakeStream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped
}

func (s *fakeStream) LatestFrame() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame, s.frame != nil
}

func (s *fakeStream) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte)
	return ch, func() {}
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCalls++
	s.stopped = true
	return nil
}

func (s *fakeStream) stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCalls
}

type fakeRecorder struct {
	mu        sync.Mutex
	supported map[string]bool
	startErr  error
	sessions  []*fakeRecorderSession
	opts      []ports.RecorderOptions
}

func newFakeRecorder(supported ...string) *fakeRecorder {
	r := &fakeRecorder{supported: map[string]bool{}}
	for _, mimeType := range supported {
		r.supported[mimeType] = true
	}
	return r
}

func (r *fakeRecorder) IsTypeSupported(mimeType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.supported[mimeType]
}

func (r *fakeRecorder) Start(_ context.Context, _ ports.MediaStream, opts ports.RecorderOptions) (ports.RecorderSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return nil, r.startErr
	}
	session := &fakeRecorderSession{segments: make(chan domain.Segment, 64)}
	r.sessions = append(r.sessions, session)
	r.opts = append(r.opts, opts)
	return session, nil
}

func (r *fakeRecorder) lastSession() *fakeRecorderSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[len(r.sessions)-1]
}

// fakeRecorderSession emits queued segments and, on Stop, a final flush
// segment followed by closing the channel.
type fakeRecorderSession struct {
	mu       sync.Mutex
	segments chan domain.Segment
	index    int
	final    []byte
	stopped  bool
}

func (s *fakeRecorderSession) emit(data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments <- domain.Segment{Index: s.index, Data: []byte(data)}
	s.index++
}

func (s *fakeRecorderSession) Segments() <-chan domain.Segment { return s.segments }

func (s *fakeRecorderSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	if len(s.final) > 0 {
		s.segments <- domain.Segment{Index: s.index, Data: s.final, Final: true}
	}
	close(s.segments)
	return nil
}

type delivery struct {
	destination string
	data        string
	started     time.Time
	settled     time.Time
	deadline    bool
}

// fakeTransport records deliveries and tracks concurrent calls.
type fakeTransport struct {
	mu          sync.Mutex
	deliveries  []delivery
	inFlight    int
	maxInFlight int
	delays      map[string]time.Duration
	failures    map[string]error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{delays: map[string]time.Duration{}, failures: map[string]error{}}
}

func (t *fakeTransport) Deliver(ctx context.Context, destination string, data []byte) error {
	t.mu.Lock()
	t.inFlight++
	if t.inFlight > t.maxInFlight {
		t.maxInFlight = t.inFlight
	}
	delay := t.delays[string(data)]
	failure := t.failures[string(data)]
	started := time.Now()
	_, hasDeadline := ctx.Deadline()
	t.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlight--
	t.deliveries = append(t.deliveries, delivery{
		destination: destination,
		data:        string(data),
		started:     started,
		settled:     time.Now(),
		deadline:    hasDeadline,
	})
	return failure
}

func (t *fakeTransport) snapshot() ([]delivery, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]delivery, len(t.deliveries))
	copy(out, t.deliveries)
	return out, t.maxInFlight
}

type fakeLocalSink struct {
	mu      sync.Mutex
	granted bool
	dir     string
	saveErr error
	saved   map[string][]byte
}

func newFakeLocalSink(granted bool) *fakeLocalSink {
	return &fakeLocalSink{granted: granted, saved: map[string][]byte{}}
}

func (f *fakeLocalSink) Grant(dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if dir == "" {
		return errors.New("empty directory")
	}
	f.granted = true
	f.dir = dir
	return nil
}

func (f *fakeLocalSink) Granted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.granted
}

func (f *fakeLocalSink) Save(path string, content []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.saved[path] = append([]byte(nil), content...)
	return "/granted/" + path, nil
}

type fakeSettings struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: map[string]string{}}
}

func (f *fakeSettings) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.values[key]
	return value, ok
}

func (f *fakeSettings) Set(key string, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

type fakeWorklist struct {
	patients []domain.Patient
}

func (f *fakeWorklist) List(_ context.Context) ([]domain.Patient, error) {
	return f.patients, nil
}

func (f *fakeWorklist) ByID(_ context.Context, id string) (domain.Patient, bool, error) {
	for _, p := range f.patients {
		if p.ID == id {
			return p, true, nil
		}
	}
	return domain.Patient{}, false, nil
}

type fakeEventSink struct {
	mu sync.Mutex

	states []stateEvent
	errors []errEvent
}

type stateEvent struct {
	state  domain.RecordingState
	reason domain.SessionStateReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionStateChanged(state domain.RecordingState, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}

func testJPEG(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 75})
	return buf.Bytes()
}
