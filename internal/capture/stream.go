package capture

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// tsPacketSize is the MPEG-TS packet length. Media is fanned out in whole
// packets so subscribers can join mid-stream.
const (
	tsPacketSize     = 188
	mediaReadPackets = 64
	subscriberBuffer = 256
)

// Stream is a live capture backed by one ffmpeg process. It publishes the
// latest preview frame and fans out the MPEG-TS media feed to subscribers.
type Stream struct {
	id       string
	hasAudio bool
	log      *slog.Logger
	proc     *process
	frames   *os.File
	media    *os.File

	active atomic.Bool

	frameMu sync.RWMutex
	latest  []byte

	subMu   sync.Mutex
	subs    map[int]chan []byte
	nextSub int
	dropped atomic.Int64

	readers  sync.WaitGroup
	stopOnce sync.Once
	stopErr  error
}

func newStream(id string, hasAudio bool, proc *process, frames, media *os.File, log *slog.Logger) *Stream {
	s := &Stream{
		id:       id,
		hasAudio: hasAudio,
		log:      log,
		proc:     proc,
		frames:   frames,
		media:    media,
		subs:     map[int]chan []byte{},
	}
	s.active.Store(true)

	s.readers.Add(2)
	go s.readFrames()
	go s.readMedia()
	go func() {
		<-proc.Exited()
		if s.active.Swap(false) {
			s.log.Warn("capture process exited", slog.String("stream", s.id))
		}
	}()
	return s
}

func (s *Stream) ID() string     { return s.id }
func (s *Stream) HasAudio() bool { return s.hasAudio }
func (s *Stream) Active() bool   { return s.active.Load() }

// LatestFrame returns the most recent JPEG preview frame.
func (s *Stream) LatestFrame() ([]byte, bool) {
	s.frameMu.RLock()
	defer s.frameMu.RUnlock()
	if len(s.latest) == 0 {
		return nil, false
	}
	return s.latest, true
}

// Subscribe returns a channel of MPEG-TS packets and a func that ends the
// subscription. The channel is closed on unsubscribe or when capture ends.
// A subscriber that falls behind loses packets rather than stalling capture.
func (s *Stream) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)

	s.subMu.Lock()
	if s.subs == nil {
		s.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
		})
	}
}

// Stop ends capture. It is safe to call more than once.
func (s *Stream) Stop() error {
	s.stopOnce.Do(func() {
		s.active.Store(false)
		s.stopErr = s.proc.stop()
		s.readers.Wait()
		if dropped := s.dropped.Load(); dropped > 0 {
			s.log.Warn("media packets dropped for slow subscribers",
				slog.String("stream", s.id), slog.Int64("packets", dropped))
		}
	})
	return s.stopErr
}

func (s *Stream) readFrames() {
	defer s.readers.Done()
	defer s.frames.Close()

	err := readFrames(s.frames, func(frame []byte) {
		s.frameMu.Lock()
		s.latest = frame
		s.frameMu.Unlock()
	})
	if err != nil && !errors.Is(err, os.ErrClosed) {
		s.log.Warn("preview frame read failed", slog.String("stream", s.id), slog.String("error", err.Error()))
	}
}

func (s *Stream) readMedia() {
	defer s.readers.Done()
	defer s.media.Close()
	defer s.closeSubscribers()

	buf := make([]byte, tsPacketSize*mediaReadPackets)
	filled := 0
	for {
		n, err := s.media.Read(buf[filled:])
		filled += n
		if whole := filled - filled%tsPacketSize; whole > 0 {
			s.publish(append([]byte(nil), buf[:whole]...))
			filled = copy(buf, buf[whole:filled])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				s.log.Warn("media read failed", slog.String("stream", s.id), slog.String("error", err.Error()))
			}
			return
		}
	}
}

func (s *Stream) publish(packets []byte) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- packets:
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *Stream) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.subs = nil
}
