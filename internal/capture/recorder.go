package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"camclinic/internal/domain"
	"camclinic/internal/ports"
)

type encoderProfile struct {
	video  string
	audio  string
	format []string
}

var profiles = map[string]encoderProfile{
	"video/webm;codecs=vp9": {video: "libvpx-vp9", audio: "libopus", format: []string{"-f", "webm"}},
	"video/webm":            {video: "libvpx", audio: "libopus", format: []string{"-f", "webm"}},
	"video/mp4":             {video: "libx264", audio: "aac", format: []string{"-movflags", "frag_keyframe+empty_moov", "-f", "mp4"}},
}

// Recorder encodes a capture stream's media feed with a second ffmpeg
// process and cuts its output into segments.
type Recorder struct {
	command string
	log     *slog.Logger

	probeOnce sync.Once
	encoders  map[string]bool
}

func NewRecorder(command string, log *slog.Logger) *Recorder {
	if command == "" {
		command = "ffmpeg"
	}
	return &Recorder{command: command, log: log}
}

// IsTypeSupported reports whether the local ffmpeg has the video encoder
// mimeType needs.
func (r *Recorder) IsTypeSupported(mimeType string) bool {
	profile, ok := profiles[normalizeMimeType(mimeType)]
	if !ok {
		return false
	}
	r.probeOnce.Do(r.probeEncoders)
	return r.encoders[profile.video]
}

func (r *Recorder) probeEncoders() {
	r.encoders = map[string]bool{}
	out, err := exec.Command(r.command, "-hide_banner", "-encoders").Output()
	if err != nil {
		r.log.Warn("ffmpeg encoder probe failed", slog.String("error", err.Error()))
		return
	}
	r.encoders = parseEncoders(string(out))
}

// parseEncoders reads `ffmpeg -encoders` output: a flags column then the
// encoder name, after a "------" separator.
func parseEncoders(output string) map[string]bool {
	encoders := map[string]bool{}
	listing := false
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "---") {
			listing = true
			continue
		}
		if !listing {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			encoders[fields[1]] = true
		}
	}
	return encoders
}

// Start launches the encoder. With a zero Timeslice the whole recording is
// delivered as one final segment.
func (r *Recorder) Start(ctx context.Context, stream ports.MediaStream, opts ports.RecorderOptions) (ports.RecorderSession, error) {
	profile, ok := profiles[normalizeMimeType(opts.MimeType)]
	if !ok {
		return nil, fmt.Errorf("unsupported recording format %q", opts.MimeType)
	}
	if stream == nil || !stream.Active() {
		return nil, errors.New("capture stream is not active")
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-f", "mpegts",
		"-i", "pipe:0",
		"-c:v", profile.video,
	}
	if profile.video == "libvpx-vp9" || profile.video == "libvpx" {
		args = append(args, "-deadline", "realtime", "-cpu-used", "8")
	}
	if stream.HasAudio() {
		args = append(args, "-c:a", profile.audio)
	} else {
		args = append(args, "-an")
	}
	args = append(args, profile.format...)
	args = append(args, "pipe:1")

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder pipe: %w", err)
	}
	cmd := exec.CommandContext(ctx, r.command, args...)
	cmd.Stdout = outW
	stdin, err := cmd.StdinPipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, fmt.Errorf("failed to create encoder stdin: %w", err)
	}

	media, unsubscribe := stream.Subscribe()
	proc, err := startProcess(cmd)
	outW.Close()
	if err != nil {
		unsubscribe()
		outR.Close()
		return nil, err
	}

	session := &recording{
		proc:        proc,
		stdin:       stdin,
		output:      outR,
		unsubscribe: unsubscribe,
		segments:    make(chan domain.Segment, 16),
		log:         r.log,
	}
	go session.feed(media)
	go session.collect(opts.Timeslice)

	r.log.Debug("encoder started", slog.String("mime_type", opts.MimeType), slog.String("stream", stream.ID()))
	return session, nil
}

func normalizeMimeType(mimeType string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(mimeType), " ", ""))
}

type recording struct {
	proc        *process
	stdin       io.WriteCloser
	output      *os.File
	unsubscribe func()
	segments    chan domain.Segment
	log         *slog.Logger

	stopOnce sync.Once
	stopErr  error
}

func (s *recording) Segments() <-chan domain.Segment {
	return s.segments
}

// Stop ends the media subscription, which closes the encoder input, and
// waits for the encoder to finish writing. The final segment follows on
// Segments before the channel closes.
func (s *recording) Stop() error {
	s.stopOnce.Do(func() {
		s.unsubscribe()

		select {
		case <-s.proc.Exited():
			s.stopErr = s.proc.wait()
		case <-time.After(5 * time.Second):
			s.stopErr = s.proc.stop()
		}
	})
	return s.stopErr
}

func (s *recording) feed(media <-chan []byte) {
	defer s.stdin.Close()
	for packets := range media {
		if _, err := s.stdin.Write(packets); err != nil {
			s.log.Warn("encoder input write failed", slog.String("error", err.Error()))
			return
		}
	}
}

func (s *recording) collect(timeslice time.Duration) {
	defer close(s.segments)
	defer s.output.Close()

	reads := make(chan []byte)
	go func() {
		defer close(reads)
		buf := make([]byte, 64<<10)
		for {
			n, err := s.output.Read(buf)
			if n > 0 {
				reads <- append([]byte(nil), buf[:n]...)
			}
			if err != nil {
				return
			}
		}
	}()

	var tick <-chan time.Time
	if timeslice > 0 {
		ticker := time.NewTicker(timeslice)
		defer ticker.Stop()
		tick = ticker.C
	}

	var pending []byte
	index := 0
	for {
		select {
		case chunk, ok := <-reads:
			if !ok {
				s.segments <- domain.Segment{Index: index, Data: pending, Final: true}
				return
			}
			pending = append(pending, chunk...)
		case <-tick:
			if len(pending) == 0 {
				continue
			}
			s.segments <- domain.Segment{Index: index, Data: pending}
			index++
			pending = nil
		}
	}
}
