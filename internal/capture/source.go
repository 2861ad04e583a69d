package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"camclinic/internal/domain"
	"camclinic/internal/ports"
)

// SourceConfig controls how ffmpeg opens camera and microphone.
type SourceConfig struct {
	Command       string
	InputFormat   string
	DefaultDevice string
	AudioFormat   string
	AudioDevice   string

	// DeviceDir and SysfsDir locate video nodes and their labels.
	DeviceDir string
	SysfsDir  string
}

// Source opens camera streams through ffmpeg.
type Source struct {
	cfg SourceConfig
	log *slog.Logger

	mu   sync.Mutex
	open map[string]*Stream
}

func NewSource(cfg SourceConfig, log *slog.Logger) *Source {
	if cfg.Command == "" {
		cfg.Command = "ffmpeg"
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "v4l2"
	}
	if cfg.DefaultDevice == "" {
		cfg.DefaultDevice = "/dev/video0"
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = "pulse"
	}
	if cfg.AudioDevice == "" {
		cfg.AudioDevice = "default"
	}
	if cfg.DeviceDir == "" {
		cfg.DeviceDir = "/dev"
	}
	if cfg.SysfsDir == "" {
		cfg.SysfsDir = "/sys/class/video4linux"
	}
	return &Source{cfg: cfg, log: log, open: map[string]*Stream{}}
}

// Acquire starts one ffmpeg process that writes MJPEG preview frames to
// stdout and an MPEG-TS media feed to fd 3. A live stream already holding
// the same device is stopped first since capture devices open exclusively.
func (s *Source) Acquire(ctx context.Context, constraints domain.CaptureConstraints, withAudio bool) (ports.MediaStream, error) {
	device := s.devicePath(constraints.DeviceID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if held, ok := s.open[device]; ok {
		delete(s.open, device)
		if held.Active() {
			s.log.Info("releasing device for new capture", slog.String("device", device), slog.String("stream", held.ID()))
			_ = held.Stop()
		}
	}

	framesR, framesW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create frame pipe: %w", err)
	}
	mediaR, mediaW, err := os.Pipe()
	if err != nil {
		framesR.Close()
		framesW.Close()
		return nil, fmt.Errorf("failed to create media pipe: %w", err)
	}

	cmd := exec.CommandContext(ctx, s.cfg.Command, s.captureArgs(constraints, withAudio)...)
	cmd.Stdout = framesW
	cmd.ExtraFiles = []*os.File{mediaW}

	proc, err := startProcess(cmd)
	framesW.Close()
	mediaW.Close()
	if err != nil {
		framesR.Close()
		mediaR.Close()
		return nil, err
	}

	stream := newStream(uuid.NewString(), withAudio, proc, framesR, mediaR, s.log)
	s.open[device] = stream
	s.log.Info("capture started",
		slog.String("stream", stream.ID()),
		slog.String("device", device),
		slog.Bool("audio", withAudio))
	return stream, nil
}

// Devices lists video capture nodes with their driver-reported names.
func (s *Source) Devices(_ context.Context) ([]domain.Device, error) {
	paths, err := filepath.Glob(filepath.Join(s.cfg.DeviceDir, "video*"))
	if err != nil {
		return nil, fmt.Errorf("list video devices: %w", err)
	}
	sort.Slice(paths, func(i, j int) bool { return deviceNumber(paths[i]) < deviceNumber(paths[j]) })

	devices := make([]domain.Device, 0, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)
		label := name
		if raw, err := os.ReadFile(filepath.Join(s.cfg.SysfsDir, name, "name")); err == nil {
			if trimmed := strings.TrimSpace(string(raw)); trimmed != "" {
				label = trimmed
			}
		}
		devices = append(devices, domain.Device{ID: path, Label: label})
	}
	return devices, nil
}

func (s *Source) captureArgs(c domain.CaptureConstraints, withAudio bool) []string {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", s.cfg.InputFormat,
	}
	if c.FrameRate > 0 {
		args = append(args, "-framerate", strconv.Itoa(c.FrameRate))
	}
	if c.Width > 0 && c.Height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", c.Width, c.Height))
	}
	args = append(args, "-i", s.devicePath(c.DeviceID))
	if withAudio {
		args = append(args, "-f", s.cfg.AudioFormat, "-i", s.cfg.AudioDevice)
	}

	args = append(args, "-map", "0:v", "-f", "mjpeg", "-q:v", "5", "pipe:1")

	args = append(args, "-map", "0:v")
	if withAudio {
		args = append(args, "-map", "1:a", "-c:a", "mp2")
	}
	args = append(args, "-c:v", "mpeg2video", "-q:v", "3", "-g", "15", "-f", "mpegts", "pipe:3")
	return args
}

func (s *Source) devicePath(deviceID string) string {
	deviceID = strings.TrimSpace(deviceID)
	switch {
	case deviceID == "":
		return s.cfg.DefaultDevice
	case filepath.IsAbs(deviceID):
		return deviceID
	default:
		return filepath.Join(s.cfg.DeviceDir, deviceID)
	}
}

func deviceNumber(path string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(path), "video"))
	if err != nil {
		return 1 << 30
	}
	return n
}
