package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"camclinic/internal/domain"
	"camclinic/internal/ports"
)

// Settings keys.
const (
	SettingTheme          = "theme"
	SettingCameraSettings = "cameraSettings"
)

// Config controls station behavior.
type Config struct {
	SegmentInterval time.Duration
	UploadTimeout   time.Duration
}

// Station is the capture workstation: one camera stream, one recording
// engine, the upload queue and the local save path, owned by the caller.
type Station struct {
	capture   *CaptureSession
	devices   *DeviceEnumerator
	still     StillCapture
	engine    *RecordingEngine
	queue     *UploadQueue
	local     ports.LocalSaveSink
	settings  ports.SettingsStore
	worklist  ports.WorklistProvider
	shortcuts *ShortcutRegistrar
	events    ports.EventSink
	log       *slog.Logger
}

func NewStation(
	source ports.MediaSource,
	recorder ports.Recorder,
	transport ports.UploadTransport,
	local ports.LocalSaveSink,
	settings ports.SettingsStore,
	worklist ports.WorklistProvider,
	events ports.EventSink,
	log *slog.Logger,
	cfg Config,
) *Station {
	queue := NewUploadQueue(transport, log, cfg.UploadTimeout)
	return &Station{
		capture:   NewCaptureSession(source, events, log),
		devices:   NewDeviceEnumerator(source, log),
		engine:    NewRecordingEngine(recorder, queue, local, events, log, EngineConfig{Timeslice: cfg.SegmentInterval}),
		queue:     queue,
		local:     local,
		settings:  settings,
		worklist:  worklist,
		shortcuts: NewShortcutRegistrar(),
		events:    events,
		log:       log,
	}
}

// ListCameras returns the selectable video inputs, possibly empty. A live
// camera already proves access, so no probe stream is opened then.
func (s *Station) ListCameras(ctx context.Context) []domain.Device {
	if s.capture.Active() {
		return s.devices.ListWithoutProbe(ctx)
	}
	return s.devices.ListVideoInputs(ctx)
}

// StartCamera acquires the camera. Empty constraints fall back to the saved
// camera settings.
func (s *Station) StartCamera(ctx context.Context, constraints domain.CaptureConstraints) error {
	if constraints == (domain.CaptureConstraints{}) {
		constraints = s.CameraSettings()
	}
	_, err := s.capture.Start(ctx, constraints)
	return err
}

// StopCamera releases the camera. Safe when already stopped.
func (s *Station) StopCamera() {
	s.capture.Stop()
}

// CaptureImage returns the current frame as a JPEG data URL.
func (s *Station) CaptureImage() (string, error) {
	url, err := s.still.CaptureDataURL(s.capture.Stream())
	if err != nil {
		s.events.SessionError(domain.ErrorCodeStillCapture, err.Error())
	}
	return url, err
}

// SaveStill captures the current frame and writes it through the local sink.
func (s *Station) SaveStill(path string) (string, error) {
	data, err := s.still.Capture(s.capture.Stream())
	if err != nil {
		s.events.SessionError(domain.ErrorCodeStillCapture, err.Error())
		return "", err
	}
	return s.SaveFile(path, data)
}

// StartRecording records the live stream to destinationName.
func (s *Station) StartRecording(ctx context.Context, destinationName string, mode domain.RecordingMode) error {
	return s.engine.Start(ctx, s.capture.Stream(), strings.TrimSpace(destinationName), mode)
}

// StopRecording stops the active recording and waits for its deliveries.
func (s *Station) StopRecording(ctx context.Context) (domain.RecordingResult, error) {
	return s.engine.Stop(ctx)
}

// SelectDirectory grants the local save path access to dir.
func (s *Station) SelectDirectory(dir string) error {
	if err := s.local.Grant(dir); err != nil {
		s.events.SessionError(domain.ErrorCodeDirectoryGrant, err.Error())
		return err
	}
	s.events.SessionStateChanged(s.engine.Status().State, domain.SessionReasonDirectorySelected)
	return nil
}

// SaveFile writes content to path under the granted directory.
func (s *Station) SaveFile(path string, content []byte) (string, error) {
	if !s.local.Granted() {
		s.events.SessionError(domain.ErrorCodeDirectoryGrant, "Please select a directory first.")
		return "", ErrNoDirectoryGrant
	}
	saved, err := s.local.Save(path, content)
	if err != nil {
		s.log.Error("save file failed", slog.String("path", path), slog.String("error", err.Error()))
		return "", err
	}
	s.log.Info("file saved", slog.String("path", saved))
	return saved, nil
}

// Theme returns the stored theme or "" when none.
func (s *Station) Theme() string {
	theme, _ := s.settings.Get(SettingTheme)
	return theme
}

func (s *Station) SetTheme(theme string) error {
	return s.settings.Set(SettingTheme, theme)
}

// CameraSettings returns the stored constraint hints; unreadable values
// yield zero constraints.
func (s *Station) CameraSettings() domain.CaptureConstraints {
	raw, ok := s.settings.Get(SettingCameraSettings)
	if !ok || raw == "" {
		return domain.CaptureConstraints{}
	}
	var constraints domain.CaptureConstraints
	if err := json.Unmarshal([]byte(raw), &constraints); err != nil {
		s.log.Warn("ignoring unreadable camera settings", slog.String("error", err.Error()))
		return domain.CaptureConstraints{}
	}
	return constraints
}

func (s *Station) SaveCameraSettings(constraints domain.CaptureConstraints) error {
	raw, err := json.Marshal(constraints)
	if err != nil {
		return fmt.Errorf("encode camera settings: %w", err)
	}
	return s.settings.Set(SettingCameraSettings, string(raw))
}

// Worklist returns the ordered patient worklist.
func (s *Station) Worklist(ctx context.Context) ([]domain.Patient, error) {
	return s.worklist.List(ctx)
}

// Patient looks up one worklist entry.
func (s *Station) Patient(ctx context.Context, id string) (domain.Patient, bool, error) {
	return s.worklist.ByID(ctx, id)
}

// Shortcuts exposes the capture shortcut registrar.
func (s *Station) Shortcuts() *ShortcutRegistrar {
	return s.shortcuts
}

// UploadStats returns the upload queue counters.
func (s *Station) UploadStats() UploadStats {
	return s.queue.Stats()
}

// Status returns the current station status.
func (s *Station) Status() domain.Status {
	stream := s.capture.Stream()
	status := domain.Status{
		CameraActive: stream != nil,
		Recording:    s.engine.Status(),
		DirectorySet: s.local.Granted(),
	}
	if stream != nil {
		status.AudioEnabled = stream.HasAudio()
	}
	return status
}

// Shutdown stops any recording and releases the camera.
func (s *Station) Shutdown(ctx context.Context) {
	if s.engine.Status().State == domain.RecordingStateRecording {
		if _, err := s.engine.Stop(ctx); err != nil {
			s.log.Warn("recording stop on shutdown failed", slog.String("error", err.Error()))
		}
	}
	s.capture.Stop()
}
