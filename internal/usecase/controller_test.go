package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"camclinic/internal/domain"
)

type stationFixture struct {
	station   *Station
	source    *fakeSource
	recorder  *fakeRecorder
	transport *fakeTransport
	local     *fakeLocalSink
	settings  *fakeSettings
	events    *fakeEventSink
}

func newStationFixture() stationFixture {
	f := stationFixture{
		source:    &fakeSource{},
		recorder:  newFakeRecorder("video/webm"),
		transport: newFakeTransport(),
		local:     newFakeLocalSink(false),
		settings:  newFakeSettings(),
		events:    &fakeEventSink{},
	}
	worklist := &fakeWorklist{patients: []domain.Patient{{ID: "101", Name: "An"}}}
	f.station = NewStation(f.source, f.recorder, f.transport, f.local, f.settings, worklist, f.events, discardLogger(),
		Config{SegmentInterval: time.Second, UploadTimeout: time.Second})
	return f
}

func TestStationStartCameraUsesSavedSettings(t *testing.T) {
	t.Parallel()

	f := newStationFixture()
	saved := domain.CaptureConstraints{DeviceID: "/dev/video1", Width: 1920, Height: 1080, FrameRate: 25}
	if err := f.station.SaveCameraSettings(saved); err != nil {
		t.Fatalf("save settings failed: %v", err)
	}
	if raw, _ := f.settings.Get(SettingCameraSettings); !strings.Contains(raw, `"deviceId":"/dev/video1"`) {
		t.Fatalf("unexpected stored settings: %s", raw)
	}

	if err := f.station.StartCamera(context.Background(), domain.CaptureConstraints{}); err != nil {
		t.Fatalf("start camera failed: %v", err)
	}
	calls := f.source.snapshotCalls()
	if calls[0].constraints != saved {
		t.Fatalf("expected saved constraints, got %+v", calls[0].constraints)
	}

	status := f.station.Status()
	if !status.CameraActive || !status.AudioEnabled {
		t.Fatalf("unexpected status: %+v", status)
	}

	f.station.StopCamera()
	f.station.StopCamera()
	if f.station.Status().CameraActive {
		t.Fatalf("expected camera stopped")
	}
}

func TestStationCameraSettingsIgnoresGarbage(t *testing.T) {
	t.Parallel()

	f := newStationFixture()
	_ = f.settings.Set(SettingCameraSettings, "{not json")
	if got := f.station.CameraSettings(); got != (domain.CaptureConstraints{}) {
		t.Fatalf("expected zero constraints, got %+v", got)
	}
}

func TestStationThemeRoundTrip(t *testing.T) {
	t.Parallel()

	f := newStationFixture()
	if f.station.Theme() != "" {
		t.Fatalf("expected no theme")
	}
	if err := f.station.SetTheme("dark"); err != nil {
		t.Fatalf("set theme failed: %v", err)
	}
	if f.station.Theme() != "dark" {
		t.Fatalf("unexpected theme: %q", f.station.Theme())
	}
}

func TestStationRecordWithoutCamera(t *testing.T) {
	t.Parallel()

	f := newStationFixture()
	if err := f.station.StartRecording(context.Background(), "exam.webm", domain.RecordingModeNetwork); !errors.Is(err, ErrNoStream) {
		t.Fatalf("expected ErrNoStream, got %v", err)
	}
	if _, err := f.station.CaptureImage(); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("expected ErrNoFrame, got %v", err)
	}
}

func TestStationRecordsOverNetwork(t *testing.T) {
	t.Parallel()

	f := newStationFixture()
	if err := f.station.StartCamera(context.Background(), domain.CaptureConstraints{}); err != nil {
		t.Fatalf("start camera failed: %v", err)
	}
	if err := f.station.StartRecording(context.Background(), "  exam.webm ", domain.RecordingModeNetwork); err != nil {
		t.Fatalf("start recording failed: %v", err)
	}
	session := f.recorder.lastSession()
	session.emit("one")
	session.final = []byte("two")

	result, err := f.station.StopRecording(context.Background())
	if err != nil {
		t.Fatalf("stop recording failed: %v", err)
	}
	if result.DestinationName != "exam.webm" || result.Segments != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if stats := f.station.UploadStats(); stats.Delivered != 2 || stats.Pending != 0 {
		t.Fatalf("unexpected upload stats: %+v", stats)
	}
}

func TestStationSaveFileRequiresDirectory(t *testing.T) {
	t.Parallel()

	f := newStationFixture()
	if _, err := f.station.SaveFile("a/b/c.jpg", []byte("x")); !errors.Is(err, ErrNoDirectoryGrant) {
		t.Fatalf("expected ErrNoDirectoryGrant, got %v", err)
	}

	if err := f.station.SelectDirectory("/tmp/exports"); err != nil {
		t.Fatalf("select directory failed: %v", err)
	}
	path, err := f.station.SaveFile("a/b/c.jpg", []byte("x"))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if path != "/granted/a/b/c.jpg" || !f.station.Status().DirectorySet {
		t.Fatalf("unexpected save path %q", path)
	}
}

func TestStationSaveStill(t *testing.T) {
	t.Parallel()

	f := newStationFixture()
	_ = f.station.SelectDirectory("/tmp/exports")
	if err := f.station.StartCamera(context.Background(), domain.CaptureConstraints{}); err != nil {
		t.Fatalf("start camera failed: %v", err)
	}
	f.source.streams[0].frame = testJPEG(32, 32)

	if _, err := f.station.SaveStill("101/still.jpg"); err != nil {
		t.Fatalf("save still failed: %v", err)
	}
	if len(f.local.saved["101/still.jpg"]) == 0 {
		t.Fatalf("expected still to be saved")
	}
}

func TestStationWorklist(t *testing.T) {
	t.Parallel()

	f := newStationFixture()
	patients, err := f.station.Worklist(context.Background())
	if err != nil || len(patients) != 1 {
		t.Fatalf("unexpected worklist: %+v %v", patients, err)
	}
	if _, ok, _ := f.station.Patient(context.Background(), "999"); ok {
		t.Fatalf("expected missing patient")
	}
}

func TestStationShutdownStopsRecordingAndCamera(t *testing.T) {
	t.Parallel()

	f := newStationFixture()
	if err := f.station.StartCamera(context.Background(), domain.CaptureConstraints{}); err != nil {
		t.Fatalf("start camera failed: %v", err)
	}
	if err := f.station.StartRecording(context.Background(), "exam.webm", domain.RecordingModeNetwork); err != nil {
		t.Fatalf("start recording failed: %v", err)
	}

	f.station.Shutdown(context.Background())

	status := f.station.Status()
	if status.CameraActive || status.Recording.State != domain.RecordingStateIdle {
		t.Fatalf("unexpected status after shutdown: %+v", status)
	}
}

func TestStationListCamerasSkipsProbeWhileCameraLive(t *testing.T) {
	t.Parallel()

	f := newStationFixture()
	f.source.devices = []domain.Device{{ID: "/dev/video0", Label: "Scope"}}

	if devices := f.station.ListCameras(context.Background()); len(devices) != 1 {
		t.Fatalf("unexpected devices: %+v", devices)
	}
	if calls := f.source.snapshotCalls(); len(calls) != 1 {
		t.Fatalf("expected one probe while idle, got %d calls", len(calls))
	}

	if err := f.station.StartCamera(context.Background(), domain.CaptureConstraints{}); err != nil {
		t.Fatalf("start camera failed: %v", err)
	}
	if devices := f.station.ListCameras(context.Background()); len(devices) != 1 {
		t.Fatalf("unexpected devices: %+v", devices)
	}
	if calls := f.source.snapshotCalls(); len(calls) != 2 {
		t.Fatalf("expected no probe while the camera is live, got %d calls", len(calls))
	}
	if !f.station.Status().CameraActive {
		t.Fatalf("listing must not disturb the live camera")
	}
}
