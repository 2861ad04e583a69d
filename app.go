package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"camclinic/internal/bootstrap"
	"camclinic/internal/config"
	"camclinic/internal/domain"
	"camclinic/internal/usecase"
)

const (
	eventSession = "camclinic:session"
	eventError   = "camclinic:error"
	eventStill   = "camclinic:still"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services bootstrap.Services
	station  *usecase.Station
	cfg      config.Config
	bootErr  error

	unregisterShortcut func()
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.cfg = services.Config
	a.station = services.Station

	unregister, err := a.station.Shortcuts().Register(a.captureShortcut)
	if err != nil {
		services.Log.Warn("capture shortcut unavailable", slog.String("error", err.Error()))
	} else {
		a.unregisterShortcut = unregister
	}
}

func (a *App) shutdown(ctx context.Context) {
	if a.unregisterShortcut != nil {
		a.unregisterShortcut()
	}
	if a.station == nil {
		return
	}
	a.station.Shutdown(ctx)
	if err := a.services.Close(); err != nil {
		a.services.Log.Warn("release resources failed", slog.String("error", err.Error()))
	}
}

// ListCameras returns the selectable video inputs.
func (a *App) ListCameras() []domain.Device {
	if a.requireReady() != nil {
		return []domain.Device{}
	}
	return a.station.ListCameras(a.ctx)
}

// StartCamera acquires the camera with the given hints.
func (a *App) StartCamera(constraints domain.CaptureConstraints) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.station.StartCamera(a.ctx, constraints); err != nil {
		return a.station.Status(), err
	}
	return a.station.Status(), nil
}

// StopCamera releases the camera.
func (a *App) StopCamera() domain.Status {
	if a.requireReady() != nil {
		return a.GetStatus()
	}
	a.station.StopCamera()
	return a.station.Status()
}

// CaptureImage returns the current frame as a JPEG data URL.
func (a *App) CaptureImage() (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	return a.station.CaptureImage()
}

// SaveStill writes the current frame under the selected directory.
func (a *App) SaveStill(path string) (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	return a.station.SaveStill(path)
}

// StartRecording begins a recording. With local set the result is saved to
// the selected directory instead of being uploaded.
func (a *App) StartRecording(destinationName string, local bool) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	mode := domain.RecordingModeNetwork
	if local {
		mode = domain.RecordingModeLocal
	}
	if err := a.station.StartRecording(a.ctx, destinationName, mode); err != nil {
		return a.station.Status(), err
	}
	return a.station.Status(), nil
}

// StopRecording stops the recording and returns once every segment has
// settled.
func (a *App) StopRecording() (domain.RecordingResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.RecordingResult{}, err
	}
	return a.station.StopRecording(a.ctx)
}

// SelectDirectory asks the user for a save directory. It reports whether a
// directory was granted.
func (a *App) SelectDirectory() bool {
	if a.requireReady() != nil {
		return false
	}
	dir, err := runtime.OpenDirectoryDialog(a.ctx, runtime.OpenDialogOptions{
		Title:                "Select save directory",
		CanCreateDirectories: true,
	})
	if err != nil {
		a.services.Log.Warn("directory dialog failed", slog.String("error", err.Error()))
		return false
	}
	if strings.TrimSpace(dir) == "" {
		return false
	}
	return a.station.SelectDirectory(dir) == nil
}

// SaveFile writes content to path under the selected directory.
func (a *App) SaveFile(path string, content []byte) (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	return a.station.SaveFile(path, content)
}

func (a *App) GetTheme() string {
	if a.requireReady() != nil {
		return ""
	}
	return a.station.Theme()
}

func (a *App) SetTheme(theme string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.station.SetTheme(theme)
}

func (a *App) GetCameraSettings() domain.CaptureConstraints {
	if a.requireReady() != nil {
		return domain.CaptureConstraints{}
	}
	return a.station.CameraSettings()
}

func (a *App) SaveCameraSettings(constraints domain.CaptureConstraints) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.station.SaveCameraSettings(constraints)
}

// GetWorklist returns today's patients.
func (a *App) GetWorklist() ([]domain.Patient, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.station.Worklist(a.ctx)
}

// GetPatient returns one patient or an error when unknown.
func (a *App) GetPatient(id string) (domain.Patient, error) {
	if err := a.requireReady(); err != nil {
		return domain.Patient{}, err
	}
	patient, ok, err := a.station.Patient(a.ctx, id)
	if err != nil {
		return domain.Patient{}, err
	}
	if !ok {
		return domain.Patient{}, fmt.Errorf("patient %q not found", id)
	}
	return patient, nil
}

// KeyPressed forwards a key event from the frontend. It reports whether the
// key triggered the capture shortcut.
func (a *App) KeyPressed(key string, inTextInput bool) bool {
	if a.requireReady() != nil {
		return false
	}
	return a.station.Shortcuts().HandleKey(key, inTextInput)
}

// GetStatus returns the current station status.
func (a *App) GetStatus() domain.Status {
	if a.station == nil {
		if a.bootErr != nil {
			return domain.Status{Recording: domain.RecordingStatus{State: domain.RecordingStateIdle}, Message: a.bootErr.Error()}
		}
		return domain.Status{Recording: domain.RecordingStatus{State: domain.RecordingStateIdle}}
	}
	return a.station.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	endpoint := a.cfg.Upload.HTTPEndpoint
	if a.cfg.Upload.Transport == config.TransportWebsocket {
		endpoint = a.cfg.Upload.WSEndpoint
	}
	return map[string]string{
		"videoDevice":     a.cfg.Capture.VideoDevice,
		"audioInput":      a.cfg.Capture.AudioInputDevice,
		"uploadTransport": a.cfg.Upload.Transport,
		"uploadEndpoint":  endpoint,
		"segmentInterval": a.cfg.Recording.SegmentInterval.String(),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.station == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) captureShortcut() {
	url, err := a.station.CaptureImage()
	if err != nil {
		if !errors.Is(err, usecase.ErrNoFrame) {
			a.services.Log.Warn("shortcut capture failed", slog.String("error", err.Error()))
		}
		return
	}
	if a.ctx != nil {
		runtime.EventsEmit(a.ctx, eventStill, map[string]string{"dataUrl": url})
	}
}

// SessionStateChanged emits lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.RecordingState, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// SessionError emits backend errors to the UI. Errors that need the user to
// act are also shown as a blocking dialog.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	message := errorMessage(code, detail)
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": message,
		"detail":  detail,
	})

	if blockingError(code) {
		go func() {
			_, _ = runtime.MessageDialog(a.ctx, runtime.MessageDialogOptions{
				Type:    runtime.WarningDialog,
				Title:   message,
				Message: dialogText(code, detail),
			})
		}()
	}
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonCameraStarted:
		return "Camera started"
	case domain.SessionReasonCameraRestarted:
		return "Camera restarted"
	case domain.SessionReasonCameraStopped:
		return "Camera stopped"
	case domain.SessionReasonAudioDisabled:
		return "Camera started without microphone"
	case domain.SessionReasonRecordingStarted:
		return "Recording started"
	case domain.SessionReasonFlushing:
		return "Recording stopped. Finishing uploads..."
	case domain.SessionReasonUploadsSettled:
		return "Recording uploaded"
	case domain.SessionReasonSavedLocally:
		return "Recording saved"
	case domain.SessionReasonLocalSaveFailed:
		return "Recording could not be saved"
	case domain.SessionReasonRecordingFailed:
		return "Recording failed"
	case domain.SessionReasonDirectorySelected:
		return "Save directory selected"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeCameraDenied:
		return "Camera unavailable"
	case domain.ErrorCodeRecorder:
		return "Recorder issue"
	case domain.ErrorCodeDirectoryGrant:
		return "No save directory"
	case domain.ErrorCodeStillCapture:
		return "Image capture failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

func blockingError(code domain.ErrorCode) bool {
	return code == domain.ErrorCodeCameraDenied || code == domain.ErrorCodeDirectoryGrant
}

func dialogText(code domain.ErrorCode, detail string) string {
	if code == domain.ErrorCodeCameraDenied {
		return "Could not access the camera. Check that it is connected and not in use, then try again."
	}
	if detail == "" {
		return errorMessage(code, detail)
	}
	return detail
}
