package domain

import "time"

// RecordingState models the recording lifecycle.
type RecordingState string

const (
	RecordingStateIdle      RecordingState = "idle"
	RecordingStateRecording RecordingState = "recording"
	RecordingStateStopping  RecordingState = "stopping"
)

// RecordingMode selects where recorded segments go.
type RecordingMode string

const (
	RecordingModeNetwork RecordingMode = "network"
	RecordingModeLocal   RecordingMode = "local"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonCameraStarted     SessionStateReason = "camera_started"
	SessionReasonCameraRestarted   SessionStateReason = "camera_restarted"
	SessionReasonCameraStopped     SessionStateReason = "camera_stopped"
	SessionReasonAudioDisabled     SessionStateReason = "audio_disabled"
	SessionReasonRecordingStarted  SessionStateReason = "recording_started"
	SessionReasonFlushing          SessionStateReason = "flushing"
	SessionReasonUploadsSettled    SessionStateReason = "uploads_settled"
	SessionReasonSavedLocally      SessionStateReason = "saved_locally"
	SessionReasonLocalSaveFailed   SessionStateReason = "local_save_failed"
	SessionReasonRecordingFailed   SessionStateReason = "recording_failed"
	SessionReasonDirectorySelected SessionStateReason = "directory_selected"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup        ErrorCode = "startup"
	ErrorCodeCameraDenied   ErrorCode = "camera_denied"
	ErrorCodeRecorder       ErrorCode = "recorder"
	ErrorCodeDirectoryGrant ErrorCode = "directory_grant"
	ErrorCodeStillCapture   ErrorCode = "still_capture"
)

// CaptureConstraints are the hints used to acquire a camera stream.
// Zero values mean "no preference".
type CaptureConstraints struct {
	DeviceID  string `json:"deviceId,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	FrameRate int    `json:"frameRate,omitempty"`
}

// Device is a selectable video input.
type Device struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Segment is one immutable chunk of encoded recording output. Order is
// implied by emission order; Index is informational only and is never sent.
type Segment struct {
	Index int
	Data  []byte
	Final bool
}

// RecordingResult is returned once a recording has fully stopped.
type RecordingResult struct {
	Mode            RecordingMode `json:"mode"`
	DestinationName string        `json:"destinationName"`
	MimeType        string        `json:"mimeType"`
	Segments        int           `json:"segments"`
	Bytes           int64         `json:"bytes"`
	FailedUploads   int           `json:"failedUploads"`
	ArtifactPath    string        `json:"artifactPath,omitempty"`
}

// RecordingStatus summarizes the recording engine.
type RecordingStatus struct {
	State           RecordingState `json:"state"`
	Mode            RecordingMode  `json:"mode,omitempty"`
	DestinationName string         `json:"destinationName,omitempty"`
	MimeType        string         `json:"mimeType,omitempty"`
	Segments        int            `json:"segments"`
}

// Status summarizes the station for the UI.
type Status struct {
	CameraActive bool            `json:"cameraActive"`
	AudioEnabled bool            `json:"audioEnabled"`
	Recording    RecordingStatus `json:"recording"`
	DirectorySet bool            `json:"directorySet"`
	Message      string          `json:"message,omitempty"`
}

// Patient is a worklist entry.
type Patient struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Age         int       `json:"age"`
	Gender      string    `json:"gender"`
	ServiceName string    `json:"serviceName"`
	Status      string    `json:"status"`
	CheckInTime time.Time `json:"checkInTime"`
}

// Worklist patient statuses.
const (
	PatientStatusWaiting   = "Waiting"
	PatientStatusExamining = "Examining"
	PatientStatusDone      = "Done"
)
