package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Transport names accepted by CAMCLINIC_UPLOAD_TRANSPORT.
const (
	TransportHTTP      = "http"
	TransportWebsocket = "ws"
)

// Config stores runtime configuration for the capture station.
type Config struct {
	Capture   CaptureConfig
	Upload    UploadConfig
	Recording RecordingConfig
	Log       LogConfig
	Settings  SettingsConfig
}

type CaptureConfig struct {
	FFmpegCommand    string
	VideoInputFormat string
	VideoDevice      string
	AudioInputFormat string
	AudioInputDevice string
}

type UploadConfig struct {
	Transport    string
	HTTPEndpoint string
	WSEndpoint   string
	// Timeout bounds one delivery. Zero leaves an issued delivery to settle
	// on its own so the sink never sees segments out of order.
	Timeout      time.Duration
}

type RecordingConfig struct {
	SegmentInterval time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type SettingsConfig struct {
	// Dir is empty when the per-user default should be used.
	Dir string
}

// ServerConfig configures the append sink server.
type ServerConfig struct {
	Port      string
	UploadDir string
	Log       LogConfig
}

// Load resolves station configuration from an optional .env file,
// environment variables and defaults.
func Load() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Capture: CaptureConfig{
			FFmpegCommand:    envOrDefault("CAMCLINIC_FFMPEG_COMMAND", "ffmpeg"),
			VideoInputFormat: envOrDefault("CAMCLINIC_VIDEO_INPUT_FORMAT", "v4l2"),
			VideoDevice:      envOrDefault("CAMCLINIC_VIDEO_DEVICE", "/dev/video0"),
			AudioInputFormat: envOrDefault("CAMCLINIC_AUDIO_INPUT_FORMAT", "pulse"),
			AudioInputDevice: envOrDefault("CAMCLINIC_AUDIO_INPUT_DEVICE", "default"),
		},
		Upload: UploadConfig{
			Transport:    strings.ToLower(envOrDefault("CAMCLINIC_UPLOAD_TRANSPORT", TransportHTTP)),
			HTTPEndpoint: envOrDefault("CAMCLINIC_UPLOAD_ENDPOINT", "http://localhost:8080/api/video/append"),
			WSEndpoint:   envOrDefault("CAMCLINIC_UPLOAD_WS_ENDPOINT", "ws://localhost:8080/api/video/stream"),
			Timeout:      time.Duration(envOrDefaultInt("CAMCLINIC_UPLOAD_TIMEOUT_MS", 0)) * time.Millisecond,
		},
		Recording: RecordingConfig{
			SegmentInterval: time.Duration(envOrDefaultInt("CAMCLINIC_SEGMENT_INTERVAL_MS", 1000)) * time.Millisecond,
		},
		Log: LogConfig{
			Level:  envOrDefault("CAMCLINIC_LOG_LEVEL", "info"),
			Format: envOrDefault("CAMCLINIC_LOG_FORMAT", "text"),
		},
		Settings: SettingsConfig{
			Dir: strings.TrimSpace(os.Getenv("CAMCLINIC_SETTINGS_DIR")),
		},
	}

	if cfg.Upload.Transport != TransportWebsocket {
		cfg.Upload.Transport = TransportHTTP
	}
	if cfg.Upload.Timeout < 0 {
		cfg.Upload.Timeout = 0
	}
	if cfg.Recording.SegmentInterval < 100*time.Millisecond {
		cfg.Recording.SegmentInterval = time.Second
	}

	return cfg, nil
}

// LoadServer resolves the append sink server configuration.
func LoadServer() (ServerConfig, error) {
	if err := loadDotEnv(); err != nil {
		return ServerConfig{}, err
	}

	cfg := ServerConfig{
		Port:      envOrDefault("PORT", "8080"),
		UploadDir: envOrDefault("UPLOAD_DIR", "./uploads"),
		Log: LogConfig{
			Level:  envOrDefault("LOG_LEVEL", "info"),
			Format: envOrDefault("LOG_FORMAT", "json"),
		},
	}
	if port, err := strconv.Atoi(cfg.Port); err != nil || port <= 0 || port > 65535 {
		cfg.Port = "8080"
	}
	return cfg, nil
}

// loadDotEnv reads .env from the working directory when present. Variables
// already set in the environment win.
func loadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
