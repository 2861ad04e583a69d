package bootstrap

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"camclinic/internal/capture"
	"camclinic/internal/config"
	"camclinic/internal/localsave"
	"camclinic/internal/logger"
	"camclinic/internal/ports"
	"camclinic/internal/settings"
	"camclinic/internal/transport/httpupload"
	"camclinic/internal/transport/wsupload"
	"camclinic/internal/usecase"
	"camclinic/internal/worklist"
)

// Services is the assembled runtime graph.
type Services struct {
	Station   *usecase.Station
	Config    config.Config
	Log       *slog.Logger
	LocalSink *localsave.Sink
	Transport ports.UploadTransport
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	settingsDir := cfg.Settings.Dir
	if settingsDir == "" {
		settingsDir, err = settings.DefaultDir()
		if err != nil {
			return Services{}, err
		}
	}
	store, err := settings.Open(settingsDir)
	if err != nil {
		return Services{}, err
	}

	transport := buildTransport(cfg.Upload, log)
	localSink := localsave.NewSink()

	station := usecase.NewStation(
		capture.NewSource(capture.SourceConfig{
			Command:       cfg.Capture.FFmpegCommand,
			InputFormat:   cfg.Capture.VideoInputFormat,
			DefaultDevice: cfg.Capture.VideoDevice,
			AudioFormat:   cfg.Capture.AudioInputFormat,
			AudioDevice:   cfg.Capture.AudioInputDevice,
		}, log),
		capture.NewRecorder(cfg.Capture.FFmpegCommand, log),
		transport,
		localSink,
		store,
		worklist.NewMockProvider(time.Now()),
		eventSink,
		log,
		usecase.Config{
			SegmentInterval: cfg.Recording.SegmentInterval,
			UploadTimeout:   cfg.Upload.Timeout,
		},
	)

	log.Info("station configured",
		slog.String("transport", cfg.Upload.Transport),
		slog.String("video_device", cfg.Capture.VideoDevice),
		slog.String("settings", store.Path()))

	return Services{
		Station:   station,
		Config:    cfg,
		Log:       log,
		LocalSink: localSink,
		Transport: transport,
	}, nil
}

func buildTransport(cfg config.UploadConfig, log *slog.Logger) ports.UploadTransport {
	if cfg.Transport == config.TransportWebsocket {
		return wsupload.New(wsupload.Config{EndpointBase: cfg.WSEndpoint}, log)
	}
	return httpupload.New(httpupload.Config{
		EndpointBase: cfg.HTTPEndpoint,
		Client:       &http.Client{Timeout: cfg.Timeout},
	})
}

// Close releases the transport connection and the granted directory.
func (s Services) Close() error {
	if closer, ok := s.Transport.(io.Closer); ok {
		_ = closer.Close()
	}
	if s.LocalSink != nil {
		return s.LocalSink.Close()
	}
	return nil
}
