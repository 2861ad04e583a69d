package usecase

import (
	"errors"
	"log/slog"

	"camclinic/internal/domain"
	"camclinic/internal/ports"
)

var ErrNoDirectoryGrant = domain.ErrNoDirectoryGrant

type artifactFinalizer struct {
	local  ports.LocalSaveSink
	events ports.EventSink
	log    *slog.Logger
}

func newArtifactFinalizer(local ports.LocalSaveSink, events ports.EventSink, log *slog.Logger) artifactFinalizer {
	return artifactFinalizer{local: local, events: events, log: log}
}

// Ready reports ErrNoDirectoryGrant, with a notice, while nothing is granted.
func (f artifactFinalizer) Ready() error {
	if f.local == nil || !f.local.Granted() {
		f.events.SessionError(domain.ErrorCodeDirectoryGrant, "Please select a directory first.")
		return ErrNoDirectoryGrant
	}
	return nil
}

// Finalize writes the accumulated recording as one artifact.
func (f artifactFinalizer) Finalize(destination string, content []byte) (string, domain.SessionStateReason, error) {
	if err := f.Ready(); err != nil {
		return "", domain.SessionReasonLocalSaveFailed, err
	}

	path, err := f.local.Save(destination, content)
	if errors.Is(err, ErrNoDirectoryGrant) {
		f.events.SessionError(domain.ErrorCodeDirectoryGrant, "Please select a directory first.")
	}
	if err != nil {
		f.log.Error("local save failed",
			slog.String("destination", destination),
			slog.Int("bytes", len(content)),
			slog.String("error", err.Error()))
		return "", domain.SessionReasonLocalSaveFailed, err
	}

	f.log.Info("recording saved locally", slog.String("path", path), slog.Int("bytes", len(content)))
	return path, domain.SessionReasonSavedLocally, nil
}
