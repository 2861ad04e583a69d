package usecase

import (
	"context"
	"log/slog"

	"camclinic/internal/domain"
	"camclinic/internal/ports"
)

// DeviceEnumerator lists video inputs. Listing is advisory: every failure
// yields an empty list.
type DeviceEnumerator struct {
	source ports.MediaSource
	log    *slog.Logger
}

func NewDeviceEnumerator(source ports.MediaSource, log *slog.Logger) *DeviceEnumerator {
	return &DeviceEnumerator{source: source, log: log}
}

// ListVideoInputs briefly acquires a probe stream so device labels are
// available, releases it, then lists the devices.
func (d *DeviceEnumerator) ListVideoInputs(ctx context.Context) []domain.Device {
	probe, err := d.source.Acquire(ctx, domain.CaptureConstraints{}, false)
	if err != nil {
		d.log.Debug("device probe failed", slog.String("error", err.Error()))
		return []domain.Device{}
	}
	if err := probe.Stop(); err != nil {
		d.log.Debug("device probe stop failed", slog.String("error", err.Error()))
	}
	return d.list(ctx)
}

// ListWithoutProbe lists devices when access is already established by a
// live stream.
func (d *DeviceEnumerator) ListWithoutProbe(ctx context.Context) []domain.Device {
	return d.list(ctx)
}

func (d *DeviceEnumerator) list(ctx context.Context) []domain.Device {
	devices, err := d.source.Devices(ctx)
	if err != nil {
		d.log.Debug("device listing failed", slog.String("error", err.Error()))
		return []domain.Device{}
	}
	if devices == nil {
		return []domain.Device{}
	}
	return devices
}
