package broadcast

import (
	"context"
	"errors"

	"github.com/LeonardoBeccarini/crowdsense/internal/model"
	"github.com/LeonardoBeccarini/crowdsense/internal/services/density"
)

// Fanout publishes to every sink; one failing sink does not stop the others.
type Fanout []density.Sink

func (f Fanout) PublishDensity(ctx context.Context, sample model.DensitySample) error {
	var errs []error
	for _, s := range f {
		if err := s.PublishDensity(ctx, sample); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) PublishAlert(ctx context.Context, alert model.Alert) error {
	var errs []error
	for _, s := range f {
		if err := s.PublishAlert(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
