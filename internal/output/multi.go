package output

import (
	"context"
	"errors"
	"matrusp-crawler/internal/scrapers/jupiter"
)

// Multi writes to every sink in order, a failing sink does not stop the
// others.
type Multi []jupiter.Sink

func (m Multi) WriteCampi(ctx context.Context, catalog *jupiter.Catalog) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.WriteCampi(ctx, catalog))
	}
	return errors.Join(errs...)
}

func (m Multi) WriteSubject(ctx context.Context, course jupiter.CourseInfo) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.WriteSubject(ctx, course))
	}
	return errors.Join(errs...)
}

func (m Multi) WriteDataset(ctx context.Context, courses []jupiter.CourseInfo) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.WriteDataset(ctx, courses))
	}
	return errors.Join(errs...)
}
