package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/jfourny/profilescout/internal/crawler"
)

// Fanout emits every record to all configured sinks. A failing sink does not
// stop delivery to the others; the errors are joined.
type Fanout struct {
	sinks []crawler.RecordSink
}

// NewFanout composes sinks into one.
func NewFanout(sinks ...crawler.RecordSink) *Fanout {
	return &Fanout{sinks: sinks}
}

// Emit delivers rec to every sink.
func (f *Fanout) Emit(ctx context.Context, rec crawler.ProfileRecord) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Emit(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("fanout emit: %w", err))
		}
	}
	return errors.Join(errs...)
}
