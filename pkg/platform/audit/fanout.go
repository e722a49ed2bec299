package audit

import (
	"context"

	id "github.com/taxlien-online/taxlien-nft/pkg/domain"
)

// Appender is the write half of Store, implemented by sinks that cannot
// serve reads (e.g. a Kafka topic).
type Appender interface {
	Append(ctx context.Context, event Event) error
}

// Fanout appends every event to a primary store and any number of extra
// sinks. Reads are served by the primary. A sink failure fails the append;
// the engine treats event emission as part of the operation.
type Fanout struct {
	primary Store
	sinks   []Appender
}

func NewFanout(primary Store, sinks ...Appender) *Fanout {
	return &Fanout{primary: primary, sinks: sinks}
}

func (f *Fanout) Append(ctx context.Context, event Event) error {
	if err := f.primary.Append(ctx, event); err != nil {
		return err
	}
	for _, s := range f.sinks {
		if err := s.Append(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fanout) ListByLien(ctx context.Context, lienID id.LienID) ([]Event, error) {
	return f.primary.ListByLien(ctx, lienID)
}
