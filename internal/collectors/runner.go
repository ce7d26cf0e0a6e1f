package collectors

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hetulpatel/crossarb/internal/logging"
)

// Listing is one venue's contribution to a scan cycle.
type Listing struct {
	Venue  Venue
	Events []Event
}

// FetchAll lists markets from every collector concurrently. A failing venue
// fails the whole fetch: a cycle with one side missing cannot find pairs.
func FetchAll(ctx context.Context, opts FetchOptions, collectors ...Collector) ([]Listing, error) {
	out := make([]Listing, len(collectors))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range collectors {
		g.Go(func() error {
			events, err := c.Fetch(gctx, opts)
			if err != nil {
				return fmt.Errorf("%s fetch: %w", c.Name(), err)
			}
			logging.Debugf("[%s] fetched %d events", c.Name(), len(events))
			out[i] = Listing{Venue: c.Venue(), Events: events}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
