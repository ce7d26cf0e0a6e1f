package workers

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/hetulpatel/crossarb/internal/kafka"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/matches"
)

// Handler processes one published opportunity.
type Handler func(context.Context, *matches.Opportunity) error

// MessageReader is the part of *kafka.Reader a worker needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

type Options struct {
	Workers int
	// MaxAge drops opportunities whose timestamp is older than this when
	// they are read. Zero keeps everything.
	MaxAge time.Duration
	Now    func() time.Time
}

// Run starts consumers in one group and blocks until ctx is done.
func Run(ctx context.Context, brokers []string, topic, group string, opts Options, handler Handler) {
	RunWith(ctx, opts, func() MessageReader {
		return kafka.NewReader(brokers, topic, group)
	}, handler)
}

// RunWith is Run with a custom reader factory.
func RunWith(ctx context.Context, opts Options, newReader func() MessageReader, handler Handler) {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.Workers; i++ {
		w := &worker{id: i, reader: newReader(), handler: handler, opts: opts}
		g.Go(func() error {
			defer w.reader.Close()
			logging.Debugf("[worker %d] started", w.id)
			w.consume(gctx)
			logging.Debugf("[worker %d] stopped after %d opportunities (%d stale, %d failed)", w.id, w.handled, w.stale, w.failed)
			return nil
		})
	}
	_ = g.Wait()
}

type worker struct {
	id      int
	reader  MessageReader
	handler Handler
	opts    Options

	handled, stale, failed int
}

func (w *worker) consume(ctx context.Context) {
	for {
		msg, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Errorf("[worker %d] read: %v", w.id, err)
			continue
		}

		opp, ok := w.decode(msg)
		if !ok || w.handler == nil {
			continue
		}
		if err := w.handler(ctx, opp); err != nil {
			w.failed++
			logging.Errorf("[worker %d] opportunity %s: %v", w.id, opp.ID, err)
			continue
		}
		w.handled++
	}
}

func (w *worker) decode(msg kafkago.Message) (*matches.Opportunity, bool) {
	var opp matches.Opportunity
	if err := json.Unmarshal(msg.Value, &opp); err != nil {
		logging.Errorf("[worker %d] unmarshal (key=%s): %v", w.id, msg.Key, err)
		return nil, false
	}
	if opp.PairID == "" {
		logging.Warnf("[worker %d] opportunity %s has no pair id, skipping", w.id, opp.ID)
		return nil, false
	}
	if w.opts.MaxAge > 0 && !opp.Timestamp.IsZero() && w.opts.Now().Sub(opp.Timestamp) > w.opts.MaxAge {
		w.stale++
		logging.Debugf("[worker %d] opportunity %s is stale (%s)", w.id, opp.ID, opp.Timestamp.Format(time.RFC3339))
		return nil, false
	}
	return &opp, true
}
