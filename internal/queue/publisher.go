package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/hetulpatel/crossarb/internal/matches"
)

// Sink receives the results of one scan cycle.
type Sink interface {
	Publish(ctx context.Context, summary matches.ScanSummary, opps []*matches.Opportunity) error
}

// Multi fans a cycle out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, summary matches.ScanSummary, opps []*matches.Opportunity) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, summary, opps); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher writes opportunities and cycle summaries to Kafka as JSON.
type Publisher struct {
	opportunities MessageWriter
	summaries     MessageWriter
}

// NewPublisher builds a publisher. A nil summaries writer skips summaries.
func NewPublisher(opportunities, summaries MessageWriter) *Publisher {
	return &Publisher{opportunities: opportunities, summaries: summaries}
}

func (p *Publisher) Publish(ctx context.Context, summary matches.ScanSummary, opps []*matches.Opportunity) error {
	if err := PublishOpportunities(ctx, p.opportunities, opps); err != nil {
		return err
	}
	return PublishSummary(ctx, p.summaries, summary)
}

// PublishOpportunities keys each message by pair id so a consumer sees one
// pair's records in order.
func PublishOpportunities(ctx context.Context, writer MessageWriter, opps []*matches.Opportunity) error {
	if writer == nil || len(opps) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(opps))
	for _, opp := range opps {
		if opp == nil {
			continue
		}
		payload, err := json.Marshal(opp)
		if err != nil {
			return fmt.Errorf("marshal opportunity %s: %w", opp.ID, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(opp.PairID), Value: payload, Time: opp.Timestamp})
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d opportunities: %w", len(msgs), err)
	}
	return nil
}

func PublishSummary(ctx context.Context, writer MessageWriter, summary matches.ScanSummary) error {
	if writer == nil {
		return nil
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary %s: %w", summary.CycleID, err)
	}
	msg := kafka.Message{Key: []byte(summary.CycleID), Value: payload, Time: summary.FinishedAt}
	if err := writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish summary: %w", err)
	}
	return nil
}
