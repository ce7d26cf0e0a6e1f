package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	DefaultBroker           = "kafka-broker:9092"
	DefaultOpportunityTopic = "arb.opportunities"
	DefaultSummaryTopic     = "arb.scan_summaries"
)

// Brokers splits a comma-separated broker list, falling back to
// DefaultBroker when it is empty.
func Brokers(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		raw = DefaultBroker
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Topic returns name, or fallback when name is blank.
func Topic(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}

// opportunityPartitions spreads pairs across consumers of one sink group;
// the Hash balancer keeps each pair on a single partition.
const opportunityPartitions = 3

var errNoBrokers = errors.New("kafka: no brokers configured")

// WaitForBroker blocks until any configured broker accepts a connection.
// The scanner and the sink both call it at startup so a broker that is
// still booting does not fail the first cycle.
func WaitForBroker(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return errNoBrokers
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		conn, err := dialAny(ctx, brokers)
		if err == nil {
			conn.Close()
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for broker: %w (last error: %v)", ctx.Err(), err)
		case <-ticker.C:
		}
	}
}

// EnsureTopics creates the opportunity and summary topics on the cluster
// controller. Topics that already exist are left alone.
func EnsureTopics(ctx context.Context, brokers []string, topics ...string) error {
	if len(brokers) == 0 {
		return errNoBrokers
	}

	conn, err := dialAny(ctx, brokers)
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("get controller: %w", err)
	}
	ctrlConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer ctrlConn.Close()

	configs := make([]kafka.TopicConfig, 0, len(topics))
	for _, t := range topics {
		configs = append(configs, kafka.TopicConfig{
			Topic:             t,
			NumPartitions:     opportunityPartitions,
			ReplicationFactor: 1,
		})
	}
	if err := ctrlConn.CreateTopics(configs...); err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("create topics %s: %w", strings.Join(topics, ","), err)
	}
	return nil
}

func dialAny(ctx context.Context, brokers []string) (*kafka.Conn, error) {
	var errs []error
	for _, b := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", b)
		if err == nil {
			return conn, nil
		}
		errs = append(errs, fmt.Errorf("dial %s: %w", b, err))
	}
	return nil, errors.Join(errs...)
}

// NewWriter hashes on the message key so every record of one pair lands on
// the same partition.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:           brokers,
		Topic:             topic,
		GroupID:           group,
		MinBytes:          1,
		MaxBytes:          10e6,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
		CommitInterval:    time.Second,
		StartOffset:       kafka.FirstOffset,
	})
}
