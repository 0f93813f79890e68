// Package sink publishes finalized results to Kafka so downstream consumers
// (dashboards, audit pipelines) can ingest fleet command outcomes.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/andrej220/fleetrun/internal/lg"
	"github.com/andrej220/fleetrun/internal/report"
)

// messageWriter is the slice of kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes one message per result, keyed by task UUID.
type Publisher struct {
	writer messageWriter
	topic  string
	log    lg.Logger
}

func NewPublisher(brokers []string, topic string, logger lg.Logger) *Publisher {
	if logger == nil {
		logger = lg.Discard
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
		topic: topic,
		log:   logger,
	}
}

// resultMessage is the wire schema; duration is float seconds like the
// original report format.
type resultMessage struct {
	Server   string  `json:"server"`
	Command  string  `json:"command"`
	Output   string  `json:"output"`
	Stderr   string  `json:"stderr,omitempty"`
	Error    string  `json:"error,omitempty"`
	Success  bool    `json:"success"`
	Duration float64 `json:"duration"`
}

// Publish sends every result of the finalized report. Publishing is
// best-effort relative to the run itself: a broker failure is returned to the
// caller but the report has already been produced.
func (p *Publisher) Publish(ctx context.Context, set report.ReportSet) error {
	msgs := make([]kafka.Message, 0, len(set.Results))
	now := time.Now()
	for _, r := range set.Results {
		r := r // pre-Go 1.22 toolchains reuse the range variable; Key slices its array
		value, err := json.Marshal(resultMessage{
			Server:   r.Server,
			Command:  r.Command,
			Output:   r.Output,
			Stderr:   r.Stderr,
			Error:    r.Error,
			Success:  r.Success,
			Duration: r.Duration.Seconds(),
		})
		if err != nil {
			return fmt.Errorf("marshal result for %s: %w", r.Server, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   r.TaskID[:],
			Value: value,
			Time:  now,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.log.Error("kafka publish failed", lg.String("topic", p.topic), lg.Err(err))
		return fmt.Errorf("publish results: %w", err)
	}
	p.log.Info("results published", lg.String("topic", p.topic), lg.Int("count", len(msgs)))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
