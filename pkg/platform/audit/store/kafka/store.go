// Package kafka publishes audit events to a Kafka topic as JSON records keyed
// by subject, so every event of one application lands on one partition.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "underwriter/pkg/platform/audit"
)

// payload is the wire format of an audit record.
type payload struct {
	ID             string `json:"id"`
	Category       string `json:"category"`
	Timestamp      string `json:"timestamp"`
	Action         string `json:"action"`
	Subject        string `json:"subject"`
	RuleSet        string `json:"rule_set,omitempty"`
	RuleSetVersion string `json:"rule_set_version,omitempty"`
	Decision       string `json:"decision,omitempty"`
	Basis          string `json:"basis,omitempty"`
	Reason         string `json:"reason,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
	TraceRef       string `json:"trace_ref,omitempty"`
}

// Producer is the part of *kgo.Client the store needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Store implements audit.Store by producing one record per event.
type Store struct {
	producer Producer
	topic    string
}

func New(producer Producer, topic string) *Store {
	return &Store{producer: producer, topic: topic}
}

// Append produces the event and waits for the broker acknowledgement.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	record, err := s.record(event)
	if err != nil {
		return err
	}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func (s *Store) record(event audit.Event) (*kgo.Record, error) {
	value, err := json.Marshal(payload{
		ID:             event.ID,
		Category:       string(audit.AuditEvent(event.Action).Category()),
		Timestamp:      event.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:         event.Action,
		Subject:        event.Subject,
		RuleSet:        event.RuleSet,
		RuleSetVersion: event.RuleSetVersion,
		Decision:       event.Decision,
		Basis:          event.Basis,
		Reason:         event.Reason,
		RequestID:      event.RequestID,
		TraceRef:       event.TraceRef,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal audit payload: %w", err)
	}
	return &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Subject),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
		},
		Timestamp: event.Timestamp,
	}, nil
}

// Decode parses a record produced by Store back into an event.
func Decode(value []byte) (audit.Event, error) {
	var p payload
	if err := json.Unmarshal(value, &p); err != nil {
		return audit.Event{}, fmt.Errorf("decode audit payload: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return audit.Event{}, fmt.Errorf("decode audit timestamp: %w", err)
	}
	return audit.Event{
		ID:             p.ID,
		Category:       audit.EventCategory(p.Category),
		Timestamp:      ts,
		Action:         p.Action,
		Subject:        p.Subject,
		RuleSet:        p.RuleSet,
		RuleSetVersion: p.RuleSetVersion,
		Decision:       p.Decision,
		Basis:          p.Basis,
		Reason:         p.Reason,
		RequestID:      p.RequestID,
		TraceRef:       p.TraceRef,
	}, nil
}
