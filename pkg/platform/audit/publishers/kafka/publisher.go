// Package kafka ships audit events to a Kafka topic. The topic is the
// transport for downstream compliance consumers; reads are not served here.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "github.com/taxlien-online/taxlien-nft/pkg/platform/audit"
)

// Publisher produces audit events to a single topic, keyed by lien id so
// per-lien ordering is preserved across partitions.
type Publisher struct {
	client *kgo.Client
	topic  string
}

// New connects to the brokers and ensures the topic exists.
func New(ctx context.Context, brokers []string, topic string) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure topic %q: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("ensure topic %q: %w", topic, resp.Err)
	}

	return &Publisher{client: client, topic: topic}, nil
}

// Append produces the event synchronously. A failed produce fails the
// operation that emitted the event; the engine does not retry internally.
func (p *Publisher) Append(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(toWire(event))
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Value: value,
	}
	if event.HasLien {
		record.Key = []byte(event.LienID.String())
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.client.Close()
}

// wireEvent is the JSON layout on the topic. Kept separate from audit.Event
// so the internal struct can evolve without breaking consumers.
type wireEvent struct {
	Category      string  `json:"category"`
	Timestamp     int64   `json:"timestamp"`
	Action        string  `json:"action"`
	RequestID     string  `json:"request_id,omitempty"`
	LienID        *uint64 `json:"lien_id,omitempty"`
	Investor      string  `json:"investor,omitempty"`
	ParcelID      string  `json:"parcel_id,omitempty"`
	FaceAmount    uint64  `json:"face_amount,omitempty"`
	APR           uint16  `json:"apr,omitempty"`
	OldStatus     string  `json:"old_status,omitempty"`
	NewStatus     string  `json:"new_status,omitempty"`
	Payout        uint64  `json:"payout,omitempty"`
	Returns       uint64  `json:"returns,omitempty"`
	PropertyValue uint64  `json:"property_value,omitempty"`
}

func toWire(e audit.Event) wireEvent {
	investor := ""
	if !e.Investor.IsZero() {
		investor = e.Investor.String()
	}
	var lienID *uint64
	if e.HasLien {
		v := uint64(e.LienID)
		lienID = &v
	}
	return wireEvent{
		Category:      string(e.Category),
		Timestamp:     e.Timestamp.Unix(),
		Action:        e.Action,
		RequestID:     e.RequestID,
		LienID:        lienID,
		Investor:      investor,
		ParcelID:      e.ParcelID,
		FaceAmount:    e.FaceAmount,
		APR:           e.APR,
		OldStatus:     e.OldStatus,
		NewStatus:     e.NewStatus,
		Payout:        e.Payout,
		Returns:       e.Returns,
		PropertyValue: e.PropertyValue,
	}
}
