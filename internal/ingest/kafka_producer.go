package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/ride-dispatch/internal/models"
)

// OfferEventProducer streams offer lifecycle events to Kafka for the
// standalone audit consumer.
type OfferEventProducer struct {
	writer *kafka.Writer
}

func NewOfferEventProducer(brokers []string, topic string) *OfferEventProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &OfferEventProducer{writer: w}
}

func (p *OfferEventProducer) PublishOfferEvent(kind string, o models.Offer) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev := models.OfferEvent{Kind: kind, Offer: o, At: time.Now()}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(o.ID), Value: b})
}

func (p *OfferEventProducer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
