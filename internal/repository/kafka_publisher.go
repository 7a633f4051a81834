package repository

import (
	"context"
	"fmt"
	"time"

	"TapeHeat/internal/domain/models"
	pkgkafka "TapeHeat/pkg/kafka"
	applogger "TapeHeat/pkg/logger"
)

// KafkaSignalPublisher fans accepted signals out to the alert-evaluation
// layer over Kafka. Messages are keyed by ticker with the hash balancer so a
// ticker's alerts stay ordered within a partition.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	l        *applogger.Logger
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

// SetLogger injects a structured logger.
func (p *KafkaSignalPublisher) SetLogger(l *applogger.Logger) { p.l = l }

// alertPayload is the wire shape consumed downstream.
type alertPayload struct {
	ID        string                `json:"id"`
	Type      models.SignalType     `json:"type"`
	Ticker    string                `json:"ticker"`
	Price     float64               `json:"price"`
	Time      time.Time             `json:"time"`
	Severity  models.Severity       `json:"severity"`
	Details   models.SignalDetails  `json:"details"`
	Score     int                   `json:"score"`
	Channel   models.Channel        `json:"channel"`
	Breakdown []models.Contribution `json:"breakdown"`
}

// Publish sends one scored signal.
func (p *KafkaSignalPublisher) Publish(ctx context.Context, s *models.Signal, r *models.HeatResult) error {
	payload := alertPayload{
		ID:        s.ID,
		Type:      s.Type,
		Ticker:    s.Ticker,
		Price:     s.Price,
		Time:      s.Time,
		Severity:  s.Severity,
		Details:   s.Details,
		Score:     r.Score,
		Channel:   r.Channel,
		Breakdown: r.Breakdown,
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(s.Ticker), payload); err != nil {
		if p.l != nil {
			p.l.Error("kafka publish error",
				applogger.String("ticker", s.Ticker),
				applogger.String("type", string(s.Type)),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("publish signal: %w", err)
	}
	return nil
}

// Close closes the underlying producer.
func (p *KafkaSignalPublisher) Close() error {
	return p.producer.Close()
}
