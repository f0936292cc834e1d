package repository

import (
	"context"
	"fmt"
	"time"

	"FinForecast/internal/domain/models"
	pkgkafka "FinForecast/pkg/kafka"
)

// batchPublisher is satisfied by *kafka.Producer.
type batchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// VariantSummary is the compact per-variant event published next to the
// full report.
type VariantSummary struct {
	RunID          string             `json:"run_id"`
	Symbol         string             `json:"symbol"`
	Variant        models.Variant     `json:"variant"`
	Best           models.ModelConfig `json:"best"`
	ValidationLoss float64            `json:"validation_loss"`
	Trials         int                `json:"trials"`
	FailedTrials   int                `json:"failed_trials"`
	Metrics        models.Metrics     `json:"metrics"`
	FinishedAt     time.Time          `json:"finished_at"`
}

// KafkaReportPublisher publishes the full report on reportTopic and one
// VariantSummary per variant on summaryTopic, all keyed by run id.
type KafkaReportPublisher struct {
	producer     batchPublisher
	reportTopic  string
	summaryTopic string
}

func NewKafkaReportPublisher(p batchPublisher, reportTopic, summaryTopic string) *KafkaReportPublisher {
	return &KafkaReportPublisher{producer: p, reportTopic: reportTopic, summaryTopic: summaryTopic}
}

func (k *KafkaReportPublisher) Name() string { return "kafka" }

func (k *KafkaReportPublisher) Write(ctx context.Context, r *models.RunReport) error {
	key := []byte(r.RunID)
	if err := k.producer.PublishBatch(ctx, k.reportTopic, []pkgkafka.Message{{Key: key, Value: r}}); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	if k.summaryTopic == "" {
		return nil
	}

	msgs := make([]pkgkafka.Message, 0, len(r.Variants))
	for _, vr := range r.Variants {
		msgs = append(msgs, pkgkafka.Message{Key: key, Value: Summarize(r, vr)})
	}
	if err := k.producer.PublishBatch(ctx, k.summaryTopic, msgs); err != nil {
		return fmt.Errorf("publish summaries: %w", err)
	}
	return nil
}

// Summarize condenses one variant of a report.
func Summarize(r *models.RunReport, vr models.VariantReport) VariantSummary {
	failed := 0
	for _, t := range vr.Trials {
		if !t.OK() {
			failed++
		}
	}
	return VariantSummary{
		RunID:          r.RunID,
		Symbol:         r.Symbol,
		Variant:        vr.Variant,
		Best:           vr.Best.Config,
		ValidationLoss: vr.Best.ValidationLoss,
		Trials:         len(vr.Trials),
		FailedTrials:   failed,
		Metrics:        vr.Metrics,
		FinishedAt:     r.FinishedAt,
	}
}
