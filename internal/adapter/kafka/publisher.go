package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/i474232898/farm-insights/internal/pricing"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// PredictionPublisher appends every computed price prediction to a Kafka
// topic. It implements pricing.Publisher.
type PredictionPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

// NewPredictionPublisher creates a producer for topic. Messages are keyed by
// crop so one crop's predictions stay on one partition.
func NewPredictionPublisher(brokers []string, topic string, logger *zap.Logger) *PredictionPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &PredictionPublisher{writer: w, logger: logger}
}

func (p *PredictionPublisher) PublishPrediction(ctx context.Context, pred pricing.Prediction) error {
	msg, err := serializePrediction(pred)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write prediction for %s: %w", pred.CropName, err)
	}
	p.logger.Debug("published prediction",
		zap.String("crop", pred.CropName),
		zap.Int("year", pred.PredictionYear),
	)
	return nil
}

func (p *PredictionPublisher) Close() error {
	return p.writer.Close()
}

// serializePrediction marshals a Prediction into a Kafka message.
func serializePrediction(pred pricing.Prediction) (kafkago.Message, error) {
	data, err := json.Marshal(pred)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize prediction: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(pred.CropName),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "trend", Value: []byte(pred.Trend)},
			{Key: "prediction_year", Value: []byte(strconv.Itoa(pred.PredictionYear))},
			{Key: "created_at", Value: []byte(pred.CreatedAt.Format(time.RFC3339))},
		},
	}, nil
}
