package listener

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/farm2markets/xprestrack/internal/broker"
	"github.com/farm2markets/xprestrack/internal/inventory"
	"github.com/farm2markets/xprestrack/internal/inventory/dto"
	"github.com/farm2markets/xprestrack/internal/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// InventoryListener turns outbound requests from handheld scanners into sales.
type InventoryListener struct {
	consumer MessageReader
	uc       inventory.UseCase
	logger   logger.ZapLogger
	backoff  time.Duration
}

func NewInventoryListener(consumer MessageReader, uc inventory.UseCase, logger logger.ZapLogger) *InventoryListener {
	return &InventoryListener{
		consumer: consumer,
		uc:       uc,
		logger:   logger,
		backoff:  time.Second,
	}
}

func (l *InventoryListener) Start(ctx context.Context) {
	l.logger.Info("Starting Inventory Kafka Listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping Inventory Kafka Listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(l.backoff)
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

type OutboundRequestedEvent struct {
	EventID   string                 `json:"event_id"`
	EventType string                 `json:"event_type"`
	Payload   OutboundRequestPayload `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

type OutboundRequestPayload struct {
	LotID         string         `json:"lot_id"`
	WeightOut     float64        `json:"weight_out"`
	Pieces        int            `json:"pieces"`
	Client        string         `json:"client"`
	ProposedPrice float64        `json:"proposed_price"`
	Notes         string         `json:"notes"`
	ProcessedBy   string         `json:"processed_by"`
	Metadata      map[string]any `json:"metadata"`
}

func (l *InventoryListener) processMessage(ctx context.Context, value []byte) {
	var event OutboundRequestedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	if event.EventType != broker.EventOutboundRequested {
		return
	}

	p := event.Payload
	l.logger.Info("Processing outbound request",
		zap.String("event_id", event.EventID),
		zap.String("lot_id", p.LotID),
	)

	res, err := l.uc.RecordOutbound(ctx, &dto.OutboundInput{
		LotID:         p.LotID,
		WeightOut:     p.WeightOut,
		Pieces:        p.Pieces,
		Client:        p.Client,
		ProposedPrice: p.ProposedPrice,
		Notes:         p.Notes,
		ProcessedBy:   p.ProcessedBy,
		Metadata:      p.Metadata,
	})
	if err != nil {
		fields := []zap.Field{
			zap.String("event_id", event.EventID),
			zap.String("lot_id", p.LotID),
			zap.Error(err),
		}
		// rejected requests will never succeed on replay
		if errors.Is(err, apperr.ErrValidation) || errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrInsufficientStock) {
			l.logger.Warn("Outbound request rejected", fields...)
			return
		}
		l.logger.Error("Failed to record outbound request", fields...)
		return
	}

	l.logger.Info("Outbound request recorded",
		zap.String("event_id", event.EventID),
		zap.String("sale_id", res.Sale.SaleID),
		zap.Float64("remaining", res.RemainingStock),
	)
}
