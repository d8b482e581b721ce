package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"mindmap-backend/domain/events"
)

// PutEvents accepts at most this many entries per call
const batchSize = 10

// API is the subset of the EventBridge client the publisher uses
type API interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher forwards graph events to an EventBridge bus. It implements
// ports.EventPublisher and ports.EventHandler so it can hang off the
// in-process bus as a wildcard subscriber.
type Publisher struct {
	client       API
	eventBusName string
	source       string
	logger       *zap.Logger
}

// NewPublisher creates a publisher. An empty source uses events.SourceBackend.
func NewPublisher(client API, eventBusName, source string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if source == "" {
		source = events.SourceBackend
	}
	return &Publisher{client: client, eventBusName: eventBusName, source: source, logger: logger}
}

// Handle implements ports.EventHandler
func (p *Publisher) Handle(ctx context.Context, event events.DomainEvent) error {
	return p.Publish(ctx, event)
}

// Publish sends one event
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch sends events in chunks of ten
func (p *Publisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	for i := 0; i < len(evts); i += batchSize {
		end := i + batchSize
		if end > len(evts) {
			end = len(evts)
		}
		if err := p.put(ctx, evts[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) put(ctx context.Context, evts []events.DomainEvent) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(evts))
	sent := make([]events.DomainEvent, 0, len(evts))
	for _, event := range evts {
		detail, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("failed to marshal event",
				zap.String("event_type", event.GetEventType()),
				zap.Error(err),
			)
			continue
		}
		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(p.source),
			DetailType:   aws.String(event.GetEventType()),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(event.GetTimestamp()),
			Resources:    []string{fmt.Sprintf("mindmap:session:%s", event.GetAggregateID())},
		})
		sent = append(sent, event)
	}
	if len(entries) == 0 {
		return nil
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return fmt.Errorf("put events: %w", err)
	}

	if out.FailedEntryCount > 0 {
		for i, entry := range out.Entries {
			if entry.ErrorCode != nil && i < len(sent) {
				p.logger.Error("event rejected by EventBridge",
					zap.String("event_type", sent[i].GetEventType()),
					zap.String("error_code", aws.ToString(entry.ErrorCode)),
					zap.String("error_message", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return fmt.Errorf("%d events failed to publish", out.FailedEntryCount)
	}

	p.logger.Debug("events published",
		zap.Int("count", len(entries)),
		zap.String("event_bus", p.eventBusName),
	)
	return nil
}
