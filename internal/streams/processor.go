// Package streams turns DynamoDB stream records into change notifications and
// runs the cleanup that follows a deleted user profile.
package streams

import (
	"context"
	"errors"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"clinic-booking/internal/changefeed"
	"clinic-booking/internal/domain"
)

type Publisher interface {
	Publish(ctx context.Context, change changefeed.Change) error
}

type ProfileCleaner interface {
	ProfileDeleted(ctx context.Context, userID string) bool
}

type Processor struct {
	publisher Publisher
	cleaner   ProfileCleaner
	log       zerolog.Logger
}

func NewProcessor(publisher Publisher, cleaner ProfileCleaner, log zerolog.Logger) (*Processor, error) {
	if publisher == nil {
		return nil, errors.New("streams: publisher must not be nil")
	}
	if cleaner == nil {
		return nil, errors.New("streams: cleaner must not be nil")
	}
	return &Processor{
		publisher: publisher,
		cleaner:   cleaner,
		log:       log.With().Str("component", "streams").Logger(),
	}, nil
}

// Handle processes one stream batch. Records whose change notification could not
// be published are reported back for retry; profile cleanup failures are not.
func (p *Processor) Handle(ctx context.Context, event events.DynamoDBEvent) (events.DynamoDBEventResponse, error) {
	var resp events.DynamoDBEventResponse
	for _, rec := range event.Records {
		change, ok := ChangeFromRecord(rec)
		if !ok {
			p.log.Warn().Str("event_id", rec.EventID).Str("event", rec.EventName).Msg("skipping unrecognised stream record")
			continue
		}
		if change.Op == changefeed.OpRemove && change.Collection == domain.CollectionUsers {
			p.cleaner.ProfileDeleted(ctx, change.ID)
		}
		if err := p.publisher.Publish(ctx, change); err != nil {
			p.log.Error().Err(err).Str("collection", change.Collection).Str("id", change.ID).Msg("publish change failed")
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.DynamoDBBatchItemFailure{
				ItemIdentifier: rec.Change.SequenceNumber,
			})
		}
	}
	return resp, nil
}

// ChangeFromRecord reads the document key and write kind of a stream record.
func ChangeFromRecord(rec events.DynamoDBEventRecord) (changefeed.Change, bool) {
	var op changefeed.Op
	switch events.DynamoDBOperationType(rec.EventName) {
	case events.DynamoDBOperationTypeInsert:
		op = changefeed.OpInsert
	case events.DynamoDBOperationTypeModify:
		op = changefeed.OpModify
	case events.DynamoDBOperationTypeRemove:
		op = changefeed.OpRemove
	default:
		return changefeed.Change{}, false
	}
	collection, ok := stringKey(rec.Change.Keys, "PK")
	if !ok {
		return changefeed.Change{}, false
	}
	id, ok := stringKey(rec.Change.Keys, "SK")
	if !ok {
		return changefeed.Change{}, false
	}
	return changefeed.Change{
		Collection: collection,
		ID:         id,
		Op:         op,
		At:         rec.Change.ApproximateCreationDateTime.UTC(),
	}, true
}

func stringKey(keys map[string]events.DynamoDBAttributeValue, name string) (string, bool) {
	v, ok := keys[name]
	if !ok || v.DataType() != events.DataTypeString || v.String() == "" {
		return "", false
	}
	return v.String(), true
}
