package mongo

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/locker-system/internal/core/ports"
)

const (
	minReconnectDelay = time.Second
	maxReconnectDelay = 30 * time.Second
)

// ChangeStreamWatcher forwards writes to the receipts collection, including
// those made by other service instances, to a ChangePublisher. It requires a
// replica set.
type ChangeStreamWatcher struct {
	col       *mongo.Collection
	publisher ports.ChangePublisher
	log       zerolog.Logger
	resume    bson.Raw
}

func NewChangeStreamWatcher(db *mongo.Database, publisher ports.ChangePublisher, log zerolog.Logger) *ChangeStreamWatcher {
	return &ChangeStreamWatcher{
		col:       db.Collection(collectionReceipts),
		publisher: publisher,
		log:       log,
	}
}

type changeDoc struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID primitive.ObjectID `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument *parcelDoc          `bson:"fullDocument"`
	ClusterTime  primitive.Timestamp `bson:"clusterTime"`
}

// toChange maps a change stream document. ok is false for operations that do
// not touch a single parcel (drop, invalidate, ...).
func (c changeDoc) toChange() (ports.Change, bool) {
	var t ports.ChangeType
	switch c.OperationType {
	case "insert":
		t = ports.ChangeCreated
	case "update", "replace":
		t = ports.ChangeUpdated
	case "delete":
		t = ports.ChangeDeleted
	default:
		return ports.Change{}, false
	}

	ch := ports.Change{
		Type:     t,
		ParcelID: c.DocumentKey.ID.Hex(),
		At:       time.Unix(int64(c.ClusterTime.T), 0).UTC(),
	}
	if c.FullDocument != nil {
		ch.OwnerID = c.FullDocument.OwnerID
	}
	return ch, true
}

// Run watches until ctx is cancelled, reconnecting with backoff and resuming
// after the last seen event.
func (w *ChangeStreamWatcher) Run(ctx context.Context) {
	delay := minReconnectDelay
	for {
		err := w.watch(ctx)
		if ctx.Err() != nil {
			return
		}
		w.log.Warn().Err(err).Dur("retry_in", delay).Msg("change stream interrupted")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (w *ChangeStreamWatcher) watch(ctx context.Context) error {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	if w.resume != nil {
		opts.SetResumeAfter(w.resume)
	}

	stream, err := w.col.Watch(ctx, mongo.Pipeline{}, opts)
	if err != nil {
		return err
	}
	defer stream.Close(context.WithoutCancel(ctx))

	w.log.Info().Msg("change stream opened")
	for stream.Next(ctx) {
		var doc changeDoc
		if err := stream.Decode(&doc); err != nil {
			w.log.Warn().Err(err).Msg("undecodable change event")
			continue
		}
		w.resume = stream.ResumeToken()
		if ch, ok := doc.toChange(); ok {
			w.publisher.Publish(ch)
		}
	}
	return stream.Err()
}
