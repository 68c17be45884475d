package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/locker-system/internal/core/domain"
	"github.com/99minutos/locker-system/internal/core/ports"
)

const (
	collectionReceipts = "receipts"
	// lockerHoldIndex is a unique partial index over locker_hold. The field is
	// present only while a COD parcel is active, so the index admits at most
	// one active parcel per locker.
	lockerHoldIndex = "active_locker_hold"
)

// ParcelRepository implements ports.ParcelRepository on the receipts collection.
type ParcelRepository struct {
	col     *mongo.Collection
	timeout time.Duration
}

func NewParcelRepository(db *mongo.Database, timeout time.Duration) *ParcelRepository {
	return &ParcelRepository{
		col:     db.Collection(collectionReceipts),
		timeout: timeout,
	}
}

type parcelDoc struct {
	ID             primitive.ObjectID `bson:"_id"`
	TrackingNumber string             `bson:"tracking_number"`
	OwnerID        string             `bson:"owner_id"`
	Kind           string             `bson:"kind"`
	LockerNumber   int                `bson:"locker_number,omitempty"`
	LockerHold     *int               `bson:"locker_hold,omitempty"`
	Status         string             `bson:"status"`
	CreatedAt      time.Time          `bson:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at"`
}

func toDoc(p *domain.Parcel, oid primitive.ObjectID) parcelDoc {
	doc := parcelDoc{
		ID:             oid,
		TrackingNumber: p.TrackingNumber,
		OwnerID:        p.OwnerID,
		Kind:           string(p.Kind),
		LockerNumber:   p.LockerNumber,
		Status:         string(p.Status),
	}
	if p.HoldsLocker() {
		hold := p.LockerNumber
		doc.LockerHold = &hold
	}
	return doc
}

func (d parcelDoc) toDomain() *domain.Parcel {
	return &domain.Parcel{
		ID:             d.ID.Hex(),
		TrackingNumber: d.TrackingNumber,
		OwnerID:        d.OwnerID,
		Kind:           domain.ParcelKind(d.Kind),
		LockerNumber:   d.LockerNumber,
		Status:         domain.ParcelStatus(d.Status),
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
}

// Insert stores a new parcel with server-assigned timestamps in one
// round-trip. The id is generated client-side so that a retried insert whose
// first attempt landed is recognised as a success.
func (r *ParcelRepository) Insert(ctx context.Context, p *domain.Parcel) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if p.ID == "" {
		p.ID = primitive.NewObjectID().Hex()
	}
	oid, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		return fmt.Errorf("insert parcel: %w: malformed id", domain.ErrInvalidInput)
	}

	in := toDoc(p, oid)
	fields := bson.M{
		"tracking_number": in.TrackingNumber,
		"owner_id":        in.OwnerID,
		"kind":            in.Kind,
		"status":          in.Status,
	}
	if in.LockerNumber > 0 {
		fields["locker_number"] = in.LockerNumber
	}
	if in.LockerHold != nil {
		fields["locker_hold"] = *in.LockerHold
	}

	// Stored parcels always carry created_at, so the filter never matches one;
	// a taken id makes the upsert fail on _id instead.
	var doc parcelDoc
	err = r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "created_at": bson.M{"$exists": false}},
		bson.M{
			"$setOnInsert": fields,
			"$currentDate": bson.M{"created_at": true, "updated_at": true},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		*p = *doc.toDomain()
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		if existing, ferr := r.FindByID(ctx, p.ID); ferr == nil {
			*p = *existing
			return nil
		}
		if strings.Contains(err.Error(), lockerHoldIndex) {
			return fmt.Errorf("insert parcel: %w: locker %d", domain.ErrLockerConflict, p.LockerNumber)
		}
		return fmt.Errorf("insert parcel: %w", err)
	}
	return storeError("insert parcel", err)
}

// FindByID retrieves a parcel by its primary id.
func (r *ParcelRepository) FindByID(ctx context.Context, id string) (*domain.Parcel, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrParcelNotFound
	}

	var doc parcelDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrParcelNotFound
		}
		return nil, storeError("find parcel", err)
	}
	return doc.toDomain(), nil
}

// ActiveLockers returns the lockers held by active COD parcels.
func (r *ParcelRepository) ActiveLockers(ctx context.Context) ([]int, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	cur, err := r.col.Find(ctx,
		bson.M{"locker_hold": bson.M{"$exists": true}},
		options.Find().SetProjection(bson.M{"locker_hold": 1}),
	)
	if err != nil {
		return nil, storeError("active lockers", err)
	}

	var docs []struct {
		LockerHold int `bson:"locker_hold"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeError("active lockers", err)
	}

	lockers := make([]int, 0, len(docs))
	for _, d := range docs {
		lockers = append(lockers, d.LockerHold)
	}
	return lockers, nil
}

// UpdateStatus sets the status only if the stored status is still from.
// Leaving the active states drops locker_hold in the same write.
func (r *ParcelRepository) UpdateStatus(ctx context.Context, id string, from, to domain.ParcelStatus) (*domain.Parcel, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrParcelNotFound
	}

	update := bson.M{
		"$set":         bson.M{"status": string(to)},
		"$currentDate": bson.M{"updated_at": true},
	}
	if !to.Active() {
		update["$unset"] = bson.M{"locker_hold": ""}
	}

	var doc parcelDoc
	err = r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "status": string(from)},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, ferr := r.FindByID(ctx, id); ferr != nil {
			return nil, ferr
		}
		return nil, domain.ErrStatusConflict
	}
	if err != nil {
		return nil, storeError("update parcel status", err)
	}
	return doc.toDomain(), nil
}

// UpdateTrackingNumber replaces the tracking number.
func (r *ParcelRepository) UpdateTrackingNumber(ctx context.Context, id, trackingNumber string) (*domain.Parcel, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrParcelNotFound
	}

	var doc parcelDoc
	err = r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{
			"$set":         bson.M{"tracking_number": trackingNumber},
			"$currentDate": bson.M{"updated_at": true},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrParcelNotFound
	}
	if err != nil {
		return nil, storeError("update parcel", err)
	}
	return doc.toDomain(), nil
}

// Delete removes a parcel. Its locker_hold goes with it.
func (r *ParcelRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrParcelNotFound
	}

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return storeError("delete parcel", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrParcelNotFound
	}
	return nil
}

// List returns parcels matching filter, newest first.
func (r *ParcelRepository) List(ctx context.Context, f ports.ListParcelsFilter) ([]*domain.Parcel, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{}
	if f.OwnerID != "" {
		filter["owner_id"] = f.OwnerID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Kind != "" {
		filter["kind"] = f.Kind
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeError("list parcels", err)
	}

	var docs []parcelDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeError("list parcels", err)
	}

	parcels := make([]*domain.Parcel, 0, len(docs))
	for _, d := range docs {
		parcels = append(parcels, d.toDomain())
	}
	return parcels, nil
}

// EnsureIndexes creates necessary indexes on the receipts collection.
func (r *ParcelRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{
			Keys: bson.D{{Key: "locker_hold", Value: 1}},
			Options: options.Index().
				SetName(lockerHoldIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"locker_hold": bson.M{"$exists": true}}),
		},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
