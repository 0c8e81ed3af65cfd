package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "villabook/internal/bookings/errors"
	"villabook/pkg/config"
	mongotx "villabook/pkg/db/mongo"
	"villabook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

// BookingFilter narrows list and count queries. Zero values mean "no filter".
type BookingFilter struct {
	AgentID string
	Status  string
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindAll(ctx context.Context, filter BookingFilter, limit int, offset int64) ([]*model.Booking, error)
	Count(ctx context.Context, filter BookingFilter) (int64, error)
	FindLive(ctx context.Context) ([]*model.Booking, error)
	Update(ctx context.Context, id string, booking *model.Booking) (*mongo.UpdateResult, error)
	UpdateStatus(ctx context.Context, id string, status string, rejectionReason string) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, from, to *time.Time) (*model.BookingStats, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// When inside a transaction (SessionContext), returns the original context
// unchanged with a no-op cancel function, as wrapping a SessionContext would
// break transaction semantics.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	booking.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindAll(ctx context.Context, filter BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_date", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, buildListFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) Count(ctx context.Context, filter BookingFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildListFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	return count, nil
}

// FindLive returns every booking that counts toward availability, i.e. all
// bookings whose status is not rejected. The conflict engine always works
// over this set, re-fetched per request.
func (r *mongoBookingRepository) FindLive(ctx context.Context) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"status": bson.M{"$ne": model.StatusRejected}}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find live bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode live bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) Update(ctx context.Context, id string, booking *model.Booking) (*mongo.UpdateResult, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"guest_name":   booking.GuestName,
			"phone_number": booking.PhoneNumber,
			"adults":       booking.Adults,
			"children":     booking.Children,
			"guest_count":  booking.GuestCount,
			"start_date":   booking.StartDate,
			"end_date":     booking.EndDate,
			"duration":     booking.Duration,
			"amount":       booking.Amount,
			"details":      booking.Details,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}

	if result.MatchedCount == 0 {
		return nil, bookingserrors.ErrNotFound
	}

	return result, nil
}

func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, id string, status string, rejectionReason string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"status":           status,
			"rejection_reason": rejectionReason,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	if result.MatchedCount == 0 {
		return bookingserrors.ErrNotFound
	}

	return nil
}

func (r *mongoBookingRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}

	if result.DeletedCount == 0 {
		return bookingserrors.ErrNotFound
	}

	return nil
}

// Stats aggregates booking counts and amounts, optionally restricted to a
// created-at window.
func (r *mongoBookingRepository) Stats(ctx context.Context, from, to *time.Time) (*model.BookingStats, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	match := bson.M{}
	if from != nil || to != nil {
		window := bson.M{}
		if from != nil {
			window["$gte"] = *from
		}
		if to != nil {
			window["$lt"] = *to
		}
		match["created_at"] = window
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$facet", Value: bson.M{
			"by_status": bson.A{
				bson.M{"$group": bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}},
			},
			"by_rental_type": bson.A{
				bson.M{"$group": bson.M{
					"_id":    "$rental_type",
					"count":  bson.M{"$sum": 1},
					"amount": bson.M{"$sum": "$amount"},
				}},
			},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate booking stats: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		ByStatus []struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		} `bson:"by_status"`
		ByRentalType []struct {
			ID     string  `bson:"_id"`
			Count  int64   `bson:"count"`
			Amount float64 `bson:"amount"`
		} `bson:"by_rental_type"`
	}
	if err = cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode booking stats: %w", err)
	}

	stats := &model.BookingStats{
		ByStatus:     map[string]int64{},
		ByRentalType: map[string]int64{},
		AmountByType: map[string]float64{},
	}
	if len(results) == 0 {
		return stats, nil
	}

	for _, g := range results[0].ByStatus {
		stats.ByStatus[g.ID] = g.Count
		stats.Total += g.Count
	}
	for _, g := range results[0].ByRentalType {
		stats.ByRentalType[g.ID] = g.Count
		stats.AmountByType[g.ID] = g.Amount
		stats.AmountTotal += g.Amount
	}

	return stats, nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func buildListFilter(filter BookingFilter) bson.M {
	query := bson.M{}
	if filter.AgentID != "" {
		query["agent_id"] = filter.AgentID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	return query
}
