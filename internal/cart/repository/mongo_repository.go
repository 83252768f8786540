package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_market/internal/cart/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *mongoRepository) GetCart(ctx context.Context, vendorID string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"vendor_id": vendorID}
	err := m.collection.FindOne(ctx, filter).Decode(&cart)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

func (m *mongoRepository) InsertCart(ctx context.Context, cart *domain.Cart) error {
	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now
	cart.Version = 1
	if cart.ID == "" {
		cart.ID = primitive.NewObjectID().Hex()
	}

	_, err := m.collection.InsertOne(ctx, cart)
	if err != nil {
		// Unique index on vendor_id: a concurrent first-add already
		// created this vendor's cart.
		if mongo.IsDuplicateKeyError(err) {
			return ErrVersionConflict
		}
		return fmt.Errorf("failed to insert cart: %w", err)
	}

	return nil
}

func (m *mongoRepository) ReplaceCart(ctx context.Context, cart *domain.Cart, expectedVersion int64) error {
	now := time.Now()
	cart.UpdatedAt = now
	cart.Version = expectedVersion + 1

	filter := bson.M{"vendor_id": cart.VendorID, "version": expectedVersion}
	update := bson.M{"$set": bson.M{
		"items":        cart.Items,
		"total_amount": cart.TotalAmount,
		"version":      cart.Version,
		"updated_at":   now,
	}}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to replace cart: %w", err)
	}
	if result.MatchedCount == 0 {
		return m.conflictOrNotFound(ctx, cart.VendorID)
	}

	return nil
}

func (m *mongoRepository) ClearCart(ctx context.Context, vendorID string, expectedVersion int64) error {
	now := time.Now()

	filter := bson.M{"vendor_id": vendorID, "version": expectedVersion}
	update := bson.M{"$set": bson.M{
		"items":        []domain.CartItem{},
		"total_amount": 0.0,
		"version":      expectedVersion + 1,
		"updated_at":   now,
	}}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	if result.MatchedCount == 0 {
		return m.conflictOrNotFound(ctx, vendorID)
	}

	return nil
}

// conflictOrNotFound distinguishes a version race from a missing cart
// after a conditional update matched nothing.
func (m *mongoRepository) conflictOrNotFound(ctx context.Context, vendorID string) error {
	count, err := m.collection.CountDocuments(ctx, bson.M{"vendor_id": vendorID})
	if err != nil {
		return fmt.Errorf("failed to check cart existence: %w", err)
	}
	if count == 0 {
		return ErrCartNotFound
	}
	return ErrVersionConflict
}

// EnsureIndexes creates the carts indexes. Run once at startup.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "vendor_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	_, err := db.Collection("carts").Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
