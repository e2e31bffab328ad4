package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"itemscout/internal/domain"
	"itemscout/internal/repository"
)

type itemDocument struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	Image       string    `bson:"image,omitempty"`
	Coordinates string    `bson:"coordinates,omitempty"`
	User        string    `bson:"user"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

type ItemRepository struct {
	coll *mongo.Collection
}

func NewItemRepository(db *mongo.Database) repository.ItemRepository {
	return &ItemRepository{coll: db.Collection(itemsCollection)}
}

func (r *ItemRepository) Init(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "user", Value: 1}}},
		{Keys: bson.D{{Key: "image", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create items indexes: %w", err)
	}
	return nil
}

func (r *ItemRepository) Create(ctx context.Context, item *domain.Item) error {
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, toItemDocument(item)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert item %s: %w", item.ID, repository.ErrDuplicate)
		}
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (r *ItemRepository) Update(ctx context.Context, item *domain.Item) error {
	item.UpdatedAt = time.Now().UTC()
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": item.ID}, bson.M{"$set": bson.M{
		"name":        item.Name,
		"description": item.Description,
		"image":       item.Image,
		"coordinates": item.Coordinates,
		"updatedAt":   item.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update item: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("delete item: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *ItemRepository) Get(ctx context.Context, id string) (*domain.Item, error) {
	var doc itemDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("item: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("find item: %w", err)
	}
	return fromItemDocument(doc), nil
}

func (r *ItemRepository) List(ctx context.Context, filter repository.ItemFilter, offset, limit int) ([]domain.Item, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, itemFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer cursor.Close(ctx)

	items := []domain.Item{}
	for cursor.Next(ctx) {
		var doc itemDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode item: %w", err)
		}
		items = append(items, *fromItemDocument(doc))
	}
	return items, cursor.Err()
}

func (r *ItemRepository) Count(ctx context.Context, filter repository.ItemFilter) (int64, error) {
	total, err := r.coll.CountDocuments(ctx, itemFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return total, nil
}

func itemFilter(filter repository.ItemFilter) bson.M {
	query := bson.M{}
	if filter.UserID != "" {
		query["user"] = filter.UserID
	}
	if q := strings.TrimSpace(filter.NameContains); q != "" {
		query["name"] = bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
	}
	if filter.ImageKey != "" {
		query["image"] = bson.M{"$regex": regexp.QuoteMeta(filter.ImageKey)}
	}
	return query
}

func toItemDocument(item *domain.Item) itemDocument {
	return itemDocument{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Image:       item.Image,
		Coordinates: item.Coordinates,
		User:        item.UserID,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func fromItemDocument(doc itemDocument) *domain.Item {
	return &domain.Item{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Image:       doc.Image,
		Coordinates: doc.Coordinates,
		UserID:      doc.User,
		CreatedAt:   doc.CreatedAt.UTC(),
		UpdatedAt:   doc.UpdatedAt.UTC(),
	}
}
