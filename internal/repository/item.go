package repository

import (
	"context"
	"errors"
	"strings"

	"itemscout/internal/domain"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint would be violated.
	ErrDuplicate = errors.New("record already exists")
)

// ItemFilter narrows an item listing. Zero values mean "no restriction".
type ItemFilter struct {
	// UserID restricts the listing to a single owner.
	UserID string
	// NameContains is a case-insensitive substring match on the item name.
	NameContains string
	// ImageKey matches items whose image URL points at this storage key.
	ImageKey string
}

// FoldName is the case-folded form of an item name used for searching.
func FoldName(name string) string {
	return strings.ToLower(name)
}

// ItemRepository exposes persistence operations for Item records.
type ItemRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, item *domain.Item) error
	Update(ctx context.Context, item *domain.Item) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*domain.Item, error)
	// List returns up to limit items matching filter, newest first, after skipping offset.
	List(ctx context.Context, filter ItemFilter, offset, limit int) ([]domain.Item, error)
	Count(ctx context.Context, filter ItemFilter) (int64, error)
}
