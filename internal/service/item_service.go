package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"itemscout/internal/domain"
	"itemscout/internal/repository"
)

var (
	// ErrItemNotFound is returned when an item id does not resolve.
	ErrItemNotFound = errors.New("item not found")
	// ErrNotOwner is returned when the requester is not the item's owner.
	ErrNotOwner = errors.New("user not authorized for this item")
	// ErrInvalidItem wraps item input validation failures.
	ErrInvalidItem = errors.New("invalid item")
)

// ImageReleaser owns uploaded images. It is told about image URLs that no
// item references any more.
type ImageReleaser interface {
	// ImageKey resolves an image URL to its storage key; false for images
	// the releaser does not manage.
	ImageKey(imageURL string) (string, bool)
	ReleaseImage(imageURL string)
}

// ItemInput carries the fields of a new item.
type ItemInput struct {
	Name        string
	Description string
	Coordinates string
	Image       string
}

// ItemPatch carries a partial update; nil fields are left unchanged.
type ItemPatch struct {
	Name        *string
	Description *string
	Coordinates *string
	Image       *string
}

// ListQuery selects a page of the item feed.
type ListQuery struct {
	Requester string
	Search    string
	Page      PageRequest
}

// ItemPage is one window of the feed plus the numbers needed to page through it.
type ItemPage struct {
	Items []domain.Item
	Page  int
	Limit int
	Pages int
	Total int64
}

// ItemService coordinates item operations and enforces ownership.
type ItemService interface {
	List(ctx context.Context, query ListQuery) (*ItemPage, error)
	Get(ctx context.Context, requester, id string) (*domain.Item, error)
	Create(ctx context.Context, owner string, input ItemInput) (*domain.Item, error)
	Update(ctx context.Context, requester, id string, patch ItemPatch) (*domain.Item, error)
	Delete(ctx context.Context, requester, id string) error
}

// ItemServiceOptions tunes visibility rules and image lifecycle hooks.
type ItemServiceOptions struct {
	// OwnerScoped limits listing to the requester's own items.
	OwnerScoped bool
	Images      ImageReleaser
}

type itemService struct {
	items repository.ItemRepository
	opts  ItemServiceOptions
}

func NewItemService(items repository.ItemRepository, opts ItemServiceOptions) ItemService {
	return &itemService{
		items: items,
		opts:  opts,
	}
}

func (s *itemService) List(ctx context.Context, query ListQuery) (*ItemPage, error) {
	window := NewPageRequest(query.Page.Page, query.Page.Limit)
	filter := repository.ItemFilter{NameContains: strings.TrimSpace(query.Search)}
	if s.opts.OwnerScoped {
		filter.UserID = query.Requester
	}

	total, err := s.items.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := []domain.Item{}
	if offset := window.Offset(); int64(offset) < total {
		items, err = s.items.List(ctx, filter, offset, window.Limit)
		if err != nil {
			return nil, err
		}
	}

	return &ItemPage{
		Items: items,
		Page:  window.Page,
		Limit: window.Limit,
		Pages: PageCount(total, window.Limit),
		Total: total,
	}, nil
}

func (s *itemService) Get(ctx context.Context, requester, id string) (*domain.Item, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !item.OwnedBy(requester) {
		return nil, ErrNotOwner
	}
	return item, nil
}

func (s *itemService) Create(ctx context.Context, owner string, input ItemInput) (*domain.Item, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidItem)
	}

	item := &domain.Item{
		ID:          uuid.NewString(),
		Name:        input.Name,
		Description: input.Description,
		Coordinates: input.Coordinates,
		Image:       input.Image,
		UserID:      owner,
	}
	if err := normalizeItem(item); err != nil {
		return nil, err
	}

	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *itemService) Update(ctx context.Context, requester, id string, patch ItemPatch) (*domain.Item, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !item.OwnedBy(requester) {
		return nil, ErrNotOwner
	}

	previousImage := item.Image
	if patch.Name != nil {
		item.Name = *patch.Name
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.Coordinates != nil {
		item.Coordinates = *patch.Coordinates
	}
	if patch.Image != nil {
		item.Image = *patch.Image
	}
	if err := normalizeItem(item); err != nil {
		return nil, err
	}

	if err := s.items.Update(ctx, item); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}

	if previousImage != item.Image {
		s.releaseIfUnused(ctx, previousImage)
	}
	return item, nil
}

func (s *itemService) Delete(ctx context.Context, requester, id string) error {
	item, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !item.OwnedBy(requester) {
		return ErrNotOwner
	}

	if err := s.items.Delete(ctx, item.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrItemNotFound
		}
		return err
	}

	s.releaseIfUnused(ctx, item.Image)
	return nil
}

func (s *itemService) load(ctx context.Context, id string) (*domain.Item, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrItemNotFound
	}
	item, err := s.items.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return item, nil
}

// releaseIfUnused hands an image to the releaser once no item points at its
// storage key. The image field is free text, so other items may share it.
func (s *itemService) releaseIfUnused(ctx context.Context, imageURL string) {
	if s.opts.Images == nil || imageURL == "" {
		return
	}
	key, ok := s.opts.Images.ImageKey(imageURL)
	if !ok {
		return
	}
	refs, err := s.items.Count(ctx, repository.ItemFilter{ImageKey: key})
	if err != nil || refs > 0 {
		return
	}
	s.opts.Images.ReleaseImage(imageURL)
}

func normalizeItem(item *domain.Item) error {
	item.Name = strings.TrimSpace(item.Name)
	item.Description = strings.TrimSpace(item.Description)
	item.Image = strings.TrimSpace(item.Image)
	if item.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidItem)
	}

	coords, err := domain.NormalizeCoordinates(item.Coordinates)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	item.Coordinates = coords
	return nil
}
