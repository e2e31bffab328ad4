package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"itemscout/internal/repository/sqlite"
)

type recordingReleaser struct {
	mu       sync.Mutex
	released []string
}

func (r *recordingReleaser) ImageKey(imageURL string) (string, bool) {
	_, key, ok := strings.Cut(imageURL, "/uploads/")
	return key, ok && key != ""
}

func (r *recordingReleaser) ReleaseImage(imageURL string) {
	r.mu.Lock()
	r.released = append(r.released, imageURL)
	r.mu.Unlock()
}

type fixture struct {
	users  UserService
	items  ItemService
	images *recordingReleaser
}

func newFixture(t *testing.T, ownerScoped bool) *fixture {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "service.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	userRepo := sqlite.NewUserRepository(db)
	itemRepo := sqlite.NewItemRepository(db)
	ctx := context.Background()
	if err := userRepo.Init(ctx); err != nil {
		t.Fatalf("init users: %v", err)
	}
	if err := itemRepo.Init(ctx); err != nil {
		t.Fatalf("init items: %v", err)
	}

	images := &recordingReleaser{}
	return &fixture{
		users:  NewUserService(userRepo, bcrypt.MinCost),
		items:  NewItemService(itemRepo, ItemServiceOptions{OwnerScoped: ownerScoped, Images: images}),
		images: images,
	}
}

func (f *fixture) register(t *testing.T, email string) string {
	t.Helper()
	user, err := f.users.Register(context.Background(), "Test User", email, "password123")
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return user.ID
}

func TestRegisterAndAuthenticate(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	user, err := f.users.Register(ctx, " Test User ", "Test@Example.com", "password123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.PasswordHash != "" {
		t.Fatalf("password hash leaked from service")
	}
	if user.Email != "test@example.com" || user.Name != "Test User" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := f.users.Register(ctx, "Again", "test@example.com", "password123"); !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("expected ErrUserAlreadyExists, got %v", err)
	}

	authed, err := f.users.Authenticate(ctx, "TEST@example.com", "password123")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed.ID != user.ID {
		t.Fatalf("authenticated as %s, want %s", authed.ID, user.ID)
	}

	if _, err := f.users.Authenticate(ctx, "test@example.com", "wrongpassword"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, err := f.users.Authenticate(ctx, "nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	fetched, err := f.users.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if fetched.PasswordHash != "" {
		t.Fatalf("password hash leaked from GetByID")
	}
	if _, err := f.users.GetByID(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t, false)
	tests := []struct {
		name, userName, email, password string
	}{
		{"missing name", "", "a@example.com", "password123"},
		{"missing email", "A", "", "password123"},
		{"bad email", "A", "not-an-email", "password123"},
		{"short password", "A", "a@example.com", "12345"},
		{"password too long for bcrypt", "A", "a@example.com", strings.Repeat("p", MaxPasswordBytes+1)},
		{"multibyte password over the byte limit", "A", "a@example.com", strings.Repeat("é", 40)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.users.Register(context.Background(), tt.userName, tt.email, tt.password)
			if !errors.Is(err, ErrInvalidUser) {
				t.Fatalf("expected ErrInvalidUser, got %v", err)
			}
		})
	}
}

func TestItemOwnershipChecks(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	owner := f.register(t, "owner@example.com")
	other := f.register(t, "other@example.com")

	item, err := f.items.Create(ctx, owner, ItemInput{
		Name:        "  Camera ",
		Description: "Film camera",
		Coordinates: "40.712776, -74.005974",
		Image:       "http://host/uploads/one.jpg",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if item.Name != "Camera" || item.Coordinates != "40.712776,-74.005974" || item.UserID != owner {
		t.Fatalf("unexpected item: %+v", item)
	}

	if _, err := f.items.Get(ctx, owner, item.ID); err != nil {
		t.Fatalf("get as owner: %v", err)
	}
	if _, err := f.items.Get(ctx, other, item.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner on read by other user, got %v", err)
	}

	name := "Hacked"
	if _, err := f.items.Update(ctx, other, item.ID, ItemPatch{Name: &name}); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner on update, got %v", err)
	}
	if err := f.items.Delete(ctx, other, item.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner on delete, got %v", err)
	}

	newImage := "http://host/uploads/two.jpg"
	updated, err := f.items.Update(ctx, owner, item.ID, ItemPatch{Image: &newImage})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Camera" || updated.Description != "Film camera" || updated.Image != newImage {
		t.Fatalf("partial update changed unrelated fields: %+v", updated)
	}

	if err := f.items.Delete(ctx, owner, item.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.items.Get(ctx, owner, item.ID); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	if err := f.items.Delete(ctx, owner, item.ID); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound on second delete, got %v", err)
	}

	want := []string{"http://host/uploads/one.jpg", newImage}
	if fmt.Sprint(f.images.released) != fmt.Sprint(want) {
		t.Fatalf("released images = %v, want %v", f.images.released, want)
	}
}

func TestSharedImageReleasedOnlyWhenUnreferenced(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	alice := f.register(t, "alice@example.com")
	mallory := f.register(t, "mallory@example.com")

	photo := "http://10.0.0.2:5000/uploads/alice.jpg"
	aliceItem, err := f.items.Create(ctx, alice, ItemInput{Name: "Bike", Image: photo})
	if err != nil {
		t.Fatalf("create alice item: %v", err)
	}

	// same key behind a different host
	copied, err := f.items.Create(ctx, mallory, ItemInput{Name: "Copy", Image: "http://evil.example/uploads/alice.jpg"})
	if err != nil {
		t.Fatalf("create copy: %v", err)
	}
	if err := f.items.Delete(ctx, mallory, copied.ID); err != nil {
		t.Fatalf("delete copy: %v", err)
	}

	other := "http://10.0.0.2:5000/uploads/other.jpg"
	second, err := f.items.Create(ctx, mallory, ItemInput{Name: "Second", Image: photo})
	if err != nil {
		t.Fatalf("create second copy: %v", err)
	}
	if _, err := f.items.Update(ctx, mallory, second.ID, ItemPatch{Image: &other}); err != nil {
		t.Fatalf("swap image: %v", err)
	}
	if len(f.images.released) != 0 {
		t.Fatalf("image still used by alice was released: %v", f.images.released)
	}

	if err := f.items.Delete(ctx, alice, aliceItem.ID); err != nil {
		t.Fatalf("delete alice item: %v", err)
	}
	want := []string{photo}
	if fmt.Sprint(f.images.released) != fmt.Sprint(want) {
		t.Fatalf("released images = %v, want %v", f.images.released, want)
	}
}

func TestItemValidation(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	owner := f.register(t, "owner@example.com")

	if _, err := f.items.Create(ctx, owner, ItemInput{Name: "   "}); !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("expected ErrInvalidItem for blank name, got %v", err)
	}
	if _, err := f.items.Create(ctx, owner, ItemInput{Name: "Map", Coordinates: "somewhere"}); !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("expected ErrInvalidItem for bad coordinates, got %v", err)
	}

	item, err := f.items.Create(ctx, owner, ItemInput{Name: "Map"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	empty := ""
	if _, err := f.items.Update(ctx, owner, item.ID, ItemPatch{Name: &empty}); !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("expected ErrInvalidItem when clearing name, got %v", err)
	}
	if len(f.images.released) != 0 {
		t.Fatalf("no image should have been released: %v", f.images.released)
	}
}

func TestItemListPagination(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	owner := f.register(t, "owner@example.com")

	for i := 1; i <= 12; i++ {
		if _, err := f.items.Create(ctx, owner, ItemInput{Name: fmt.Sprintf("Item %d", i)}); err != nil {
			t.Fatalf("create item %d: %v", i, err)
		}
	}

	page, err := f.items.List(ctx, ListQuery{Requester: owner, Page: NewPageRequest(2, 5)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Page != 2 || page.Pages != 3 || page.Total != 12 || page.Limit != 5 {
		t.Fatalf("unexpected page meta: %+v", page)
	}
	if len(page.Items) != 5 || page.Items[0].Name != "Item 7" {
		t.Fatalf("unexpected window starting at %q (len %d)", page.Items[0].Name, len(page.Items))
	}

	last, err := f.items.List(ctx, ListQuery{Page: NewPageRequest(3, 5)})
	if err != nil {
		t.Fatalf("list last: %v", err)
	}
	if len(last.Items) != 2 || last.Items[1].Name != "Item 1" {
		t.Fatalf("unexpected last page: %d items", len(last.Items))
	}

	beyond, err := f.items.List(ctx, ListQuery{Page: NewPageRequest(9, 5)})
	if err != nil {
		t.Fatalf("list beyond: %v", err)
	}
	if len(beyond.Items) != 0 || beyond.Pages != 3 {
		t.Fatalf("unexpected page beyond end: %+v", beyond)
	}

	huge, err := f.items.List(ctx, ListQuery{Page: ParsePageRequest(strconv.Itoa(math.MaxInt), "10")})
	if err != nil {
		t.Fatalf("list huge page: %v", err)
	}
	if len(huge.Items) != 0 || huge.Total != 12 || huge.Pages != 2 {
		t.Fatalf("unexpected huge page: page=%d items=%d", huge.Page, len(huge.Items))
	}

	search, err := f.items.List(ctx, ListQuery{Search: "item 1", Page: NewPageRequest(1, 10)})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	// Item 1, Item 10, Item 11, Item 12
	if search.Total != 4 || len(search.Items) != 4 {
		t.Fatalf("search total = %d, want 4", search.Total)
	}
}

func TestOwnerScopedItems(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	alice := f.register(t, "alice@example.com")
	bob := f.register(t, "bob@example.com")

	aliceItem, err := f.items.Create(ctx, alice, ItemInput{Name: "Alice lamp"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.items.Create(ctx, bob, ItemInput{Name: "Bob lamp"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	page, err := f.items.List(ctx, ListQuery{Requester: alice, Page: NewPageRequest(1, 10)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || page.Items[0].ID != aliceItem.ID {
		t.Fatalf("owner scoped list leaked other items: %+v", page.Items)
	}

	if _, err := f.items.Get(ctx, bob, aliceItem.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner reading another user's item, got %v", err)
	}
}

func TestPageRequest(t *testing.T) {
	tests := []struct {
		page, limit         string
		wantPage, wantLimit int
		wantOffset          int
	}{
		{"", "", 1, 10, 0},
		{"2", "5", 2, 5, 5},
		{"abc", "xyz", 1, 10, 0},
		{"0", "0", 1, 10, 0},
		{"-3", "-1", 1, 10, 0},
		{"3", "1000", 3, MaxLimit, 200},
	}
	for _, tt := range tests {
		got := ParsePageRequest(tt.page, tt.limit)
		if got.Page != tt.wantPage || got.Limit != tt.wantLimit || got.Offset() != tt.wantOffset {
			t.Fatalf("ParsePageRequest(%q, %q) = %+v offset %d", tt.page, tt.limit, got, got.Offset())
		}
	}
}

func TestPageRequestOffsetDoesNotOverflow(t *testing.T) {
	for _, limit := range []int{1, 10, MaxLimit} {
		p := NewPageRequest(math.MaxInt, limit)
		if p.Offset() < 0 {
			t.Fatalf("limit %d: offset overflowed to %d", limit, p.Offset())
		}
		if p.Page < 2 {
			t.Fatalf("limit %d: page clamped too far to %d", limit, p.Page)
		}
	}
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		total int64
		limit int
		want  int
	}{
		{0, 10, 0},
		{5, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{12, 5, 3},
		{7, 0, 0},
	}
	for _, tt := range tests {
		if got := PageCount(tt.total, tt.limit); got != tt.want {
			t.Fatalf("PageCount(%d, %d) = %d, want %d", tt.total, tt.limit, got, tt.want)
		}
	}
}
