package client

import (
	"context"
	"strings"
	"sync"
)

const DefaultPageSize = 10

// Feed is the view state of the paginated item list: what has been loaded
// so far, whether more pages exist, and the active search.
type Feed struct {
	client   *Client
	pageSize int

	mu      sync.Mutex
	items   []Item
	page    int
	hasMore bool
	loading bool
	err     error
	query   string
	// bumped by every Refresh so late LoadMore results are dropped
	generation int
}

func NewFeed(c *Client, pageSize int) *Feed {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Feed{client: c, pageSize: pageSize, hasMore: true}
}

func (f *Feed) Items() []Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Item, len(f.items))
	copy(out, f.items)
	return out
}

func (f *Feed) Page() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page
}

func (f *Feed) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasMore
}

func (f *Feed) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

// Err is the error of the last load, nil if it succeeded.
func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *Feed) Query() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.query
}

// Refresh replaces the feed with the first page.
func (f *Feed) Refresh(ctx context.Context) error {
	f.mu.Lock()
	f.generation++
	gen := f.generation
	query := f.query
	f.loading = true
	f.mu.Unlock()

	return f.load(ctx, gen, query, 1, true)
}

// LoadMore appends the next page. It does nothing while a load is in
// flight or once the last page has been loaded.
func (f *Feed) LoadMore(ctx context.Context) error {
	f.mu.Lock()
	if f.loading || !f.hasMore {
		f.mu.Unlock()
		return nil
	}
	gen := f.generation
	query := f.query
	next := f.page + 1
	f.loading = true
	f.mu.Unlock()

	return f.load(ctx, gen, query, next, false)
}

// Search switches the feed to items whose name contains query. A blank
// query behaves like ClearSearch.
func (f *Feed) Search(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return f.ClearSearch(ctx)
	}
	f.mu.Lock()
	f.query = query
	f.mu.Unlock()
	return f.Refresh(ctx)
}

func (f *Feed) ClearSearch(ctx context.Context) error {
	f.mu.Lock()
	f.query = ""
	f.mu.Unlock()
	return f.Refresh(ctx)
}

func (f *Feed) load(ctx context.Context, gen int, query string, page int, replace bool) error {
	var (
		result *ItemPage
		err    error
	)
	if query != "" {
		result, err = f.client.SearchItems(ctx, query, page, f.pageSize)
	} else {
		result, err = f.client.ListItems(ctx, page, f.pageSize)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation {
		return err
	}
	f.loading = false
	f.err = err
	if err != nil {
		return err
	}

	if replace {
		f.items = append([]Item(nil), result.Items...)
	} else {
		f.items = append(f.items, result.Items...)
	}
	f.page = page
	f.hasMore = page < result.Pages
	return nil
}
