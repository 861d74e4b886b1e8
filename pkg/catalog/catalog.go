// Package catalog turns the browse state (filters, search term, page) into
// requests against the list or search endpoint and maintains the visible
// product sequence across "load more" pages.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"storefront/pkg/api"
	"storefront/pkg/domain"
)

// ErrSuperseded reports that a newer query was issued while this one was in
// flight; its result was discarded and the visible items were not touched.
var ErrSuperseded = errors.New("query superseded by a newer one")

// Ordering values accepted by the list endpoint.
type Ordering string

const (
	OrderNewest    Ordering = "-created_at"
	OrderOldest    Ordering = "created_at"
	OrderPriceAsc  Ordering = "price"
	OrderPriceDesc Ordering = "-price"
	OrderTitleAsc  Ordering = "title"
	OrderTitleDesc Ordering = "-title"
)

// QueryState is the current browse surface. Page resets to 1 whenever any
// other field changes.
type QueryState struct {
	Page       int
	Search     string
	CategoryID int64
	MinPrice   string
	MaxPrice   string
	Ordering   Ordering
}

// Catalog runs queries for one query surface and accumulates page results.
type Catalog struct {
	api *api.Client
	log *slog.Logger

	mu      sync.Mutex
	state   QueryState
	items   []domain.Product
	hasNext bool
	issued  uint64
}

// New constructs a catalog starting at page 1 with no filters.
func New(client *api.Client, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		api:   client,
		log:   logger,
		state: QueryState{Page: 1},
	}
}

// SetSearch switches between list mode (empty term) and search mode.
func (c *Catalog) SetSearch(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Search = term
	c.state.Page = 1
}

// SetCategory applies a category filter; zero clears it.
func (c *Catalog) SetCategory(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.CategoryID = id
	c.state.Page = 1
}

// SetPriceRange applies decimal-string price bounds; empty strings clear.
func (c *Catalog) SetPriceRange(min, max string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.MinPrice = min
	c.state.MaxPrice = max
	c.state.Page = 1
}

func (c *Catalog) SetOrdering(o Ordering) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Ordering = o
	c.state.Page = 1
}

// ClearFilters drops every filter and the search term.
func (c *Catalog) ClearFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = QueryState{Page: 1}
}

// NextPage advances to the next page for a "load more" run and returns it.
func (c *Catalog) NextPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Page++
	return c.state.Page
}

// State returns a copy of the current query state.
func (c *Catalog) State() QueryState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Items returns a snapshot of the visible product sequence.
func (c *Catalog) Items() []domain.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneProducts(c.items)
}

// HasNext reports whether the server has a further page for the current
// surface. Always false after a search run.
func (c *Catalog) HasNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasNext
}

// Run executes the current query state. Page 1 replaces the visible items,
// later pages append. A run that another run overtook returns ErrSuperseded
// and commits nothing; a failed run likewise leaves the items untouched.
func (c *Catalog) Run(ctx context.Context) ([]domain.Product, error) {
	c.mu.Lock()
	c.issued++
	seq := c.issued
	state := c.state
	c.mu.Unlock()

	var (
		fetched []domain.Product
		hasNext bool
		err     error
	)
	if state.Search != "" {
		// Search mode: the endpoint takes only the term and an optional
		// category, and returns a single unpaginated batch. Price and
		// ordering filters are a documented limitation of the collaborator.
		fetched, err = c.api.SearchProducts(ctx, state.Search, state.CategoryID)
		hasNext = false
	} else {
		var page api.ProductPage
		page, err = c.api.ListProducts(ctx, api.ListParams{
			Page:       state.Page,
			CategoryID: state.CategoryID,
			MinPrice:   state.MinPrice,
			MaxPrice:   state.MaxPrice,
			Ordering:   string(state.Ordering),
		})
		fetched = page.Results
		hasNext = page.Next != ""
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.issued {
		c.log.Debug("discarding stale query result", "seq", seq, "latest", c.issued)
		return nil, ErrSuperseded
	}
	if state.Page > 1 {
		c.items = append(c.items, fetched...)
	} else {
		c.items = cloneProducts(fetched)
	}
	c.hasNext = hasNext
	return cloneProducts(c.items), nil
}

func cloneProducts(in []domain.Product) []domain.Product {
	out := make([]domain.Product, len(in))
	copy(out, in)
	return out
}
