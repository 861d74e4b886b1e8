// Package cart owns the locally persisted shopping cart: an ordered set of
// product lines that survives reloads and is gated on the signed-in user.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"storefront/pkg/domain"
	"storefront/pkg/kvstore"
)

// DefaultKey is the durable key the aggregate is stored under.
const DefaultKey = "cart.lines"

// ErrNotSignedIn gates cart mutations: it is a local failure, raised before
// any state change and without any network involvement.
var ErrNotSignedIn = errors.New("not signed in")

// Cart is the write-through cart aggregate. The signed-in check reads the
// user fact at the moment of each call, never a cached copy.
type Cart struct {
	mu          sync.Mutex
	kv          kvstore.Store
	key         string
	currentUser func() (domain.User, bool)
	log         *slog.Logger
	lines       []domain.CartLine
	loaded      bool
}

// New builds a cart over kv. An empty key selects DefaultKey.
func New(kv kvstore.Store, key string, currentUser func() (domain.User, bool), logger *slog.Logger) *Cart {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cart{kv: kv, key: key, currentUser: currentUser, log: logger}
}

// Load reads the persisted aggregate. A missing record yields an empty cart.
func (c *Cart) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(ctx)
}

// Add puts one unit of the product into the cart, merging into an existing
// line. The whole aggregate is persisted before the change becomes visible.
func (c *Cart) Add(ctx context.Context, productID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.currentUser(); !ok {
		return ErrNotSignedIn
	}
	if err := c.loadLocked(ctx); err != nil {
		return err
	}

	next := cloneLines(c.lines)
	merged := false
	for i := range next {
		if next[i].ProductID == productID {
			next[i].Quantity++
			merged = true
			break
		}
	}
	if !merged {
		next = append(next, domain.CartLine{ProductID: productID, Quantity: 1})
	}
	return c.commitLocked(ctx, next)
}

// SetQuantity pins a line to an exact quantity; zero or less removes it.
func (c *Cart) SetQuantity(ctx context.Context, productID int64, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.currentUser(); !ok {
		return ErrNotSignedIn
	}
	if err := c.loadLocked(ctx); err != nil {
		return err
	}

	next := make([]domain.CartLine, 0, len(c.lines)+1)
	found := false
	for _, line := range c.lines {
		if line.ProductID == productID {
			found = true
			if quantity > 0 {
				next = append(next, domain.CartLine{ProductID: productID, Quantity: quantity})
			}
			continue
		}
		next = append(next, line)
	}
	if !found && quantity > 0 {
		next = append(next, domain.CartLine{ProductID: productID, Quantity: quantity})
	}
	return c.commitLocked(ctx, next)
}

// Remove drops the product's line entirely.
func (c *Cart) Remove(ctx context.Context, productID int64) error {
	return c.SetQuantity(ctx, productID, 0)
}

// Clear empties the cart.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.currentUser(); !ok {
		return ErrNotSignedIn
	}
	return c.commitLocked(ctx, nil)
}

// Lines returns a snapshot of the aggregate in insertion order.
func (c *Cart) Lines() []domain.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneLines(c.lines)
}

// TotalQuantity sums all line quantities. Recomputed on every call so the
// badge count can never drift from the lines.
func (c *Cart) TotalQuantity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, line := range c.lines {
		total += line.Quantity
	}
	return total
}

func (c *Cart) loadLocked(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	data, found, err := c.kv.Get(ctx, c.key)
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	c.loaded = true
	if !found {
		return nil
	}
	var lines []domain.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		c.log.Warn("persisted cart unreadable, starting empty", "err", err)
		return nil
	}
	c.lines = lines
	return nil
}

// commitLocked persists the candidate aggregate and only then makes it the
// visible state, so a failed write never leaves a half-applied mutation.
func (c *Cart) commitLocked(ctx context.Context, next []domain.CartLine) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := c.kv.Set(ctx, c.key, data); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}
	c.lines = next
	return nil
}

func cloneLines(in []domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, len(in))
	copy(out, in)
	return out
}
