package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"storefront/pkg/api"
)

func productJSON(ids ...int) string {
	out := `[`
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"id": %d, "title": "p%d", "price": "1.00"}`, id, id)
	}
	return out + `]`
}

func TestFilterChangeResetsPage(t *testing.T) {
	c := New(api.NewClient("http://unused", nil), nil)
	c.NextPage()
	c.NextPage()
	if got := c.State().Page; got != 3 {
		t.Fatalf("page = %d, want 3", got)
	}
	c.SetCategory(4)
	if got := c.State().Page; got != 1 {
		t.Fatalf("page after category filter = %d, want 1", got)
	}

	c.NextPage()
	c.SetPriceRange("5", "10")
	if got := c.State().Page; got != 1 {
		t.Fatalf("page after price filter = %d, want 1", got)
	}

	c.NextPage()
	c.SetOrdering(OrderPriceAsc)
	if got := c.State().Page; got != 1 {
		t.Fatalf("page after ordering change = %d, want 1", got)
	}

	c.NextPage()
	c.SetSearch("phone")
	if got := c.State().Page; got != 1 {
		t.Fatalf("page after search = %d, want 1", got)
	}
}

func TestSearchModeNeverForwardsPriceOrOrdering(t *testing.T) {
	var gotPath string
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"results": ` + productJSON(1, 2) + `}`))
	}))
	defer srv.Close()

	c := New(api.NewClient(srv.URL, nil), nil)
	c.SetCategory(4)
	c.SetPriceRange("5", "50")
	c.SetOrdering(OrderPriceDesc)
	c.SetSearch("phone")

	items, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if gotPath != "/api/products/search/" {
		t.Fatalf("path = %q, want search endpoint", gotPath)
	}
	if gotQuery.Get("search") != "phone" || gotQuery.Get("category") != "4" {
		t.Fatalf("query = %v", gotQuery)
	}
	for _, banned := range []string{"min_price", "max_price", "ordering", "page"} {
		if _, present := gotQuery[banned]; present {
			t.Fatalf("search request must not carry %q, query = %v", banned, gotQuery)
		}
	}
	if c.HasNext() {
		t.Fatalf("hasNext must be false in search mode")
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
}

func TestPageOneReplacesPageTwoAppends(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "2":
			_, _ = w.Write([]byte(`{"count": 3, "next": null, "results": ` + productJSON(3) + `}`))
		default:
			_, _ = w.Write([]byte(`{"count": 3, "next": "http://x/api/products/?page=2", "results": ` + productJSON(1, 2) + `}`))
		}
	}))
	defer srv.Close()

	c := New(api.NewClient(srv.URL, nil), nil)
	items, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(items) != 2 || !c.HasNext() {
		t.Fatalf("after page 1: items=%d hasNext=%v", len(items), c.HasNext())
	}

	c.NextPage()
	items, err = c.Run(context.Background())
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(items) != 3 || items[2].ID != 3 {
		t.Fatalf("page 2 should append: %+v", items)
	}
	if c.HasNext() {
		t.Fatalf("hasNext should be false after last page")
	}

	// A filter change starts a new surface and page 1 replaces.
	c.SetCategory(9)
	items, err = c.Run(context.Background())
	if err != nil {
		t.Fatalf("new surface: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("new surface should replace, got %d items", len(items))
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	firstArrived := make(chan struct{})
	releaseFirst := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("category") == "" {
			// Request A: hold until B has fully committed.
			close(firstArrived)
			<-releaseFirst
			_, _ = w.Write([]byte(`{"count": 1, "next": null, "results": ` + productJSON(1) + `}`))
			return
		}
		_, _ = w.Write([]byte(`{"count": 1, "next": null, "results": ` + productJSON(2) + `}`))
	}))
	defer srv.Close()

	c := New(api.NewClient(srv.URL, nil), nil)

	var wg sync.WaitGroup
	wg.Add(1)
	var errA error
	go func() {
		defer wg.Done()
		_, errA = c.Run(context.Background())
	}()

	<-firstArrived
	c.SetCategory(4)
	itemsB, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run B: %v", err)
	}
	if len(itemsB) != 1 || itemsB[0].ID != 2 {
		t.Fatalf("B items = %+v", itemsB)
	}

	close(releaseFirst)
	wg.Wait()
	if !errors.Is(errA, ErrSuperseded) {
		t.Fatalf("stale run error = %v, want ErrSuperseded", errA)
	}
	items := c.Items()
	if len(items) != 1 || items[0].ID != 2 {
		t.Fatalf("stale result overwrote committed items: %+v", items)
	}
}

func TestFailedRunLeavesItemsUntouched(t *testing.T) {
	var fail bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"count": 2, "next": null, "results": ` + productJSON(1, 2) + `}`))
	}))
	defer srv.Close()

	c := New(api.NewClient(srv.URL, nil), nil)
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	fail = true
	c.SetCategory(4)
	if _, err := c.Run(context.Background()); err == nil {
		t.Fatalf("expected failure")
	}
	if items := c.Items(); len(items) != 2 {
		t.Fatalf("failed run mutated items: %+v", items)
	}
}
