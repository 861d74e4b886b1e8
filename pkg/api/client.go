// Package api is the HTTP client for the remote catalog/authentication
// service. It knows the endpoint shapes; credential handling lives in the
// dispatcher it sends through.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storefront/pkg/domain"
)

// Doer abstracts the request dispatcher so the client can run over a bare
// http.Client in tests.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client calls the storefront service over HTTP.
type Client struct {
	baseURL string
	doer    Doer
}

// NewClient constructs a service client. A nil doer falls back to a plain
// http.Client with a default timeout.
func NewClient(baseURL string, doer Doer) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		doer:    doer,
	}
}

// LoginResult is the login response: the credential pair plus the identity.
type LoginResult struct {
	Access  string      `json:"access"`
	Refresh string      `json:"refresh"`
	User    domain.User `json:"user"`
}

// Registration carries the register form. PasswordConfirm is validated
// server-side against Password.
type Registration struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	PhoneNumber     string `json:"phone_number,omitempty"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// ProfileUpdate carries editable profile fields.
type ProfileUpdate struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// ListParams are the list-endpoint filters. Zero values are omitted from the
// query string entirely.
type ListParams struct {
	Page       int
	CategoryID int64
	MinPrice   string
	MaxPrice   string
	Ordering   string
}

// ProductPage is one page of list results. Next is the server's pagination
// cursor URL, empty when there is no further page.
type ProductPage struct {
	Count    int              `json:"count"`
	Next     string           `json:"next"`
	Previous string           `json:"previous"`
	Results  []domain.Product `json:"results"`
}

func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	payload := map[string]string{"email": email, "password": password}
	var out LoginResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login/", payload, &out); err != nil {
		return LoginResult{}, err
	}
	return out, nil
}

func (c *Client) Register(ctx context.Context, reg Registration) error {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/register/", reg, nil)
}

func (c *Client) Profile(ctx context.Context) (domain.User, error) {
	var user domain.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/profile/", nil, &user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (domain.User, error) {
	var user domain.User
	if err := c.doJSON(ctx, http.MethodPut, "/api/auth/profile/", update, &user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (c *Client) ListProducts(ctx context.Context, p ListParams) (ProductPage, error) {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.CategoryID > 0 {
		q.Set("category", strconv.FormatInt(p.CategoryID, 10))
	}
	if p.MinPrice != "" {
		q.Set("min_price", p.MinPrice)
	}
	if p.MaxPrice != "" {
		q.Set("max_price", p.MaxPrice)
	}
	if p.Ordering != "" {
		q.Set("ordering", p.Ordering)
	}
	var out ProductPage
	if err := c.doJSON(ctx, http.MethodGet, withQuery("/api/products/", q), nil, &out); err != nil {
		return ProductPage{}, err
	}
	return out, nil
}

// SearchProducts hits the full-text search endpoint. It accepts only the term
// and an optional category; results come back as one unpaginated batch.
func (c *Client) SearchProducts(ctx context.Context, term string, categoryID int64) ([]domain.Product, error) {
	q := url.Values{}
	q.Set("search", term)
	if categoryID > 0 {
		q.Set("category", strconv.FormatInt(categoryID, 10))
	}
	var out struct {
		Results []domain.Product `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodGet, withQuery("/api/products/search/", q), nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	var product domain.Product
	path := fmt.Sprintf("/api/products/%d/", id)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out struct {
		Results []domain.Category `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/categories/", nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.doer.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func withQuery(path string, q url.Values) string {
	encoded := q.Encode()
	if encoded == "" {
		return path
	}
	return path + "?" + encoded
}
