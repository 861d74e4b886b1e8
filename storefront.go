// Package storefront wires the credential store, dispatcher, API client, and
// the session/catalog/cart facades into one client for the remote shop.
package storefront

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/util"
	"storefront/pkg/api"
	"storefront/pkg/cart"
	"storefront/pkg/catalog"
	"storefront/pkg/domain"
	"storefront/pkg/kvstore"
	"storefront/pkg/session"
	"storefront/pkg/tokens"
	"storefront/pkg/transport"
)

const refreshPath = "/api/auth/refresh/"

// Config holds the client's dependencies. Store is the durable state backend
// shared by the credential pair and the cart; nil selects an in-memory one.
type Config struct {
	BaseURL     string
	HTTPTimeout time.Duration
	Store       kvstore.Store
	TokensKey   string
	CartKey     string
	Logger      *slog.Logger
}

// Client is the assembled storefront client.
type Client struct {
	Session *session.Session
	Catalog *catalog.Catalog
	Cart    *cart.Cart

	api *api.Client
	log *slog.Logger
}

// New assembles a client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("storefront: base URL is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	kv := cfg.Store
	if kv == nil {
		kv = kvstore.NewMemoryStore()
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	tokenStore := tokens.NewStore(kv, cfg.TokensKey)
	dispatcher, err := transport.New(transport.Config{
		Client:     &http.Client{Timeout: timeout},
		Tokens:     tokenStore,
		RefreshURL: cfg.BaseURL + refreshPath,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	apiClient := api.NewClient(cfg.BaseURL, dispatcher)
	sess := session.New(apiClient, tokenStore, logger)
	dispatcher.SetAuthExpiredHook(sess.HandleAuthExpired)

	return &Client{
		Session: sess,
		Catalog: catalog.New(apiClient, logger),
		Cart:    cart.New(kv, cfg.CartKey, sess.CurrentUser, logger),
		api:     apiClient,
		log:     logger,
	}, nil
}

// Load builds a client from a YAML config file, initializing the global
// logger and the configured storage backend.
func Load(path string) (*Client, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger := util.InitLogger(cfg.LogLevel)

	var kv kvstore.Store
	switch cfg.StorageBackend {
	case config.BackendMemory:
		kv = kvstore.NewMemoryStore()
	case config.BackendFile:
		kv, err = kvstore.NewFileStore(cfg.StateDir)
		if err != nil {
			return nil, err
		}
	case config.BackendRedis:
		kv = kvstore.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword)
	case config.BackendPostgres:
		kv, err = kvstore.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("storefront: unknown storage backend %q", cfg.StorageBackend)
	}

	return New(Config{
		BaseURL:     cfg.BaseURL,
		HTTPTimeout: time.Duration(cfg.HTTPTimeoutSeconds) * time.Second,
		Store:       kv,
		TokensKey:   cfg.TokensKey,
		CartKey:     cfg.CartKey,
		Logger:      logger,
	})
}

// Start restores a persisted session and loads the persisted cart. It is safe
// to call on a fresh install; both pieces simply come up empty.
func (c *Client) Start(ctx context.Context) error {
	if _, err := c.Session.Restore(ctx); err != nil {
		return err
	}
	return c.Cart.Load(ctx)
}

// Categories lists the product categories.
func (c *Client) Categories(ctx context.Context) ([]domain.Category, error) {
	return c.api.ListCategories(ctx)
}

// Product fetches one product by id.
func (c *Client) Product(ctx context.Context, id int64) (domain.Product, error) {
	return c.api.GetProduct(ctx, id)
}
