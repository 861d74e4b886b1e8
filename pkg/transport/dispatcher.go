// Package transport dispatches outbound API requests with bearer credential
// attachment and a structurally bounded refresh-then-retry on expiry.
package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"storefront/pkg/tokens"
)

// errRefreshRejected marks a refresh exchange the server turned down, as
// opposed to one that failed at the network level.
var errRefreshRejected = errors.New("refresh rejected")

// dispatchState drives the per-call state machine. The linear progression
// attempting -> refreshing -> retrying -> done is what bounds a call to at
// most one refresh exchange and one retried request.
type dispatchState int

const (
	stateAttempting dispatchState = iota
	stateRefreshing
	stateRetrying
	stateDone
)

// Config holds dispatcher dependencies.
type Config struct {
	Client     *http.Client
	Tokens     *tokens.Store
	RefreshURL string
	Logger     *slog.Logger
}

// Dispatcher sends requests with the current access credential attached and
// performs the single refresh+retry exchange on a 401.
type Dispatcher struct {
	client     *http.Client
	tokens     *tokens.Store
	refreshURL string
	log        *slog.Logger
	group      singleflight.Group

	mu            sync.Mutex
	onAuthExpired func()
}

// New constructs a dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("transport: credential store is required")
	}
	if strings.TrimSpace(cfg.RefreshURL) == "" {
		return nil, fmt.Errorf("transport: refresh URL is required")
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		client:     client,
		tokens:     cfg.Tokens,
		refreshURL: cfg.RefreshURL,
		log:        logger,
	}, nil
}

// SetAuthExpiredHook registers the forced-logout observer invoked after a
// failed refresh clears the credential store. Wire this before first use.
func (d *Dispatcher) SetAuthExpiredHook(fn func()) {
	d.mu.Lock()
	d.onAuthExpired = fn
	d.mu.Unlock()
}

// Do sends the request. On a 401 with a refresh credential on hand it
// performs exactly one refresh exchange and exactly one retry, then returns
// whatever the retry yields. A failed refresh clears the credential store,
// fires the auth-expired hook, and returns the original 401 unchanged.
// Network-level errors propagate as errors, never as responses.
func (d *Dispatcher) Do(req *http.Request) (*http.Response, error) {
	body, err := bufferBody(req)
	if err != nil {
		return nil, fmt.Errorf("buffer request body: %w", err)
	}
	requestID := uuid.NewString()
	log := d.log.With("request_id", requestID, "method", req.Method, "path", req.URL.Path)

	var (
		resp *http.Response
		pair tokens.Pair
	)
	for state := stateAttempting; state != stateDone; {
		switch state {
		case stateAttempting:
			resp, err = d.send(req, body)
			if err != nil {
				return nil, fmt.Errorf("dispatch %s %s: %w", req.Method, req.URL.Path, err)
			}
			if resp.StatusCode != http.StatusUnauthorized {
				state = stateDone
				continue
			}
			var ok bool
			pair, ok, err = d.tokens.Get(req.Context())
			if err != nil {
				log.Warn("credential read failed after 401", "err", err)
			}
			if !ok || pair.Refresh == "" {
				state = stateDone
				continue
			}
			log.Info("access credential rejected, refreshing")
			state = stateRefreshing

		case stateRefreshing:
			access, refreshErr := d.refresh(req, pair.Refresh)
			if refreshErr != nil {
				if !errors.Is(refreshErr, errRefreshRejected) {
					// Network failure during refresh is a transport error for
					// the whole call; credentials stay untouched.
					closeBody(resp)
					return nil, fmt.Errorf("refresh exchange: %w", refreshErr)
				}
				log.Warn("refresh rejected, clearing credentials")
				if clearErr := d.tokens.Clear(req.Context()); clearErr != nil {
					log.Warn("credential clear failed", "err", clearErr)
				}
				d.fireAuthExpired()
				state = stateDone
				continue
			}
			if err := d.tokens.ReplaceAccess(req.Context(), access); err != nil {
				log.Warn("credential update failed after refresh", "err", err)
			}
			state = stateRetrying

		case stateRetrying:
			closeBody(resp)
			resp, err = d.send(req, body)
			if err != nil {
				return nil, fmt.Errorf("retry %s %s: %w", req.Method, req.URL.Path, err)
			}
			log.Info("request retried with refreshed credential", "status", resp.StatusCode)
			state = stateDone
		}
	}
	return resp, nil
}

// send issues one attempt, rebuilding the request with a replayable body and
// the access credential current at the time of the attempt.
func (d *Dispatcher) send(req *http.Request, body []byte) (*http.Response, error) {
	attempt := req.Clone(req.Context())
	if body != nil {
		attempt.Body = io.NopCloser(bytes.NewReader(body))
		attempt.ContentLength = int64(len(body))
		attempt.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	pair, ok, err := d.tokens.Get(req.Context())
	if err != nil {
		d.log.Warn("credential read failed, sending unauthenticated", "err", err)
	}
	if ok && pair.Access != "" {
		attempt.Header.Set("Authorization", "Bearer "+pair.Access)
	} else {
		attempt.Header.Del("Authorization")
	}
	return d.client.Do(attempt)
}

// refresh exchanges the refresh credential for a new access credential.
// Concurrent callers share a single in-flight exchange.
func (d *Dispatcher) refresh(req *http.Request, refreshToken string) (string, error) {
	v, err, _ := d.group.Do("refresh", func() (any, error) {
		payload, err := json.Marshal(map[string]string{"refresh": refreshToken})
		if err != nil {
			return nil, err
		}
		refreshReq, err := http.NewRequestWithContext(req.Context(), http.MethodPost, d.refreshURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		refreshReq.Header.Set("Content-Type", "application/json")
		resp, err := d.client.Do(refreshReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, errRefreshRejected
		}
		var out struct {
			Access string `json:"access"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Access == "" {
			return nil, errRefreshRejected
		}
		return out.Access, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (d *Dispatcher) fireAuthExpired() {
	d.mu.Lock()
	fn := d.onAuthExpired
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}

func closeBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()
}
