package cdn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	dbtypes "github.com/angelmondragon/catalog-backend/pkg/db/types"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
	"github.com/angelmondragon/catalog-backend/pkg/redis"
)

const (
	defaultTimeout              = 5 * time.Second
	cacheScope                  = "photo"
	responseBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("cdn base url is required")

// Client resolves opaque photo ids into the metadata stored on products.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      redis.JSONCache
	cacheTTL   time.Duration
	logg       *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCache enables read-through caching of resolved photos.
func WithCache(cache redis.JSONCache, ttl time.Duration) Option {
	return func(c *Client) {
		if cache != nil && ttl > 0 {
			c.cache = cache
			c.cacheTTL = ttl
		}
	}
}

// WithLogger attaches a logger used for cache warnings.
func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		c.logg = logg
	}
}

// NewClient builds a CDN client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Resolve returns the photo metadata for id. An unknown id is a validation
// failure; any other upstream problem is reported as a failed dependency.
func (c *Client) Resolve(ctx context.Context, id string) (*dbtypes.Photo, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeFailedDependency, "cdn client not configured")
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "photo id is required")
	}

	if photo, ok := c.cached(ctx, trimmed); ok {
		return photo, nil
	}

	endpoint := fmt.Sprintf("%s/api/v1/images/%s/", c.baseURL, url.PathEscape(trimmed))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeFailedDependency, err, "build cdn request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeFailedDependency, err, "execute cdn request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "photo not found").
			WithDetails(map[string]any{"photo_id": trimmed})
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeFailedDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "cdn request failed")
	}

	var photo dbtypes.Photo
	if err := json.NewDecoder(resp.Body).Decode(&photo); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeFailedDependency, err, "decode cdn response")
	}
	if photo.ID == "" {
		photo.ID = trimmed
	}

	c.store(ctx, &photo)
	return &photo, nil
}

func (c *Client) cached(ctx context.Context, id string) (*dbtypes.Photo, bool) {
	if c.cache == nil {
		return nil, false
	}
	var photo dbtypes.Photo
	if err := c.cache.GetJSON(ctx, c.cache.CacheKey(cacheScope, id), &photo); err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) && c.logg != nil {
			c.logg.Warn(c.logg.WithField(ctx, "photo_id", id), "cdn cache read failed: "+err.Error())
		}
		return nil, false
	}
	return &photo, true
}

func (c *Client) store(ctx context.Context, photo *dbtypes.Photo) {
	if c.cache == nil {
		return
	}
	if err := c.cache.SetJSON(ctx, c.cache.CacheKey(cacheScope, photo.ID), photo, c.cacheTTL); err != nil && c.logg != nil {
		c.logg.Warn(c.logg.WithField(ctx, "photo_id", photo.ID), "cdn cache write failed: "+err.Error())
	}
}
