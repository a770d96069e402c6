package pointofsale

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

	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
)

const (
	defaultTimeout              = 10 * time.Second
	responseBodyReadLimit int64 = 1024
)

var errShopHostRequired = errors.New("shop host is required")

// Client queries the shop service for the variations a point of sale carries.
type Client struct {
	httpClient *http.Client
	shopHost   string
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

// NewClient builds the point-of-sale client for shopHost.
func NewClient(shopHost string, timeout time.Duration, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(shopHost), "/")
	if trimmed == "" {
		return nil, errShopHostRequired
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &Client{
		shopHost:   trimmed,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// ActiveVariations returns the shop's JSON answer for the master's variations
// active at the point of sale. The body is passed through unchanged; every
// failure maps to CodeFailedDependency.
func (c *Client) ActiveVariations(ctx context.Context, pointOfSaleID, masterID string) (json.RawMessage, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeFailedDependency, "point of sale client not configured")
	}
	pos := strings.TrimSpace(pointOfSaleID)
	if pos == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "point of sale id is required")
	}

	endpoint := fmt.Sprintf("%s/api/v1/system/point_of_sale/%s/active_products/%s/",
		c.shopHost, url.PathEscape(pos), url.PathEscape(masterID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeFailedDependency, err, "build point of sale request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeFailedDependency, err, "execute point of sale request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeFailedDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "point of sale request failed")
	}

	var body json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeFailedDependency, err, "decode point of sale response")
	}
	return body, nil
}
