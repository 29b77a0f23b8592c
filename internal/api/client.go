package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"courtbook/internal/metrics"
	"courtbook/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Client is an HTTP client for the court, coach, pricing, wallet and payment APIs.
type Client struct {
	baseURL    string
	apiKey     string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// NewClient constructs a client with baseURL and API key.
func NewClient(baseURL, apiKey string) *Client {
	nop := zerolog.Nop()
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     &nop,
	}
}

// WithLogger sets the logger used for cache maintenance failures.
func (c *Client) WithLogger(logger *zerolog.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithToken sets the bearer token of the signed-in user.
func (c *Client) WithToken(token string) *Client {
	c.token = token
	return c
}

// WithTimeout overrides the HTTP timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.httpClient.Timeout = d
	}
	return c
}

// UseRateLimit limits outbound requests to rps with the given burst.
func (c *Client) UseRateLimit(rps float64, burst int) {
	if rps <= 0 {
		c.limiter = nil
		return
	}
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// UseRedisCache configures optional Redis caching for availability lookups.
// Wallet balances are never cached.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// GetAvailability fetches the raw schedule of a court or coach for [from, to].
func (c *Client) GetAvailability(ctx context.Context, resourceID string, from, to time.Time) (*model.AvailabilityResponse, error) {
	q := url.Values{}
	q.Set("from", from.Format(time.RFC3339))
	q.Set("to", to.Format(time.RFC3339))
	endpoint := fmt.Sprintf("%s/api/v1/resources/%s/availability?%s", c.baseURL, url.PathEscape(resourceID), q.Encode())
	cacheKey := fmt.Sprintf("availability:%s:%d:%d", resourceID, from.Unix(), to.Unix())
	var resp model.AvailabilityResponse

	if c.readCache(ctx, cacheKey, &resp) {
		metrics.IncAPIRequest("availability", "cache_hit")
		return &resp, nil
	}

	if err := c.doGet(ctx, "availability", endpoint, &resp); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, resp)
	return &resp, nil
}

// InvalidateAvailability drops cached schedules of a resource, e.g. after a booking.
func (c *Client) InvalidateAvailability(ctx context.Context, resourceID string) error {
	if c.redis == nil {
		return nil
	}
	iter := c.redis.Scan(ctx, 0, fmt.Sprintf("availability:%s:*", resourceID), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...).Err()
}

// CalculatePrice asks the server for the authoritative price of a booking.
func (c *Client) CalculatePrice(ctx context.Context, req model.PriceRequest) (*model.PriceDetails, error) {
	endpoint := fmt.Sprintf("%s/api/v1/bookings/price", c.baseURL)
	var resp model.PriceDetails
	if err := c.doPost(ctx, "price", endpoint, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetWalletBalance fetches the current balance. It always hits the server.
func (c *Client) GetWalletBalance(ctx context.Context) (*model.WalletBalance, error) {
	endpoint := fmt.Sprintf("%s/api/v1/wallet/balance", c.baseURL)
	var resp struct {
		Balance float64 `json:"balance"`
	}
	if err := c.doGet(ctx, "wallet", endpoint, &resp); err != nil {
		return nil, err
	}
	return &model.WalletBalance{Amount: resp.Balance, FetchedAt: time.Now()}, nil
}

// CreateBooking creates a booking for the flattened slots.
func (c *Client) CreateBooking(ctx context.Context, req model.BookingRequest) (*model.BookingResponse, error) {
	endpoint := fmt.Sprintf("%s/api/v1/bookings", c.baseURL)
	var resp model.BookingResponse
	if err := c.doPost(ctx, "booking", endpoint, req, &resp); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(req.BookingDetails))
	for _, d := range req.BookingDetails {
		if seen[d.ResourceID] {
			continue
		}
		seen[d.ResourceID] = true
		if err := c.InvalidateAvailability(ctx, d.ResourceID); err != nil {
			c.logger.Warn().Err(err).Str("resource_id", d.ResourceID).Msg("failed to invalidate cached availability")
		}
	}
	return &resp, nil
}

// ProcessPayment charges the wallet for a booking.
func (c *Client) ProcessPayment(ctx context.Context, req model.PaymentRequest) error {
	endpoint := fmt.Sprintf("%s/api/v1/payments", c.baseURL)
	return c.doPost(ctx, "payment", endpoint, req, nil)
}

// HealthCheck checks if the API is available.
func (c *Client) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/healthz", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) doGet(ctx context.Context, name, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	c.addHeaders(req)
	return c.do(name, req, out)
}

func (c *Client) doPost(ctx context.Context, name, endpoint string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req)
	return c.do(name, req, out)
}

func (c *Client) do(name string, req *http.Request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			metrics.IncAPIRequest(name, "throttled")
			return err
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IncAPIRequest(name, "error")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		metrics.IncAPIRequest(name, "error")
		return &HTTPError{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	metrics.IncAPIRequest(name, "ok")
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	return dec.Decode(out)
}

func (c *Client) addHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// errorMessage extracts {"message": ...} or {"error": ...} from an error body.
func errorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var wrap struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &wrap) == nil {
		if wrap.Message != "" {
			return wrap.Message
		}
		if wrap.Error != "" {
			return wrap.Error
		}
	}
	return strings.TrimSpace(string(data))
}
