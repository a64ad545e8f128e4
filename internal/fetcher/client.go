package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/cache"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/resilience"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
)

var _ domain.Fetcher = (*Client)(nil)

// Client fetches pages with a browser-like TLS fingerprint
type Client struct {
	tlsClient tls_client.HttpClient
	userAgent string
	retrier   *resilience.Retrier
	limiter   *resilience.TokenBucket
	logger    *utils.Logger

	cache    domain.Cache
	cacheTTL time.Duration

	delayMin time.Duration
	delayMax time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// ClientOptions contains options for creating a Client
type ClientOptions struct {
	Timeout    time.Duration
	MaxRetries int
	Cache      domain.Cache
	CacheTTL   time.Duration
	UserAgent  string
	ProxyURL   string

	// RandomDelayMin and RandomDelayMax bound the pause before each
	// network request. Zero disables the pause.
	RandomDelayMin time.Duration
	RandomDelayMax time.Duration

	Limiter *resilience.TokenBucket
	Logger  *utils.Logger
}

// DefaultClientOptions returns default client options
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		CacheTTL:   24 * time.Hour,
	}
}

// NewClient creates a new fetch client
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}

	tlsOpts := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(int(opts.Timeout.Seconds())),
		tls_client.WithClientProfile(profiles.Chrome_131),
		tls_client.WithRandomTLSExtensionOrder(),
		tls_client.WithCookieJar(tls_client.NewCookieJar()),
	}
	if opts.ProxyURL != "" {
		tlsOpts = append(tlsOpts, tls_client.WithProxyUrl(opts.ProxyURL))
	}

	tlsClient, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), tlsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tls client: %w", err)
	}

	retry := resilience.DefaultRetryOptions()
	retry.MaxRetries = opts.MaxRetries
	if opts.MaxRetries == 0 {
		retry.MaxRetries = -1
	}

	return &Client{
		tlsClient: tlsClient,
		userAgent: opts.UserAgent,
		retrier:   resilience.NewRetrier(retry, opts.Logger),
		limiter:   opts.Limiter,
		logger:    opts.Logger.WithComponent("fetcher"),
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		delayMin:  opts.RandomDelayMin,
		delayMax:  opts.RandomDelayMax,
		sleep:     sleepContext,
	}, nil
}

// Get fetches content from a URL
func (c *Client) Get(ctx context.Context, url string) (*domain.Response, error) {
	return c.GetWithHeaders(ctx, url, nil)
}

// GetWithHeaders fetches content with custom headers. Successful bodies
// are cached by normalized URL.
func (c *Client) GetWithHeaders(ctx context.Context, url string, extraHeaders map[string]string) (*domain.Response, error) {
	if cached := c.fromCache(ctx, url); cached != nil {
		c.logger.Debug().Str("url", url).Msg("Page served from cache")
		return cached, nil
	}

	resp, err := resilience.RetryWithValue(ctx, c.retrier, func() (*domain.Response, error) {
		if err := c.pause(ctx); err != nil {
			return nil, err
		}
		return c.doRequest(ctx, url, extraHeaders)
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, cache.PageKey(url), resp.Body, c.cacheTTL); err != nil {
			c.logger.Warn().Err(err).Str("url", url).Msg("Failed to cache page")
		}
	}
	return resp, nil
}

// pause applies the rate limit and the random politeness delay
func (c *Client) pause(ctx context.Context) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if c.delayMax <= 0 {
		return nil
	}
	return c.sleep(ctx, RandomDelay(c.delayMin, c.delayMax))
}

func (c *Client) doRequest(ctx context.Context, targetURL string, extraHeaders map[string]string) (*domain.Response, error) {
	req, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodGet, targetURL, nil)
	if err != nil {
		return nil, domain.NewFetchError(targetURL, 0, fmt.Errorf("%w: %v", domain.ErrInvalidURL, err))
	}

	for k, v := range StealthHeaders(c.userAgent) {
		req.Header.Set(k, v)
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.tlsClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &domain.RetryableError{
			Err: domain.NewFetchError(targetURL, 0, fmt.Errorf("request failed: %w", err)),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		fetchErr := domain.NewFetchError(targetURL, resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode))
		if domain.IsRetryableStatus(resp.StatusCode) {
			return nil, &domain.RetryableError{
				Err:        fetchErr,
				RetryAfter: int(resilience.ParseRetryAfter(resp.Header.Get("Retry-After")).Seconds()),
			}
		}
		return nil, fetchErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewFetchError(targetURL, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err))
	}

	headers := make(http.Header, len(resp.Header))
	for k, v := range resp.Header {
		headers[k] = v
	}

	return &domain.Response{
		StatusCode:  resp.StatusCode,
		Body:        body,
		Headers:     headers,
		ContentType: resp.Header.Get("Content-Type"),
		URL:         targetURL,
	}, nil
}

func (c *Client) fromCache(ctx context.Context, url string) *domain.Response {
	if c.cache == nil {
		return nil
	}
	data, err := c.cache.Get(ctx, cache.PageKey(url))
	if err != nil {
		return nil
	}
	return &domain.Response{
		StatusCode:  http.StatusOK,
		Body:        data,
		Headers:     http.Header{"Content-Type": []string{"text/html"}},
		ContentType: "text/html",
		URL:         url,
		FromCache:   true,
	}
}

// GetCookies returns the cookies held for a URL
func (c *Client) GetCookies(rawURL string) []*http.Cookie {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	cookies := c.tlsClient.GetCookies(parsedURL)
	result := make([]*http.Cookie, len(cookies))
	for i, cookie := range cookies {
		result[i] = &http.Cookie{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Path:     cookie.Path,
			Domain:   cookie.Domain,
			Expires:  cookie.Expires,
			Secure:   cookie.Secure,
			HttpOnly: cookie.HttpOnly,
		}
	}
	return result
}

// Close satisfies domain.Fetcher. The tls client holds no resources
// beyond pooled connections.
func (c *Client) Close() error {
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
