// Package picnic is the grocery store client used by the deal crawler. It keeps a
// logged-in session and fetches product detail pages.
package picnic

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"sjsage522/dealrefresher/helpers"
	"sjsage522/dealrefresher/internal/pdp"
	"sjsage522/dealrefresher/logger"
	"sjsage522/dealrefresher/pkg/errors"

	"golang.org/x/time/rate"
)

const (
	provider   = "picnic"
	apiVersion = "15"
	clientID   = 30100
	agent      = "30100;1.15.272-#15295;"
	deviceID   = "3C417201548B2E3B"
	authHeader = "x-picnic-auth"
)

// Options configures a Client.
type Options struct {
	Username    string
	Password    string
	CountryCode string
	// BaseURL overrides the storefront URL derived from CountryCode.
	BaseURL    string
	HTTPClient *http.Client
	// MinInterval is the minimum spacing between upstream requests.
	MinInterval time.Duration
}

// Client talks to the store's storefront API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	limiter    *rate.Limiter
	log        *logger.Logger

	mu    sync.Mutex
	token string
}

// New creates a client. It does not log in until the first request.
func New(opts Options) (*Client, error) {
	if opts.Username == "" || opts.Password == "" {
		return nil, errors.NewConfiguration("picnic credentials not configured", nil)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		cc := strings.ToLower(opts.CountryCode)
		if cc == "" {
			cc = "nl"
		}
		baseURL = fmt.Sprintf("https://storefront-prod.%s.picnicinternational.com/api/%s", cc, apiVersion)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = helpers.NewHTTPClient(15 * time.Second)
	}

	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   opts.Username,
		password:   opts.Password,
		limiter:    rate.NewLimiter(limit, 1),
		log:        logger.ForClient(),
	}, nil
}

// FetchProductDetailsPage returns the parsed PDP of productID. An expired session
// is renewed once; a second auth failure is returned to the caller.
func (c *Client) FetchProductDetailsPage(ctx context.Context, productID string) (*pdp.Document, error) {
	if productID == "" {
		return nil, errors.NewValidation(provider, "product id is empty")
	}

	body, err := c.getPDP(ctx, productID)
	if errors.IsAuth(err) {
		c.log.Info().Str("product_id", productID).Msg("Session rejected, logging in again")
		c.ResetSession()
		body, err = c.getPDP(ctx, productID)
	}
	if err != nil {
		return nil, err
	}

	doc, err := pdp.ParseBytes(body)
	if err != nil {
		return nil, errors.NewParsing(provider, fmt.Sprintf("pdp %s", productID), err)
	}
	return doc, nil
}

func (c *Client) getPDP(ctx context.Context, productID string) ([]byte, error) {
	token, err := c.session(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("id", productID)
	q.Set("show_category_action", "true")

	req, err := c.newRequest(ctx, http.MethodGet, "/pages/product-details-page-root?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(authHeader, token)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return helpers.Do(c.httpClient, provider, req)
}

// session returns the current auth token, logging in when there is none.
func (c *Client) session(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" {
		return c.token, nil
	}

	token, err := c.login(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	return token, nil
}

// ResetSession drops the auth token so the next request logs in again.
func (c *Client) ResetSession() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

type loginRequest struct {
	Key      string `json:"key"`
	Secret   string `json:"secret"`
	ClientID int    `json:"client_id"`
}

func (c *Client) login(ctx context.Context) (string, error) {
	sum := md5.Sum([]byte(c.password))
	payload, err := json.Marshal(loginRequest{
		Key:      c.username,
		Secret:   hex.EncodeToString(sum[:]),
		ClientID: clientID,
	})
	if err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/user/login", payload)
	if err != nil {
		return "", err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.NewNetwork(provider, "login", err)
	}
	defer resp.Body.Close()

	if err := helpers.StatusError(provider, resp, nil); err != nil {
		return "", err
	}

	token := resp.Header.Get(authHeader)
	if token == "" {
		return "", errors.NewAuth(provider, "login response carried no auth token", nil)
	}

	c.log.Debug().Msg("Logged in")
	return token, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "okhttp/4.12.0")
	req.Header.Set("x-picnic-agent", agent)
	req.Header.Set("x-picnic-did", deviceID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}
	return req, nil
}
