// Package drive lists files from the Google Drive v3 API using a service
// account.
package drive

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/fruitsalade/drivetracker/internal/source"
	"github.com/fruitsalade/drivetracker/pkg/models"
	"github.com/fruitsalade/drivetracker/pkg/retry"
)

const (
	listFields = "nextPageToken, files(id, name, parents, mimeType)"
	pageSize   = 1000
	// maxPages bounds pagination against a server that never stops
	// returning page tokens.
	maxPages = 10000
)

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Account *ServiceAccount
}

// Client lists Drive files.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *tokenSource
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		tokens:     newTokenSource(cfg.Account, httpClient),
	}
}

// Name implements source.Lister.
func (c *Client) Name() string {
	return "drive"
}

// List fetches every file visible to the service account, following page
// tokens.
func (c *Client) List(ctx context.Context) ([]models.FileRecord, error) {
	var files []models.FileRecord
	pageToken := ""
	for page := 0; page < maxPages; page++ {
		listing, err := c.listPage(ctx, pageToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", source.ErrFetch, err)
		}
		files = append(files, listing.Files...)
		if listing.NextPageToken == "" {
			return files, nil
		}
		pageToken = listing.NextPageToken
	}
	return nil, fmt.Errorf("%w: more than %d pages", source.ErrFetch, maxPages)
}

func (c *Client) listPage(ctx context.Context, pageToken string) (*models.Listing, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, retry.Retryable(fmt.Errorf("access token: %w", err))
	}

	q := url.Values{
		"fields":   {listFields},
		"pageSize": {fmt.Sprint(pageSize)},
	}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/files?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	token.SetAuthHeader(req)
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, retry.Retryable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("drive returned %d: %s", resp.StatusCode, body)
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			c.tokens.reset()
			return nil, retry.Retryable(err)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, retry.Retryable(err)
		}
		return nil, err
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		reader = gr
	}

	var listing models.Listing
	if err := json.NewDecoder(reader).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	return &listing, nil
}
