package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Client queries a catalog-style open-data API. Datasets are addressed by
// resource id; responses are JSON arrays of records whose field names vary
// per dataset and are mapped explicitly by each source.
type Client struct {
	baseURL    string
	appToken   string
	fetchLimit int
	httpClient *http.Client
}

// NewClient creates a catalog client with an explicit per-call timeout.
func NewClient(baseURL, appToken string, fetchLimit int, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		appToken:   appToken,
		fetchLimit: fetchLimit,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// record is one raw catalog row. The catalog serves every value as a string.
type record map[string]string

// Query fetches a dataset filtered by the given field=value pairs, capped at
// the configured limit and sorted by dateField descending.
func (c *Client) Query(ctx context.Context, resource, dateField string, filters map[string]string) ([]record, error) {
	params := url.Values{}
	params.Set("$limit", fmt.Sprintf("%d", c.fetchLimit))
	if dateField != "" {
		params.Set("$order", dateField+" DESC")
	}
	for field, value := range filters {
		params.Set(field, value)
	}

	reqURL := fmt.Sprintf("%s/%s.json?%s", c.baseURL, resource, params.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog request: %w", err)
	}
	if c.appToken != "" {
		req.Header.Set("X-App-Token", c.appToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("catalog %s returned status %d: %s", resource, resp.StatusCode, string(body))
	}

	var records []record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode catalog %s response: %w", resource, err)
	}
	return records, nil
}

// field returns a trimmed record value, empty when absent.
func (r record) field(name string) string {
	return strings.TrimSpace(r[name])
}

// catalog date layouts, most specific first.
var dateLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
	"20060102",
}

// date parses a record date field; the zero time when absent or unparsable.
func (r record) date(name string) time.Time {
	raw := r.field(name)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// dateOrNil is date for nullable columns.
func (r record) dateOrNil(name string) *time.Time {
	t := r.date(name)
	if t.IsZero() {
		return nil
	}
	return &t
}

// amount parses a money field, stripping the $ and thousands separators some
// datasets include. Zero when absent or unparsable.
func (r record) amount(name string) decimal.Decimal {
	raw := strings.NewReplacer("$", "", ",", "").Replace(r.field(name))
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}
