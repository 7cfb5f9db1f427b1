package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pmr-b5/powerwatch/pkg/model"
)

// DefaultURL is the production electricity-status endpoint.
const DefaultURL = "https://pmr-b5.vercel.app/api/electricity-status"

// maxBodySize caps how much of a status response is read.
const maxBodySize = 1 << 20

// FetchError reports why a status record could not be obtained.
type FetchError struct {
	URL    string
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch status from %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch status from %s: %s", e.URL, e.Reason)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves the current status record from the remote API.
type Fetcher struct {
	url    string
	client *http.Client
}

// NewFetcher creates a fetcher for url. A zero timeout leaves the
// http.Client default in place.
func NewFetcher(url string, timeout time.Duration) *Fetcher {
	if url == "" {
		url = DefaultURL
	}
	return &Fetcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// URL returns the endpoint this fetcher queries.
func (f *Fetcher) URL() string { return f.url }

// Fetch performs one GET and decodes the response into a StatusRecord.
func (f *Fetcher) Fetch(ctx context.Context) (*model.StatusRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, f.fail("build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "powerwatch/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.fail("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, f.fail(fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, f.fail("read body", err)
	}

	rec, err := Decode(body)
	if err != nil {
		return nil, f.fail("decode body", err)
	}
	return rec, nil
}

func (f *Fetcher) fail(reason string, err error) *FetchError {
	return &FetchError{URL: f.url, Reason: reason, Err: err}
}

// wirePayload uses pointers so missing fields can be told apart from empty ones.
type wirePayload struct {
	Status      *string `json:"status"`
	LastUpdated *string `json:"lastUpdated"`
}

// Decode parses a status API response body.
func Decode(body []byte) (*model.StatusRecord, error) {
	var p wirePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if p.Status == nil {
		return nil, errors.New(`missing field "status"`)
	}
	if p.LastUpdated == nil {
		return nil, errors.New(`missing field "lastUpdated"`)
	}

	lastUpdated, err := model.ParseTimestamp(*p.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf(`field "lastUpdated": %w`, err)
	}

	rec := model.NewStatusRecord(*p.Status, lastUpdated)
	return &rec, nil
}
