package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const (
	pageSize       = 10
	maxPages       = 10
	defaultTimeout = 15 * time.Second

	unknownPublishDate = "Unknown"
)

// Result is one raw item returned by the search API.
type Result struct {
	Title   string  `json:"title"`
	Link    string  `json:"link"`
	Snippet string  `json:"snippet"`
	Pagemap Pagemap `json:"pagemap"`
}

// Pagemap carries the optional article metadata attached to a result.
type Pagemap struct {
	Metatags []map[string]string `json:"metatags"`
}

// PublishedTime extracts the article:published_time metatag from the first
// metatag entry, or "Unknown" when the metadata is absent.
func (r Result) PublishedTime() string {
	if len(r.Pagemap.Metatags) == 0 {
		return unknownPublishDate
	}
	if value := r.Pagemap.Metatags[0]["article:published_time"]; value != "" {
		return value
	}
	return unknownPublishDate
}

// Searcher aggregates paginated search results for one (query, site) pair.
type Searcher interface {
	Search(ctx context.Context, query, site string) ([]Result, error)
}

// Client drives a Google Custom Search style API.
type Client struct {
	endpoint   string
	apiKey     string
	engineID   string
	httpClient *http.Client
	logger     *logrus.Logger
}

var _ Searcher = (*Client)(nil)

// Options configures the search client.
type Options struct {
	Endpoint   string
	APIKey     string
	EngineID   string
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// NewClient validates the options and returns a search client. Missing
// credentials are tolerated so the rest of the application can run; requests
// made without them will be rejected upstream and surface as empty results.
func NewClient(opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, eris.New("search endpoint is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	client := &Client{
		endpoint:   opts.Endpoint,
		apiKey:     opts.APIKey,
		engineID:   opts.EngineID,
		httpClient: httpClient,
		logger:     opts.Logger,
	}

	if !client.Configured() && opts.Logger != nil {
		opts.Logger.Warn("search api credentials missing; scans will find no articles")
	}

	return client, nil
}

// Configured reports whether API credentials are present.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.engineID != ""
}

// Search pages through results for the query restricted to the site,
// starting at offset 1 and advancing by the page size. Pagination stops on
// an empty page, a short page, or the page cap. Request failures end the
// pagination for this pair and are not returned as errors; only context
// cancellation aborts the search.
func (c *Client) Search(ctx context.Context, query, site string) ([]Result, error) {
	var all []Result

	start := 1
	for page := 0; page < maxPages; page++ {
		items, err := c.fetchPage(ctx, query, site, start)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "search cancelled")
			}
			c.logWarn(logrus.Fields{"site": site, "start": start, "error": err.Error()},
				"search request failed; treating as end of results")
			break
		}

		if len(items) == 0 {
			break
		}

		all = append(all, items...)

		if len(items) < pageSize {
			break
		}

		start += pageSize
	}

	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, query, site string, start int) ([]Result, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("%s site:%s", query, site))
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("start", strconv.Itoa(start))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "building search request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "calling search api")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, eris.Errorf("search api returned status %d", resp.StatusCode)
	}

	var payload struct {
		Items []Result `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, eris.Wrap(err, "decoding search response")
	}

	return payload.Items, nil
}

func (c *Client) logWarn(fields logrus.Fields, message string) {
	if c.logger == nil {
		return
	}
	c.logger.WithFields(fields).Warn(message)
}
