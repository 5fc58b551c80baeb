// Package github implements the Transport port using the go-github library
// for REST calls and a hand-rolled HTTP client for GraphQL.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/reviewbuddy/reviewbuddy/internal/cache"
	"github.com/reviewbuddy/reviewbuddy/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Transport = (*Client)(nil)

// Client implements the driven.Transport port. REST traffic goes through
// go-github; GraphQL requests are posted directly to the GraphQL endpoint.
// Read responses are cached as raw JSON; any mutation clears the entire cache.
type Client struct {
	gh         *gh.Client
	token      string // Stored for GraphQL Authorization header.
	graphqlURL string // "https://api.github.com/graphql" in production; derived from baseURL in tests.
	cache      *cache.Cache
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
//
// The response cache is shared with callers so they can observe invalidation.
func NewClient(token string, responseCache *cache.Cache) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{
		gh:         client,
		token:      token,
		graphqlURL: "https://api.github.com/graphql",
		cache:      responseCache,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token string, responseCache *cache.Cache) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	// Derive graphqlURL from baseURL so httptest servers can intercept GraphQL requests.
	graphqlU := *u
	graphqlU.Path = "/graphql"

	return &Client{
		gh:         client,
		token:      token,
		graphqlURL: graphqlU.String(),
		cache:      responseCache,
	}, nil
}

// REST issues a single REST API call. For GET requests params become query
// string parameters and successful responses are cached; for other methods
// params are sent as the JSON request body and the cache is cleared on success.
// When out is non-nil the response body is unmarshaled into it.
func (c *Client) REST(ctx context.Context, method, endpoint string, params map[string]any, out any) error {
	method = strings.ToUpper(method)
	isRead := method == http.MethodGet

	var key string
	if isRead {
		key = cache.Key("rest", method, endpoint, params)
		if raw, ok := c.cache.Get(key); ok {
			return decodeBody(raw, out)
		}
	}

	u := strings.TrimPrefix(endpoint, "/")
	var body any
	if isRead {
		if len(params) > 0 {
			u += "?" + encodeQuery(params)
		}
	} else if len(params) > 0 {
		body = params
	}

	req, err := c.gh.NewRequest(method, u, body)
	if err != nil {
		return fmt.Errorf("building %s %s request: %w", method, endpoint, err)
	}

	var buf bytes.Buffer
	if _, err := c.gh.Do(ctx, req, &buf); err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}

	raw := buf.Bytes()
	if err := decodeBody(raw, out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, endpoint, err)
	}

	if isRead {
		c.cache.Put(key, raw)
	} else {
		c.cache.Clear()
	}
	return nil
}

// RESTPaginated issues a GET request and follows Link-header pagination,
// concatenating array pages into a single list before unmarshaling into out.
// A page that is not a JSON array is kept as a single element.
func (c *Client) RESTPaginated(ctx context.Context, endpoint string, params map[string]any, out any) error {
	key := cache.Key("rest-paginated", endpoint, params)
	if raw, ok := c.cache.Get(key); ok {
		return decodeBody(raw, out)
	}

	merged := make([]json.RawMessage, 0)
	page := 0
	for {
		pageParams := make(map[string]any, len(params)+2)
		for k, v := range params {
			pageParams[k] = v
		}
		pageParams["per_page"] = 100
		if page > 0 {
			pageParams["page"] = page
		}

		u := strings.TrimPrefix(endpoint, "/") + "?" + encodeQuery(pageParams)
		req, err := c.gh.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("building GET %s request: %w", endpoint, err)
		}

		var buf bytes.Buffer
		resp, err := c.gh.Do(ctx, req, &buf)
		if err != nil {
			return fmt.Errorf("GET %s (page %d): %w", endpoint, page, err)
		}

		var items []json.RawMessage
		if err := json.Unmarshal(buf.Bytes(), &items); err != nil {
			merged = append(merged, json.RawMessage(bytes.Clone(buf.Bytes())))
		} else {
			merged = append(merged, items...)
		}

		if resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("merging %s pages: %w", endpoint, err)
	}
	if err := decodeBody(raw, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", endpoint, err)
	}

	c.cache.Put(key, raw)
	return nil
}

// decodeBody unmarshals raw into out, tolerating empty bodies (204 No Content)
// and a nil out for callers that only care about side effects.
func decodeBody(raw []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// encodeQuery renders params as a query string with keys sorted so equivalent
// requests produce identical cache keys and URLs.
func encodeQuery(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, k := range keys {
		values.Set(k, fmt.Sprint(params[k]))
	}
	return values.Encode()
}
