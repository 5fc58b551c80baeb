package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewbuddy/reviewbuddy/internal/cache"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClientWithHTTPClient(srv.Client(), srv.URL+"/", "test-token", cache.New(time.Minute))
	require.NoError(t, err)
	return client
}

func TestREST_GetResponsesCached(t *testing.T) {
	hits := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, `{"number": 7, "title": "cached"}`)
	}))

	var first, second struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
	}
	require.NoError(t, client.REST(context.Background(), "GET", "/repos/o/r/pulls/7", nil, &first))
	require.NoError(t, client.REST(context.Background(), "GET", "/repos/o/r/pulls/7", nil, &second))

	assert.Equal(t, 1, hits, "second read served from cache")
	assert.Equal(t, first, second)
}

func TestREST_GetParamsBecomeQueryString(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `[]`)
	}))

	err := client.REST(context.Background(), "GET", "/repos/o/r/pulls", map[string]any{"state": "open", "base": "main"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "base=main&state=open", gotQuery, "keys sorted for stable cache keys")
}

func TestREST_MutationSendsBodyAndClearsCache(t *testing.T) {
	hits := 0
	var postBody map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Method == http.MethodPost {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&postBody))
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id": 1}`)
			return
		}
		fmt.Fprint(w, `{"number": 7}`)
	}))

	ctx := context.Background()
	require.NoError(t, client.REST(ctx, "GET", "/repos/o/r/pulls/7", nil, nil))
	require.NoError(t, client.REST(ctx, "POST", "/repos/o/r/issues/7/comments", map[string]any{"body": "hello"}, nil))
	require.NoError(t, client.REST(ctx, "GET", "/repos/o/r/pulls/7", nil, nil))

	assert.Equal(t, 3, hits, "mutation invalidated the cached read")
	assert.Equal(t, map[string]any{"body": "hello"}, postBody)
}

func TestRESTPaginated_FollowsLinkHeader(t *testing.T) {
	var srv *httptest.Server
	requests := 0
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"number": 3}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s%s?page=2&per_page=100>; rel="next"`, srv.URL, r.URL.Path))
		fmt.Fprint(w, `[{"number": 1}, {"number": 2}]`)
	}))
	defer srv.Close()

	client, err := NewClientWithHTTPClient(srv.Client(), srv.URL+"/", "test-token", cache.New(time.Minute))
	require.NoError(t, err)

	var prs []struct {
		Number int `json:"number"`
	}
	require.NoError(t, client.RESTPaginated(context.Background(), "/repos/o/r/pulls", map[string]any{"state": "open"}, &prs))

	assert.Equal(t, 2, requests)
	require.Len(t, prs, 3)
	assert.Equal(t, 1, prs[0].Number)
	assert.Equal(t, 3, prs[2].Number)

	// Merged result is cached as a whole.
	require.NoError(t, client.RESTPaginated(context.Background(), "/repos/o/r/pulls", map[string]any{"state": "open"}, &prs))
	assert.Equal(t, 2, requests)
}

func TestGraphQL_QueryCached(t *testing.T) {
	hits := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/graphql", r.URL.Path)
		assert.Equal(t, "bearer test-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"data": {"viewer": {"login": "octocat"}}}`)
	}))

	var resp struct {
		Viewer struct {
			Login string `json:"login"`
		} `json:"viewer"`
	}
	query := `query { viewer { login } }`
	require.NoError(t, client.GraphQL(context.Background(), query, nil, &resp))
	require.NoError(t, client.GraphQL(context.Background(), query, nil, &resp))

	assert.Equal(t, 1, hits)
	assert.Equal(t, "octocat", resp.Viewer.Login)
}

func TestGraphQL_MutationClearsQueryCache(t *testing.T) {
	hits := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "mutation") {
			fmt.Fprint(w, `{"data": {"resolveReviewThread": {"thread": {"id": "PRRT_x"}}}}`)
			return
		}
		fmt.Fprint(w, `{"data": {"viewer": {"login": "octocat"}}}`)
	}))

	ctx := context.Background()
	query := `query { viewer { login } }`
	require.NoError(t, client.GraphQL(ctx, query, nil, nil))
	require.NoError(t, client.GraphQL(ctx, `mutation { resolveReviewThread(input: {threadId: "PRRT_x"}) { thread { id } } }`, nil, nil))
	require.NoError(t, client.GraphQL(ctx, query, nil, nil))

	assert.Equal(t, 3, hits, "mutation invalidated the cached query")
}

func TestGraphQL_ErrorsArraySurfaced(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": null, "errors": [{"message": "Could not resolve to a node"}, {"message": "rate limited"}]}`)
	}))

	err := client.GraphQL(context.Background(), `query { nope }`, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Could not resolve to a node; rate limited")
}

func TestGraphQL_HTTPFailureStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream broke")
	}))

	err := client.GraphQL(context.Background(), `query { viewer { login } }`, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "upstream broke")
}

// Errored query responses must not be cached; a retry hits the API again.
func TestGraphQL_ErrorResponsesNotCached(t *testing.T) {
	hits := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			fmt.Fprint(w, `{"errors": [{"message": "transient"}]}`)
			return
		}
		fmt.Fprint(w, `{"data": {"viewer": {"login": "octocat"}}}`)
	}))

	ctx := context.Background()
	query := `query { viewer { login } }`
	require.Error(t, client.GraphQL(ctx, query, nil, nil))
	require.NoError(t, client.GraphQL(ctx, query, nil, nil))
	assert.Equal(t, 2, hits)
}
