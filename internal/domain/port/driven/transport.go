// Package driven defines the outbound port interfaces the application core
// depends on. Adapters under internal/adapter/driven implement them.
package driven

import "context"

// Transport is the GitHub API boundary. Queries are cacheable; mutations
// (GraphQL documents starting with "mutation", non-GET REST calls) must
// bypass the response cache and invalidate it entirely on success.
type Transport interface {
	// GraphQL executes a query or mutation and decodes the full response
	// envelope (including "data") into out. A response carrying a non-empty
	// "errors" array is returned as an error, never silently swallowed.
	GraphQL(ctx context.Context, query string, variables map[string]any, out any) error

	// REST executes a single REST call against the given endpoint path
	// (e.g. "/repos/owner/repo/pulls/42"). params become the query string
	// for GET and the JSON body otherwise. out may be nil when the response
	// body is irrelevant.
	REST(ctx context.Context, method, endpoint string, params map[string]any, out any) error

	// RESTPaginated performs a GET and follows Link continuation headers,
	// decoding the concatenation of all page items into out (a pointer to a
	// slice).
	RESTPaginated(ctx context.Context, endpoint string, params map[string]any, out any) error
}
