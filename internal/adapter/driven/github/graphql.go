package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/reviewbuddy/reviewbuddy/internal/cache"
)

// graphqlHTTPClient is the HTTP client used for GraphQL requests.
// It enforces a 30-second timeout as a safety net alongside context cancellation.
var graphqlHTTPClient = &http.Client{Timeout: 30 * time.Second}

// graphqlRequest is the JSON body sent to the GitHub GraphQL API.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// graphqlEnvelope is the outer shape of every GraphQL response. Data is kept
// raw so callers can decode it into their own typed structures.
type graphqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// GraphQL posts a query or mutation to the GitHub GraphQL endpoint and
// unmarshals the response's data object into out. Query responses are cached;
// a successful mutation clears the entire cache. GraphQL-level errors are
// surfaced as Go errors even when the HTTP status is 200.
func (c *Client) GraphQL(ctx context.Context, query string, variables map[string]any, out any) error {
	isMutation := strings.HasPrefix(strings.ToLower(strings.TrimSpace(query)), "mutation")

	var key string
	if !isMutation {
		key = cache.Key("graphql", query, variables)
		if raw, ok := c.cache.Get(key); ok {
			return decodeEnvelope(raw, out)
		}
	}

	bodyBytes, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshaling graphql request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("creating graphql request: %w", err)
	}
	httpReq.Header.Set("Authorization", fmt.Sprintf("bearer %s", c.token))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := graphqlHTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("posting graphql request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading graphql response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graphql request failed with status %d: %s", resp.StatusCode, truncateBody(raw))
	}

	if err := decodeEnvelope(raw, out); err != nil {
		return err
	}

	if isMutation {
		c.cache.Clear()
	} else {
		c.cache.Put(key, raw)
	}
	return nil
}

// decodeEnvelope checks the errors array before unmarshaling data into out.
func decodeEnvelope(raw []byte, out any) error {
	var env graphqlEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decoding graphql envelope: %w", err)
	}
	if len(env.Errors) > 0 {
		messages := make([]string, len(env.Errors))
		for i, e := range env.Errors {
			messages[i] = e.Message
		}
		return fmt.Errorf("graphql error: %s", strings.Join(messages, "; "))
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding graphql data: %w", err)
	}
	return nil
}

func truncateBody(raw []byte) string {
	const limit = 200
	s := string(raw)
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
