package application

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/reviewbuddy/reviewbuddy/internal/config"
	"github.com/reviewbuddy/reviewbuddy/internal/domain/model"
)

// mockTransport implements driven.Transport with pluggable handlers.
type mockTransport struct {
	graphqlFn func(query string, variables map[string]any, out any) error
	restFn    func(method, endpoint string, params map[string]any, out any) error
	pagFn     func(endpoint string, params map[string]any, out any) error

	graphqlCalls []string
	restCalls    []string
	pagCalls     []string
}

func (m *mockTransport) GraphQL(_ context.Context, query string, variables map[string]any, out any) error {
	m.graphqlCalls = append(m.graphqlCalls, query)
	if m.graphqlFn == nil {
		return nil
	}
	return m.graphqlFn(query, variables, out)
}

func (m *mockTransport) REST(_ context.Context, method, endpoint string, params map[string]any, out any) error {
	m.restCalls = append(m.restCalls, method+" "+endpoint)
	if m.restFn == nil {
		return nil
	}
	return m.restFn(method, endpoint, params, out)
}

func (m *mockTransport) RESTPaginated(_ context.Context, endpoint string, params map[string]any, out any) error {
	m.pagCalls = append(m.pagCalls, endpoint)
	if m.pagFn == nil {
		return decodeJSON("[]", out)
	}
	return m.pagFn(endpoint, params, out)
}

// decodeJSON unmarshals a fixture string into the transport out parameter.
func decodeJSON(raw string, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decoding fixture: %w", err)
	}
	return nil
}

// mockLocalRepo implements driven.LocalRepo.
type mockLocalRepo struct {
	repo   string
	branch string
}

func (m *mockLocalRepo) DetectRepo() (string, error) {
	if m.repo == "" {
		return "", fmt.Errorf("no remote configured")
	}
	return m.repo, nil
}

func (m *mockLocalRepo) CurrentBranch() (string, error) {
	if m.branch == "" {
		return "", fmt.Errorf("detached HEAD")
	}
	return m.branch, nil
}

// testConfig mirrors the loaded per-reviewer defaults without touching the
// filesystem or environment.
func testConfig() *config.Config {
	return &config.Config{
		Reviewers: map[string]config.ReviewerConfig{
			"unblocked":  {Enabled: true, AutoResolveStale: true, ResolveLevels: model.AllSeverities()},
			"devin":      {Enabled: true, AutoResolveStale: false, ResolveLevels: []model.Severity{model.SeverityInfo}},
			"coderabbit": {Enabled: true, AutoResolveStale: false},
		},
		OwnerLogins:     []string{"ourdev"},
		CacheTTLSeconds: 30,
	}
}
