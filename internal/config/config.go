// Package config loads the layered policy configuration: built-in
// per-reviewer defaults, an optional .reviewbuddy.toml file, and
// REVIEWBUDDY_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/reviewbuddy/reviewbuddy/internal/domain/model"
	"github.com/reviewbuddy/reviewbuddy/internal/reviewer"
)

const envPrefix = "REVIEWBUDDY_"

// ReviewerConfig is the per-reviewer resolution policy.
type ReviewerConfig struct {
	// Enabled controls whether this reviewer's threads appear in results at all.
	Enabled bool `koanf:"enabled"`
	// AutoResolveStale controls whether bulk stale resolution touches this
	// reviewer's threads (true = we bulk-resolve on the reviewer's behalf).
	AutoResolveStale bool `koanf:"auto_resolve_stale"`
	// ResolveLevels lists the severities permitted to be auto-resolved.
	ResolveLevels []model.Severity `koanf:"resolve_levels"`
}

// allowsLevel reports whether the severity is in ResolveLevels.
func (rc ReviewerConfig) allowsLevel(s model.Severity) bool {
	for _, lvl := range rc.ResolveLevels {
		if lvl == s {
			return true
		}
	}
	return false
}

// Config is the full loaded configuration.
type Config struct {
	// Reviewers holds per-reviewer policy, keyed by adapter name. Every known
	// adapter has an entry after Load; unknown reviewers fall back to the
	// permissive default at lookup time.
	Reviewers map[string]ReviewerConfig `koanf:"reviewers"`
	// OwnerLogins are the GitHub usernames considered "ours" (human + agent)
	// for triage owner-reply detection.
	OwnerLogins []string `koanf:"owner_logins"`
	// CacheTTLSeconds is the response cache TTL.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`
}

// permissiveDefault is the policy applied to reviewers no adapter knows:
// enabled, all severities resolvable, bulk resolution allowed.
func permissiveDefault() ReviewerConfig {
	return ReviewerConfig{
		Enabled:          true,
		AutoResolveStale: true,
		ResolveLevels:    model.AllSeverities(),
	}
}

// adapterDefault builds the reviewer-specific default config for an adapter.
func adapterDefault(a reviewer.Adapter) ReviewerConfig {
	return ReviewerConfig{
		Enabled:          true,
		AutoResolveStale: a.DefaultAutoResolveStale(),
		ResolveLevels:    a.DefaultResolveLevels(),
	}
}

// Reviewer returns the effective config for a reviewer name. Unknown
// reviewers get the maximally permissive default.
func (c *Config) Reviewer(name string) ReviewerConfig {
	if rc, ok := c.Reviewers[name]; ok {
		return rc
	}
	return permissiveDefault()
}

// CanResolve is the single policy gate consulted by every resolve path,
// single-thread and bulk alike. It returns whether resolving a thread from
// the given reviewer at the given severity is allowed, and a human-readable
// reason when it is not.
func (c *Config) CanResolve(reviewerName string, severity model.Severity) (bool, string) {
	rc := c.Reviewer(reviewerName)
	if !rc.Enabled {
		return false, fmt.Sprintf("reviewer %q is disabled in config", reviewerName)
	}
	if !rc.allowsLevel(severity) {
		return false, fmt.Sprintf(
			"config blocks resolving %s-level threads from %s (allowed levels: %s)",
			severity, reviewerName, formatLevels(rc.ResolveLevels),
		)
	}
	return true, ""
}

func formatLevels(levels []model.Severity) string {
	if len(levels) == 0 {
		return "none"
	}
	parts := make([]string, len(levels))
	for i, l := range levels {
		parts[i] = string(l)
	}
	return strings.Join(parts, ", ")
}

// Load reads configuration from defaults, an optional TOML file, and
// REVIEWBUDDY_* env vars. path overrides the default file search
// (./.reviewbuddy.toml, then $HOME/.reviewbuddy.toml). Zero-config works:
// every field has a default.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"cache_ttl_seconds": 30,
		"owner_logins":      []string{},
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("loading config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	} else {
		for _, candidate := range defaultPaths() {
			if _, err := os.Stat(candidate); err != nil {
				continue
			}
			if err := k.Load(file.Provider(candidate), toml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file %s: %w", candidate, err)
			}
			break
		}
	}

	// Env overrides use "__" as the nesting delimiter so keys containing
	// underscores survive: REVIEWBUDDY_REVIEWERS__DEVIN__ENABLED=false.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading config env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if cfg.Reviewers == nil {
		cfg.Reviewers = map[string]ReviewerConfig{}
	}

	applyReviewerDefaults(k, &cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyReviewerDefaults fills in unset fields for every known reviewer from
// that reviewer's adapter-specific defaults. Key existence in the merged
// koanf tree, not Go zero values, decides whether a field was set, so a
// partial override like [reviewers.devin] enabled=false keeps Devin's safe
// auto_resolve_stale=false and resolve_levels=[info] rather than regressing
// to the generic permissive defaults.
func applyReviewerDefaults(k *koanf.Koanf, cfg *Config) {
	for _, a := range reviewer.Registry() {
		name := a.Name()
		def := adapterDefault(a)

		rc, overridden := cfg.Reviewers[name]
		if !overridden {
			cfg.Reviewers[name] = def
			continue
		}
		base := "reviewers." + name + "."
		if !k.Exists(base + "enabled") {
			rc.Enabled = def.Enabled
		}
		if !k.Exists(base + "auto_resolve_stale") {
			rc.AutoResolveStale = def.AutoResolveStale
		}
		if !k.Exists(base + "resolve_levels") {
			rc.ResolveLevels = def.ResolveLevels
		}
		cfg.Reviewers[name] = rc
	}
}

func validate(cfg *Config) error {
	if cfg.CacheTTLSeconds <= 0 {
		return fmt.Errorf("cache_ttl_seconds must be positive, got %d", cfg.CacheTTLSeconds)
	}
	for name, rc := range cfg.Reviewers {
		for _, lvl := range rc.ResolveLevels {
			if lvl.Rank() == 0 {
				return fmt.Errorf("reviewer %q has unknown resolve level %q", name, lvl)
			}
		}
	}
	return nil
}

func defaultPaths() []string {
	paths := []string{".reviewbuddy.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".reviewbuddy.toml"))
	}
	return paths
}
