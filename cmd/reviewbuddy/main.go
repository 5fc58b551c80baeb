package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/reviewbuddy/reviewbuddy/internal/adapter/driven/github"
	"github.com/reviewbuddy/reviewbuddy/internal/adapter/driven/gitlocal"
	"github.com/reviewbuddy/reviewbuddy/internal/adapter/driving/mcptool"
	"github.com/reviewbuddy/reviewbuddy/internal/application"
	"github.com/reviewbuddy/reviewbuddy/internal/cache"
	"github.com/reviewbuddy/reviewbuddy/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	app := &cli.App{
		Name:    "reviewbuddy",
		Usage:   "MCP server for managing AI code-review comments on GitHub PRs",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to a TOML config file (default: ./.reviewbuddy.toml, then $HOME/.reviewbuddy.toml)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level: debug, info, warn, error",
				Value:   "info",
				EnvVars: []string{"REVIEWBUDDY_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the MCP protocol on stdin/stdout",
				Action: serveAction,
			},
			{
				Name:   "config",
				Usage:  "Print the effective per-reviewer policy configuration",
				Action: configAction,
			},
		},
		// Bare invocation serves, matching how MCP clients launch servers.
		Action: serveAction,
	}
	return app.Run(args)
}

func serveAction(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}

	token := githubToken()
	if token == "" {
		return fmt.Errorf("no GitHub token found: set GITHUB_TOKEN or GH_TOKEN")
	}

	responseCache := cache.New(time.Duration(cfg.CacheTTLSeconds) * time.Second)
	client := githubadapter.NewClient(token, responseCache)

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining working directory: %w", err)
	}
	local := gitlocal.NewRepo(cwd)

	stacks := application.NewStackService(client, local, cfg)
	threads := application.NewThreadService(client, local, stacks, cfg)
	triage := application.NewTriageService(client, local, threads, cfg)
	rereview := application.NewRereviewService(client, local)
	wait := application.NewWaitService(threads)

	srv := mcptool.New(version, threads, stacks, triage, rereview, wait, cfg)

	slog.Info("serving MCP on stdio", "version", version, "cache_ttl_seconds", cfg.CacheTTLSeconds)
	return srv.ServeStdio()
}

func configAction(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// setup configures logging and loads config. Logs go to stderr: stdout
// carries the MCP protocol.
func setup(c *cli.Context) (*config.Config, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.String("log-level"), err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func githubToken() string {
	for _, key := range []string{"GITHUB_TOKEN", "GH_TOKEN"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
