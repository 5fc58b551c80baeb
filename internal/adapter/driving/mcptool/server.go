// Package mcptool exposes the review management services as MCP tools over
// stdio, for consumption by AI coding agents.
package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/reviewbuddy/reviewbuddy/internal/application"
	"github.com/reviewbuddy/reviewbuddy/internal/config"
)

// Server wires the application services to the MCP tool surface.
type Server struct {
	mcp      *server.MCPServer
	threads  *application.ThreadService
	stacks   *application.StackService
	triage   *application.TriageService
	rereview *application.RereviewService
	wait     *application.WaitService
	cfg      *config.Config
}

// New creates the MCP server and registers every tool.
func New(version string, threads *application.ThreadService, stacks *application.StackService, triage *application.TriageService, rereview *application.RereviewService, wait *application.WaitService, cfg *config.Config) *Server {
	s := &Server{
		mcp: server.NewMCPServer(
			"reviewbuddy",
			version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		threads:  threads,
		stacks:   stacks,
		triage:   triage,
		rereview: rereview,
		wait:     wait,
		cfg:      cfg,
	}
	s.registerTools()
	return s
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	repoArg := mcp.WithString("repo",
		mcp.Description("Repository in owner/repo format. Auto-detected from the local git remote when omitted."))

	s.mcp.AddTool(mcp.NewTool("list_review_comments",
		mcp.WithDescription("List all review threads for a PR with reviewer identification, staleness detection, reviewer completion status, and the discovered PR stack."),
		mcp.WithNumber("pr_number", mcp.Required(), mcp.Description("PR number to fetch threads for.")),
		repoArg,
		mcp.WithString("status", mcp.Description("Filter threads by 'resolved' or 'unresolved'. All when omitted.")),
	), s.handleListReviewComments)

	s.mcp.AddTool(mcp.NewTool("list_stack_review_comments",
		mcp.WithDescription("List review threads for multiple PRs in a stack, grouped by PR number. Collapses N calls into one."),
		mcp.WithArray("pr_numbers", mcp.Required(), mcp.Description("PR numbers to fetch threads for."), mcp.Items(map[string]any{"type": "number"})),
		repoArg,
		mcp.WithString("status", mcp.Description("Filter threads by 'resolved' or 'unresolved'. All when omitted.")),
	), s.handleListStackReviewComments)

	s.mcp.AddTool(mcp.NewTool("resolve_comment",
		mcp.WithDescription("Resolve one review thread by its node ID. Inline threads (PRRT_) are resolved, PR-level reviews (PRR_) are dismissed, issue comments (IC_) are rejected. Subject to per-reviewer policy."),
		mcp.WithNumber("pr_number", mcp.Required(), mcp.Description("PR number the thread belongs to.")),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Node ID of the thread to resolve.")),
		repoArg,
	), s.handleResolveComment)

	s.mcp.AddTool(mcp.NewTool("resolve_stale_comments",
		mcp.WithDescription("Bulk-resolve all unresolved inline threads whose code has changed since the review, respecting per-reviewer auto-resolve behavior and severity policy."),
		mcp.WithNumber("pr_number", mcp.Required(), mcp.Description("PR number.")),
		repoArg,
	), s.handleResolveStale)

	s.mcp.AddTool(mcp.NewTool("reply_to_comment",
		mcp.WithDescription("Reply to a review thread. Inline threads get a threaded reply; PR-level reviews and issue comments get a conversation comment."),
		mcp.WithNumber("pr_number", mcp.Required(), mcp.Description("PR number.")),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Node ID of the thread to reply to.")),
		mcp.WithString("body", mcp.Required(), mcp.Description("Reply text.")),
		repoArg,
	), s.handleReplyToComment)

	s.mcp.AddTool(mcp.NewTool("request_rereview",
		mcp.WithDescription("Trigger a re-review after pushing fixes. Posts the trigger comment for reviewers that need one; reports reviewers that re-review automatically on push."),
		mcp.WithNumber("pr_number", mcp.Required(), mcp.Description("PR number.")),
		mcp.WithString("reviewer", mcp.Description("Specific reviewer to trigger (e.g. 'unblocked'). All manually-triggered reviewers when omitted.")),
		repoArg,
	), s.handleRequestRereview)

	s.mcp.AddTool(mcp.NewTool("wait_for_reviews",
		mcp.WithDescription("Poll until every AI reviewer has reviewed the latest push, or the timeout elapses. Returns the final review summary either way."),
		mcp.WithNumber("pr_number", mcp.Required(), mcp.Description("PR number to monitor.")),
		repoArg,
		mcp.WithNumber("timeout", mcp.Description("Maximum seconds to wait. Default 300.")),
		mcp.WithNumber("poll_interval", mcp.Description("Seconds between polls. Default 30.")),
	), s.handleWaitForReviews)

	s.mcp.AddTool(mcp.NewTool("discover_stack",
		mcp.WithDescription("Discover the chain of stacked PRs containing the given PR, ordered bottom to top."),
		mcp.WithNumber("pr_number", mcp.Required(), mcp.Description("Any PR number in the stack.")),
		repoArg,
	), s.handleDiscoverStack)

	s.mcp.AddTool(mcp.NewTool("summarize_review_status",
		mcp.WithDescription("Lightweight per-PR review status counts across a stack, without comment bodies. Auto-discovers the stack from the current branch when PR numbers are omitted."),
		mcp.WithArray("pr_numbers", mcp.Description("PR numbers to summarize."), mcp.Items(map[string]any{"type": "number"})),
		repoArg,
	), s.handleSummarizeReviewStatus)

	s.mcp.AddTool(mcp.NewTool("triage_review_comments",
		mcp.WithDescription("Actionable threads only: unresolved, unreplied threads classified into fix/reply by severity, plus 'noted for followup' replies missing an issue reference. Sorted bugs first."),
		mcp.WithArray("pr_numbers", mcp.Required(), mcp.Description("PR numbers to triage."), mcp.Items(map[string]any{"type": "number"})),
		repoArg,
		mcp.WithArray("owner_logins", mcp.Description("GitHub usernames considered 'ours' (agent + human). Defaults from config."), mcp.Items(map[string]any{"type": "string"})),
	), s.handleTriage)

	s.mcp.AddTool(mcp.NewTool("create_issue_from_comment",
		mcp.WithDescription("Create a GitHub issue carrying the content of an inline review thread."),
		mcp.WithNumber("pr_number", mcp.Required(), mcp.Description("PR number the thread belongs to.")),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Node ID (PRRT_...) of the thread.")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Issue title.")),
		mcp.WithArray("labels", mcp.Description("Labels to apply."), mcp.Items(map[string]any{"type": "string"})),
		repoArg,
	), s.handleCreateIssue)

	s.mcp.AddTool(mcp.NewTool("show_config",
		mcp.WithDescription("Show the effective per-reviewer policy configuration."),
	), s.handleShowConfig)
}

func (s *Server) handleListReviewComments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	prNumber, err := intArg(args, "pr_number", true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	summary, err := s.threads.ListReviewComments(ctx, prNumber, stringArg(args, "repo"), stringArg(args, "status"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(summary)
}

func (s *Server) handleListStackReviewComments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	prNumbers, err := intSliceArg(args, "pr_numbers")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	results, err := s.threads.ListStackReviewComments(ctx, prNumbers, stringArg(args, "repo"), stringArg(args, "status"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) handleResolveComment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	prNumber, err := intArg(args, "pr_number", true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	threadID := stringArg(args, "thread_id")
	if threadID == "" {
		return mcp.NewToolResultError("thread_id is required"), nil
	}

	outcome, err := s.triage.ResolveComment(ctx, prNumber, threadID, stringArg(args, "repo"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(outcome)
}

func (s *Server) handleResolveStale(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	prNumber, err := intArg(args, "pr_number", true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.triage.ResolveStale(ctx, prNumber, stringArg(args, "repo"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handleReplyToComment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	prNumber, err := intArg(args, "pr_number", true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	threadID := stringArg(args, "thread_id")
	body := stringArg(args, "body")
	if threadID == "" || body == "" {
		return mcp.NewToolResultError("thread_id and body are required"), nil
	}

	msg, err := s.triage.ReplyToComment(ctx, prNumber, threadID, body, stringArg(args, "repo"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) handleRequestRereview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	prNumber, err := intArg(args, "pr_number", true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.rereview.RequestRereview(ctx, prNumber, stringArg(args, "reviewer"), stringArg(args, "repo"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handleWaitForReviews(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	prNumber, err := intArg(args, "pr_number", true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	timeout := durationArg(args, "timeout", 300*time.Second)
	pollInterval := durationArg(args, "poll_interval", 30*time.Second)

	summary, err := s.wait.WaitForReviews(ctx, prNumber, stringArg(args, "repo"), timeout, pollInterval)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(summary)
}

func (s *Server) handleDiscoverStack(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	prNumber, err := intArg(args, "pr_number", true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	stack, err := s.stacks.Discover(ctx, prNumber, stringArg(args, "repo"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(stack)
}

func (s *Server) handleSummarizeReviewStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	prNumbers, err := intSliceArg(args, "pr_numbers")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.stacks.Summarize(ctx, prNumbers, stringArg(args, "repo"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handleTriage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	prNumbers, err := intSliceArg(args, "pr_numbers")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.triage.Triage(ctx, prNumbers, stringArg(args, "repo"), stringSliceArg(args, "owner_logins"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handleCreateIssue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	prNumber, err := intArg(args, "pr_number", true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	threadID := stringArg(args, "thread_id")
	title := stringArg(args, "title")
	if threadID == "" || title == "" {
		return mcp.NewToolResultError("thread_id and title are required"), nil
	}

	result, err := s.triage.CreateIssueFromThread(ctx, prNumber, threadID, title, stringSliceArg(args, "labels"), stringArg(args, "repo"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handleShowConfig(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.cfg)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
