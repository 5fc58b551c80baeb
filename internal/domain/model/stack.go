package model

// StackPR is a pull request's position in a dependency chain of stacked PRs.
// Stacks are recomputed per session from branch head/base relationships.
type StackPR struct {
	PRNumber int    `json:"pr_number"`
	Branch   string `json:"branch"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}
