package driven

// LocalRepo inspects the working copy to auto-detect request parameters the
// caller omitted.
type LocalRepo interface {
	// DetectRepo returns the "owner/repo" slug parsed from the origin remote.
	DetectRepo() (string, error)

	// CurrentBranch returns the short name of the checked-out branch.
	CurrentBranch() (string, error)
}
