package types

import "fmt"

// SourceKind identifies where a review's diff came from.
type SourceKind string

const (
	SourceDiffPaste SourceKind = "diff_paste"
	SourceGitHubPR  SourceKind = "github_pr"
	SourceGitLabMR  SourceKind = "gitlab_mr"
)

// ReviewSource describes the origin of the diff under review. For pull and
// merge requests the head commit pins the snapshot a run may read.
type ReviewSource struct {
	Kind     SourceKind `json:"kind"`
	DiffHash string     `json:"diffHash,omitempty"`

	// GitHub PR fields
	Owner string `json:"owner,omitempty"`
	Repo  string `json:"repo,omitempty"`

	// GitLab MR fields
	ProjectPath string `json:"projectPath,omitempty"`

	Number  int    `json:"number,omitempty"`
	URL     string `json:"url,omitempty"`
	HeadSHA string `json:"headSHA,omitempty"`
	BaseSHA string `json:"baseSHA,omitempty"`
}

// IsPullRequest reports whether the source is a hosted PR/MR, the only
// sources eligible for repository snapshot access.
func (s *ReviewSource) IsPullRequest() bool {
	if s == nil {
		return false
	}
	return s.Kind == SourceGitHubPR || s.Kind == SourceGitLabMR
}

// Title renders the short display title used when a run begins.
func (s *ReviewSource) Title() string {
	if s == nil {
		return "AI Review"
	}
	switch s.Kind {
	case SourceGitHubPR:
		return fmt.Sprintf("PR %s/%s#%d", s.Owner, s.Repo, s.Number)
	case SourceGitLabMR:
		return fmt.Sprintf("MR %s!%d", s.ProjectPath, s.Number)
	default:
		return "AI Review"
	}
}

// LinkedRepo is a locally linked repository a run may snapshot.
type LinkedRepo struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Path                string   `json:"path"`
	Remotes             []string `json:"remotes,omitempty"`
	CreatedAt           string   `json:"createdAt"`
	AllowSnapshotAccess bool     `json:"allowSnapshotAccess"`
}

// GenerationResult is the backend's final summary for a completed run,
// distinct from the terminal event on the progress channel.
type GenerationResult struct {
	ReviewID  string `json:"reviewID"`
	RunID     string `json:"runID"`
	TaskCount int    `json:"taskCount"`
}
