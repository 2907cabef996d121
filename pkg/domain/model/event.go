package model

import (
	"strings"
	"time"
)

const (
	tagRefPrefix = "refs/tags/"

	// zeroSHA is what GitHub reports as the after-commit of a ref deletion.
	zeroSHA = "0000000000000000000000000000000000000000"
)

// PushEvent represents a git push delivered through the GitHub App webhook.
type PushEvent struct {
	DeliveryID string    `json:"delivery_id"` // X-GitHub-Delivery header
	Owner      string    `json:"owner"`       // Repository owner
	Repo       string    `json:"repo"`        // Repository name
	Ref        string    `json:"ref"`         // Full git ref, e.g. refs/tags/v1.2.3
	SHA        string    `json:"sha"`         // Commit the ref points at after the push
	Sender     string    `json:"sender"`      // User who pushed
	Deleted    bool      `json:"deleted"`     // True when the push removed the ref
	InstallID  int64     `json:"install_id"`  // GitHub App installation ID
	ReceivedAt time.Time `json:"received_at"`
}

// IsTagPush checks whether the event created or moved a tag. Deletions
// (flagged or pushing the zero SHA) do not count.
func (x *PushEvent) IsTagPush() bool {
	if x.Deleted || x.SHA == "" || x.SHA == zeroSHA {
		return false
	}
	return strings.HasPrefix(x.Ref, tagRefPrefix)
}

// Tag returns the tag name without the refs/tags/ prefix. It returns an
// empty string when the event is not a tag push.
func (x *PushEvent) Tag() string {
	if !strings.HasPrefix(x.Ref, tagRefPrefix) {
		return ""
	}
	return strings.TrimPrefix(x.Ref, tagRefPrefix)
}

// FullRepo returns the repository in owner/name form.
func (x *PushEvent) FullRepo() string {
	return x.Owner + "/" + x.Repo
}
