package publisher

import (
	"context"
	"encoding/json"
	"time"
)

// PostRequest carries everything needed to create one scheduled post
type PostRequest struct {
	IdentityID     string
	AccessToken    string
	MediaReference string
	MediaKind      string
	Caption        string
	ScheduledAt    time.Time
}

// PostResult is the outcome of a create call. Payload always holds the body
// the API returned (or a synthetic error body when it could not be reached).
type PostResult struct {
	Success    bool            `json:"success"`
	CreationID string          `json:"creation_id,omitempty"`
	StatusCode int             `json:"status_code"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher creates scheduled posts on a publishing platform. A failed post is
// reported through PostResult; the error is reserved for requests that could
// not even be built.
type Publisher interface {
	GetPlatformName() string
	CreateScheduledPost(ctx context.Context, req PostRequest) (*PostResult, error)
}
