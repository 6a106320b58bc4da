// Package platform implements the REST client for the group-chat platform:
// pulling posts since a cursor, posting replies under an override identity,
// and enumerating reachable channels for a credential.
package platform

// Post is one message as returned by the pull API.
type Post struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	RootID    string `json:"root_id"`
	CreateAt  int64  `json:"create_at"`
}

// PostList is the pull API response: ids newest-first in Order, bodies in Posts.
type PostList struct {
	Order []string        `json:"order"`
	Posts map[string]Post `json:"posts"`
}

// Oldest-first iteration order for processing.
func (pl *PostList) OldestFirst() []Post {
	out := make([]Post, 0, len(pl.Order))
	for i := len(pl.Order) - 1; i >= 0; i-- {
		if p, ok := pl.Posts[pl.Order[i]]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Channel is one channel reachable by a credential.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"` // "O" open, "P" private, "D" direct
}

// IsDirect reports whether the channel is a direct-message channel.
func (c Channel) IsDirect() bool { return c.Type == "D" }

// User is the platform's view of a message author.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsBot    bool   `json:"is_bot"`
}

// WebhookPayload is the shape the platform pushes to the configured URL.
type WebhookPayload struct {
	Token       string `json:"token,omitempty"`
	TriggerWord string `json:"trigger_word,omitempty"`
	Text        string `json:"text"`
	ChannelID   string `json:"channel_id"`
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name,omitempty"`
	PostID      string `json:"post_id,omitempty"`
}

// CreatePostRequest posts a message, optionally threaded and under an
// override identity.
type CreatePostRequest struct {
	ChannelID        string `json:"channel_id"`
	Message          string `json:"message"`
	RootID           string `json:"root_id,omitempty"`
	OverrideUsername string `json:"override_username,omitempty"`
}
