package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// FeedCursor marks a position in the (created_at DESC, id DESC) order.
// Tokens are advisory: decoding is strict but holding one locks nothing.
type FeedCursor struct {
	CreatedAt time.Time `json:"t"`
	ID        string    `json:"id"`
}

// Encode renders the cursor as an opaque URL-safe token.
func (c FeedCursor) Encode() string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeFeedCursor parses a token produced by Encode.
func DecodeFeedCursor(token string) (*FeedCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var c FeedCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse cursor: %w", err)
	}
	if c.ID == "" || c.CreatedAt.IsZero() {
		return nil, fmt.Errorf("incomplete cursor")
	}
	return &c, nil
}

// FeedItem is the feed listing projection of a timeline event.
type FeedItem struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	EventType string    `json:"event_type"`
	TitleAr   string    `json:"title_ar"`
	TitleEn   string    `json:"title_en"`
	BodyAr    *string   `json:"body_ar,omitempty"`
	BodyEn    *string   `json:"body_en,omitempty"`
	Payload   JSONMap   `json:"payload,omitempty"`
}

// FeedPage is one page of feed items plus the continuation token.
type FeedPage struct {
	Items      []FeedItem `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}
