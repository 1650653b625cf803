package domain

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatLog is one persisted line of a coach conversation. The transcript here
// is authoritative even when live streaming dropped frames.
type ChatLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"userId" json:"userId"`
	SessionID string             `bson:"sessionId" json:"sessionId"`
	Role      string             `bson:"role" json:"role"` // "user" | "assistant" | "tool"
	Content   string             `bson:"content" json:"content"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// StreamStatus is the lifecycle of a StreamSession. done and error are
// terminal; subscribers should stop listening once either is set.
type StreamStatus string

const (
	StreamPending   StreamStatus = "pending"
	StreamStreaming StreamStatus = "streaming"
	StreamDone      StreamStatus = "done"
	StreamError     StreamStatus = "error"
)

// Terminal reports whether no further mutation of the stream is meaningful.
func (s StreamStatus) Terminal() bool {
	return s == StreamDone || s == StreamError
}

// StreamKey identifies one broadcast stream. StreamID is generated per
// request, so writers from different requests never share a key.
type StreamKey struct {
	UserID    string
	SessionID string
	StreamID  string
}

// DocumentID is the composite primary key used by the stream store.
func (k StreamKey) DocumentID() string {
	return fmt.Sprintf("%s:%s:%s", k.UserID, k.SessionID, k.StreamID)
}

// SuggestedAction is a client-renderable follow-up action attached to a reply.
type SuggestedAction struct {
	Type string         `bson:"type" json:"type"`
	Args map[string]any `bson:"args,omitempty" json:"args,omitempty"`
}

// StreamMeta is replaced wholesale on update (last writer wins, never merged).
type StreamMeta struct {
	Highlights []string          `bson:"highlights,omitempty" json:"highlights,omitempty"`
	Actions    []SuggestedAction `bson:"actions,omitempty" json:"actions,omitempty"`
}

// StreamSession is the shared mutable record a client observes to render
// incremental assistant output. Content only ever grows; Version backs the
// optimistic-concurrency append.
type StreamSession struct {
	ID        string       `bson:"_id" json:"-"`
	UserID    string       `bson:"userId" json:"userId"`
	SessionID string       `bson:"sessionId" json:"sessionId"`
	StreamID  string       `bson:"streamId" json:"streamId"`
	Status    StreamStatus `bson:"status" json:"status"`
	Content   string       `bson:"content" json:"content"`
	Error     string       `bson:"error,omitempty" json:"error,omitempty"`
	Meta      *StreamMeta  `bson:"meta,omitempty" json:"meta,omitempty"`
	Version   int64        `bson:"version" json:"-"`
	CreatedAt time.Time    `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time    `bson:"updatedAt" json:"updatedAt"`
}
