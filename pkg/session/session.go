// Package session implements the chat session manager: the read-eval loop
// that forwards user queries to the chat model, executes the tool calls the
// model requests after asking the user for consent, and compacts the
// conversation history once it grows past a threshold.
//
// A Session is owned by the goroutine running its loop. Only tool execution
// fans out to other goroutines, and those never touch the Session.
package session

import (
	"time"

	"github.com/rhuss/mcpchat/pkg/api"
)

// Session is the state of one conversation.
type Session struct {
	// ID identifies the session in logs and in the transcript archive.
	ID string

	// History is the ordered conversation sent to the model on each turn.
	History []api.Message

	// Summaries collects every compaction summary, oldest first.
	Summaries []string

	// Permissions holds the consent decisions taken in this session.
	Permissions *PermissionSet

	// Threshold is the history length above which the history is compacted.
	Threshold int

	CreatedAt time.Time

	// archiveSeq is the sequence number of the last archived record.
	archiveSeq int
}

// New creates an empty session compacting above threshold messages.
func New(threshold int) *Session {
	return &Session{
		ID:          api.NewSessionID(),
		Permissions: NewPermissionSet(),
		Threshold:   threshold,
		CreatedAt:   time.Now().UTC(),
	}
}

func (s *Session) nextSeq() int {
	s.archiveSeq++
	return s.archiveSeq
}
