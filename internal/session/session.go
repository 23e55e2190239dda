// Package session persists conversations in PostgreSQL. A session is an
// anonymous conversation identified by UUID; each completed query/answer
// pair is stored as an exchange with a per-session sequence number. The
// [Store] renders the most recent exchanges as the prior-turn context the
// answer pipeline folds into its system prompt.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultHistoryLimit is the number of exchanges History returns when
	// the caller passes no limit. Two turns of context keep prompts small
	// while still covering the common follow-up question.
	DefaultHistoryLimit = 2

	// MaxHistoryLimit bounds History so a hostile limit cannot inflate
	// the prompt without bound.
	MaxHistoryLimit = 50

	// DefaultListLimit is the page size List uses when the caller passes
	// no limit.
	DefaultListLimit = 50

	// MaxListLimit bounds List.
	MaxListLimit = 500
)

// ErrSessionNotFound indicates the requested session does not exist.
// Callers check it with errors.Is.
var ErrSessionNotFound = errors.New("session not found")

// Session is one conversation. UpdatedAt moves on every append and clear,
// so listing by it surfaces the most recently active conversations first.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Exchange is one completed query/answer pair. Seq starts at 1 and
// increases by one per append within a session.
type Exchange struct {
	Seq       int
	Query     string
	Answer    string
	CreatedAt time.Time
}

// FormatHistory renders exchanges oldest first as User/Assistant blocks
// separated by blank lines, the shape the answer pipeline expects for its
// conversation context. Returns "" for no exchanges.
func FormatHistory(exchanges []Exchange) string {
	if len(exchanges) == 0 {
		return ""
	}
	blocks := make([]string, len(exchanges))
	for i, ex := range exchanges {
		blocks[i] = fmt.Sprintf("User: %s\nAssistant: %s", ex.Query, ex.Answer)
	}
	return strings.Join(blocks, "\n\n")
}

// normalizeLimit maps non-positive limits to def and clamps the rest to max.
func normalizeLimit(n, def, max int) int {
	switch {
	case n <= 0:
		return def
	case n > max:
		return max
	default:
		return n
	}
}
