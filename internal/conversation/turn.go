// ABOUTME: Helpers for a single chat turn: in-flight guard, titles and fallback replies
// ABOUTME: Pure functions and a small mutex-protected set, kept apart from Service for testing

package conversation

import (
	"fmt"
	"strings"
	"sync"
)

// turnGuard rejects a second turn for a key while one is in flight.
type turnGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newTurnGuard() *turnGuard {
	return &turnGuard{active: make(map[string]struct{})}
}

// acquire returns false if key is already held.
func (g *turnGuard) acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[key]; busy {
		return false
	}
	g.active[key] = struct{}{}
	return true
}

func (g *turnGuard) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, key)
}

// pendingKey guards the first message of a not-yet-created conversation.
func pendingKey(userID, agentID string) string {
	return "pending:" + userID + ":" + agentID
}

// MakeTitle derives a conversation title from the first message: whitespace
// is collapsed and the result is cut to maxRunes runes, with "..." appended
// only when something was cut.
func MakeTitle(text string, maxRunes int) string {
	t := strings.Join(strings.Fields(text), " ")
	r := []rune(t)
	if maxRunes <= 0 || len(r) <= maxRunes {
		return t
	}
	return strings.TrimRight(string(r[:maxRunes]), " ") + "..."
}

// noReplyFallback is used when the workflow answered without a reply.
func noReplyFallback(agentName, text string) string {
	return fmt.Sprintf("Hello! I'm %s. I received your message: \"%s\". How can I help you today?",
		agentName, text)
}

// errorFallback is used when the workflow failed or timed out.
func errorFallback(agentName, text string) string {
	return fmt.Sprintf("Hello! I'm %s. I received your message: \"%s\". "+
		"I'm currently experiencing some technical difficulties, but I'm here to help you. "+
		"Please try again in a moment.", agentName, text)
}

// estimateTokens approximates token usage at four characters per token.
func estimateTokens(s string) int {
	return (len([]rune(s)) + 3) / 4
}
