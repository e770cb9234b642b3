// ABOUTME: Tests for turn helpers: titles, fallback texts, the in-flight guard and error kinds
// ABOUTME: Table-driven checks of pure functions

package conversation

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/2389/vox-gateway/internal/auth"
	"github.com/2389/vox-gateway/internal/speech"
	"github.com/2389/vox-gateway/internal/store"
	"github.com/2389/vox-gateway/internal/workflow"
)

func TestMakeTitle(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{"short", "Hello there", 50, "Hello there"},
		{"exact length", strings.Repeat("a", 50), 50, strings.Repeat("a", 50)},
		{"truncated", strings.Repeat("a", 51), 50, strings.Repeat("a", 50) + "..."},
		{"collapses whitespace", "  plan\n\tmy   week ", 50, "plan my week"},
		{"trailing space before cut", "abcd efgh", 5, "abcd..."},
		{"counts runes", "héllo wörld", 5, "héllo..."},
		{"no limit", "anything at all", 0, "anything at all"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MakeTitle(tt.text, tt.max))
		})
	}
}

func TestFallbackTexts(t *testing.T) {
	text := `book "lunch" at 12`

	noReply := noReplyFallback("Nova", text)
	assert.Equal(t, `Hello! I'm Nova. I received your message: "book "lunch" at 12". How can I help you today?`, noReply)

	failed := errorFallback("Nova", text)
	assert.True(t, strings.HasPrefix(failed, `Hello! I'm Nova. I received your message: "book "lunch" at 12".`))
	assert.Contains(t, failed, "technical difficulties")
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(""))
	assert.Equal(t, 1, estimateTokens("abc"))
	assert.Equal(t, 1, estimateTokens("abcd"))
	assert.Equal(t, 2, estimateTokens("abcde"))
}

func TestTurnGuard(t *testing.T) {
	g := newTurnGuard()

	assert.True(t, g.acquire("conv-1"))
	assert.False(t, g.acquire("conv-1"))
	assert.True(t, g.acquire("conv-2"), "keys are independent")

	g.release("conv-1")
	assert.True(t, g.acquire("conv-1"))

	assert.NotEqual(t, pendingKey("u1", "a1"), pendingKey("u1", "a2"))
	assert.NotEqual(t, pendingKey("u1", "a1"), pendingKey("u2", "a1"))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{ErrEmptyMessage, KindValidation},
		{ErrAgentRequired, KindValidation},
		{ErrAgentInactive, KindValidation},
		{speech.ErrEmptyAudio, KindValidation},
		{ErrAuthRequired, KindAuthRequired},
		{auth.ErrExpiredToken, KindAuthRequired},
		{ErrAgentNotFound, KindNotFound},
		{ErrConversationNotFound, KindNotFound},
		{fmt.Errorf("loading: %w", store.ErrNotFound), KindNotFound},
		{ErrTurnInFlight, KindBusy},
		{workflow.ErrUnavailable, KindUnavailable},
		{fmt.Errorf("tts: %w", speech.ErrUnavailable), KindUnavailable},
		{errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
	assert.Equal(t, "busy", KindBusy.String())
	assert.Equal(t, "internal", KindInternal.String())
}
