// ABOUTME: Error taxonomy for the conversation layer
// ABOUTME: Sentinel errors plus KindOf, which classifies any error for transport mapping

package conversation

import (
	"errors"

	"github.com/2389/vox-gateway/internal/auth"
	"github.com/2389/vox-gateway/internal/speech"
	"github.com/2389/vox-gateway/internal/store"
	"github.com/2389/vox-gateway/internal/workflow"
)

var (
	ErrAuthRequired         = errors.New("authentication required")
	ErrEmptyMessage         = errors.New("message text is empty")
	ErrAgentRequired        = errors.New("agent_id is required")
	ErrAgentNotFound        = errors.New("agent not found")
	ErrAgentInactive        = errors.New("agent is inactive")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrTurnInFlight         = errors.New("a message is already being processed for this conversation")
)

// ErrorKind groups errors by how a caller should react to them.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindAuthRequired
	KindNotFound
	KindBusy
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthRequired:
		return "auth_required"
	case KindNotFound:
		return "not_found"
	case KindBusy:
		return "busy"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrEmptyMessage),
		errors.Is(err, ErrAgentRequired),
		errors.Is(err, ErrAgentInactive),
		errors.Is(err, speech.ErrEmptyAudio):
		return KindValidation
	case errors.Is(err, ErrAuthRequired),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		return KindAuthRequired
	case errors.Is(err, ErrAgentNotFound),
		errors.Is(err, ErrConversationNotFound),
		errors.Is(err, store.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTurnInFlight):
		return KindBusy
	case errors.Is(err, workflow.ErrUnavailable),
		errors.Is(err, workflow.ErrEmptyReply),
		errors.Is(err, speech.ErrUnavailable):
		return KindUnavailable
	default:
		return KindInternal
	}
}
