// ABOUTME: Conversation service: the message pipeline that runs one chat turn
// ABOUTME: Records the user message first, then generates, voices, records and publishes the reply

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/vox-gateway/internal/auth"
	"github.com/2389/vox-gateway/internal/media"
	"github.com/2389/vox-gateway/internal/metrics"
	"github.com/2389/vox-gateway/internal/speech"
	"github.com/2389/vox-gateway/internal/store"
	"github.com/2389/vox-gateway/internal/workflow"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultWorkflowTimeout = 30 * time.Second
	DefaultSpeechTimeout   = 20 * time.Second
	DefaultTitleLength     = 50
	DefaultHistoryLimit    = 500
)

// InputMethod records how the user produced the message.
type InputMethod string

const (
	InputText  InputMethod = "text"
	InputVoice InputMethod = "voice"
)

// ConversationStore defines what the service needs from storage
type ConversationStore interface {
	GetAgent(ctx context.Context, id string) (*store.Agent, error)

	CreateConversation(ctx context.Context, conv *store.Conversation) error
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	ListConversations(ctx context.Context, userID string, limit int) ([]*store.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error

	InsertMessage(ctx context.Context, msg *store.Message) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*store.Message, error)

	SaveInteractionLog(ctx context.Context, entry *store.InteractionLog) error
}

// Config wires the service to its collaborators. Synthesizer and Media are
// optional; without them replies carry no audio.
type Config struct {
	Store       ConversationStore
	Generator   workflow.Generator
	Synthesizer speech.Synthesizer
	Media       media.Library
	Broadcaster *EventBroadcaster
	Logger      *slog.Logger

	WorkflowTimeout time.Duration
	SpeechTimeout   time.Duration
	TitleLength     int
	HistoryLimit    int
}

// Service is the central conversation layer. Every message is persisted
// before anything downstream sees it, and every persisted message is
// published to live update subscribers.
type Service struct {
	store       ConversationStore
	generator   workflow.Generator
	synthesizer speech.Synthesizer
	media       media.Library
	broadcaster *EventBroadcaster
	guard       *turnGuard
	logger      *slog.Logger

	workflowTimeout time.Duration
	speechTimeout   time.Duration
	titleLength     int
	historyLimit    int

	now func() time.Time
}

// New creates a conversation service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := cfg.Broadcaster
	if b == nil {
		b = NewEventBroadcaster(logger)
	}
	s := &Service{
		store:           cfg.Store,
		generator:       cfg.Generator,
		synthesizer:     cfg.Synthesizer,
		media:           cfg.Media,
		broadcaster:     b,
		guard:           newTurnGuard(),
		logger:          logger.With("component", "conversation"),
		workflowTimeout: cfg.WorkflowTimeout,
		speechTimeout:   cfg.SpeechTimeout,
		titleLength:     cfg.TitleLength,
		historyLimit:    cfg.HistoryLimit,
		now:             time.Now,
	}
	if s.workflowTimeout <= 0 {
		s.workflowTimeout = DefaultWorkflowTimeout
	}
	if s.speechTimeout <= 0 {
		s.speechTimeout = DefaultSpeechTimeout
	}
	if s.titleLength <= 0 {
		s.titleLength = DefaultTitleLength
	}
	if s.historyLimit <= 0 {
		s.historyLimit = DefaultHistoryLimit
	}
	return s
}

// Broadcaster returns the live update broadcaster.
func (s *Service) Broadcaster() *EventBroadcaster {
	return s.broadcaster
}

// SubmitRequest is one user message.
type SubmitRequest struct {
	// ConversationID is empty for the first message of a new conversation.
	ConversationID string
	// AgentID may be empty when ConversationID is set.
	AgentID     string
	Text        string
	InputMethod InputMethod
	// Speak asks for a synthesized voice reply.
	Speak bool
}

// SubmitResult is the outcome of a turn.
type SubmitResult struct {
	Conversation     *store.Conversation
	Created          bool
	UserMessage      *store.Message
	AssistantMessage *store.Message
}

// Submit runs one chat turn.
//
// Validation happens before any I/O. Once the user message is persisted the
// turn runs to completion even if ctx is cancelled, so a persisted user
// message always gets exactly one assistant message. Workflow failures and
// timeouts become a fallback reply; voice failures drop the audio.
func (s *Service) Submit(ctx context.Context, sess *auth.Session, req *SubmitRequest) (*SubmitResult, error) {
	start := s.now()

	if sess == nil || sess.UserID == "" {
		metrics.ChatTurns.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, ErrAuthRequired
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		metrics.ChatTurns.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, ErrEmptyMessage
	}
	if req.AgentID == "" && req.ConversationID == "" {
		metrics.ChatTurns.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, ErrAgentRequired
	}

	guardKey := req.ConversationID
	if guardKey == "" {
		guardKey = pendingKey(sess.UserID, req.AgentID)
	}
	if !s.guard.acquire(guardKey) {
		metrics.ChatTurns.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, ErrTurnInFlight
	}
	defer s.guard.release(guardKey)

	conv, agent, err := s.resolve(ctx, sess, req)
	if err != nil {
		metrics.ChatTurns.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, err
	}

	created := false
	if conv == nil {
		conv, err = s.createConversation(ctx, sess.UserID, agent.ID, text)
		if err != nil {
			metrics.ChatTurns.WithLabelValues(metrics.OutcomeFailed).Inc()
			return nil, err
		}
		created = true
		// Hold the real key too, in case a client learns the new id early.
		if s.guard.acquire(conv.ID) {
			defer s.guard.release(conv.ID)
		}
	}

	// 1. Record user message FIRST
	userMsg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           store.RoleUser,
		Content:        text,
		CreatedAt:      s.now(),
	}
	if err := s.store.InsertMessage(ctx, userMsg); err != nil {
		if created {
			if delErr := s.store.DeleteConversation(context.WithoutCancel(ctx), conv.ID); delErr != nil {
				s.logger.Warn("removing empty conversation failed", "conversation_id", conv.ID, "error", delErr)
			}
		}
		metrics.ChatTurns.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, fmt.Errorf("recording user message: %w", err)
	}
	conv.UpdatedAt = userMsg.CreatedAt
	s.broadcaster.Publish(userMsg)

	s.logger.Debug("user message recorded",
		"conversation_id", conv.ID,
		"message_id", userMsg.ID,
		"input_method", req.InputMethod)

	// The rest of the turn must finish even if the caller goes away.
	turnCtx := context.WithoutCancel(ctx)

	// 2. Generate the reply, or fall back
	replyText, meta := s.generate(turnCtx, sess, agent, conv, text, req.InputMethod)

	// 3. Voice, best effort
	var voiceURL string
	if req.Speak {
		voiceURL = s.voice(turnCtx, conv.ID, replyText)
	}

	// 4. Record assistant message
	createdAt := s.now()
	if !createdAt.After(userMsg.CreatedAt) {
		createdAt = userMsg.CreatedAt.Add(time.Microsecond)
	}
	assistantMsg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           store.RoleAssistant,
		Content:        replyText,
		VoiceURL:       voiceURL,
		Meta:           meta,
		CreatedAt:      createdAt,
	}
	if err := s.store.InsertMessage(turnCtx, assistantMsg); err != nil {
		metrics.ChatTurns.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, fmt.Errorf("recording assistant message: %w", err)
	}
	conv.UpdatedAt = assistantMsg.CreatedAt
	s.broadcaster.Publish(assistantMsg)

	// 5. Interaction log, best effort
	elapsed := s.now().Sub(start)
	s.logInteraction(turnCtx, sess.UserID, agent.ID, conv.ID, text, replyText, meta, elapsed)

	outcome := metrics.OutcomeReplied
	if meta.IsFallback() {
		outcome = metrics.OutcomeFallback
	}
	metrics.ChatTurns.WithLabelValues(outcome).Inc()

	s.logger.Info("turn completed",
		"conversation_id", conv.ID,
		"agent_id", agent.ID,
		"fallback", meta.IsFallback(),
		"voice", voiceURL != "",
		"duration", elapsed)

	return &SubmitResult{
		Conversation:     conv,
		Created:          created,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
	}, nil
}

// resolve loads and authorizes the agent and, if given, the conversation.
// A nil conversation means one must be created.
func (s *Service) resolve(ctx context.Context, sess *auth.Session, req *SubmitRequest) (*store.Conversation, *store.Agent, error) {
	var conv *store.Conversation
	agentID := req.AgentID

	if req.ConversationID != "" {
		c, err := s.ownedConversation(ctx, sess, req.ConversationID)
		if err != nil {
			return nil, nil, err
		}
		if agentID != "" && c.AgentID != agentID {
			return nil, nil, ErrConversationNotFound
		}
		agentID = c.AgentID
		conv = c
	}

	agent, err := s.store.GetAgent(ctx, agentID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && agent.UserID != sess.UserID) {
		return nil, nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading agent: %w", err)
	}
	if !agent.Active {
		return nil, nil, ErrAgentInactive
	}
	return conv, agent, nil
}

func (s *Service) createConversation(ctx context.Context, userID, agentID, text string) (*store.Conversation, error) {
	now := s.now()
	conv := &store.Conversation{
		ID:        uuid.New().String(),
		UserID:    userID,
		AgentID:   agentID,
		Title:     MakeTitle(text, s.titleLength),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	metrics.ConversationsCreated.Inc()
	s.logger.Info("conversation created", "conversation_id", conv.ID, "agent_id", agentID)
	return conv, nil
}

// generate asks the workflow for a reply and degrades to a fallback text on
// any failure, including the timeout.
func (s *Service) generate(ctx context.Context, sess *auth.Session, agent *store.Agent, conv *store.Conversation, text string, input InputMethod) (string, store.Meta) {
	if input == "" {
		input = InputText
	}
	wctx, cancel := context.WithTimeout(ctx, s.workflowTimeout)
	defer cancel()

	start := time.Now()
	reply, err := s.generator.Generate(wctx, &workflow.Request{
		UserID:            sess.UserID,
		AgentID:           agent.ID,
		AgentType:         agent.Type,
		AgentName:         agent.Name,
		PersonalityPrompt: agent.Prompt,
		Capabilities:      agent.Capabilities,
		Message:           text,
		ConversationID:    conv.ID,
		UserContext: map[string]any{
			"input_method": string(input),
			"user_name":    sess.Name,
		},
		Timestamp: start.UTC(),
	})
	metrics.CollaboratorDuration.WithLabelValues("workflow", metrics.Result(err)).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		return reply.Text, store.AgentTypeMeta(agent.Type)
	case errors.Is(err, workflow.ErrEmptyReply):
		s.logger.Warn("workflow returned no reply, using fallback",
			"conversation_id", conv.ID, "agent_id", agent.ID)
		return noReplyFallback(agent.Name, text), store.FallbackMeta(err.Error())
	default:
		s.logger.Warn("workflow failed, using fallback",
			"conversation_id", conv.ID, "agent_id", agent.ID, "error", err)
		return errorFallback(agent.Name, text), store.FallbackMeta(err.Error())
	}
}

// voice synthesizes and stores the reply audio. Returns "" on any failure.
func (s *Service) voice(ctx context.Context, conversationID, text string) string {
	if s.synthesizer == nil || s.media == nil {
		return ""
	}
	vctx, cancel := context.WithTimeout(ctx, s.speechTimeout)
	defer cancel()

	start := time.Now()
	audio, err := s.synthesizer.Synthesize(vctx, text)
	metrics.CollaboratorDuration.WithLabelValues("tts", metrics.Result(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.VoiceFailures.WithLabelValues("synthesize").Inc()
		s.logger.Warn("speech synthesis failed, replying without audio",
			"conversation_id", conversationID, "error", err)
		return ""
	}

	start = time.Now()
	url, err := s.media.SaveVoice(vctx, conversationID, audio)
	metrics.CollaboratorDuration.WithLabelValues("media", metrics.Result(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.VoiceFailures.WithLabelValues("store").Inc()
		s.logger.Warn("storing voice audio failed, replying without audio",
			"conversation_id", conversationID, "error", err)
		return ""
	}
	return url
}

func (s *Service) logInteraction(ctx context.Context, userID, agentID, conversationID, query, response string, meta store.Meta, elapsed time.Duration) {
	entry := &store.InteractionLog{
		ID:             uuid.New().String(),
		UserID:         userID,
		AgentID:        agentID,
		ConversationID: conversationID,
		Action:         "chat",
		Query:          query,
		Response:       response,
		Success:        !meta.IsFallback(),
		Fallback:       meta.IsFallback(),
		ProcessingTime: elapsed,
		TokensUsed:     estimateTokens(response),
		CreatedAt:      s.now(),
	}
	if err := s.store.SaveInteractionLog(ctx, entry); err != nil {
		s.logger.Warn("saving interaction log failed", "conversation_id", conversationID, "error", err)
	}
}

// ownedConversation loads a conversation and hides it from other users.
func (s *Service) ownedConversation(ctx context.Context, sess *auth.Session, id string) (*store.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && conv.UserID != sess.UserID) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	return conv, nil
}

// GetConversation returns a conversation owned by the session user.
func (s *Service) GetConversation(ctx context.Context, sess *auth.Session, id string) (*store.Conversation, error) {
	if sess == nil {
		return nil, ErrAuthRequired
	}
	return s.ownedConversation(ctx, sess, id)
}

// ListConversations returns the user's conversations, most recently active first.
func (s *Service) ListConversations(ctx context.Context, sess *auth.Session, limit int) ([]*store.Conversation, error) {
	if sess == nil {
		return nil, ErrAuthRequired
	}
	return s.store.ListConversations(ctx, sess.UserID, limit)
}

// History returns a conversation's messages in order, oldest first.
func (s *Service) History(ctx context.Context, sess *auth.Session, conversationID string) ([]*store.Message, error) {
	if sess == nil {
		return nil, ErrAuthRequired
	}
	if _, err := s.ownedConversation(ctx, sess, conversationID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, conversationID, s.historyLimit)
}

// DeleteConversation removes a conversation and its messages.
func (s *Service) DeleteConversation(ctx context.Context, sess *auth.Session, conversationID string) error {
	if sess == nil {
		return ErrAuthRequired
	}
	if _, err := s.ownedConversation(ctx, sess, conversationID); err != nil {
		return err
	}
	if err := s.store.DeleteConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if s.media != nil {
		// The rows are gone either way; leftover audio is only logged.
		if err := s.media.DeleteVoice(ctx, conversationID); err != nil {
			s.logger.Warn("failed to delete conversation audio", "conversation_id", conversationID, "error", err)
		}
	}
	s.logger.Info("conversation deleted", "conversation_id", conversationID)
	return nil
}

// Subscribe opens a live update feed for a conversation the user owns.
// The caller must Close the subscription; cancelling ctx also releases it.
func (s *Service) Subscribe(ctx context.Context, sess *auth.Session, conversationID string) (*Subscription, error) {
	if sess == nil {
		return nil, ErrAuthRequired
	}
	if _, err := s.ownedConversation(ctx, sess, conversationID); err != nil {
		return nil, err
	}
	return s.broadcaster.Subscribe(ctx, conversationID), nil
}
