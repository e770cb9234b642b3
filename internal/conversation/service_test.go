// ABOUTME: Tests for the conversation service message pipeline
// ABOUTME: Verifies record-first ordering, fallbacks, voice handling, guards, ownership and live updates

package conversation

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/vox-gateway/internal/auth"
	"github.com/2389/vox-gateway/internal/store"
	"github.com/2389/vox-gateway/internal/workflow"
)

// fakeGenerator implements workflow.Generator for testing
type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	block   chan struct{} // when set, Generate waits on it or ctx
	lastReq *workflow.Request
	calls   int
	onCall  func(req *workflow.Request)
}

func (f *fakeGenerator) Generate(ctx context.Context, req *workflow.Request) (*workflow.Reply, error) {
	f.mu.Lock()
	f.lastReq = req
	f.calls++
	onCall := f.onCall
	block := f.block
	f.mu.Unlock()

	if onCall != nil {
		onCall(req)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, errors.Join(workflow.ErrUnavailable, ctx.Err())
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &workflow.Reply{Text: f.reply}, nil
}

type fakeSynth struct {
	audio []byte
	err   error
	text  string
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.text = text
	return f.audio, f.err
}

type fakeMedia struct {
	url       string
	err       error
	deleteErr error
	saved     []byte
	deleted   []string
}

func (f *fakeMedia) SaveVoice(ctx context.Context, conversationID string, audio []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saved = audio
	return f.url + "/voice/" + conversationID + "/1.mp3", nil
}

func (f *fakeMedia) DeleteVoice(ctx context.Context, conversationID string) error {
	f.deleted = append(f.deleted, conversationID)
	return f.deleteErr
}

var testSession = &auth.Session{UserID: "user-1", Email: "ada@example.com", Name: "Ada"}

func seedMock(t *testing.T) *store.MockStore {
	t.Helper()
	ms := store.NewMockStore()
	ctx := context.Background()
	require.NoError(t, ms.CreateAgent(ctx, &store.Agent{
		ID: "agent-1", UserID: "user-1", Name: "Nova", Type: "general_assistant",
		Prompt: "Be helpful.", Capabilities: []string{"calendar"}, Active: true,
	}))
	require.NoError(t, ms.CreateAgent(ctx, &store.Agent{
		ID: "agent-off", UserID: "user-1", Name: "Sleepy", Active: false,
	}))
	require.NoError(t, ms.CreateAgent(ctx, &store.Agent{
		ID: "agent-other", UserID: "user-2", Name: "Theirs", Active: true,
	}))
	return ms
}

func newTestService(st ConversationStore, gen workflow.Generator) *Service {
	return New(Config{Store: st, Generator: gen, WorkflowTimeout: time.Second})
}

func TestSubmit_NewConversation(t *testing.T) {
	ms := seedMock(t)
	gen := &fakeGenerator{reply: "Your next meeting is at 3pm."}
	svc := newTestService(ms, gen)

	text := "What's on my calendar today? I need to plan around the dentist appointment."
	res, err := svc.Submit(context.Background(), testSession, &SubmitRequest{
		AgentID: "agent-1", Text: text, InputMethod: InputVoice,
	})
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.Equal(t, "What's on my calendar today? I need to plan around...", res.Conversation.Title)
	assert.Equal(t, "user-1", res.Conversation.UserID)
	assert.Equal(t, "agent-1", res.Conversation.AgentID)

	assert.Equal(t, store.RoleUser, res.UserMessage.Role)
	assert.Equal(t, text, res.UserMessage.Content)
	assert.Equal(t, store.RoleAssistant, res.AssistantMessage.Role)
	assert.Equal(t, "Your next meeting is at 3pm.", res.AssistantMessage.Content)
	assert.Equal(t, store.AgentTypeMeta("general_assistant"), res.AssistantMessage.Meta)
	assert.True(t, res.AssistantMessage.CreatedAt.After(res.UserMessage.CreatedAt))

	msgs, err := ms.ListMessages(context.Background(), res.Conversation.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, res.UserMessage.ID, msgs[0].ID)
	assert.Equal(t, res.AssistantMessage.ID, msgs[1].ID)

	// Workflow saw the agent configuration and context.
	assert.Equal(t, "Nova", gen.lastReq.AgentName)
	assert.Equal(t, "Be helpful.", gen.lastReq.PersonalityPrompt)
	assert.Equal(t, []string{"calendar"}, gen.lastReq.Capabilities)
	assert.Equal(t, res.Conversation.ID, gen.lastReq.ConversationID)
	assert.Equal(t, "voice", gen.lastReq.UserContext["input_method"])
}

func TestSubmit_RecordsUserMessageBeforeWorkflow(t *testing.T) {
	ms := seedMock(t)
	var persisted []*store.Message
	gen := &fakeGenerator{reply: "ok"}
	gen.onCall = func(req *workflow.Request) {
		persisted, _ = ms.ListMessages(context.Background(), req.ConversationID, 0)
	}
	svc := newTestService(ms, gen)

	_, err := svc.Submit(context.Background(), testSession, &SubmitRequest{AgentID: "agent-1", Text: "hi"})
	require.NoError(t, err)

	require.Len(t, persisted, 1, "user message must be stored before the workflow is called")
	assert.Equal(t, store.RoleUser, persisted[0].Role)
}

func TestSubmit_WorkflowFailureFallsBack(t *testing.T) {
	ms := seedMock(t)
	gen := &fakeGenerator{err: errors.New("connection refused")}
	svc := newTestService(ms, gen)

	text := `Remind me about "the thing" at 5`
	res, err := svc.Submit(context.Background(), testSession, &SubmitRequest{AgentID: "agent-1", Text: text})
	require.NoError(t, err, "workflow failure is absorbed")

	reply := res.AssistantMessage
	assert.True(t, reply.Meta.IsFallback())
	assert.Contains(t, reply.Meta.Value, "connection refused")
	assert.Contains(t, reply.Content, "Nova")
	assert.Contains(t, reply.Content, text, "original text is embedded verbatim")
	assert.Contains(t, reply.Content, "technical difficulties")

	msgs, err := ms.ListMessages(context.Background(), res.Conversation.ID, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 2, "exactly one user and one assistant message")
}

func TestSubmit_EmptyReplyFallsBack(t *testing.T) {
	ms := seedMock(t)
	svc := newTestService(ms, &fakeGenerator{err: workflow.ErrEmptyReply})

	res, err := svc.Submit(context.Background(), testSession, &SubmitRequest{AgentID: "agent-1", Text: "hello"})
	require.NoError(t, err)

	assert.True(t, res.AssistantMessage.Meta.IsFallback())
	assert.Equal(t, `Hello! I'm Nova. I received your message: "hello". How can I help you today?`,
		res.AssistantMessage.Content)
}

func TestSubmit_WorkflowTimeoutFallsBack(t *testing.T) {
	ms := seedMock(t)
	gen := &fakeGenerator{block: make(chan struct{})}
	defer close(gen.block)
	svc := New(Config{Store: ms, Generator: gen, WorkflowTimeout: 30 * time.Millisecond})

	start := time.Now()
	res, err := svc.Submit(context.Background(), testSession, &SubmitRequest{AgentID: "agent-1", Text: "slow?"})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, res.AssistantMessage.Meta.IsFallback())
}

func TestSubmit_Validation(t *testing.T) {
	ms := seedMock(t)
	gen := &fakeGenerator{reply: "x"}
	svc := newTestService(ms, gen)
	ctx := context.Background()

	tests := []struct {
		name    string
		sess    *auth.Session
		req     *SubmitRequest
		wantErr error
	}{
		{"no session", nil, &SubmitRequest{AgentID: "agent-1", Text: "hi"}, ErrAuthRequired},
		{"empty text", testSession, &SubmitRequest{AgentID: "agent-1", Text: ""}, ErrEmptyMessage},
		{"whitespace text", testSession, &SubmitRequest{AgentID: "agent-1", Text: "  \n\t "}, ErrEmptyMessage},
		{"no agent", testSession, &SubmitRequest{Text: "hi"}, ErrAgentRequired},
		{"unknown agent", testSession, &SubmitRequest{AgentID: "nope", Text: "hi"}, ErrAgentNotFound},
		{"someone else's agent", testSession, &SubmitRequest{AgentID: "agent-other", Text: "hi"}, ErrAgentNotFound},
		{"inactive agent", testSession, &SubmitRequest{AgentID: "agent-off", Text: "hi"}, ErrAgentInactive},
		{"unknown conversation", testSession, &SubmitRequest{ConversationID: "c-x", AgentID: "agent-1", Text: "hi"}, ErrConversationNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, tt.sess, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Zero(t, gen.calls, "no turn reached the workflow")
	convs, err := ms.ListConversations(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.Empty(t, convs, "rejected turns create nothing")
}

func TestSubmit_ExistingConversation(t *testing.T) {
	ms := seedMock(t)
	svc := newTestService(ms, &fakeGenerator{reply: "second"})
	ctx := context.Background()

	first, err := svc.Submit(ctx, testSession, &SubmitRequest{AgentID: "agent-1", Text: "first"})
	require.NoError(t, err)

	// The agent is implied by the conversation.
	second, err := svc.Submit(ctx, testSession, &SubmitRequest{ConversationID: first.Conversation.ID, Text: "again"})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Conversation.ID, second.Conversation.ID)
	assert.Equal(t, "first", second.Conversation.Title, "title is fixed at creation")

	msgs, err := svc.History(ctx, testSession, first.Conversation.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, []string{"first", "second", "again", "second"}, []string{
		msgs[0].Content, msgs[1].Content, msgs[2].Content, msgs[3].Content,
	})

	// Another user cannot post into it.
	_, err = svc.Submit(ctx, &auth.Session{UserID: "user-2"}, &SubmitRequest{
		ConversationID: first.Conversation.ID, AgentID: "agent-other", Text: "intrude",
	})
	assert.ErrorIs(t, err, ErrConversationNotFound)

	// Nor can the conversation be re-pointed at another agent.
	_, err = svc.Submit(ctx, testSession, &SubmitRequest{
		ConversationID: first.Conversation.ID, AgentID: "agent-off", Text: "switch",
	})
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestSubmit_TurnInFlight(t *testing.T) {
	ms := seedMock(t)
	gen := &fakeGenerator{reply: "done"}
	svc := New(Config{Store: ms, Generator: gen, WorkflowTimeout: 5 * time.Second})
	ctx := context.Background()

	first, err := svc.Submit(ctx, testSession, &SubmitRequest{AgentID: "agent-1", Text: "seed"})
	require.NoError(t, err)

	block := make(chan struct{})
	entered := make(chan struct{})
	gen.mu.Lock()
	gen.block = block
	gen.onCall = func(*workflow.Request) { close(entered) }
	gen.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		_, err := svc.Submit(ctx, testSession, &SubmitRequest{ConversationID: first.Conversation.ID, Text: "one"})
		errCh <- err
	}()
	<-entered

	_, err = svc.Submit(ctx, testSession, &SubmitRequest{ConversationID: first.Conversation.ID, Text: "two"})
	assert.ErrorIs(t, err, ErrTurnInFlight)

	gen.mu.Lock()
	gen.onCall = nil
	gen.mu.Unlock()
	close(block)
	require.NoError(t, <-errCh)

	// Guard released after completion.
	_, err = svc.Submit(ctx, testSession, &SubmitRequest{ConversationID: first.Conversation.ID, Text: "three"})
	assert.NoError(t, err)
}

func TestSubmit_FirstMessageGuardedPerAgent(t *testing.T) {
	ms := seedMock(t)
	block := make(chan struct{})
	entered := make(chan struct{})
	gen := &fakeGenerator{reply: "x", block: block}
	gen.onCall = func(*workflow.Request) { close(entered) }
	svc := New(Config{Store: ms, Generator: gen, WorkflowTimeout: 5 * time.Second})
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() {
		_, err := svc.Submit(ctx, testSession, &SubmitRequest{AgentID: "agent-1", Text: "one"})
		errCh <- err
	}()
	<-entered

	_, err := svc.Submit(ctx, testSession, &SubmitRequest{AgentID: "agent-1", Text: "two"})
	assert.ErrorIs(t, err, ErrTurnInFlight, "a second first-message must not create a second conversation")

	gen.mu.Lock()
	gen.onCall = nil
	gen.mu.Unlock()
	close(block)
	require.NoError(t, <-errCh)

	convs, err := ms.ListConversations(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

func TestSubmit_VoiceReply(t *testing.T) {
	ms := seedMock(t)
	synth := &fakeSynth{audio: []byte("mp3")}
	med := &fakeMedia{url: "http://localhost:8080/media"}
	svc := New(Config{Store: ms, Generator: &fakeGenerator{reply: "Sunny today."}, Synthesizer: synth, Media: med})

	res, err := svc.Submit(context.Background(), testSession, &SubmitRequest{AgentID: "agent-1", Text: "weather?", Speak: true})
	require.NoError(t, err)

	assert.Equal(t, "Sunny today.", synth.text)
	assert.Equal(t, []byte("mp3"), med.saved)
	assert.Equal(t, "http://localhost:8080/media/voice/"+res.Conversation.ID+"/1.mp3", res.AssistantMessage.VoiceURL)
	assert.Empty(t, res.UserMessage.VoiceURL)
}

func TestSubmit_VoiceFailuresAreAbsorbed(t *testing.T) {
	tests := []struct {
		name  string
		synth *fakeSynth
		media *fakeMedia
	}{
		{"synthesis fails", &fakeSynth{err: errors.New("quota")}, &fakeMedia{url: "http://x"}},
		{"storage fails", &fakeSynth{audio: []byte("mp3")}, &fakeMedia{err: errors.New("disk full")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := seedMock(t)
			svc := New(Config{Store: ms, Generator: &fakeGenerator{reply: "hi"}, Synthesizer: tt.synth, Media: tt.media})

			res, err := svc.Submit(context.Background(), testSession, &SubmitRequest{AgentID: "agent-1", Text: "x", Speak: true})
			require.NoError(t, err)
			assert.Empty(t, res.AssistantMessage.VoiceURL)
			assert.Equal(t, "hi", res.AssistantMessage.Content)
			assert.False(t, res.AssistantMessage.Meta.IsFallback())
		})
	}
}

func TestSubmit_NoVoiceUnlessRequested(t *testing.T) {
	ms := seedMock(t)
	synth := &fakeSynth{audio: []byte("mp3")}
	svc := New(Config{Store: ms, Generator: &fakeGenerator{reply: "hi"}, Synthesizer: synth, Media: &fakeMedia{url: "http://x"}})

	res, err := svc.Submit(context.Background(), testSession, &SubmitRequest{AgentID: "agent-1", Text: "x"})
	require.NoError(t, err)
	assert.Empty(t, res.AssistantMessage.VoiceURL)
	assert.Empty(t, synth.text, "synthesizer not called")
}

func TestSubmit_InteractionLogMeasuresTime(t *testing.T) {
	ms := seedMock(t)
	gen := &fakeGenerator{reply: "twelve chars"}
	gen.onCall = func(*workflow.Request) { time.Sleep(20 * time.Millisecond) }
	svc := newTestService(ms, gen)

	_, err := svc.Submit(context.Background(), testSession, &SubmitRequest{AgentID: "agent-1", Text: "q"})
	require.NoError(t, err)

	logs, err := ms.ListInteractionLogs(context.Background(), "user-1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.GreaterOrEqual(t, logs[0].ProcessingTime, 20*time.Millisecond)
	assert.Equal(t, 3, logs[0].TokensUsed)
	assert.True(t, logs[0].Success)
	assert.Equal(t, "chat", logs[0].Action)
}

func TestSubmit_InteractionLogFailureIsAbsorbed(t *testing.T) {
	ms := seedMock(t)
	ms.SaveLogErr = errors.New("log table locked")
	svc := newTestService(ms, &fakeGenerator{reply: "fine"})

	_, err := svc.Submit(context.Background(), testSession, &SubmitRequest{AgentID: "agent-1", Text: "q"})
	assert.NoError(t, err)
}

func TestSubmit_PersistenceFailureSurfaces(t *testing.T) {
	ms := seedMock(t)
	ms.InsertMessageErr = errors.New("disk I/O error")
	gen := &fakeGenerator{reply: "never"}
	svc := newTestService(ms, gen)

	_, err := svc.Submit(context.Background(), testSession, &SubmitRequest{AgentID: "agent-1", Text: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recording user message")
	assert.Zero(t, gen.calls)

	convs, err := ms.ListConversations(context.Background(), "user-1", 0)
	require.NoError(t, err)
	assert.Empty(t, convs, "the empty conversation is rolled back")
}

func TestSubmit_CompletesAfterCallerCancels(t *testing.T) {
	ms := seedMock(t)
	ctx, cancel := context.WithCancel(context.Background())
	gen := &fakeGenerator{reply: "still here"}
	gen.onCall = func(*workflow.Request) { cancel() }
	svc := newTestService(ms, gen)

	res, err := svc.Submit(ctx, testSession, &SubmitRequest{AgentID: "agent-1", Text: "q"})
	require.NoError(t, err)
	assert.Equal(t, "still here", res.AssistantMessage.Content)
}

func TestSubmit_PublishesLiveUpdates(t *testing.T) {
	ms := seedMock(t)
	svc := newTestService(ms, &fakeGenerator{reply: "pong"})
	ctx := context.Background()

	first, err := svc.Submit(ctx, testSession, &SubmitRequest{AgentID: "agent-1", Text: "ping"})
	require.NoError(t, err)

	sub, err := svc.Subscribe(t.Context(), testSession, first.Conversation.ID)
	require.NoError(t, err)
	defer sub.Close()

	res, err := svc.Submit(ctx, testSession, &SubmitRequest{ConversationID: first.Conversation.ID, Text: "ping 2"})
	require.NoError(t, err)

	assert.Equal(t, res.UserMessage.ID, receive(t, sub).ID)
	assert.Equal(t, res.AssistantMessage.ID, receive(t, sub).ID)

	_, err = svc.Subscribe(t.Context(), &auth.Session{UserID: "user-2"}, first.Conversation.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestService_ConversationManagement(t *testing.T) {
	ms := seedMock(t)
	svc := newTestService(ms, &fakeGenerator{reply: "ok"})
	ctx := context.Background()

	a, err := svc.Submit(ctx, testSession, &SubmitRequest{AgentID: "agent-1", Text: "first conversation"})
	require.NoError(t, err)
	b, err := svc.Submit(ctx, testSession, &SubmitRequest{AgentID: "agent-1", Text: "second conversation"})
	require.NoError(t, err)

	list, err := svc.ListConversations(ctx, testSession, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.Conversation.ID, list[0].ID, "most recent first")

	_, err = svc.GetConversation(ctx, &auth.Session{UserID: "user-2"}, a.Conversation.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
	_, err = svc.History(ctx, &auth.Session{UserID: "user-2"}, a.Conversation.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.ErrorIs(t, svc.DeleteConversation(ctx, &auth.Session{UserID: "user-2"}, a.Conversation.ID), ErrConversationNotFound)

	require.NoError(t, svc.DeleteConversation(ctx, testSession, a.Conversation.ID))
	_, err = svc.GetConversation(ctx, testSession, a.Conversation.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	_, err = svc.ListConversations(ctx, nil, 0)
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestDeleteConversation_RemovesAudio(t *testing.T) {
	ms := seedMock(t)
	med := &fakeMedia{url: "http://localhost:8080/media"}
	svc := New(Config{Store: ms, Generator: &fakeGenerator{reply: "Hi."}, Synthesizer: &fakeSynth{audio: []byte("mp3")}, Media: med})
	ctx := context.Background()

	res, err := svc.Submit(ctx, testSession, &SubmitRequest{AgentID: "agent-1", Text: "hello", Speak: true})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteConversation(ctx, &auth.Session{UserID: "user-2"}, res.Conversation.ID), ErrConversationNotFound)
	assert.Empty(t, med.deleted, "audio is kept when the delete is refused")

	require.NoError(t, svc.DeleteConversation(ctx, testSession, res.Conversation.ID))
	assert.Equal(t, []string{res.Conversation.ID}, med.deleted)
}

func TestDeleteConversation_AudioFailureStillDeletes(t *testing.T) {
	ms := seedMock(t)
	med := &fakeMedia{url: "http://localhost:8080/media", deleteErr: errors.New("disk gone")}
	svc := New(Config{Store: ms, Generator: &fakeGenerator{reply: "Hi."}, Media: med})
	ctx := context.Background()

	res, err := svc.Submit(ctx, testSession, &SubmitRequest{AgentID: "agent-1", Text: "hello"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteConversation(ctx, testSession, res.Conversation.ID))
	_, err = svc.GetConversation(ctx, testSession, res.Conversation.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

// TestSubmit_CalendarScenario runs a voice-enabled first message end to end
// against SQLite.
func TestSubmit_CalendarScenario(t *testing.T) {
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()

	require.NoError(t, st.CreateUser(ctx, &store.User{ID: "user-1", Email: "ada@example.com", Name: "Ada", PasswordHash: "x", CreatedAt: time.Now()}))
	require.NoError(t, st.CreateAgent(ctx, &store.Agent{ID: "agent-1", UserID: "user-1", Name: "Nova", Active: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}))

	med := &fakeMedia{url: "http://localhost:8080/media"}
	svc := New(Config{
		Store:       st,
		Generator:   &fakeGenerator{reply: "You have two meetings today."},
		Synthesizer: &fakeSynth{audio: []byte("mp3")},
		Media:       med,
	})

	text := strings.Repeat("calendar ", 10)
	res, err := svc.Submit(ctx, testSession, &SubmitRequest{AgentID: "agent-1", Text: text, InputMethod: InputVoice, Speak: true})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(res.Conversation.Title, "..."))
	assert.Len(t, []rune(strings.TrimSuffix(res.Conversation.Title, "...")), 50)

	msgs, err := st.ListMessages(ctx, res.Conversation.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
	assert.Equal(t, store.RoleAssistant, msgs[1].Role)
	assert.NotEmpty(t, msgs[1].VoiceURL)
	assert.Equal(t, store.MetaAgentType, msgs[1].Meta.Kind)

	conv, err := st.GetConversation(ctx, res.Conversation.ID)
	require.NoError(t, err)
	assert.True(t, conv.UpdatedAt.Equal(msgs[1].CreatedAt))
}
