// Package conversation runs chat turns and fans persisted messages out to
// live subscribers.
//
// # Overview
//
// The conversation package sits between the HTTP handlers and the
// collaborators that produce replies: the workflow webhook, the speech
// synthesizer and the media store.
//
// # Service
//
//	svc := conversation.New(conversation.Config{
//	    Store:       store,
//	    Generator:   workflowClient,
//	    Synthesizer: speechClient,
//	    Media:       mediaStore,
//	})
//
// Key operations:
//
//   - Submit(ctx, sess, req): Run one chat turn
//   - History(ctx, sess, id): Messages of a conversation, oldest first
//   - ListConversations(ctx, sess, limit): Most recently active first
//   - Subscribe(ctx, sess, id): Live update feed for a conversation
//
// Every operation takes the caller's *auth.Session explicitly and hides
// conversations and agents owned by other users as not found.
//
// # Turn Ordering
//
// When a message arrives:
//
//  1. Validate the session and text before any I/O
//  2. Resolve the agent and conversation, creating the conversation lazily
//  3. Record the user message and publish it
//  4. Ask the workflow for a reply, bounded by a timeout
//  5. Optionally synthesize and store the reply audio
//  6. Record the assistant message and publish it
//  7. Save an interaction log with the measured processing time
//
// Once step 3 succeeds the turn always ends with exactly one assistant
// message. Workflow failures produce a fallback reply tagged with
// store.MetaFallback; voice failures drop the audio and keep the text.
//
// Only one turn may be in flight per conversation. A concurrent Submit
// returns ErrTurnInFlight.
//
// # Event Broadcasting
//
// EventBroadcaster delivers each persisted message to every subscriber of
// its conversation. Publishing never blocks: a subscriber whose buffer is
// full misses the message and is expected to re-read history.
package conversation
