// Package apiclient is an HTTP client for the vox-gateway API.
//
// It covers what an interactive chat client needs: login, agents,
// conversation history, submitting turns, transcription and the
// per-conversation live update stream. Subscribe returns a scoped handle
// whose channel closes when the handle is closed, its context ends or the
// stream drops.
package apiclient
