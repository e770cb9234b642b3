// Package chatview is the client-side model of a chat screen.
//
// A View owns one open conversation: its Timeline, a Listener on the
// conversation's live update stream, a Player for spoken replies and a
// Capture controller for voice input. The Timeline de-duplicates by message
// ID, so a reply that arrives both as the Send result and on the live stream
// appears once, whichever copy lands first. Newly added assistant replies
// with audio are played automatically; the Player keeps at most one playing.
//
// Platform audio is abstracted behind AudioFactory and Microphone so that
// terminal and test implementations can be swapped in.
package chatview
