// ABOUTME: Tests for the external-process player and recorder
// ABOUTME: Uses sh scripts in place of ffplay and arecord

package main

import (
	"bytes"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/vox-gateway/internal/chatview"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecAudio_PlaysToEnd(t *testing.T) {
	requireShell(t)
	ended := make(chan error, 1)
	factory := execAudioFactory([]string{"sh", "-c", "exit 0"})
	h, err := factory("http://gw/a.mp3", func(err error) { ended <- err })
	require.NoError(t, err)

	require.NoError(t, h.Play())
	select {
	case err := <-ended:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("done not called")
	}

	// A finished handle starts over.
	require.NoError(t, h.Play())
	select {
	case <-ended:
	case <-time.After(5 * time.Second):
		t.Fatal("replay did not finish")
	}
	require.NoError(t, h.Close())
}

func TestExecAudio_RewindSuppressesDone(t *testing.T) {
	requireShell(t)
	ended := make(chan error, 1)
	factory := execAudioFactory([]string{"sh", "-c", "exec sleep 30"})
	h, err := factory("http://gw/a.mp3", func(err error) { ended <- err })
	require.NoError(t, err)

	require.NoError(t, h.Play())
	h.Pause()
	require.NoError(t, h.Play(), "resume")
	h.Pause()
	h.Rewind()

	select {
	case <-ended:
		t.Fatal("killed playback must not report completion")
	case <-time.After(300 * time.Millisecond):
	}
	require.NoError(t, h.Close())
	assert.Error(t, h.Play())
}

func TestExecAudio_MissingPlayer(t *testing.T) {
	_, err := execAudioFactory([]string{"definitely-not-a-player-binary"})("u", func(error) {})
	assert.Error(t, err)
	_, err = execAudioFactory(nil)("u", func(error) {})
	assert.Error(t, err)
}

func TestExecMic_Records(t *testing.T) {
	requireShell(t)
	mic := execMic{command: []string{"sh", "-c", "printf 'RIFFdata'; exec sleep 30"}}
	rec, err := mic.Open(t.Context())
	require.NoError(t, err)

	var got bytes.Buffer
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for chunk := range rec.Chunks() {
			got.Write(chunk)
		}
	}()

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, rec.Close())
	<-collected
	assert.Equal(t, "RIFFdata", got.String())
	assert.NoError(t, rec.Close())
}

func TestExecMic_Unsupported(t *testing.T) {
	_, err := execMic{command: []string{"definitely-not-a-recorder"}}.Open(t.Context())
	assert.True(t, errors.Is(err, chatview.ErrUnsupported))
	_, err = execMic{}.Open(t.Context())
	assert.True(t, errors.Is(err, chatview.ErrUnsupported))
}
