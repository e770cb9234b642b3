// ABOUTME: Local-disk store for synthesized voice audio
// ABOUTME: Writes voice/{conversation}/{unix_ms}.mp3 files, removes them per conversation and serves them

package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidKey is returned for conversation IDs that are not a single safe path segment.
var ErrInvalidKey = errors.New("invalid media key")

// Saver stores audio and returns the URL clients use to fetch it.
type Saver interface {
	SaveVoice(ctx context.Context, conversationID string, audio []byte) (string, error)
}

// Library stores voice audio and removes it when its conversation goes away.
type Library interface {
	Saver
	DeleteVoice(ctx context.Context, conversationID string) error
}

// Store writes audio under a root directory and builds public URLs for it.
type Store struct {
	root      string
	publicURL string // e.g. https://vox.example.com/media
	logger    *slog.Logger
	now       func() time.Time
}

var _ Library = (*Store)(nil)

// NewStore creates the root directory if needed. baseURL is the server's
// public URL and prefix is the path the Handler is mounted at.
func NewStore(root, baseURL, prefix string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}
	return &Store{
		root:      root,
		publicURL: strings.TrimSuffix(baseURL, "/") + "/" + strings.Trim(prefix, "/"),
		logger:    logger.With("component", "media"),
		now:       time.Now,
	}, nil
}

// SaveVoice writes an MP3 for the conversation and returns its public URL.
func (s *Store) SaveVoice(ctx context.Context, conversationID string, audio []byte) (string, error) {
	if err := checkKey(conversationID); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, "voice", conversationID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating conversation directory: %w", err)
	}

	// Two replies in the same millisecond get distinct names.
	base := strconv.FormatInt(s.now().UnixMilli(), 10)
	for i := 0; i < 100; i++ {
		name := base + ".mp3"
		if i > 0 {
			name = base + "-" + strconv.Itoa(i) + ".mp3"
		}

		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("creating audio file: %w", err)
		}

		if _, err := f.Write(audio); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", fmt.Errorf("writing audio file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("closing audio file: %w", err)
		}

		key := path.Join("voice", conversationID, name)
		s.logger.Debug("saved voice audio", "key", key, "bytes", len(audio))
		return s.publicURL + "/" + key, nil
	}
	return "", fmt.Errorf("no free file name for %s", base)
}

// DeleteVoice removes every audio file stored for the conversation. A
// conversation with no audio is not an error.
func (s *Store) DeleteVoice(ctx context.Context, conversationID string) error {
	if err := checkKey(conversationID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.root, "voice", conversationID)); err != nil {
		return fmt.Errorf("removing conversation audio: %w", err)
	}
	s.logger.Debug("deleted voice audio", "conversation_id", conversationID)
	return nil
}

// checkKey accepts only a single path segment that is not hidden.
func checkKey(conversationID string) error {
	if conversationID == "" || conversationID != filepath.Base(conversationID) ||
		strings.HasPrefix(conversationID, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, conversationID)
	}
	return nil
}

// Handler serves stored files. Mount it at the prefix given to NewStore.
func (s *Store) Handler(prefix string) http.Handler {
	fs := http.FileServer(noDirFS{http.Dir(s.root)})
	return http.StripPrefix(strings.TrimSuffix(prefix, "/"), fs)
}

// noDirFS hides directory listings.
type noDirFS struct {
	fs http.FileSystem
}

func (n noDirFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}
