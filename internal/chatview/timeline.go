// ABOUTME: Ordered, de-duplicated message list for one open conversation
// ABOUTME: Messages may arrive from the submit reply and the live stream in any order

package chatview

import (
	"slices"
	"sort"
	"sync"

	"github.com/2389/vox-gateway/internal/apiclient"
)

// Timeline holds at most one entry per message ID, ordered by CreatedAt.
// Messages with equal timestamps keep arrival order.
type Timeline struct {
	mu   sync.Mutex
	msgs []apiclient.Message
	ids  map[string]struct{}
}

// NewTimeline returns an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{ids: make(map[string]struct{})}
}

// Add inserts messages not already present and returns the ones that were
// new, in the order given.
func (t *Timeline) Add(msgs ...apiclient.Message) []apiclient.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	var added []apiclient.Message
	for _, m := range msgs {
		if m.ID == "" {
			continue
		}
		if _, dup := t.ids[m.ID]; dup {
			continue
		}
		i := sort.Search(len(t.msgs), func(i int) bool {
			return t.msgs[i].CreatedAt.After(m.CreatedAt)
		})
		t.msgs = slices.Insert(t.msgs, i, m)
		t.ids[m.ID] = struct{}{}
		added = append(added, m)
	}
	return added
}

// Reset replaces the contents with msgs.
func (t *Timeline) Reset(msgs []apiclient.Message) {
	t.mu.Lock()
	t.msgs = nil
	t.ids = make(map[string]struct{})
	t.mu.Unlock()
	t.Add(msgs...)
}

// Messages returns a copy of the ordered list.
func (t *Timeline) Messages() []apiclient.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.msgs)
}

// Len returns the number of messages.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.msgs)
}
