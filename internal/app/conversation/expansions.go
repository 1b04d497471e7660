package conversation

import (
	"sync"

	"github.com/PabloGalante/situation-relay/internal/domain"
)

// maxExpansionPosts is how many generated prompts per channel stay acceptable.
const maxExpansionPosts = 5

// expansionPosts remembers the generated prompts posted in each channel, so
// the accept reaction only applies to them and installs the full text even
// when the post was split. It is not persisted; prompts posted before a
// restart can no longer be accepted.
type expansionPosts struct {
	mu    sync.Mutex
	posts map[domain.ChannelID][]expansionPost
}

type expansionPost struct {
	ref  domain.MessageRef
	text string
}

func newExpansionPosts() *expansionPosts {
	return &expansionPosts{posts: make(map[domain.ChannelID][]expansionPost)}
}

// add records a post, dropping the oldest one of the channel when full.
func (e *expansionPosts) add(ch domain.ChannelID, ref domain.MessageRef, text string) {
	if ref == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	posts := append(e.posts[ch], expansionPost{ref: ref, text: text})
	if len(posts) > maxExpansionPosts {
		posts = posts[len(posts)-maxExpansionPosts:]
	}
	e.posts[ch] = posts
}

// lookup returns the full text posted as ref in ch.
func (e *expansionPosts) lookup(ch domain.ChannelID, ref domain.MessageRef) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, p := range e.posts[ch] {
		if p.ref == ref {
			return p.text, true
		}
	}
	return "", false
}

// forget drops every recorded post of ch.
func (e *expansionPosts) forget(ch domain.ChannelID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.posts, ch)
}
