package session

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// NoticeKind classifies what a subscriber is being told.
type NoticeKind string

const (
	NoticeConnection NoticeKind = "connection"
	NoticeOverlay    NoticeKind = "overlay"
	NoticeReload     NoticeKind = "reload"
	NoticeSound      NoticeKind = "sound"
	NoticeFatal      NoticeKind = "fatal"
)

// Notice is one message on the session's internal bus. The rendering and
// audio layers subscribe instead of being called back directly, so the
// session never knows who is listening.
type Notice struct {
	Kind      NoticeKind
	Reason    string
	Outcome   string // "won"/"lost" for NoticeSound
	Visible   bool   // for NoticeOverlay
	Connected bool   // for NoticeConnection
	Message   string // banner text for NoticeConnection
	Err       error  // for NoticeFatal
}

// Bus is a small in-process pub/sub owned by one session.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Notice
	next   int
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Notice)}
}

// Subscribe returns a notice channel and its cancel function. The channel
// is closed on cancel or bus close.
func (b *Bus) Subscribe(buffer int) (<-chan Notice, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Notice, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.next
	b.next++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

// Publish fans a notice out to every subscriber without blocking the
// session loop; a full subscriber simply misses the notice.
func (b *Bus) Publish(n Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
			log.Debug().Str("kind", string(n.Kind)).Msg("subscriber buffer full, dropping notice")
		}
	}
}

// Close closes every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
