package audio

import (
	"log/slog"
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// guildEvents runs player callbacks off the Lavalink read loop. Callbacks of
// one guild run one at a time in arrival order; guilds never wait on each
// other. A guild's worker exits once its backlog is empty.
type guildEvents struct {
	mu      sync.Mutex
	pending map[snowflake.ID][]func()
	closed  bool
	wg      sync.WaitGroup
}

func newGuildEvents() *guildEvents {
	return &guildEvents{pending: make(map[snowflake.ID][]func())}
}

// dispatch queues fn behind the guild's earlier callbacks. It returns false
// once the queue is closed.
func (e *guildEvents) dispatch(guildID snowflake.ID, fn func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	backlog, running := e.pending[guildID]
	e.pending[guildID] = append(backlog, fn)
	if !running {
		e.wg.Go(func() { e.drain(guildID) })
	}
	return true
}

func (e *guildEvents) drain(guildID snowflake.ID) {
	for {
		e.mu.Lock()
		backlog := e.pending[guildID]
		if len(backlog) == 0 {
			delete(e.pending, guildID)
			e.mu.Unlock()
			return
		}
		fn := backlog[0]
		backlog[0] = nil
		e.pending[guildID] = backlog[1:]
		e.mu.Unlock()
		fn()
	}
}

// close stops accepting callbacks and waits for the queued ones to finish.
func (e *guildEvents) close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.wg.Wait()
	slog.Debug("player event queue closed")
}
