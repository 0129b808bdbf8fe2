package player

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

type NowPlayingState int

const (
	NowPlayingIdle NowPlayingState = iota
	NowPlayingShowing
)

// NowPlayingSlot records the status message for the track that last started.
// The zero value is the idle state.
type NowPlayingSlot struct {
	TrackID   string
	ChannelID snowflake.ID
	MessageID snowflake.ID
}

func (s NowPlayingSlot) State() NowPlayingState {
	if s.MessageID == 0 {
		return NowPlayingIdle
	}
	return NowPlayingShowing
}

// Session is the playback state of one guild. Every field below mu is only
// touched while holding it, except voiceChannel which the occupancy monitor
// reads from the gateway's dispatch goroutines.
type Session struct {
	guildID      snowflake.ID
	voiceChannel atomic.Uint64

	mu            sync.Mutex
	textChannel   snowflake.ID
	queue         Queue
	slot          NowPlayingSlot
	current       *QueuedTrack
	paused        bool
	loop          LoopMode
	skipRequested bool
	volume        int
	idleTimeout   time.Duration
	idleTimer     *time.Timer
	connected     bool
	closed        bool
}

func newSession(guildID snowflake.ID) *Session {
	return &Session{guildID: guildID, volume: 100}
}

func (s *Session) GuildID() snowflake.ID { return s.guildID }

// VoiceChannel is the channel the bot occupies, 0 while still connecting.
func (s *Session) VoiceChannel() snowflake.ID {
	return snowflake.ID(s.voiceChannel.Load())
}

func (s *Session) setVoiceChannel(id snowflake.ID) {
	s.voiceChannel.Store(uint64(id))
}

func (s *Session) applySettings(set PlaybackSettings) {
	s.volume = set.DefaultVolume
	s.idleTimeout = set.IdleTimeout
}

func (s *Session) cancelIdleLocked() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}

// Snapshot is a read-only copy of a session for rendering.
type Snapshot struct {
	GuildID      snowflake.ID
	TextChannel  snowflake.ID
	VoiceChannel snowflake.ID
	Current      *QueuedTrack
	Position     time.Duration
	Paused       bool
	Loop         LoopMode
	QueueLen     int
	NowPlaying   NowPlayingSlot
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		GuildID:      s.guildID,
		TextChannel:  s.textChannel,
		VoiceChannel: s.VoiceChannel(),
		Paused:       s.paused,
		Loop:         s.loop,
		QueueLen:     s.queue.Len(),
		NowPlaying:   s.slot,
	}
	if s.current != nil {
		cur := *s.current
		snap.Current = &cur
	}
	return snap
}
