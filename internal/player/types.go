package player

import (
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

type SourceKind int

const (
	SourceOther SourceKind = iota
	SourceYouTube
	SourceSpotify
	SourceSoundCloud
	SourceTwitch
)

// ParseSource maps an audio server source name onto a SourceKind.
func ParseSource(name string) SourceKind {
	switch strings.ToLower(name) {
	case "youtube", "youtubemusic":
		return SourceYouTube
	case "spotify":
		return SourceSpotify
	case "soundcloud":
		return SourceSoundCloud
	case "twitch":
		return SourceTwitch
	default:
		return SourceOther
	}
}

func (k SourceKind) String() string {
	switch k {
	case SourceYouTube:
		return "youtube"
	case SourceSpotify:
		return "spotify"
	case SourceSoundCloud:
		return "soundcloud"
	case SourceTwitch:
		return "twitch"
	default:
		return "other"
	}
}

// Track is an immutable description of something the audio server can play.
// ID is the server-side identifier, Encoded is what gets handed back to the
// server to start playback.
type Track struct {
	ID         string
	Encoded    string
	Title      string
	Author     string
	Source     SourceKind
	URI        string
	ArtworkURL string
	Length     time.Duration
	IsStream   bool
}

type Requester struct {
	ID          snowflake.ID
	DisplayName string
	AvatarURL   string
}

type QueuedTrack struct {
	Track
	Requester   Requester
	RequestedAt time.Time
}

func NewQueuedTrack(t Track, r Requester, at time.Time) QueuedTrack {
	return QueuedTrack{Track: t, Requester: r, RequestedAt: at.UTC()}
}

type LoopMode int

const (
	LoopOff LoopMode = iota
	LoopTrack
	LoopQueue
)

func (m LoopMode) String() string {
	switch m {
	case LoopTrack:
		return "track"
	case LoopQueue:
		return "queue"
	default:
		return "off"
	}
}

func ParseLoopMode(s string) (LoopMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none":
		return LoopOff, true
	case "track", "song":
		return LoopTrack, true
	case "queue":
		return LoopQueue, true
	}
	return LoopOff, false
}

type TrackEndReason int

const (
	EndFinished TrackEndReason = iota
	EndLoadFailed
	EndStopped
	EndReplaced
	EndCleanup
)

func (r TrackEndReason) String() string {
	switch r {
	case EndFinished:
		return "finished"
	case EndLoadFailed:
		return "loadFailed"
	case EndStopped:
		return "stopped"
	case EndReplaced:
		return "replaced"
	default:
		return "cleanup"
	}
}

// PlaybackSettings are the per-guild knobs the controller consults.
type PlaybackSettings struct {
	PlaylistLimit      int
	IdleTimeout        time.Duration // 0 never leaves
	LeaveIfNoListeners bool
	DefaultVolume      int
}

func DefaultPlaybackSettings() PlaybackSettings {
	return PlaybackSettings{
		PlaylistLimit:      50,
		IdleTimeout:        30 * time.Second,
		LeaveIfNoListeners: true,
		DefaultVolume:      100,
	}
}
