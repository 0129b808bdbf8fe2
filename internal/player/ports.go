package player

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// AudioServer is the subset of the audio server client the controller drives.
// Play hands the requester metadata to the server along with the track and
// every later callback for that track carries it back.
type AudioServer interface {
	CreatePlayer(ctx context.Context, guildID snowflake.ID) error
	Play(ctx context.Context, guildID snowflake.ID, track QueuedTrack, volume int) error
	Stop(ctx context.Context, guildID snowflake.ID) error
	SetPaused(ctx context.Context, guildID snowflake.ID, paused bool) error
	Seek(ctx context.Context, guildID snowflake.ID, position time.Duration) error
	Position(guildID snowflake.ID) time.Duration
	Destroy(ctx context.Context, guildID snowflake.ID) error
}

type VoiceGateway interface {
	Connect(ctx context.Context, guildID, channelID snowflake.ID) error
	Disconnect(ctx context.Context, guildID snowflake.ID) error
}

type Resolution struct {
	Tracks       []Track
	PlaylistName string // empty unless the query named a playlist
	NotFound     int    // playlist entries that could not be matched
}

type Resolver interface {
	Resolve(ctx context.Context, query string, limit int) (Resolution, error)
}

type Notifier interface {
	PostNowPlaying(ctx context.Context, channelID snowflake.ID, track QueuedTrack) (snowflake.ID, error)
	PostError(ctx context.Context, channelID snowflake.ID, text string) error
	DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error
}

// VoiceStates answers membership questions from the platform's state cache.
type VoiceStates interface {
	UserVoiceChannel(guildID, userID snowflake.ID) (snowflake.ID, bool)
	ListenerCount(guildID, channelID snowflake.ID) int
}

// ArtworkResolver picks the image shown in the now playing message. It may
// block on network probes, so it is never called with a session locked.
type ArtworkResolver interface {
	Best(ctx context.Context, t Track) string
}

type SettingsSource interface {
	PlaybackSettings(ctx context.Context, guildID snowflake.ID) (PlaybackSettings, error)
}
