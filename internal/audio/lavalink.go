package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"

	"github.com/sonroyaalmerol/kumalink/internal/config"
	"github.com/sonroyaalmerol/kumalink/internal/player"
)

const eventTimeout = 15 * time.Second

var (
	ErrNoNode        = errors.New("no lavalink node available")
	ErrVoiceNotReady = errors.New("lavalink player has no voice connection")
)

// Handler receives the player events the client translates from Lavalink.
// Every track carries the requester metadata it was played with.
type Handler interface {
	HandleTrackStart(ctx context.Context, guildID snowflake.ID, t player.QueuedTrack)
	HandleTrackEnd(ctx context.Context, guildID snowflake.ID, t player.QueuedTrack, reason player.TrackEndReason)
	HandleTrackException(ctx context.Context, guildID snowflake.ID, t player.QueuedTrack, message string)
}

// Client drives Lavalink players through disgolink and forwards their events
// to a Handler. Events are handed over on per-guild queues so a slow guild
// never holds up disgolink's read loop.
type Client struct {
	link   disgolink.Client
	events *guildEvents

	mu      sync.RWMutex
	handler Handler
}

func NewClient(botID snowflake.ID) *Client {
	c := &Client{events: newGuildEvents()}
	c.link = disgolink.New(botID,
		disgolink.WithListenerFunc(c.onTrackStart),
		disgolink.WithListenerFunc(c.onTrackEnd),
		disgolink.WithListenerFunc(c.onTrackException),
		disgolink.WithListenerFunc(c.onTrackStuck),
		disgolink.WithListenerFunc(c.onWebSocketClosed),
	)
	return c
}

// Connect adds the configured node. It must succeed before anything is played.
func (c *Client) Connect(ctx context.Context, cfg *config.Config) error {
	node, err := c.link.AddNode(ctx, disgolink.NodeConfig{
		Name:     cfg.LavalinkNodeName,
		Address:  cfg.LavalinkAddress,
		Password: cfg.LavalinkPassword,
		Secure:   cfg.LavalinkSecure,
	})
	if err != nil {
		return fmt.Errorf("add lavalink node: %w", err)
	}
	slog.Info("connected to lavalink", "node", node.Config().Name, "address", cfg.LavalinkAddress)
	return nil
}

func (c *Client) SetHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

func (c *Client) getHandler() Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handler
}

// OnVoiceStateUpdate forwards the bot's voice state. disgolink creates the
// guild's player on the first state with a channel and destroys it on a nil
// one; CreatePlayer relies on that.
func (c *Client) OnVoiceStateUpdate(ctx context.Context, guildID snowflake.ID, channelID *snowflake.ID, sessionID string) {
	if channelID == nil && c.link.ExistingPlayer(guildID) == nil {
		return
	}
	c.link.OnVoiceStateUpdate(ctx, guildID, channelID, sessionID)
}

func (c *Client) OnVoiceServerUpdate(ctx context.Context, guildID snowflake.ID, token, endpoint string) {
	c.link.OnVoiceServerUpdate(ctx, guildID, token, endpoint)
}

// Close disconnects from Lavalink and waits for queued events to be handled.
func (c *Client) Close() {
	c.link.Close()
	c.events.close()
}

// CreatePlayer confirms the guild's Lavalink player exists and holds the
// bot's voice state. The player is created when the voice gateway forwards
// the credentials, which Gateway.Connect waits for.
func (c *Client) CreatePlayer(_ context.Context, guildID snowflake.ID) error {
	p := c.link.ExistingPlayer(guildID)
	if p == nil || p.ChannelID() == nil {
		return ErrVoiceNotReady
	}
	return nil
}

func (c *Client) Play(ctx context.Context, guildID snowflake.ID, t player.QueuedTrack, volume int) error {
	if t.Encoded == "" {
		return fmt.Errorf("track %q has no encoded data", t.ID)
	}
	p := c.link.ExistingPlayer(guildID)
	if p == nil {
		return ErrVoiceNotReady
	}
	return p.Update(ctx,
		lavalink.WithEncodedTrack(t.Encoded),
		lavalink.WithTrackUserData(newTrackUserData(t)),
		lavalink.WithVolume(volume),
		lavalink.WithPaused(false),
	)
}

func (c *Client) Stop(ctx context.Context, guildID snowflake.ID) error {
	p := c.link.ExistingPlayer(guildID)
	if p == nil {
		return nil
	}
	return p.Update(ctx, lavalink.WithNullTrack())
}

func (c *Client) SetPaused(ctx context.Context, guildID snowflake.ID, paused bool) error {
	p := c.link.ExistingPlayer(guildID)
	if p == nil {
		return player.ErrNotConnected
	}
	return p.Update(ctx, lavalink.WithPaused(paused))
}

func (c *Client) Seek(ctx context.Context, guildID snowflake.ID, position time.Duration) error {
	p := c.link.ExistingPlayer(guildID)
	if p == nil {
		return player.ErrNotConnected
	}
	return p.Update(ctx, lavalink.WithPosition(lavalink.Duration(position.Milliseconds())))
}

func (c *Client) Position(guildID snowflake.ID) time.Duration {
	p := c.link.ExistingPlayer(guildID)
	if p == nil {
		return 0
	}
	return time.Duration(p.Position()) * time.Millisecond
}

func (c *Client) Destroy(ctx context.Context, guildID snowflake.ID) error {
	p := c.link.ExistingPlayer(guildID)
	if p == nil {
		return nil
	}
	return p.Destroy(ctx)
}

// LoadResult is a Lavalink load result in player types. Search is set when
// the tracks are ranked search hits rather than a track or playlist.
type LoadResult struct {
	Tracks       []player.Track
	PlaylistName string
	Search       bool
}

func (c *Client) LoadTracks(ctx context.Context, identifier string) (LoadResult, error) {
	node := c.link.BestNode()
	if node == nil {
		return LoadResult{}, ErrNoNode
	}
	res, err := node.LoadTracks(ctx, identifier)
	if err != nil {
		return LoadResult{}, fmt.Errorf("load tracks: %w", err)
	}
	return convertResult(res)
}

func convertResult(res *lavalink.LoadResult) (LoadResult, error) {
	if res == nil {
		return LoadResult{}, player.ErrNoResults
	}
	switch data := res.Data.(type) {
	case lavalink.Track:
		return LoadResult{Tracks: []player.Track{convertTrack(data)}}, nil
	case lavalink.Playlist:
		if len(data.Tracks) == 0 {
			return LoadResult{}, player.ErrNoResults
		}
		return LoadResult{Tracks: convertTracks(data.Tracks), PlaylistName: data.Info.Name}, nil
	case lavalink.Search:
		if len(data) == 0 {
			return LoadResult{}, player.ErrNoResults
		}
		return LoadResult{Tracks: convertTracks(data), Search: true}, nil
	case lavalink.Empty:
		return LoadResult{}, player.ErrNoResults
	case lavalink.Exception:
		return LoadResult{}, fmt.Errorf("lavalink load error: %w", data)
	default:
		return LoadResult{}, player.ErrNoResults
	}
}

func convertTracks(in []lavalink.Track) []player.Track {
	out := make([]player.Track, len(in))
	for i, t := range in {
		out[i] = convertTrack(t)
	}
	return out
}

func convertTrack(t lavalink.Track) player.Track {
	info := t.Info
	return player.Track{
		ID:         info.Identifier,
		Encoded:    t.Encoded,
		Title:      info.Title,
		Author:     info.Author,
		Source:     player.ParseSource(info.SourceName),
		URI:        deref(info.URI),
		ArtworkURL: deref(info.ArtworkURL),
		Length:     time.Duration(info.Length) * time.Millisecond,
		IsStream:   info.IsStream,
	}
}

// trackUserData is the requester metadata Lavalink keeps with a playing
// track and returns on its events.
type trackUserData struct {
	RequesterID snowflake.ID `json:"requesterId"`
	DisplayName string       `json:"displayName"`
	AvatarURL   string       `json:"avatarUrl,omitempty"`
	RequestedAt int64        `json:"requestedAt"` // unix millis
}

func newTrackUserData(t player.QueuedTrack) trackUserData {
	ud := trackUserData{
		RequesterID: t.Requester.ID,
		DisplayName: t.Requester.DisplayName,
		AvatarURL:   t.Requester.AvatarURL,
	}
	if !t.RequestedAt.IsZero() {
		ud.RequestedAt = t.RequestedAt.UnixMilli()
	}
	return ud
}

// convertQueued restores a QueuedTrack from an event track. Tracks played
// without user data come back without a requester.
func convertQueued(t lavalink.Track) player.QueuedTrack {
	qt := player.QueuedTrack{Track: convertTrack(t)}
	if len(t.UserData) == 0 {
		return qt
	}
	var ud trackUserData
	if err := t.UserData.Unmarshal(&ud); err != nil {
		slog.Debug("ignoring track user data", "track", t.Info.Identifier, "err", err)
		return qt
	}
	qt.Requester = player.Requester{ID: ud.RequesterID, DisplayName: ud.DisplayName, AvatarURL: ud.AvatarURL}
	if ud.RequestedAt != 0 {
		qt.RequestedAt = time.UnixMilli(ud.RequestedAt).UTC()
	}
	return qt
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func convertReason(r lavalink.TrackEndReason) player.TrackEndReason {
	switch r {
	case lavalink.TrackEndReasonFinished:
		return player.EndFinished
	case lavalink.TrackEndReasonLoadFailed:
		return player.EndLoadFailed
	case lavalink.TrackEndReasonStopped:
		return player.EndStopped
	case lavalink.TrackEndReasonReplaced:
		return player.EndReplaced
	default:
		return player.EndCleanup
	}
}

func (c *Client) onTrackStart(p disgolink.Player, ev lavalink.TrackStartEvent) {
	c.trackStarted(p.GuildID(), ev.Track)
}

func (c *Client) onTrackEnd(p disgolink.Player, ev lavalink.TrackEndEvent) {
	c.trackEnded(p.GuildID(), ev.Track, ev.Reason)
}

func (c *Client) onTrackException(p disgolink.Player, ev lavalink.TrackExceptionEvent) {
	c.trackException(p.GuildID(), ev.Track, ev.Exception.Message)
}

func (c *Client) trackStarted(guildID snowflake.ID, t lavalink.Track) {
	slog.Debug("track started", "guildID", guildID, "track", t.Info.Title)
	c.emit(guildID, func(ctx context.Context, h Handler) {
		h.HandleTrackStart(ctx, guildID, convertQueued(t))
	})
}

func (c *Client) trackEnded(guildID snowflake.ID, t lavalink.Track, reason lavalink.TrackEndReason) {
	slog.Debug("track ended", "guildID", guildID, "track", t.Info.Title, "reason", reason)
	c.emit(guildID, func(ctx context.Context, h Handler) {
		h.HandleTrackEnd(ctx, guildID, convertQueued(t), convertReason(reason))
	})
}

func (c *Client) trackException(guildID snowflake.ID, t lavalink.Track, message string) {
	ok := c.emit(guildID, func(ctx context.Context, h Handler) {
		h.HandleTrackException(ctx, guildID, convertQueued(t), message)
	})
	if !ok {
		slog.Warn("track exception", "guildID", guildID, "err", message)
	}
}

// emit queues fn on the guild's event queue. It reports false when there is
// no handler or the client is closing.
func (c *Client) emit(guildID snowflake.ID, fn func(ctx context.Context, h Handler)) bool {
	h := c.getHandler()
	if h == nil {
		return false
	}
	return c.events.dispatch(guildID, func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		fn(ctx, h)
	})
}

func (c *Client) onTrackStuck(p disgolink.Player, ev lavalink.TrackStuckEvent) {
	slog.Warn("track stuck", "guildID", p.GuildID(), "track", ev.Track.Info.Title, "threshold", ev.Threshold)
}

func (c *Client) onWebSocketClosed(p disgolink.Player, ev lavalink.WebSocketClosedEvent) {
	slog.Warn("lavalink voice websocket closed", "guildID", p.GuildID(), "code", ev.Code, "reason", ev.Reason, "byRemote", ev.ByRemote)
}
