package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

const QueuePageSize = 10

type Deps struct {
	Store       *Store
	Audio       AudioServer
	Voice       VoiceGateway
	Resolver    Resolver
	Notifier    Notifier
	VoiceStates VoiceStates
	Settings    SettingsSource
	Artwork     ArtworkResolver // optional
	Now         func() time.Time
}

// Controller owns the lifecycle of every guild session: joining and leaving
// voice, feeding the audio server from the queue and reacting to its track
// events.
type Controller struct {
	store       *Store
	audio       AudioServer
	voice       VoiceGateway
	resolver    Resolver
	notifier    Notifier
	voiceStates VoiceStates
	settings    SettingsSource
	artwork     ArtworkResolver
	nowPlaying  *NowPlaying
	now         func() time.Time
}

func NewController(d Deps) *Controller {
	if d.Store == nil {
		d.Store = NewStore()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Controller{
		store:       d.Store,
		audio:       d.Audio,
		voice:       d.Voice,
		resolver:    d.Resolver,
		notifier:    d.Notifier,
		voiceStates: d.VoiceStates,
		settings:    d.Settings,
		artwork:     d.Artwork,
		nowPlaying:  NewNowPlaying(d.Notifier),
		now:         d.Now,
	}
}

type JoinRequest struct {
	GuildID     snowflake.ID
	ChannelID   *snowflake.ID
	TextChannel snowflake.ID
	Requester   Requester
}

type JoinResult struct {
	ChannelID snowflake.ID
}

// Join connects the guild's session to the requested channel, or to the
// requester's current channel when none is given. Calling it on a connected
// guild moves the bot without creating a second session.
func (c *Controller) Join(ctx context.Context, req JoinRequest) (JoinResult, error) {
	target, err := c.targetChannel(req.GuildID, req.ChannelID, req.Requester.ID)
	if err != nil {
		return JoinResult{}, err
	}
	set := c.settingsFor(ctx, req.GuildID)

	for {
		sess, _ := c.store.getOrCreate(req.GuildID)
		sess.mu.Lock()
		if sess.closed {
			sess.mu.Unlock()
			continue
		}
		err := c.joinLocked(ctx, sess, target, req.TextChannel, set)
		if err == nil && sess.current == nil {
			c.scheduleIdleLocked(sess)
		}
		sess.mu.Unlock()
		if err != nil {
			return JoinResult{}, err
		}
		slog.Info("joined voice", "guildID", req.GuildID, "channelID", target, "userID", req.Requester.ID)
		return JoinResult{ChannelID: target}, nil
	}
}

func (c *Controller) targetChannel(guildID snowflake.ID, requested *snowflake.ID, userID snowflake.ID) (snowflake.ID, error) {
	if requested != nil && *requested != 0 {
		return *requested, nil
	}
	if ch, ok := c.voiceStates.UserVoiceChannel(guildID, userID); ok {
		return ch, nil
	}
	return 0, ErrMissingTargetVoiceChannel
}

// joinLocked connects sess to channel. A session that never finished
// connecting is dropped from the store on failure and its half-open voice
// connection is closed.
func (c *Controller) joinLocked(ctx context.Context, sess *Session, channel, text snowflake.ID, set PlaybackSettings) error {
	if text != 0 {
		sess.textChannel = text
	}
	sess.applySettings(set)
	if sess.connected && sess.VoiceChannel() == channel {
		return nil
	}

	if err := c.voice.Connect(ctx, sess.guildID, channel); err != nil {
		if !sess.connected {
			if derr := c.voice.Disconnect(context.WithoutCancel(ctx), sess.guildID); derr != nil {
				slog.Warn("disconnect after failed connect", "guildID", sess.guildID, "err", derr)
			}
			c.discardLocked(sess)
		}
		return fmt.Errorf("connect voice: %w", err)
	}
	if !sess.connected {
		if err := c.audio.CreatePlayer(ctx, sess.guildID); err != nil {
			if derr := c.voice.Disconnect(ctx, sess.guildID); derr != nil {
				slog.Warn("disconnect after failed player creation", "guildID", sess.guildID, "err", derr)
			}
			c.discardLocked(sess)
			return fmt.Errorf("create player: %w", err)
		}
		sess.connected = true
	}
	sess.setVoiceChannel(channel)
	return nil
}

func (c *Controller) discardLocked(sess *Session) {
	sess.closed = true
	sess.connected = false
	sess.setVoiceChannel(0)
	c.store.remove(sess.guildID, sess)
}

// lockSession returns the guild's connected session with its mutex held.
func (c *Controller) lockSession(guildID snowflake.ID) (*Session, error) {
	sess := c.store.Get(guildID)
	if sess == nil {
		return nil, ErrNotConnected
	}
	sess.mu.Lock()
	if sess.closed || !sess.connected {
		sess.mu.Unlock()
		return nil, ErrNotConnected
	}
	return sess, nil
}

// Leave tears the guild's session down. The session lock is held for the
// whole teardown so track callbacks can't touch the now playing message while
// the session is going away.
func (c *Controller) Leave(ctx context.Context, guildID snowflake.ID) error {
	sess, err := c.lockSession(guildID)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()
	slog.Info("leaving voice", "guildID", guildID, "channelID", sess.VoiceChannel())
	return c.teardownLocked(ctx, sess)
}

func (c *Controller) teardownLocked(ctx context.Context, sess *Session) error {
	sess.cancelIdleLocked()
	if sess.current != nil {
		sess.queue.Clear()
		sess.current = nil
		sess.skipRequested = false
		if err := c.audio.Stop(ctx, sess.guildID); err != nil {
			slog.Warn("stop before leave failed", "guildID", sess.guildID, "err", err)
		}
	}
	c.nowPlaying.retire(ctx, sess)

	if err := c.audio.Destroy(ctx, sess.guildID); err != nil {
		slog.Warn("destroy player failed", "guildID", sess.guildID, "err", err)
	}
	derr := c.voice.Disconnect(ctx, sess.guildID)
	c.discardLocked(sess)
	if derr != nil {
		return fmt.Errorf("disconnect voice: %w", derr)
	}
	return nil
}

type PlayRequest struct {
	GuildID     snowflake.ID
	Query       string
	TextChannel snowflake.ID
	Requester   Requester
}

type PlayResult struct {
	Tracks       []QueuedTrack
	PlaylistName string
	NotFound     int
	Started      bool
}

// Play resolves query, appends the result to the queue and starts playback
// when nothing is playing. A guild without a session is joined to the
// requester's voice channel first.
func (c *Controller) Play(ctx context.Context, req PlayRequest) (PlayResult, error) {
	if sess := c.store.Get(req.GuildID); sess == nil {
		if _, ok := c.voiceStates.UserVoiceChannel(req.GuildID, req.Requester.ID); !ok {
			return PlayResult{}, ErrMissingTargetVoiceChannel
		}
	}

	set := c.settingsFor(ctx, req.GuildID)
	res, err := c.resolver.Resolve(ctx, req.Query, set.PlaylistLimit)
	if err != nil {
		return PlayResult{}, err
	}
	if len(res.Tracks) == 0 {
		return PlayResult{}, ErrNoResults
	}

	at := c.now()
	queued := make([]QueuedTrack, 0, len(res.Tracks))
	for _, t := range res.Tracks {
		queued = append(queued, NewQueuedTrack(t, req.Requester, at))
	}

	for {
		sess, _ := c.store.getOrCreate(req.GuildID)
		sess.mu.Lock()
		if sess.closed {
			sess.mu.Unlock()
			continue
		}
		result, err := c.playLocked(ctx, sess, req, set, queued)
		sess.mu.Unlock()
		if err == nil {
			result.PlaylistName = res.PlaylistName
			result.NotFound = res.NotFound
			slog.Info("queued tracks", "guildID", req.GuildID, "userID", req.Requester.ID, "count", len(queued), "started", result.Started)
		}
		return result, err
	}
}

func (c *Controller) playLocked(ctx context.Context, sess *Session, req PlayRequest, set PlaybackSettings, queued []QueuedTrack) (PlayResult, error) {
	if !sess.connected {
		channel, ok := c.voiceStates.UserVoiceChannel(req.GuildID, req.Requester.ID)
		if !ok {
			c.discardLocked(sess)
			return PlayResult{}, ErrMissingTargetVoiceChannel
		}
		if err := c.joinLocked(ctx, sess, channel, req.TextChannel, set); err != nil {
			return PlayResult{}, err
		}
	} else {
		if req.TextChannel != 0 {
			sess.textChannel = req.TextChannel
		}
		sess.applySettings(set)
	}

	sess.queue.Append(queued...)
	result := PlayResult{Tracks: queued}
	if sess.current == nil {
		if err := c.startNextLocked(ctx, sess); err != nil {
			return result, err
		}
		result.Started = true
	}
	return result, nil
}

// startNextLocked pops the queue head and hands it to the audio server. An
// empty queue leaves the session idle.
func (c *Controller) startNextLocked(ctx context.Context, sess *Session) error {
	sess.skipRequested = false
	next, ok := sess.queue.Pop()
	if !ok {
		sess.current = nil
		sess.paused = false
		c.scheduleIdleLocked(sess)
		return nil
	}
	return c.startLocked(ctx, sess, next)
}

// startLocked hands t to the audio server. When the server refuses it, t goes
// back to the head of the queue and the session idles until the next play.
func (c *Controller) startLocked(ctx context.Context, sess *Session, t QueuedTrack) error {
	if err := c.audio.Play(ctx, sess.guildID, t, sess.volume); err != nil {
		sess.queue.Prepend(t)
		sess.current = nil
		sess.paused = false
		c.scheduleIdleLocked(sess)
		return fmt.Errorf("play %q: %w", t.Title, err)
	}
	sess.cancelIdleLocked()
	sess.current = &t
	sess.paused = false
	slog.Debug("playback requested", "guildID", sess.guildID, "track", t.ID)
	return nil
}

func (c *Controller) scheduleIdleLocked(sess *Session) {
	sess.cancelIdleLocked()
	if sess.idleTimeout <= 0 {
		return
	}
	sess.idleTimer = time.AfterFunc(sess.idleTimeout, func() { c.leaveIfIdle(sess) })
}

func (c *Controller) leaveIfIdle(sess *Session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed || !sess.connected || sess.current != nil || c.store.Get(sess.guildID) != sess {
		return
	}
	slog.Info("leaving idle voice channel", "guildID", sess.guildID)
	if err := c.teardownLocked(context.Background(), sess); err != nil {
		slog.Warn("idle leave failed", "guildID", sess.guildID, "err", err)
	}
}

// Stop clears the queue and ends the current track.
func (c *Controller) Stop(ctx context.Context, guildID snowflake.ID) error {
	sess, err := c.lockSession(guildID)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()
	if sess.current == nil {
		return ErrNothingPlaying
	}
	// the end event this triggers waits for the lock and finds nothing current
	if err := c.audio.Stop(ctx, guildID); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	sess.queue.Clear()
	sess.current = nil
	sess.paused = false
	sess.loop = LoopOff
	sess.skipRequested = false
	c.scheduleIdleLocked(sess)
	return nil
}

func (c *Controller) Pause(ctx context.Context, guildID snowflake.ID) (QueuedTrack, error) {
	return c.setPaused(ctx, guildID, true)
}

func (c *Controller) Resume(ctx context.Context, guildID snowflake.ID) (QueuedTrack, error) {
	return c.setPaused(ctx, guildID, false)
}

func (c *Controller) setPaused(ctx context.Context, guildID snowflake.ID, paused bool) (QueuedTrack, error) {
	sess, err := c.lockSession(guildID)
	if err != nil {
		return QueuedTrack{}, err
	}
	defer sess.mu.Unlock()
	if sess.current == nil {
		return QueuedTrack{}, ErrNothingPlaying
	}
	if err := c.audio.SetPaused(ctx, guildID, paused); err != nil {
		return QueuedTrack{}, fmt.Errorf("set paused: %w", err)
	}
	sess.paused = paused
	return *sess.current, nil
}

// Skip asks the audio server to end the current track. The queue advances
// when the resulting track end event arrives.
func (c *Controller) Skip(ctx context.Context, guildID snowflake.ID) (QueuedTrack, error) {
	sess, err := c.lockSession(guildID)
	if err != nil {
		return QueuedTrack{}, err
	}
	defer sess.mu.Unlock()
	if sess.current == nil {
		return QueuedTrack{}, ErrNothingPlaying
	}
	skipped := *sess.current
	sess.skipRequested = true
	if err := c.audio.Stop(ctx, guildID); err != nil {
		sess.skipRequested = false
		return QueuedTrack{}, fmt.Errorf("skip: %w", err)
	}
	return skipped, nil
}

func (c *Controller) Seek(ctx context.Context, guildID snowflake.ID, position time.Duration) (QueuedTrack, error) {
	sess, err := c.lockSession(guildID)
	if err != nil {
		return QueuedTrack{}, err
	}
	defer sess.mu.Unlock()
	if sess.current == nil {
		return QueuedTrack{}, ErrNothingPlaying
	}
	cur := *sess.current
	if cur.IsStream {
		return QueuedTrack{}, ErrNotSeekable
	}
	if position < 0 || position > cur.Length {
		return QueuedTrack{}, ErrSeekOutOfRange
	}
	if err := c.audio.Seek(ctx, guildID, position); err != nil {
		return QueuedTrack{}, fmt.Errorf("seek: %w", err)
	}
	return cur, nil
}

func (c *Controller) SetLoop(guildID snowflake.ID, mode LoopMode) error {
	sess, err := c.lockSession(guildID)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()
	if sess.current == nil && mode != LoopOff {
		return ErrNothingPlaying
	}
	sess.loop = mode
	return nil
}

// NowPlaying returns a snapshot of the guild's session including the audio
// server's playback position.
func (c *Controller) NowPlaying(guildID snowflake.ID) (Snapshot, error) {
	sess, err := c.lockSession(guildID)
	if err != nil {
		return Snapshot{}, err
	}
	defer sess.mu.Unlock()
	if sess.current == nil {
		return Snapshot{}, ErrNothingPlaying
	}
	snap := sess.snapshotLocked()
	snap.Position = c.audio.Position(guildID)
	return snap, nil
}

type QueueEntry struct {
	Position int // one-based
	Track    QueuedTrack
}

type QueuePage struct {
	Current    *QueuedTrack
	Entries    []QueueEntry
	Page       int
	TotalPages int
	Total      int
}

// QueueList returns one page of the queue. Pages are one-based and clamped to
// the valid range.
func (c *Controller) QueueList(guildID snowflake.ID, page int) (QueuePage, error) {
	sess, err := c.lockSession(guildID)
	if err != nil {
		return QueuePage{}, err
	}
	defer sess.mu.Unlock()

	items := sess.queue.List()
	total := len(items)
	pages := max(1, (total+QueuePageSize-1)/QueuePageSize)
	page = min(max(page, 1), pages)

	out := QueuePage{Page: page, TotalPages: pages, Total: total}
	if sess.current != nil {
		cur := *sess.current
		out.Current = &cur
	}
	start := (page - 1) * QueuePageSize
	end := min(start+QueuePageSize, total)
	for i := start; i < end; i++ {
		out.Entries = append(out.Entries, QueueEntry{Position: i + 1, Track: items[i]})
	}
	return out, nil
}

// QueueRemove removes the entry at one-based position index.
func (c *Controller) QueueRemove(guildID snowflake.ID, index int) (QueuedTrack, error) {
	sess, err := c.lockSession(guildID)
	if err != nil {
		return QueuedTrack{}, err
	}
	defer sess.mu.Unlock()
	return sess.queue.RemoveAt(index - 1)
}

// QueueMove moves the entry at one-based position from to position to.
func (c *Controller) QueueMove(guildID snowflake.ID, from, to int) (QueuedTrack, error) {
	sess, err := c.lockSession(guildID)
	if err != nil {
		return QueuedTrack{}, err
	}
	defer sess.mu.Unlock()
	return sess.queue.Move(from-1, to-1)
}

// QueueClear empties the queue; the current track keeps playing.
func (c *Controller) QueueClear(guildID snowflake.ID) (int, error) {
	sess, err := c.lockSession(guildID)
	if err != nil {
		return 0, err
	}
	defer sess.mu.Unlock()
	return sess.queue.Clear(), nil
}

func (c *Controller) QueueShuffle(guildID snowflake.ID) (int, error) {
	sess, err := c.lockSession(guildID)
	if err != nil {
		return 0, err
	}
	defer sess.mu.Unlock()
	sess.queue.Shuffle()
	return sess.queue.Len(), nil
}

// QueueSnapshot lists the queue without pagination.
func (c *Controller) QueueSnapshot(guildID snowflake.ID) ([]QueuedTrack, error) {
	sess, err := c.lockSession(guildID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	return sess.queue.List(), nil
}

// HandleTrackStart is called by the audio server client when a track begins.
// t carries the requester it was queued with.
func (c *Controller) HandleTrackStart(ctx context.Context, guildID snowflake.ID, t QueuedTrack) {
	sess := c.store.Get(guildID)
	if sess == nil {
		slog.Debug("track start without session", "guildID", guildID, "track", t.ID)
		return
	}
	if c.artwork != nil {
		if url := c.artwork.Best(ctx, t.Track); url != "" {
			t.ArtworkURL = url
		}
	}
	if t.RequestedAt.IsZero() {
		t.RequestedAt = c.now().UTC()
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return
	}
	c.nowPlaying.trackStarted(ctx, sess, t)
}

// HandleTrackEnd retires the now playing message and advances the queue when
// the track ended on its own, failed to load, or was skipped.
func (c *Controller) HandleTrackEnd(ctx context.Context, guildID snowflake.ID, t QueuedTrack, reason TrackEndReason) {
	sess := c.store.Get(guildID)
	if sess == nil {
		slog.Debug("track end without session", "guildID", guildID, "track", t.ID, "reason", reason)
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return
	}
	c.nowPlaying.trackEnded(ctx, sess, t.ID)

	if sess.current == nil || sess.current.ID != t.ID {
		return
	}
	switch reason {
	case EndFinished, EndLoadFailed:
	case EndStopped:
		if !sess.skipRequested {
			return
		}
	default:
		return
	}

	ended := *sess.current
	if reason == EndLoadFailed {
		c.postError(ctx, sess, fmt.Sprintf("Failed to load **%s**, skipping.", ended.Title))
	}
	if reason == EndFinished && sess.loop == LoopTrack {
		if err := c.startLocked(ctx, sess, ended); err != nil {
			slog.Error("replay looped track", "guildID", guildID, "track", ended.ID, "err", err)
		}
		return
	}
	if sess.loop == LoopQueue && reason != EndLoadFailed {
		sess.queue.Append(ended)
	}
	sess.current = nil
	if err := c.startNextLocked(ctx, sess); err != nil {
		slog.Error("advance queue", "guildID", guildID, "err", err)
		c.postError(ctx, sess, "Couldn't start the next track.")
	}
}

// HandleTrackException reports a playback error to the session's channel.
// The audio server follows up with a track end event.
func (c *Controller) HandleTrackException(ctx context.Context, guildID snowflake.ID, t QueuedTrack, message string) {
	slog.Warn("track exception", "guildID", guildID, "track", t.ID, "message", message)
	sess := c.store.Get(guildID)
	if sess == nil {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return
	}
	c.postError(ctx, sess, fmt.Sprintf("Error while playing **%s**: %s", t.Title, message))
}

func (c *Controller) postError(ctx context.Context, sess *Session, text string) {
	if sess.textChannel == 0 {
		return
	}
	if err := c.notifier.PostError(ctx, sess.textChannel, text); err != nil {
		slog.Warn("post error message", "guildID", sess.guildID, "err", err)
	}
}

// Shutdown leaves every guild.
func (c *Controller) Shutdown(ctx context.Context) {
	for _, guildID := range c.store.Guilds() {
		if err := c.Leave(ctx, guildID); err != nil && !errors.Is(err, ErrNotConnected) {
			slog.Warn("leave on shutdown", "guildID", guildID, "err", err)
		}
	}
}

func (c *Controller) settingsFor(ctx context.Context, guildID snowflake.ID) PlaybackSettings {
	if c.settings == nil {
		return DefaultPlaybackSettings()
	}
	set, err := c.settings.PlaybackSettings(ctx, guildID)
	if err != nil {
		slog.Warn("load settings failed, using defaults", "guildID", guildID, "err", err)
		return DefaultPlaybackSettings()
	}
	return set
}
