package player

import (
	"context"
	"log/slog"
)

// NowPlaying keeps at most one status message per session in step with the
// track that is actually playing. It is the only writer of Session.slot and
// every method expects the caller to hold the session's mutex.
type NowPlaying struct {
	notifier Notifier
}

func NewNowPlaying(n Notifier) *NowPlaying {
	return &NowPlaying{notifier: n}
}

// trackStarted retires the previous message, if any, and posts one for t.
func (n *NowPlaying) trackStarted(ctx context.Context, s *Session, t QueuedTrack) {
	n.retire(ctx, s)

	if s.textChannel == 0 {
		slog.Debug("now playing: no text channel", "guildID", s.guildID, "track", t.ID)
		return
	}
	msgID, err := n.notifier.PostNowPlaying(ctx, s.textChannel, t)
	if err != nil {
		slog.Warn("now playing: post failed", "guildID", s.guildID, "channelID", s.textChannel, "track", t.ID, "err", err)
		return
	}
	s.slot = NowPlayingSlot{TrackID: t.ID, ChannelID: s.textChannel, MessageID: msgID}
	slog.Debug("now playing: showing", "guildID", s.guildID, "track", t.ID, "messageID", msgID)
}

// trackEnded retires the message only when it belongs to trackID. A stale
// callback for a superseded track is ignored.
func (n *NowPlaying) trackEnded(ctx context.Context, s *Session, trackID string) bool {
	if s.slot.State() != NowPlayingShowing || s.slot.TrackID != trackID {
		slog.Debug("now playing: ignoring track end", "guildID", s.guildID, "track", trackID, "showing", s.slot.TrackID)
		return false
	}
	n.retire(ctx, s)
	return true
}

// retire deletes the current message, best-effort, and leaves the slot idle.
func (n *NowPlaying) retire(ctx context.Context, s *Session) {
	slot := s.slot
	if slot.State() == NowPlayingIdle {
		return
	}
	if slot.ChannelID == 0 {
		panic("player: now playing message recorded without a channel")
	}
	s.slot = NowPlayingSlot{}
	if err := n.notifier.DeleteMessage(ctx, slot.ChannelID, slot.MessageID); err != nil {
		slog.Warn("now playing: delete failed", "guildID", s.guildID, "channelID", slot.ChannelID, "messageID", slot.MessageID, "err", err)
	}
}
