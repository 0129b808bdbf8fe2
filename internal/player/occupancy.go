package player

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

const autoLeaveTimeout = 30 * time.Second

type VoiceStateChange struct {
	GuildID   snowflake.ID
	UserID    snowflake.ID
	ChannelID snowflake.ID // 0 when the user left voice
}

// OccupancyMonitor leaves voice channels that no longer have listeners. Its
// event entry point never blocks; teardown runs on its own goroutine.
type OccupancyMonitor struct {
	ctrl  *Controller
	botID snowflake.ID
	wg    sync.WaitGroup
}

func NewOccupancyMonitor(ctrl *Controller, botID snowflake.ID) *OccupancyMonitor {
	return &OccupancyMonitor{ctrl: ctrl, botID: botID}
}

func (m *OccupancyMonitor) OnVoiceStateUpdate(ev VoiceStateChange) {
	sess := m.ctrl.store.Get(ev.GuildID)
	if sess == nil {
		return
	}

	if ev.UserID == m.botID {
		if ev.ChannelID == 0 {
			m.spawn(func(ctx context.Context) { m.detach(ctx, sess) })
			return
		}
		if cur := sess.VoiceChannel(); cur != 0 && cur != ev.ChannelID {
			slog.Info("bot moved to another voice channel", "guildID", ev.GuildID, "from", cur, "to", ev.ChannelID)
			sess.setVoiceChannel(ev.ChannelID)
		}
	}

	channel := sess.VoiceChannel()
	if channel == 0 {
		return
	}
	if m.ctrl.voiceStates.ListenerCount(ev.GuildID, channel) > 0 {
		return
	}
	m.spawn(func(ctx context.Context) { m.leaveEmpty(ctx, ev.GuildID, channel) })
}

func (m *OccupancyMonitor) spawn(fn func(ctx context.Context)) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), autoLeaveTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// leaveEmpty re-checks occupancy under the session lock, since someone may
// have joined between the event and now.
func (m *OccupancyMonitor) leaveEmpty(ctx context.Context, guildID, channel snowflake.ID) {
	if !m.ctrl.settingsFor(ctx, guildID).LeaveIfNoListeners {
		return
	}
	sess, err := m.ctrl.lockSession(guildID)
	if err != nil {
		return
	}
	defer sess.mu.Unlock()
	if sess.VoiceChannel() != channel || m.ctrl.voiceStates.ListenerCount(guildID, channel) > 0 {
		return
	}
	slog.Info("leaving empty voice channel", "guildID", guildID, "channelID", channel)
	if err := m.ctrl.teardownLocked(ctx, sess); err != nil {
		slog.Warn("auto leave failed", "guildID", guildID, "err", err)
	}
}

// detach tears the session down after the bot was disconnected by someone
// else.
func (m *OccupancyMonitor) detach(ctx context.Context, sess *Session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed || !sess.connected || m.ctrl.store.Get(sess.guildID) != sess {
		return
	}
	slog.Info("bot was disconnected from voice", "guildID", sess.guildID)
	if err := m.ctrl.teardownLocked(ctx, sess); err != nil {
		slog.Warn("teardown after disconnect failed", "guildID", sess.guildID, "err", err)
	}
}

// Wait blocks until all spawned teardowns have finished.
func (m *OccupancyMonitor) Wait() {
	m.wg.Wait()
}
