package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

var ErrVoiceTimeout = errors.New("timed out waiting for voice connection")

// Joiner sends voice state updates to the gateway. *discordgo.Session
// implements it; an empty channel ID leaves voice.
type Joiner interface {
	ChannelVoiceJoinManual(gID, cID string, mute, deaf bool) error
}

// VoiceLink is the part of the Lavalink client that needs the bot's voice
// credentials.
type VoiceLink interface {
	OnVoiceStateUpdate(ctx context.Context, guildID snowflake.ID, channelID *snowflake.ID, sessionID string)
	OnVoiceServerUpdate(ctx context.Context, guildID snowflake.ID, token string, endpoint string)
}

type guildVoice struct {
	channelID snowflake.ID
	sessionID string
	token     string
	endpoint  string
	hasState  bool
	hasServer bool
	forwarded bool

	want   snowflake.ID
	waiter chan struct{}
}

func (v *guildVoice) settled() bool {
	return v.forwarded && v.channelID == v.want
}

// reset forgets the credentials but keeps a pending Connect waiting.
func (v *guildVoice) reset() {
	v.channelID = 0
	v.sessionID, v.token, v.endpoint = "", "", ""
	v.hasState, v.hasServer, v.forwarded = false, false, false
}

func (v *guildVoice) signal() {
	if v.waiter != nil && v.settled() {
		close(v.waiter)
		v.waiter = nil
	}
}

// Gateway joins and leaves voice channels and relays the bot's voice
// credentials to Lavalink once both halves have arrived. Guilds the bot gave
// up on are abandoned: their late credentials are dropped until the next
// Connect or until the gateway confirms the bot left.
type Gateway struct {
	joiner  Joiner
	link    VoiceLink
	timeout time.Duration

	mu        sync.Mutex
	guilds    map[snowflake.ID]*guildVoice
	abandoned map[snowflake.ID]struct{}
}

func NewGateway(joiner Joiner, link VoiceLink, timeout time.Duration) *Gateway {
	return &Gateway{
		joiner:    joiner,
		link:      link,
		timeout:   timeout,
		guilds:    make(map[snowflake.ID]*guildVoice),
		abandoned: make(map[snowflake.ID]struct{}),
	}
}

func (g *Gateway) getLocked(guildID snowflake.ID) *guildVoice {
	v, ok := g.guilds[guildID]
	if !ok {
		v = &guildVoice{}
		g.guilds[guildID] = v
	}
	return v
}

// Connect joins channelID and waits until Lavalink has the credentials for
// it. Moving between channels of the same guild goes through here too. When
// the wait fails a fresh join is withdrawn and a move returns to the previous
// channel.
func (g *Gateway) Connect(ctx context.Context, guildID, channelID snowflake.ID) error {
	g.mu.Lock()
	delete(g.abandoned, guildID)
	v := g.getLocked(guildID)
	prev, moving := v.channelID, v.forwarded
	v.want = channelID
	if v.settled() {
		g.mu.Unlock()
		return nil
	}
	waiter := make(chan struct{})
	v.waiter = waiter
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		if v.waiter == waiter {
			v.waiter = nil
		}
		g.mu.Unlock()
	}()

	if err := g.joiner.ChannelVoiceJoinManual(guildID.String(), channelID.String(), false, true); err != nil {
		g.giveUp(ctx, guildID, v, prev, moving, false)
		return fmt.Errorf("join voice channel: %w", err)
	}

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()
	select {
	case <-waiter:
		return nil
	case <-ctx.Done():
		g.giveUp(ctx, guildID, v, prev, moving, true)
		return fmt.Errorf("waiting for voice connection: %w", ctx.Err())
	case <-timer.C:
		g.giveUp(ctx, guildID, v, prev, moving, true)
		return ErrVoiceTimeout
	}
}

// giveUp undoes a Connect that didn't settle. sent says whether the join
// request reached the gateway.
func (g *Gateway) giveUp(ctx context.Context, guildID snowflake.ID, v *guildVoice, prev snowflake.ID, moving, sent bool) {
	g.mu.Lock()
	if g.guilds[guildID] != v {
		g.mu.Unlock()
		return
	}
	if moving {
		v.want = prev
		g.mu.Unlock()
		if !sent {
			return
		}
		slog.Warn("voice move timed out, returning to previous channel", "guildID", guildID, "channelID", prev)
		if err := g.joiner.ChannelVoiceJoinManual(guildID.String(), prev.String(), false, true); err != nil {
			slog.Warn("rejoin previous voice channel", "guildID", guildID, "err", err)
		}
		return
	}

	forwarded := v.forwarded
	delete(g.guilds, guildID)
	if sent {
		g.abandoned[guildID] = struct{}{}
	}
	g.mu.Unlock()
	if !sent {
		return
	}

	slog.Warn("voice join timed out, withdrawing", "guildID", guildID)
	if forwarded {
		g.link.OnVoiceStateUpdate(context.WithoutCancel(ctx), guildID, nil, "")
	}
	if err := g.joiner.ChannelVoiceJoinManual(guildID.String(), "", false, true); err != nil {
		slog.Warn("withdraw voice join", "guildID", guildID, "err", err)
	}
}

// Disconnect leaves voice. Credentials still in flight for the guild are
// ignored afterwards.
func (g *Gateway) Disconnect(ctx context.Context, guildID snowflake.ID) error {
	g.mu.Lock()
	delete(g.guilds, guildID)
	g.abandoned[guildID] = struct{}{}
	g.mu.Unlock()

	g.link.OnVoiceStateUpdate(ctx, guildID, nil, "")
	if err := g.joiner.ChannelVoiceJoinManual(guildID.String(), "", false, true); err != nil {
		return fmt.Errorf("leave voice channel: %w", err)
	}
	return nil
}

// OnVoiceStateUpdate records the bot's own voice state. channelID is nil when
// the bot left or was disconnected.
func (g *Gateway) OnVoiceStateUpdate(ctx context.Context, guildID snowflake.ID, channelID *snowflake.ID, sessionID string) {
	if channelID == nil {
		g.mu.Lock()
		delete(g.abandoned, guildID)
		if v, ok := g.guilds[guildID]; ok && v.waiter != nil {
			v.reset()
		} else {
			delete(g.guilds, guildID)
		}
		g.mu.Unlock()
		g.link.OnVoiceStateUpdate(ctx, guildID, nil, sessionID)
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.abandoned[guildID]; ok {
		slog.Debug("dropping voice state for abandoned guild", "guildID", guildID, "channelID", *channelID)
		return
	}
	v := g.getLocked(guildID)
	v.channelID = *channelID
	v.sessionID = sessionID
	v.hasState = true
	if v.forwarded {
		g.link.OnVoiceStateUpdate(ctx, guildID, channelID, sessionID)
	} else {
		g.forwardLocked(ctx, guildID, v)
	}
	v.signal()
}

func (g *Gateway) OnVoiceServerUpdate(ctx context.Context, guildID snowflake.ID, token, endpoint string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.abandoned[guildID]; ok {
		slog.Debug("dropping voice server for abandoned guild", "guildID", guildID)
		return
	}
	v := g.getLocked(guildID)
	v.token = token
	v.endpoint = endpoint
	v.hasServer = true
	if v.forwarded {
		g.link.OnVoiceServerUpdate(ctx, guildID, token, endpoint)
	} else {
		g.forwardLocked(ctx, guildID, v)
	}
	v.signal()
}

// forwardLocked hands both halves to Lavalink, state first, once they are
// both known.
func (g *Gateway) forwardLocked(ctx context.Context, guildID snowflake.ID, v *guildVoice) {
	if !v.hasState || !v.hasServer {
		return
	}
	slog.Debug("forwarding voice credentials", "guildID", guildID, "channelID", v.channelID)
	channelID := v.channelID
	g.link.OnVoiceStateUpdate(ctx, guildID, &channelID, v.sessionID)
	g.link.OnVoiceServerUpdate(ctx, guildID, v.token, v.endpoint)
	v.forwarded = true
}
