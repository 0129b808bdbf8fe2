package handlers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/sonroyaalmerol/kumalink/internal/config"
	"github.com/sonroyaalmerol/kumalink/internal/player"
)

// VoiceForwarder receives the bot's own voice events so the audio server can
// open its voice connection.
type VoiceForwarder interface {
	OnVoiceStateUpdate(ctx context.Context, guildID snowflake.ID, channelID *snowflake.ID, sessionID string)
	OnVoiceServerUpdate(ctx context.Context, guildID snowflake.ID, token, endpoint string)
}

type Bot struct {
	cfg     *config.Config
	botID   snowflake.ID
	cmd     *CommandHandler
	voice   VoiceForwarder
	monitor *player.OccupancyMonitor
}

func NewBot(cfg *config.Config, botID snowflake.ID, cmd *CommandHandler, voice VoiceForwarder, monitor *player.OccupancyMonitor) *Bot {
	return &Bot{cfg: cfg, botID: botID, cmd: cmd, voice: voice, monitor: monitor}
}

// VoiceStates returns the membership view the controller needs, backed by
// the session's state cache.
func VoiceStates(s *discordgo.Session, botID snowflake.ID) player.VoiceStates {
	return newVoiceStates(s.State, botID)
}

// Attach registers the bot's event handlers on s. It must be called before
// the session is opened.
func (b *Bot) Attach(s *discordgo.Session) {
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	s.AddHandler(b.onReady)
	s.AddHandler(b.onGuildCreate)
	s.AddHandler(b.cmd.HandleInteraction)
	s.AddHandler(b.onVoiceStateUpdate)
	s.AddHandler(b.onVoiceServerUpdate)
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	slog.Info("connected", "user", r.User.Username)
	if err := s.UpdateStatusComplex(discordgo.UpdateStatusData{
		Status: b.cfg.BotStatus,
		Activities: []*discordgo.Activity{
			{Name: b.cfg.BotActivity, Type: discordgo.ActivityTypeListening},
		},
	}); err != nil {
		slog.Warn("update presence failed", "err", err)
	}

	appID := r.User.ID
	if b.cfg.RegisterCommandsOnBot {
		if err := b.cmd.RegisterCommands(s, appID, ""); err != nil {
			slog.Error("register global commands", "err", err)
		} else {
			slog.Info("registered global application commands")
		}
		return
	}

	var wg sync.WaitGroup
	for _, g := range r.Guilds {
		wg.Add(1)
		go func(guildID string) {
			defer wg.Done()
			if err := b.cmd.RegisterCommands(s, appID, guildID); err != nil {
				slog.Error("register guild commands", "guildID", guildID, "err", err)
			}
		}(g.ID)
	}
	wg.Wait()

	if _, err := s.ApplicationCommandBulkOverwrite(appID, "", []*discordgo.ApplicationCommand{}); err != nil {
		slog.Error("clear global commands", "err", err)
	} else {
		slog.Info("cleared global application commands")
	}
	slog.Info("registered commands on all guilds")
}

// onGuildCreate registers commands on guilds joined after startup.
// Unavailable guilds coming back online also arrive here; overwriting is
// idempotent.
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if b.cfg.RegisterCommandsOnBot || s.State.User == nil {
		return
	}
	if err := b.cmd.RegisterCommands(s, s.State.User.ID, g.ID); err != nil {
		slog.Error("register guild commands on join", "guildID", g.ID, "err", err)
	}
}

func (b *Bot) onVoiceStateUpdate(_ *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.VoiceState == nil {
		return
	}
	ev, ok := voiceStateChange(vs.VoiceState)
	if !ok {
		slog.Debug("ignoring voice state with bad ids", "guildID", vs.GuildID, "userID", vs.UserID)
		return
	}

	if ev.UserID == b.botID {
		var ch *snowflake.ID
		if ev.ChannelID != 0 {
			ch = &ev.ChannelID
		}
		b.voice.OnVoiceStateUpdate(context.Background(), ev.GuildID, ch, vs.SessionID)
	}
	b.monitor.OnVoiceStateUpdate(ev)
}

func (b *Bot) onVoiceServerUpdate(_ *discordgo.Session, vs *discordgo.VoiceServerUpdate) {
	guildID, err := snowflake.Parse(vs.GuildID)
	if err != nil {
		return
	}
	slog.Debug("voice server update", "guildID", guildID, "endpoint", vs.Endpoint)
	b.voice.OnVoiceServerUpdate(context.Background(), guildID, vs.Token, vs.Endpoint)
}

func voiceStateChange(vs *discordgo.VoiceState) (player.VoiceStateChange, bool) {
	guildID, err := snowflake.Parse(vs.GuildID)
	if err != nil {
		return player.VoiceStateChange{}, false
	}
	userID, err := snowflake.Parse(vs.UserID)
	if err != nil {
		return player.VoiceStateChange{}, false
	}
	ev := player.VoiceStateChange{GuildID: guildID, UserID: userID}
	if vs.ChannelID != "" {
		ch, err := snowflake.Parse(vs.ChannelID)
		if err != nil {
			return player.VoiceStateChange{}, false
		}
		ev.ChannelID = ch
	}
	return ev, true
}
