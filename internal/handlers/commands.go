package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/sonroyaalmerol/kumalink/internal/autocomplete"
	"github.com/sonroyaalmerol/kumalink/internal/config"
	"github.com/sonroyaalmerol/kumalink/internal/player"
	"github.com/sonroyaalmerol/kumalink/internal/repository"
	"github.com/sonroyaalmerol/kumalink/internal/ui"
	"github.com/sonroyaalmerol/kumalink/internal/utils"
)

const (
	commandTimeout      = 30 * time.Second
	autocompleteTimeout = 2500 * time.Millisecond
	maxVolume           = 100
)

type CommandHandler struct {
	cfg     *config.Config
	repo    *repository.Repo
	favs    *repository.Favorites
	ctrl    *player.Controller
	suggest *autocomplete.Suggester
	limiter *guildLimiter
}

func NewCommandHandler(cfg *config.Config, repo *repository.Repo, ctrl *player.Controller, suggest *autocomplete.Suggester) *CommandHandler {
	return &CommandHandler{
		cfg:     cfg,
		repo:    repo,
		favs:    repository.NewFavorites(repo),
		ctrl:    ctrl,
		suggest: suggest,
		limiter: newGuildLimiter(cfg.CommandRate, cfg.CommandBurst),
	}
}

func intOpt(name, desc string, required bool, minValue float64) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Name: name, Description: desc, Type: discordgo.ApplicationCommandOptionInteger,
		Required: required, MinValue: &minValue,
	}
}

func subcommand(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type: discordgo.ApplicationCommandOptionSubCommand, Name: name, Description: desc, Options: opts,
	}
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	dmPermission := false
	cmds := []*discordgo.ApplicationCommand{
		{
			Name:        "join",
			Description: "Join a voice channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name: "channel", Description: "channel to join [default: your current channel]",
					Type:         discordgo.ApplicationCommandOptionChannel,
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice},
				},
			},
		},
		{Name: "leave", Description: "Leave the voice channel"},
		{
			Name:        "play",
			Description: "Play a song (URL or search)",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "query", Description: "query or URL", Type: discordgo.ApplicationCommandOptionString, Required: true, Autocomplete: true},
			},
		},
		{Name: "stop", Description: "Stop playback and clear the queue"},
		{Name: "pause", Description: "Pause the current song"},
		{Name: "resume", Description: "Resume playback"},
		{Name: "skip", Description: "Skip to the next song"},
		{Name: "now-playing", Description: "Show the current song"},
		{
			Name:        "loop",
			Description: "Set the loop mode",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name: "mode", Description: "loop mode", Type: discordgo.ApplicationCommandOptionString, Required: true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "off", Value: "off"},
						{Name: "track", Value: "track"},
						{Name: "queue", Value: "queue"},
					},
				},
			},
		},
		{
			Name:        "seek",
			Description: "Seek to a position in the current song",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "time", Description: "seconds, 1:30 or 1m30s", Type: discordgo.ApplicationCommandOptionString, Required: true},
			},
		},
		{
			Name:        "queue",
			Description: "Manage the queue",
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("list", "show the queue", intOpt("page", "page of queue to show [default: 1]", false, 1)),
				subcommand("remove", "remove a song from the queue", func() *discordgo.ApplicationCommandOption {
					o := intOpt("index", "position of the song", true, 1)
					o.Autocomplete = true
					return o
				}()),
				subcommand("clear", "clear the queue, keeping the current song"),
				subcommand("shuffle", "shuffle the queue"),
				subcommand("move", "move a song within the queue",
					intOpt("from", "position of the song to move", true, 1),
					intOpt("to", "position to move the song to", true, 1),
				),
			},
		},
		{
			Name:        "favorites",
			Description: "Manage favorites",
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("use", "use a favorite",
					&discordgo.ApplicationCommandOption{Name: "name", Description: "favorite name", Type: discordgo.ApplicationCommandOptionString, Required: true, Autocomplete: true},
				),
				subcommand("list", "list favorites"),
				subcommand("create", "create favorite",
					&discordgo.ApplicationCommandOption{Name: "name", Description: "name", Type: discordgo.ApplicationCommandOptionString, Required: true},
					&discordgo.ApplicationCommandOption{Name: "query", Description: "query", Type: discordgo.ApplicationCommandOptionString, Required: true},
				),
				subcommand("remove", "remove favorite",
					&discordgo.ApplicationCommandOption{Name: "name", Description: "name", Type: discordgo.ApplicationCommandOptionString, Required: true, Autocomplete: true},
				),
			},
		},
		{
			Name:        "config",
			Description: "Configure bot settings",
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("get", "show settings"),
				subcommand("set-playlist-limit", "set max playlist add", intOpt("limit", "max tracks", true, 1)),
				subcommand("set-wait-after-queue-empties", "time to wait before leaving VC", intOpt("delay", "seconds (0 never leave)", true, 0)),
				subcommand("set-leave-if-no-listeners", "leave when no listeners",
					&discordgo.ApplicationCommandOption{Name: "value", Description: "true/false", Type: discordgo.ApplicationCommandOptionBoolean, Required: true},
				),
				subcommand("set-queue-add-response-hidden", "ephemeral queue add responses",
					&discordgo.ApplicationCommandOption{Name: "value", Description: "true/false", Type: discordgo.ApplicationCommandOptionBoolean, Required: true},
				),
				subcommand("set-default-volume", "default volume", intOpt("level", "0-100", true, 0)),
			},
		},
	}
	for _, c := range cmds {
		c.DMPermission = &dmPermission
	}
	return cmds
}

// RegisterCommands replaces the application's commands in guildID, or the
// global commands when guildID is empty.
func (h *CommandHandler) RegisterCommands(s *discordgo.Session, appID string, guildID string) error {
	start := time.Now()
	slog.Info("registering application commands", "appID", appID, "guildID", guildID)

	cmds := commandDefinitions()
	if _, err := s.ApplicationCommandBulkOverwrite(appID, guildID, cmds); err != nil {
		return fmt.Errorf("overwrite commands: %w", err)
	}

	slog.Info("finished registering commands", "guildID", guildID, "count", len(cmds), "took", time.Since(start))
	return nil
}

func (h *CommandHandler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		return
	}
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		slog.Debug("interaction: application command", "guildID", i.GuildID, "userID", userIDOf(i), "command", i.ApplicationCommandData().Name)
		h.handleChatCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		slog.Debug("interaction: autocomplete", "guildID", i.GuildID, "userID", userIDOf(i))
		h.handleAutocomplete(s, i)
	default:
		slog.Debug("interaction: ignored type", "type", i.Type, "guildID", i.GuildID)
	}
}

// focusedOption finds the option the user is typing in, descending into
// subcommands. path holds the subcommand names on the way.
func focusedOption(opts []*discordgo.ApplicationCommandInteractionDataOption) (path []string, opt *discordgo.ApplicationCommandInteractionDataOption) {
	for _, o := range opts {
		if o.Focused {
			return nil, o
		}
		if o.Type == discordgo.ApplicationCommandOptionSubCommand || o.Type == discordgo.ApplicationCommandOptionSubCommandGroup {
			if p, f := focusedOption(o.Options); f != nil {
				return append([]string{o.Name}, p...), f
			}
		}
	}
	return nil, nil
}

func (h *CommandHandler) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	path, opt := focusedOption(data.Options)
	if opt == nil {
		return
	}
	typed := fmt.Sprint(opt.Value)

	ctx, cancel := context.WithTimeout(context.Background(), autocompleteTimeout)
	defer cancel()

	choices := []*discordgo.ApplicationCommandOptionChoice{}
	switch {
	case data.Name == "play":
		if h.limiter.Allow(i.GuildID) {
			choices = h.suggest.PlayChoices(ctx, typed, 10)
		}
	case data.Name == "queue" && len(path) > 0 && path[0] == "remove":
		guildID, err := snowflake.Parse(i.GuildID)
		if err != nil {
			return
		}
		if items, err := h.ctrl.QueueSnapshot(guildID); err == nil {
			choices = autocomplete.QueueChoices(items, typed, autocomplete.MaxChoices)
		}
	case data.Name == "favorites":
		choices = h.favoriteChoices(ctx, guildOf(i), typed)
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	}); err != nil {
		slog.Debug("autocomplete respond failed", "guildID", i.GuildID, "err", err)
	}
}

func (h *CommandHandler) favoriteChoices(ctx context.Context, guildID snowflake.ID, typed string) []*discordgo.ApplicationCommandOptionChoice {
	items, err := h.favs.List(ctx, guildID)
	if err != nil {
		slog.Warn("favorite list failed", "guildID", guildID, "err", err)
		return []*discordgo.ApplicationCommandOptionChoice{}
	}
	typed = strings.ToLower(typed)
	out := []*discordgo.ApplicationCommandOptionChoice{}
	for _, f := range items {
		if len(out) >= autocomplete.MaxChoices {
			break
		}
		if strings.Contains(strings.ToLower(f.Name), typed) {
			out = append(out, &discordgo.ApplicationCommandOptionChoice{Name: utils.Truncate(f.Name, 100), Value: f.Name})
		}
	}
	return out
}

func (h *CommandHandler) handleChatCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	switch data.Name {
	case "join":
		h.cmdJoin(s, i)
	case "leave":
		h.cmdLeave(s, i)
	case "play":
		h.cmdPlay(s, i)
	case "stop":
		h.cmdStop(s, i)
	case "pause":
		h.cmdPause(s, i)
	case "resume":
		h.cmdResume(s, i)
	case "skip":
		h.cmdSkip(s, i)
	case "now-playing":
		h.cmdNowPlaying(s, i)
	case "loop":
		h.cmdLoop(s, i)
	case "seek":
		h.cmdSeek(s, i)
	case "queue":
		h.cmdQueue(s, i)
	case "favorites":
		h.cmdFavorites(s, i)
	case "config":
		h.cmdConfig(s, i)
	default:
		slog.Debug("unknown command", "name", data.Name, "guildID", i.GuildID, "userID", userIDOf(i))
	}
}

func options(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func guildOf(i *discordgo.InteractionCreate) snowflake.ID {
	id, _ := snowflake.Parse(i.GuildID)
	return id
}

func textChannelOf(i *discordgo.InteractionCreate) snowflake.ID {
	id, _ := snowflake.Parse(i.ChannelID)
	return id
}

func (h *CommandHandler) cmdJoin(s *discordgo.Session, i *discordgo.InteractionCreate) {
	req := player.JoinRequest{
		GuildID:     guildOf(i),
		TextChannel: textChannelOf(i),
		Requester:   requesterOf(i),
	}
	if o, ok := options(i.ApplicationCommandData().Options)["channel"]; ok {
		if ch, err := snowflake.Parse(o.ChannelValue(nil).ID); err == nil {
			req.ChannelID = &ch
		}
	}

	h.deferReply(s, i, false)
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	res, err := h.ctrl.Join(ctx, req)
	if err != nil {
		h.editFail(s, i, "join", err)
		return
	}
	slog.Info("cmd join", "guildID", i.GuildID, "userID", userIDOf(i), "channelID", res.ChannelID)
	h.editEmbed(s, i, ui.SuccessEmbed(fmt.Sprintf("Connected to <#%d>.", res.ChannelID)))
}

func (h *CommandHandler) cmdLeave(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.deferReply(s, i, false)
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := h.ctrl.Leave(ctx, guildOf(i)); err != nil {
		h.editFail(s, i, "leave", err)
		return
	}
	h.limiter.Forget(i.GuildID)
	slog.Info("cmd leave", "guildID", i.GuildID, "userID", userIDOf(i))
	h.editEmbed(s, i, ui.SuccessEmbed("Disconnected."))
}

func (h *CommandHandler) cmdPlay(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var query string
	if o, ok := options(i.ApplicationCommandData().Options)["query"]; ok {
		query = o.StringValue()
	}
	slog.Info("cmd play", "guildID", i.GuildID, "userID", userIDOf(i), "query", query)
	h.enqueue(s, i, query)
}

// enqueue resolves query and adds it to the guild's queue, joining the
// requester's channel when the bot is not connected yet.
func (h *CommandHandler) enqueue(s *discordgo.Session, i *discordgo.InteractionCreate, query string) {
	if !h.limiter.Allow(i.GuildID) {
		h.replyEmbed(s, i, ui.ErrorEmbed(msgRateLimited), true)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	ephemeral := false
	if set, err := h.repo.UpsertSettings(ctx, guildOf(i)); err != nil {
		slog.Warn("load settings failed", "guildID", i.GuildID, "err", err)
	} else {
		ephemeral = set.QAddEphemeral
	}

	h.deferReply(s, i, ephemeral)
	res, err := h.ctrl.Play(ctx, player.PlayRequest{
		GuildID:     guildOf(i),
		Query:       query,
		TextChannel: textChannelOf(i),
		Requester:   requesterOf(i),
	})
	if err != nil {
		h.editFail(s, i, "play", err)
		return
	}
	slog.Debug("enqueued", "guildID", i.GuildID, "count", len(res.Tracks), "playlist", res.PlaylistName, "notFound", res.NotFound, "started", res.Started)
	h.editEmbed(s, i, ui.SuccessEmbed(addedMessage(res)))
}

func (h *CommandHandler) cmdStop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := h.ctrl.Stop(ctx, guildOf(i)); err != nil {
		h.fail(s, i, "stop", err)
		return
	}
	slog.Info("cmd stop", "guildID", i.GuildID, "userID", userIDOf(i))
	h.success(s, i, "Stopped playback.")
}

func (h *CommandHandler) cmdPause(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if _, err := h.ctrl.Pause(ctx, guildOf(i)); err != nil {
		h.fail(s, i, "pause", err)
		return
	}
	slog.Info("cmd pause", "guildID", i.GuildID, "userID", userIDOf(i))
	h.success(s, i, "Paused playback.")
}

func (h *CommandHandler) cmdResume(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if _, err := h.ctrl.Resume(ctx, guildOf(i)); err != nil {
		h.fail(s, i, "resume", err)
		return
	}
	slog.Info("cmd resume", "guildID", i.GuildID, "userID", userIDOf(i))
	h.success(s, i, "Resumed playback.")
}

func (h *CommandHandler) cmdSkip(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	t, err := h.ctrl.Skip(ctx, guildOf(i))
	if err != nil {
		h.fail(s, i, "skip", err)
		return
	}
	slog.Info("cmd skip", "guildID", i.GuildID, "userID", userIDOf(i), "track", t.Title)
	h.success(s, i, fmt.Sprintf("Skipped %s.", ui.TrackLink(t.Track)))
}

func (h *CommandHandler) cmdNowPlaying(s *discordgo.Session, i *discordgo.InteractionCreate) {
	snap, err := h.ctrl.NowPlaying(guildOf(i))
	if err != nil {
		h.fail(s, i, "now-playing", err)
		return
	}
	h.replyEmbed(s, i, ui.StatusEmbed(snap), false)
}

func (h *CommandHandler) cmdLoop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var raw string
	if o, ok := options(i.ApplicationCommandData().Options)["mode"]; ok {
		raw = o.StringValue()
	}
	mode, ok := player.ParseLoopMode(raw)
	if !ok {
		h.replyEmbed(s, i, ui.ErrorEmbed("Unknown loop mode."), true)
		return
	}
	if err := h.ctrl.SetLoop(guildOf(i), mode); err != nil {
		h.fail(s, i, "loop", err)
		return
	}
	slog.Info("cmd loop", "guildID", i.GuildID, "userID", userIDOf(i), "mode", mode)
	h.success(s, i, loopMessage(mode))
}

func (h *CommandHandler) cmdSeek(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var raw string
	if o, ok := options(i.ApplicationCommandData().Options)["time"]; ok {
		raw = o.StringValue()
	}
	pos, err := utils.ParseDurationString(raw)
	if err != nil {
		h.replyEmbed(s, i, ui.ErrorEmbed("Invalid time, use seconds, 1:30 or 1m30s."), true)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if _, err := h.ctrl.Seek(ctx, guildOf(i), pos); err != nil {
		h.fail(s, i, "seek", err)
		return
	}
	slog.Info("cmd seek", "guildID", i.GuildID, "userID", userIDOf(i), "position", pos)
	h.success(s, i, "Seeked to "+utils.PrettyTime(pos)+".")
}

func (h *CommandHandler) cmdQueue(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub := i.ApplicationCommandData().Options[0]
	opts := options(sub.Options)
	guildID := guildOf(i)

	switch sub.Name {
	case "list":
		page := 1
		if o, ok := opts["page"]; ok {
			page = int(o.IntValue())
		}
		p, err := h.ctrl.QueueList(guildID, page)
		if err != nil {
			h.fail(s, i, "queue list", err)
			return
		}
		h.replyEmbed(s, i, ui.QueueEmbed(p), false)
	case "remove":
		t, err := h.ctrl.QueueRemove(guildID, int(opts["index"].IntValue()))
		if err != nil {
			h.fail(s, i, "queue remove", err)
			return
		}
		slog.Info("cmd queue remove", "guildID", i.GuildID, "userID", userIDOf(i), "track", t.Title)
		h.success(s, i, fmt.Sprintf("Removed %s.", ui.TrackLink(t.Track)))
	case "clear":
		n, err := h.ctrl.QueueClear(guildID)
		if err != nil {
			h.fail(s, i, "queue clear", err)
			return
		}
		slog.Info("cmd queue clear", "guildID", i.GuildID, "userID", userIDOf(i), "removed", n)
		h.success(s, i, "Cleared the queue.")
	case "shuffle":
		n, err := h.ctrl.QueueShuffle(guildID)
		if err != nil {
			h.fail(s, i, "queue shuffle", err)
			return
		}
		slog.Info("cmd queue shuffle", "guildID", i.GuildID, "userID", userIDOf(i), "count", n)
		h.success(s, i, fmt.Sprintf("Shuffled %d tracks.", n))
	case "move":
		to := int(opts["to"].IntValue())
		t, err := h.ctrl.QueueMove(guildID, int(opts["from"].IntValue()), to)
		if err != nil {
			h.fail(s, i, "queue move", err)
			return
		}
		slog.Info("cmd queue move", "guildID", i.GuildID, "userID", userIDOf(i), "track", t.Title, "to", to)
		h.success(s, i, fmt.Sprintf("Moved %s to position %d.", ui.TrackLink(t.Track), to))
	}
}

func (h *CommandHandler) cmdFavorites(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub := i.ApplicationCommandData().Options[0]
	opts := options(sub.Options)
	ctx := context.Background()
	guildID, userID := guildOf(i), requesterOf(i).ID
	switch sub.Name {
	case "create":
		name, query := opts["name"].StringValue(), opts["query"].StringValue()
		f, err := h.favs.Create(ctx, guildID, userID, name, query)
		if err != nil {
			h.favoriteFail(s, i, "create", name, err)
			return
		}
		slog.Info("favorite created", "guildID", guildID, "userID", userID, "name", f.Name)
		h.success(s, i, fmt.Sprintf("Created favorite `%s`.", utils.EscapeMd(f.Name)))
	case "remove":
		name := opts["name"].StringValue()
		f, err := h.favs.Remove(ctx, guildID, userID, name)
		if err != nil {
			h.favoriteFail(s, i, "remove", name, err)
			return
		}
		slog.Info("favorite removed", "guildID", guildID, "userID", userID, "name", f.Name)
		h.success(s, i, fmt.Sprintf("Removed favorite `%s`.", utils.EscapeMd(f.Name)))
	case "list":
		items, err := h.favs.List(ctx, guildID)
		if err != nil {
			slog.Warn("favorite list failed", "guildID", guildID, "err", err)
		}
		if len(items) == 0 {
			h.replyEmbed(s, i, ui.SuccessEmbed("There aren't any favorites yet."), false)
			return
		}
		h.replyEmbed(s, i, &discordgo.MessageEmbed{
			Title:       "Favorites",
			Description: favoritesList(items),
			Color:       ui.ColorSuccess,
		}, true)
	case "use":
		name := opts["name"].StringValue()
		f, err := h.favs.Get(ctx, guildID, name)
		if err != nil {
			h.favoriteFail(s, i, "use", name, err)
			return
		}
		slog.Info("favorite used", "guildID", guildID, "userID", userID, "name", f.Name)
		h.enqueue(s, i, f.Query)
	}
}

func (h *CommandHandler) favoriteFail(s *discordgo.Session, i *discordgo.InteractionCreate, op, name string, err error) {
	if msg, ok := favoriteMessage(err); ok {
		h.replyEmbed(s, i, ui.ErrorEmbed(msg), true)
		return
	}
	slog.Warn("favorite "+op+" failed", "guildID", i.GuildID, "userID", userIDOf(i), "name", name, "err", err)
	h.replyEmbed(s, i, ui.ErrorEmbed(fmt.Sprintf("Failed to %s favorite.", op)), true)
}

func favoritesList(items []repository.Favorite) string {
	var b strings.Builder
	for _, f := range items {
		line := fmt.Sprintf("• %s: %s (<@%s>)\n", utils.EscapeMd(f.Name), utils.EscapeMd(f.Query), f.AuthorID)
		if b.Len()+len(line) > 4000 {
			b.WriteString("…")
			break
		}
		b.WriteString(line)
	}
	return b.String()
}

func settingsSummary(set *repository.Settings) string {
	wait := "never leave"
	if set.SecondsWaitAfterEmpty > 0 {
		wait = fmt.Sprintf("%ds", set.SecondsWaitAfterEmpty)
	}
	return fmt.Sprintf(
		"- Playlist Limit: %d\n- Wait before leaving after queue empty: %s\n- Leave if no listeners: %t\n- Add to queue responses ephemeral: %t\n- Default volume: %d",
		set.PlaylistLimit, wait, set.LeaveIfNoListeners, set.QAddEphemeral, set.DefaultVolume,
	)
}

func (h *CommandHandler) cmdConfig(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	set, err := h.repo.UpsertSettings(ctx, guildOf(i))
	if err != nil {
		slog.Error("load settings failed", "guildID", i.GuildID, "err", err)
		h.replyEmbed(s, i, ui.ErrorEmbed("Failed to fetch config."), true)
		return
	}
	sub := i.ApplicationCommandData().Options[0]
	opts := options(sub.Options)

	var key, msg string
	switch sub.Name {
	case "get":
		h.replyEmbed(s, i, &discordgo.MessageEmbed{Title: "Config", Description: settingsSummary(set), Color: ui.ColorSuccess}, false)
		return
	case "set-playlist-limit":
		limit := int(opts["limit"].IntValue())
		if limit < 1 {
			h.replyEmbed(s, i, ui.ErrorEmbed("Invalid limit."), true)
			return
		}
		set.PlaylistLimit = limit
		key, msg = "PlaylistLimit", "Playlist limit updated."
	case "set-wait-after-queue-empties":
		delay := int(opts["delay"].IntValue())
		if delay < 0 {
			h.replyEmbed(s, i, ui.ErrorEmbed("Invalid delay."), true)
			return
		}
		set.SecondsWaitAfterEmpty = delay
		key, msg = "SecondsWaitAfterEmpty", "Wait delay updated."
	case "set-leave-if-no-listeners":
		set.LeaveIfNoListeners = opts["value"].BoolValue()
		key, msg = "LeaveIfNoListeners", "Leave setting updated."
	case "set-queue-add-response-hidden":
		set.QAddEphemeral = opts["value"].BoolValue()
		key, msg = "QAddEphemeral", "Queue add response setting updated."
	case "set-default-volume":
		level := int(opts["level"].IntValue())
		if level < 0 || level > maxVolume {
			h.replyEmbed(s, i, ui.ErrorEmbed(fmt.Sprintf("Volume must be between 0 and %d.", maxVolume)), true)
			return
		}
		set.DefaultVolume = level
		key, msg = "DefaultVolume", "Default volume updated."
	default:
		return
	}

	if err := h.repo.UpdateSettings(ctx, set); err != nil {
		slog.Error("update settings failed", "guildID", i.GuildID, "key", key, "err", err)
		h.replyEmbed(s, i, ui.ErrorEmbed("Failed to update config."), true)
		return
	}
	slog.Info("config updated", "guildID", i.GuildID, "key", key)
	h.success(s, i, msg)
}
