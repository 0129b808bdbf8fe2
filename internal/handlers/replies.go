package handlers

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/sonroyaalmerol/kumalink/internal/player"
	"github.com/sonroyaalmerol/kumalink/internal/repository"
	"github.com/sonroyaalmerol/kumalink/internal/resolver"
	"github.com/sonroyaalmerol/kumalink/internal/ui"
)

const (
	msgGenericFailure = "Something went wrong, try again later."
	msgRateLimited    = "Slow down a little, try again in a moment."
)

// userMessage maps an error returned by the controller onto the fixed reply
// shown to the user. ok is false for unexpected failures, which the caller
// should log.
func userMessage(err error) (msg string, ok bool) {
	var idx *player.IndexOutOfRangeError
	switch {
	case errors.Is(err, player.ErrMissingTargetVoiceChannel):
		return "Join a voice channel or specify one to use this command.", true
	case errors.Is(err, player.ErrNotConnected):
		return "Not connected to any voice channel.", true
	case errors.Is(err, player.ErrNothingPlaying):
		return "Nothing is playing right now.", true
	case errors.As(err, &idx) && idx.Count == 0:
		return "The queue is empty.", true
	case errors.Is(err, player.ErrIndexOutOfRange):
		return "Invalid track number specified.", true
	case errors.Is(err, player.ErrNoResults):
		return "No results found.", true
	case errors.Is(err, player.ErrNotSeekable):
		return "This track can't be seeked.", true
	case errors.Is(err, player.ErrSeekOutOfRange):
		return "That position is past the end of the track.", true
	case errors.Is(err, resolver.ErrSpotifyDisabled):
		return "Spotify links aren't enabled on this bot.", true
	}
	return msgGenericFailure, false
}

func favoriteMessage(err error) (msg string, ok bool) {
	switch {
	case errors.Is(err, repository.ErrFavoriteExists):
		return "A favorite with that name already exists.", true
	case errors.Is(err, repository.ErrFavoriteNotFound):
		return "No favorite with that name exists.", true
	case errors.Is(err, repository.ErrNotFavoriteOwner):
		return "You can only remove your own favorites.", true
	case errors.Is(err, repository.ErrInvalidFavorite):
		return "Favorite name and query can't be empty.", true
	}
	return "", false
}

func loopMessage(mode player.LoopMode) string {
	switch mode {
	case player.LoopTrack:
		return "Now looping the current track."
	case player.LoopQueue:
		return "Now looping the queue."
	default:
		return "Loop disabled."
	}
}

func addedMessage(res player.PlayResult) string {
	var msg string
	switch {
	case res.PlaylistName != "":
		msg = fmt.Sprintf("Added playlist to the queue: `%s`", res.PlaylistName)
	case len(res.Tracks) > 0:
		msg = fmt.Sprintf("Added %s to the queue.", ui.TrackLink(res.Tracks[0].Track))
	}
	if res.PlaylistName != "" || len(res.Tracks) > 1 {
		msg += fmt.Sprintf("\n%d tracks queued.", len(res.Tracks))
	}
	if res.NotFound > 0 {
		msg += fmt.Sprintf("\n%d tracks could not be found.", res.NotFound)
	}
	return msg
}

func userIDOf(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// displayName prefers the guild nickname, then the global name, then the
// username.
func displayName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

func requesterOf(i *discordgo.InteractionCreate) player.Requester {
	if i.Member == nil || i.Member.User == nil {
		return player.Requester{}
	}
	id, _ := snowflake.Parse(i.Member.User.ID)
	return player.Requester{
		ID:          id,
		DisplayName: displayName(i.Member),
		AvatarURL:   i.Member.User.AvatarURL(""),
	}
}

func ephemeralFlags(ephemeral bool) discordgo.MessageFlags {
	if ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}

func (h *CommandHandler) replyEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  ephemeralFlags(ephemeral),
		},
	}); err != nil {
		slog.Warn("reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) success(s *discordgo.Session, i *discordgo.InteractionCreate, text string) {
	h.replyEmbed(s, i, ui.SuccessEmbed(text), false)
}

// fail replies with the message for err, logging it when it is not one of
// the expected user errors.
func (h *CommandHandler) fail(s *discordgo.Session, i *discordgo.InteractionCreate, op string, err error) {
	msg, ok := userMessage(err)
	if !ok {
		slog.Error(op+" failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
	h.replyEmbed(s, i, ui.ErrorEmbed(msg), true)
}

func (h *CommandHandler) deferReply(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: ephemeralFlags(ephemeral),
		},
	}); err != nil {
		slog.Warn("defer reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) editEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{embed},
	}); err != nil {
		slog.Warn("edit reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) editFail(s *discordgo.Session, i *discordgo.InteractionCreate, op string, err error) {
	msg, ok := userMessage(err)
	if !ok {
		slog.Error(op+" failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
	h.editEmbed(s, i, ui.ErrorEmbed(msg))
}
