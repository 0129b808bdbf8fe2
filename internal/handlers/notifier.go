package handlers

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/sonroyaalmerol/kumalink/internal/player"
	"github.com/sonroyaalmerol/kumalink/internal/ui"
)

type MessageSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// Notifier posts now-playing and error messages to text channels.
type Notifier struct {
	sender MessageSender
}

func NewNotifier(sender MessageSender) *Notifier {
	return &Notifier{sender: sender}
}

func (n *Notifier) PostNowPlaying(ctx context.Context, channelID snowflake.ID, t player.QueuedTrack) (snowflake.ID, error) {
	msg, err := n.sender.ChannelMessageSendEmbed(channelID.String(), ui.NowPlayingEmbed(t, t.ArtworkURL), discordgo.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("send now playing: %w", err)
	}
	id, err := snowflake.Parse(msg.ID)
	if err != nil {
		return 0, fmt.Errorf("parse message id %q: %w", msg.ID, err)
	}
	return id, nil
}

func (n *Notifier) PostError(ctx context.Context, channelID snowflake.ID, text string) error {
	if _, err := n.sender.ChannelMessageSendEmbed(channelID.String(), ui.ErrorEmbed(text), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send error message: %w", err)
	}
	return nil
}

func (n *Notifier) DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error {
	if err := n.sender.ChannelMessageDelete(channelID.String(), messageID.String(), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete message %d: %w", messageID, err)
	}
	return nil
}
