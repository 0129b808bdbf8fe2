package handlers

import (
	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
)

// voiceStates answers the controller's membership questions from the
// gateway state cache.
type voiceStates struct {
	state *discordgo.State
	botID string
}

func newVoiceStates(state *discordgo.State, botID snowflake.ID) *voiceStates {
	return &voiceStates{state: state, botID: botID.String()}
}

func (v *voiceStates) UserVoiceChannel(guildID, userID snowflake.ID) (snowflake.ID, bool) {
	g, _ := v.state.Guild(guildID.String())
	if g == nil {
		return 0, false
	}
	uid := userID.String()
	for _, vs := range g.VoiceStates {
		if vs.UserID == uid && vs.ChannelID != "" {
			ch, err := snowflake.Parse(vs.ChannelID)
			if err != nil {
				return 0, false
			}
			return ch, true
		}
	}
	return 0, false
}

// ListenerCount counts the non-bot users in a voice channel. Members missing
// from the cache are counted as listeners.
func (v *voiceStates) ListenerCount(guildID, channelID snowflake.ID) int {
	g, _ := v.state.Guild(guildID.String())
	if g == nil {
		return 0
	}
	gid, cid := guildID.String(), channelID.String()
	n := 0
	for _, vs := range g.VoiceStates {
		if vs.ChannelID != cid || vs.UserID == v.botID {
			continue
		}
		if !v.isBot(gid, vs) {
			n++
		}
	}
	return n
}

func (v *voiceStates) isBot(guildID string, vs *discordgo.VoiceState) bool {
	if vs.Member != nil && vs.Member.User != nil {
		return vs.Member.User.Bot
	}
	m, _ := v.state.Member(guildID, vs.UserID)
	return m != nil && m.User != nil && m.User.Bot
}
