package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sonroyaalmerol/kumalink/internal/player"
	"github.com/sonroyaalmerol/kumalink/internal/utils"
)

const (
	ColorSuccess = 0x08c404
	ColorError   = 0xE74C3C
	colorPlaying = 0x006400
	colorPaused  = 0x8B0000

	maxDescription = 4096
	maxTitle       = 256
)

func SourceColor(s player.SourceKind) int {
	switch s {
	case player.SourceYouTube:
		return 0xff0000
	case player.SourceSpotify:
		return 0x1ed760
	case player.SourceSoundCloud:
		return 0xff5500
	case player.SourceTwitch:
		return 0x9147ff
	default:
		return 0x000000
	}
}

// source: https://brandfetch.com/
func SourceIcon(s player.SourceKind) string {
	switch s {
	case player.SourceYouTube:
		return "https://cdn.brandfetch.io/idVfYwcuQz/w/400/h/400/theme/dark/icon.jpeg?c=1dxbfHSJFAPEGdCLU4o5B"
	case player.SourceSpotify:
		return "https://cdn.brandfetch.io/id20mQyGeY/w/400/h/400/theme/dark/icon.jpeg?c=1dxbfHSJFAPEGdCLU4o5B"
	case player.SourceSoundCloud:
		return "https://cdn.brandfetch.io/id3ytDFop3/w/400/h/400/theme/dark/icon.jpeg?c=1dxbfHSJFAPEGdCLU4o5B"
	case player.SourceTwitch:
		return "https://cdn.brandfetch.io/idIwZCwD2f/w/400/h/400/theme/dark/icon.jpeg?c=1dxbfHSJFAPEGdCLU4o5B"
	default:
		return "https://cdn3.iconfinder.com/data/icons/iconpark-vol-2/48/play-256.png"
	}
}

func TrackLink(t player.Track) string {
	title := utils.EscapeMd(t.Title)
	if t.URI == "" {
		return "**" + title + "**"
	}
	return fmt.Sprintf("[%s](%s)", title, t.URI)
}

func trackLength(t player.Track) string {
	if t.IsStream {
		return "live"
	}
	return utils.PrettyTime(t.Length)
}

// NowPlayingEmbed is the message posted when a track starts. image may be
// empty.
func NowPlayingEmbed(t player.QueuedTrack, image string) *discordgo.MessageEmbed {
	requester := t.Requester.DisplayName
	if requester == "" {
		requester = "Unknown"
	}
	author := t.Author
	if author == "" {
		author = "-"
	}
	embed := &discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{
			Name:    "Now Playing",
			IconURL: SourceIcon(t.Source),
		},
		Title:     utils.Truncate(t.Title, maxTitle),
		URL:       t.URI,
		Color:     SourceColor(t.Source),
		Timestamp: t.RequestedAt.UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Artist", Value: author, Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text:    "Requested by " + requester,
			IconURL: t.Requester.AvatarURL,
		},
	}
	if !t.IsStream {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Duration",
			Value:  utils.PrettyTime(t.Length),
			Inline: true,
		})
	}
	if image != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: image}
	}
	return embed
}

func loopIcon(mode player.LoopMode) string {
	switch mode {
	case player.LoopTrack:
		return "🔂"
	case player.LoopQueue:
		return "🔁"
	default:
		return ""
	}
}

// StatusEmbed renders the state of the current track with a progress bar.
func StatusEmbed(snap player.Snapshot) *discordgo.MessageEmbed {
	cur := snap.Current
	if cur == nil {
		return &discordgo.MessageEmbed{
			Title:       "Nothing Playing",
			Description: "Nothing is playing right now.",
			Color:       ColorError,
		}
	}
	button := "⏹️"
	color := colorPlaying
	title := "Now Playing"
	if snap.Paused {
		button = "▶️"
		color = colorPaused
		title = "Paused"
	}

	progress := 0.0
	if cur.Length > 0 {
		progress = float64(snap.Position) / float64(cur.Length)
	}
	elapsed := "live"
	if !cur.IsStream {
		elapsed = fmt.Sprintf("%s/%s", utils.PrettyTime(snap.Position), utils.PrettyTime(cur.Length))
	}

	desc := fmt.Sprintf("**%s**\nRequested by: <@%s>\n\n%s %s `[ %s ]` %s",
		TrackLink(cur.Track),
		cur.Requester.ID,
		button, ProgressBar(10, progress), elapsed, loopIcon(snap.Loop),
	)

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: strings.TrimSpace(desc),
		Color:       color,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Source: %s", cur.Author),
		},
	}
	if cur.ArtworkURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: cur.ArtworkURL}
	}
	return embed
}

// QueueEmbed renders one page of the queue.
func QueueEmbed(p player.QueuePage) *discordgo.MessageEmbed {
	var b strings.Builder
	if p.Current != nil {
		fmt.Fprintf(&b, "**Now playing:** %s `[ %s ]`\n\n", TrackLink(p.Current.Track), trackLength(p.Current.Track))
	}

	if len(p.Entries) == 0 {
		b.WriteString("Queue is empty.")
	} else {
		b.WriteString("**Up next:**\n")
		shown := 0
		for _, e := range p.Entries {
			line := fmt.Sprintf("%d. %s - %s\n", e.Position, TrackLink(e.Track.Track), utils.EscapeMd(e.Track.Author))
			if b.Len()+len(line) > maxDescription-32 {
				break
			}
			b.WriteString(line)
			shown++
		}
		if shown < len(p.Entries) {
			fmt.Fprintf(&b, "…and %d more", len(p.Entries)-shown)
		}
	}

	return &discordgo.MessageEmbed{
		Title:       "Queue",
		Description: strings.TrimRight(b.String(), "\n"),
		Color:       colorPlaying,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "In queue", Value: queueInfo(p.Total), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Page %d/%d", p.Page, p.TotalPages),
		},
	}
}

func queueInfo(n int) string {
	if n == 0 {
		return "-"
	}
	if n == 1 {
		return "1 song"
	}
	return fmt.Sprintf("%d songs", n)
}

func SuccessEmbed(text string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: text, Color: ColorSuccess}
}

func ErrorEmbed(text string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: text, Color: ColorError}
}

// ProgressBar draws width segments with a knob at progress, clamped to [0, 1].
func ProgressBar(width int, progress float64) string {
	if width <= 0 {
		return ""
	}
	progress = min(max(progress, 0), 1)
	dot := min(int(float64(width)*progress), width-1)
	var b strings.Builder
	for i := range width {
		if i == dot {
			b.WriteString("🔘")
		} else {
			b.WriteString("▬")
		}
	}
	return b.String()
}
