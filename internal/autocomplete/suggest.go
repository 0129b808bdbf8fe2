package autocomplete

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/zmb3/spotify/v2"

	"github.com/sonroyaalmerol/kumalink/internal/player"
	"github.com/sonroyaalmerol/kumalink/internal/resolver"
	"github.com/sonroyaalmerol/kumalink/internal/utils"
)

// Discord caps choice names and string values at 100 characters and a
// response at 25 choices.
const (
	maxChoiceLen = 100
	MaxChoices   = 25
)

var suggestURL = "https://suggestqueries.google.com/complete/search"

type Searcher interface {
	Search(ctx context.Context, engine resolver.Engine, query string) ([]player.Track, error)
}

type SpotifySearcher interface {
	SearchAlbumsAndTracks(ctx context.Context, query string, limit int) ([]spotify.SimpleAlbum, []spotify.FullTrack, error)
}

func GetYouTubeSuggestions(ctx context.Context, client *http.Client, query string) ([]string, error) {
	u, _ := url.Parse(suggestURL)
	q := u.Query()
	q.Set("client", "firefox")
	q.Set("ds", "yt")
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", utils.RandomUserAgent())
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("suggest: unexpected status %d", resp.StatusCode)
	}
	var parsed []any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed) < 2 {
		return nil, nil
	}
	arr, ok := parsed[1].([]any)
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func choice(name string, value any) *discordgo.ApplicationCommandOptionChoice {
	return &discordgo.ApplicationCommandOptionChoice{Name: utils.Truncate(name, maxChoiceLen), Value: value}
}

// Suggester builds choices for the play command's query option.
type Suggester struct {
	search  Searcher
	spotify SpotifySearcher
	http    *http.Client
}

// NewSuggester returns a Suggester. sp may be nil.
func NewSuggester(search Searcher, sp SpotifySearcher, client *http.Client) *Suggester {
	if client == nil {
		client = http.DefaultClient
	}
	return &Suggester{search: search, spotify: sp, http: client}
}

// PlayChoices offers audio server search hits first and Spotify albums and
// tracks after them. When the search fails it falls back to plain YouTube
// query suggestions.
func (s *Suggester) PlayChoices(ctx context.Context, query string, limit int) []*discordgo.ApplicationCommandOptionChoice {
	if limit <= 0 || limit > MaxChoices {
		limit = 10
	}
	query = strings.TrimSpace(query)
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, limit)
	if query == "" {
		return out
	}

	spBudget := 0
	if s.spotify != nil {
		spBudget = limit / 2
	}
	ytBudget := limit - spBudget

	if tracks, err := s.search.Search(ctx, resolver.YouTube, query); err == nil {
		for _, t := range tracks {
			if len(out) >= ytBudget {
				break
			}
			if t.URI == "" || len(t.URI) > maxChoiceLen {
				continue
			}
			name := "YouTube: " + t.Title
			if t.Author != "" {
				name += " - " + t.Author
			}
			out = append(out, choice(name, t.URI))
		}
	} else if sugg, err := GetYouTubeSuggestions(ctx, s.http, query); err == nil {
		for _, q := range sugg {
			if len(out) >= ytBudget {
				break
			}
			out = append(out, choice("YouTube: "+q, utils.Truncate(q, maxChoiceLen)))
		}
	}

	if s.spotify != nil {
		albums, tracks, err := s.spotify.SearchAlbumsAndTracks(ctx, query, max(spBudget/2, 1))
		if err == nil {
			for _, a := range albums {
				if len(out) >= limit {
					break
				}
				name := "Spotify: 💿 " + a.Name
				if len(a.Artists) > 0 {
					name += " - " + a.Artists[0].Name
				}
				out = append(out, choice(name, "spotify:album:"+a.ID.String()))
			}
			for _, t := range tracks {
				if len(out) >= limit {
					break
				}
				name := "Spotify: 🎵 " + t.Name
				if len(t.Artists) > 0 {
					name += " - " + t.Artists[0].Name
				}
				out = append(out, choice(name, "spotify:track:"+t.ID.String()))
			}
		}
	}
	return out
}

// QueueChoices offers queue positions whose position or title matches typed.
func QueueChoices(items []player.QueuedTrack, typed string, limit int) []*discordgo.ApplicationCommandOptionChoice {
	if limit <= 0 || limit > MaxChoices {
		limit = MaxChoices
	}
	typed = strings.ToLower(strings.TrimSpace(typed))
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, min(limit, len(items)))
	for i, t := range items {
		if len(out) >= limit {
			break
		}
		pos := i + 1
		if typed != "" && !strings.HasPrefix(strconv.Itoa(pos), typed) && !strings.Contains(strings.ToLower(t.Title), typed) {
			continue
		}
		out = append(out, choice(fmt.Sprintf("%d. %s", pos, t.Title), pos))
	}
	return out
}
