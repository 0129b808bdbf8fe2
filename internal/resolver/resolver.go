package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sonroyaalmerol/kumalink/internal/audio"
	"github.com/sonroyaalmerol/kumalink/internal/player"
	"github.com/sonroyaalmerol/kumalink/internal/spotify"
)

type Engine string

const (
	YouTube      Engine = "ytsearch"
	YouTubeMusic Engine = "ytmsearch"
	SoundCloud   Engine = "scsearch"
)

func ParseEngine(s string) (Engine, bool) {
	switch Engine(strings.ToLower(strings.TrimSpace(s))) {
	case YouTube, "youtube", "":
		return YouTube, true
	case YouTubeMusic, "youtubemusic":
		return YouTubeMusic, true
	case SoundCloud, "soundcloud":
		return SoundCloud, true
	}
	return "", false
}

var ErrSpotifyDisabled = errors.New("spotify links need SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET")

type Loader interface {
	LoadTracks(ctx context.Context, identifier string) (audio.LoadResult, error)
}

type SpotifyExpander interface {
	Expand(ctx context.Context, raw string, limit int) (spotify.Collection, error)
}

// Resolver turns user input into playable tracks. URLs go to the audio
// server unchanged, Spotify links are expanded into searches and anything
// else is a YouTube search.
type Resolver struct {
	loader  Loader
	spotify SpotifyExpander
}

// New returns a Resolver. sp may be nil when Spotify isn't configured.
func New(loader Loader, sp SpotifyExpander) *Resolver {
	return &Resolver{loader: loader, spotify: sp}
}

func (r *Resolver) Resolve(ctx context.Context, query string, limit int) (player.Resolution, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return player.Resolution{}, player.ErrNoResults
	}
	if spotify.IsLink(query) {
		return r.resolveSpotify(ctx, query, limit)
	}
	if isURL(query) {
		return r.Load(ctx, query, limit)
	}
	tracks, err := r.Search(ctx, YouTube, query)
	if err != nil {
		return player.Resolution{}, err
	}
	return player.Resolution{Tracks: tracks[:1]}, nil
}

// Load fetches uri as is. A playlist keeps at most limit tracks; a search
// result keeps its first hit.
func (r *Resolver) Load(ctx context.Context, uri string, limit int) (player.Resolution, error) {
	res, err := r.loader.LoadTracks(ctx, uri)
	if err != nil {
		return player.Resolution{}, err
	}
	if len(res.Tracks) == 0 {
		return player.Resolution{}, player.ErrNoResults
	}
	if res.Search {
		return player.Resolution{Tracks: res.Tracks[:1]}, nil
	}
	tracks := res.Tracks
	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return player.Resolution{Tracks: tracks, PlaylistName: res.PlaylistName}, nil
}

// Search runs query against engine and returns every hit in rank order.
func (r *Resolver) Search(ctx context.Context, engine Engine, query string) ([]player.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, player.ErrNoResults
	}
	res, err := r.loader.LoadTracks(ctx, string(engine)+":"+query)
	if err != nil {
		return nil, err
	}
	if len(res.Tracks) == 0 {
		return nil, player.ErrNoResults
	}
	return res.Tracks, nil
}

func (r *Resolver) resolveSpotify(ctx context.Context, link string, limit int) (player.Resolution, error) {
	if r.spotify == nil {
		return player.Resolution{}, ErrSpotifyDisabled
	}
	col, err := r.spotify.Expand(ctx, link, limit)
	if err != nil {
		return player.Resolution{}, fmt.Errorf("expand spotify link: %w", err)
	}

	out := player.Resolution{PlaylistName: col.Name}
	for _, t := range col.Tracks {
		if err := ctx.Err(); err != nil {
			return player.Resolution{}, err
		}
		hits, err := r.Search(ctx, YouTube, t.SearchQuery())
		if err != nil {
			slog.Debug("spotify track not found", "query", t.SearchQuery(), "err", err)
			out.NotFound++
			continue
		}
		out.Tracks = append(out.Tracks, hits[0])
	}
	if len(out.Tracks) == 0 {
		return player.Resolution{}, player.ErrNoResults
	}
	return out, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
