package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

const topTracksMarket = "US"

var ErrNotSpotify = errors.New("not a spotify link")

type Track struct {
	Name   string
	Artist string
}

// SearchQuery is what gets handed to the audio server's search for t.
func (t Track) SearchQuery() string {
	if t.Artist == "" {
		return t.Name
	}
	return t.Artist + " - " + t.Name
}

// Collection is the result of expanding a link. Name is empty for single
// tracks.
type Collection struct {
	Name   string
	Source string
	Tracks []Track
}

type Client struct {
	raw *spotify.Client
}

func NewClientCredentials(clientID, clientSecret string) (*Client, error) {
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("spotify: missing client credentials")
	}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	httpClient := cfg.Client(context.Background())
	cl := spotify.New(httpClient, spotify.WithRetry(true))
	return &Client{raw: cl}, nil
}

// IsLink reports whether raw looks like something ParseID accepts.
func IsLink(raw string) bool {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "spotify:") {
		return true
	}
	u, err := url.Parse(raw)
	return err == nil && (u.Host == "open.spotify.com" || u.Host == "www.open.spotify.com")
}

func ParseID(raw string) (typ string, id spotify.ID, err error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "spotify:") {
		parts := strings.Split(raw, ":")
		if len(parts) == 3 && parts[2] != "" {
			return parts[1], spotify.ID(parts[2]), nil
		}
		return "", "", fmt.Errorf("invalid spotify URI")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Host != "open.spotify.com" && u.Host != "www.open.spotify.com" {
		return "", "", ErrNotSpotify
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// localized links look like /intl-de/track/<id>
	if len(parts) > 0 && strings.HasPrefix(parts[0], "intl-") {
		parts = parts[1:]
	}
	if len(parts) < 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid spotify URL path")
	}
	switch parts[0] {
	case "album", "playlist", "track", "artist":
		return parts[0], spotify.ID(parts[1]), nil
	}
	return "", "", fmt.Errorf("unsupported spotify type %q", parts[0])
}

// Expand turns a Spotify link into at most limit tracks. limit <= 0 means no
// cap.
func (c *Client) Expand(ctx context.Context, raw string, limit int) (Collection, error) {
	typ, id, err := ParseID(raw)
	if err != nil {
		return Collection{}, err
	}
	switch typ {
	case "track":
		t, err := c.GetTrack(ctx, id)
		if err != nil {
			return Collection{}, err
		}
		return Collection{Tracks: []Track{t}}, nil
	case "album":
		return c.GetAlbum(ctx, id, limit)
	case "playlist":
		return c.GetPlaylist(ctx, id, limit)
	case "artist":
		return c.GetArtistTop(ctx, id, limit)
	}
	return Collection{}, fmt.Errorf("unsupported spotify type %q", typ)
}

func firstArtist(artists []spotify.SimpleArtist) string {
	if len(artists) == 0 {
		return ""
	}
	return artists[0].Name
}

func (c *Client) GetAlbum(ctx context.Context, id spotify.ID, limit int) (Collection, error) {
	alb, err := c.raw.GetAlbum(ctx, id)
	if err != nil {
		return Collection{}, fmt.Errorf("spotify album: %w", err)
	}
	page, err := c.raw.GetAlbumTracks(ctx, id)
	if err != nil {
		return Collection{}, fmt.Errorf("spotify album tracks: %w", err)
	}
	out := make([]Track, 0, page.Total)
	add := func(items []spotify.SimpleTrack) {
		for _, t := range items {
			if limit > 0 && len(out) >= limit {
				break
			}
			out = append(out, Track{Name: t.Name, Artist: firstArtist(t.Artists)})
		}
	}
	add(page.Tracks)
	for page.Next != "" && (limit <= 0 || len(out) < limit) {
		if err := c.raw.NextPage(ctx, page); err != nil {
			break
		}
		add(page.Tracks)
	}
	return Collection{Name: alb.Name, Source: alb.ExternalURLs["spotify"], Tracks: out}, nil
}

func (c *Client) GetPlaylist(ctx context.Context, id spotify.ID, limit int) (Collection, error) {
	pl, err := c.raw.GetPlaylist(ctx, id)
	if err != nil {
		return Collection{}, fmt.Errorf("spotify playlist: %w", err)
	}
	page, err := c.raw.GetPlaylistItems(ctx, id)
	if err != nil {
		return Collection{}, fmt.Errorf("spotify playlist items: %w", err)
	}
	out := make([]Track, 0, page.Total)
	add := func(items []spotify.PlaylistItem) {
		for _, it := range items {
			t := it.Track.Track
			if t == nil {
				continue
			}
			if limit > 0 && len(out) >= limit {
				break
			}
			out = append(out, Track{Name: t.Name, Artist: firstArtist(t.Artists)})
		}
	}
	add(page.Items)
	for page.Next != "" && (limit <= 0 || len(out) < limit) {
		if err := c.raw.NextPage(ctx, page); err != nil {
			break
		}
		add(page.Items)
	}
	return Collection{Name: pl.Name, Source: pl.ExternalURLs["spotify"], Tracks: out}, nil
}

func (c *Client) GetTrack(ctx context.Context, id spotify.ID) (Track, error) {
	t, err := c.raw.GetTrack(ctx, id)
	if err != nil {
		return Track{}, fmt.Errorf("spotify track: %w", err)
	}
	return Track{Name: t.Name, Artist: firstArtist(t.Artists)}, nil
}

func (c *Client) GetArtistTop(ctx context.Context, id spotify.ID, limit int) (Collection, error) {
	artist, err := c.raw.GetArtist(ctx, id)
	if err != nil {
		return Collection{}, fmt.Errorf("spotify artist: %w", err)
	}
	full, err := c.raw.GetArtistsTopTracks(ctx, id, topTracksMarket)
	if err != nil {
		return Collection{}, fmt.Errorf("spotify top tracks: %w", err)
	}
	out := make([]Track, 0, len(full))
	for _, t := range full {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, Track{Name: t.Name, Artist: firstArtist(t.Artists)})
	}
	return Collection{Name: artist.Name + " top tracks", Source: artist.ExternalURLs["spotify"], Tracks: out}, nil
}

func (c *Client) SearchAlbumsAndTracks(ctx context.Context, query string, limit int) ([]spotify.SimpleAlbum, []spotify.FullTrack, error) {
	if limit <= 0 {
		limit = 10
	}
	typ := spotify.SearchTypeAlbum | spotify.SearchTypeTrack
	res, err := c.raw.Search(ctx, query, typ, spotify.Limit(limit))
	if err != nil {
		return nil, nil, err
	}
	var albums []spotify.SimpleAlbum
	if res.Albums != nil {
		albums = res.Albums.Albums
	}
	var tracks []spotify.FullTrack
	if res.Tracks != nil {
		tracks = res.Tracks.Tracks
	}
	if len(albums) > limit {
		albums = albums[:limit]
	}
	if len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return albums, tracks, nil
}
