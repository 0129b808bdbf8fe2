package ui

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sonroyaalmerol/kumalink/internal/player"
	"github.com/sonroyaalmerol/kumalink/internal/utils"
)

const (
	youtubeThumbBase = "https://img.youtube.com/vi"
	probeTimeout     = 10 * time.Second
)

var youtubeQualities = []string{"maxresdefault", "sddefault", "hqdefault", "mqdefault"}

type ArtworkCache interface {
	Get(ctx context.Context, trackID string) (string, bool)
	Put(ctx context.Context, trackID, url string)
}

// Artwork picks the best image for a track. Higher resolution variants are
// probed with HEAD requests and the winner is cached per track.
type Artwork struct {
	client    *http.Client
	cache     ArtworkCache
	thumbBase string
}

func NewArtwork(client *http.Client, cache ArtworkCache) *Artwork {
	if client == nil {
		client = utils.NewHTTPClient(5 * time.Second)
	}
	return &Artwork{client: client, cache: cache, thumbBase: youtubeThumbBase}
}

func (a *Artwork) Best(ctx context.Context, t player.Track) string {
	if t.Source != player.SourceYouTube && t.Source != player.SourceTwitch {
		return t.ArtworkURL
	}
	if a.cache != nil && t.ID != "" {
		if url, ok := a.cache.Get(ctx, t.ID); ok {
			return url
		}
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var url string
	switch t.Source {
	case player.SourceYouTube:
		url = a.youtube(ctx, t.ID, t.ArtworkURL)
	case player.SourceTwitch:
		url = a.twitch(ctx, t.ArtworkURL)
	}
	if a.cache != nil && t.ID != "" && url != "" {
		a.cache.Put(ctx, t.ID, url)
	}
	return url
}

func (a *Artwork) youtube(ctx context.Context, videoID, fallback string) string {
	if videoID == "" {
		return fallback
	}
	for _, q := range youtubeQualities {
		url := fmt.Sprintf("%s/%s/%s.jpg", a.thumbBase, videoID, q)
		if utils.Reachable(ctx, a.client, url) {
			return url
		}
	}
	return fallback
}

func (a *Artwork) twitch(ctx context.Context, artworkURL string) string {
	if artworkURL == "" {
		return ""
	}
	hi := strings.Replace(artworkURL, "440x248", "1280x720", 1)
	if hi == artworkURL {
		return artworkURL
	}
	if utils.Reachable(ctx, a.client, hi) {
		return hi
	}
	return artworkURL
}
