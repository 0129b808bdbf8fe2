package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/sonroyaalmerol/kumalink/internal/audio"
	"github.com/sonroyaalmerol/kumalink/internal/autocomplete"
	"github.com/sonroyaalmerol/kumalink/internal/cache"
	"github.com/sonroyaalmerol/kumalink/internal/config"
	"github.com/sonroyaalmerol/kumalink/internal/handlers"
	"github.com/sonroyaalmerol/kumalink/internal/player"
	"github.com/sonroyaalmerol/kumalink/internal/repository"
	"github.com/sonroyaalmerol/kumalink/internal/resolver"
	"github.com/sonroyaalmerol/kumalink/internal/spotify"
	"github.com/sonroyaalmerol/kumalink/internal/ui"
	"github.com/sonroyaalmerol/kumalink/internal/utils"
)

const (
	artworkTTL      = 7 * 24 * time.Hour
	artworkMemLimit = 512
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := repository.OpenDB(cfg.DataDir)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	repo := repository.NewRepo(db)
	if n, err := repo.PruneArtwork(ctx, artworkTTL); err != nil {
		slog.Warn("prune artwork cache", "err", err)
	} else if n > 0 {
		slog.Info("pruned artwork cache", "removed", n)
	}

	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		log.Fatal(err)
	}
	me, err := dg.User("@me")
	if err != nil {
		log.Fatalf("fetch bot user: %v", err)
	}
	botID, err := snowflake.Parse(me.ID)
	if err != nil {
		log.Fatalf("parse bot id: %v", err)
	}

	lava := audio.NewClient(botID)
	if err := lava.Connect(ctx, cfg); err != nil {
		log.Fatal(err)
	}
	gateway := audio.NewGateway(dg, lava, cfg.VoiceConnectTimeout)

	var (
		expander resolver.SpotifyExpander
		spSearch autocomplete.SpotifySearcher
	)
	if cfg.SpotifyEnabled() {
		sp, err := spotify.NewClientCredentials(cfg.SpotifyClientID, cfg.SpotifyClientSecret)
		if err != nil {
			log.Fatalf("spotify: %v", err)
		}
		expander, spSearch = sp, sp
	} else {
		slog.Info("spotify disabled, set SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET to enable it")
	}
	res := resolver.New(lava, expander)

	httpClient := utils.NewHTTPClient(5 * time.Second)
	artwork := ui.NewArtwork(httpClient, cache.NewArtworkCache(repo, artworkTTL, artworkMemLimit))

	ctrl := player.NewController(player.Deps{
		Audio:       lava,
		Voice:       gateway,
		Resolver:    res,
		Notifier:    handlers.NewNotifier(dg),
		VoiceStates: handlers.VoiceStates(dg, botID),
		Settings:    repo,
		Artwork:     artwork,
	})
	lava.SetHandler(ctrl)
	monitor := player.NewOccupancyMonitor(ctrl, botID)

	cmd := handlers.NewCommandHandler(cfg, repo, ctrl, autocomplete.NewSuggester(res, spSearch, httpClient))
	bot := handlers.NewBot(cfg, botID, cmd, gateway, monitor)
	bot.Attach(dg)

	if err := dg.Open(); err != nil {
		log.Fatal(err)
	}
	slog.Info("kumalink running")

	<-ctx.Done()
	slog.Info("shutting down")

	sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer scancel()
	ctrl.Shutdown(sctx)
	monitor.Wait()
	lava.Close()
	if err := dg.Close(); err != nil {
		slog.Warn("close discord session", "err", err)
	}
}
