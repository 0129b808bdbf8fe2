package config

import (
	"log/slog"
	"time"
)

type Config struct {
	DiscordToken          string        `env:"DISCORD_TOKEN,required,notEmpty"`
	LavalinkAddress       string        `env:"LAVALINK_ADDRESS,required,notEmpty"`
	LavalinkPassword      string        `env:"LAVALINK_PASSWORD,required,notEmpty"`
	LavalinkSecure        bool          `env:"LAVALINK_SECURE" envDefault:"false"`
	LavalinkNodeName      string        `env:"LAVALINK_NODE_NAME" envDefault:"main"`
	SpotifyClientID       string        `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret   string        `env:"SPOTIFY_CLIENT_SECRET"`
	DataDir               string        `env:"DATA_DIR" envDefault:"./data"`
	BotStatus             string        `env:"BOT_STATUS" envDefault:"online"` // online/dnd/idle
	BotActivity           string        `env:"BOT_ACTIVITY" envDefault:"music"`
	RegisterCommandsOnBot bool          `env:"REGISTER_COMMANDS_ON_BOT" envDefault:"false"`
	LogLevel              slog.Level    `env:"LOG_LEVEL" envDefault:"INFO"`
	VoiceConnectTimeout   time.Duration `env:"VOICE_CONNECT_TIMEOUT" envDefault:"10s"`
	CommandRate           float64       `env:"COMMAND_RATE" envDefault:"2"`
	CommandBurst          int           `env:"COMMAND_BURST" envDefault:"5"`
}

func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}
