package repository

import (
	"database/sql"

	"github.com/disgoorg/snowflake/v2"
)

type Repo struct {
	db *sql.DB
}

// Settings is one guild's row in the settings table.
type Settings struct {
	GuildID               snowflake.ID
	PlaylistLimit         int
	SecondsWaitAfterEmpty int // 0 never leaves
	LeaveIfNoListeners    bool
	QAddEphemeral         bool
	DefaultVolume         int
}

// Favorite is a named query saved for a guild. Names are unique per guild.
type Favorite struct {
	ID       int64
	GuildID  snowflake.ID
	AuthorID snowflake.ID
	Name     string
	Query    string
}
