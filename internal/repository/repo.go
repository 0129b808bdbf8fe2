package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/sonroyaalmerol/kumalink/internal/player"
)

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

// UpsertSettings returns the guild's settings, inserting the defaults on
// first use.
func (r *Repo) UpsertSettings(ctx context.Context, guildID snowflake.ID) (*Settings, error) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings(guild_id) VALUES (?)`, guildID.String(),
	); err != nil {
		return nil, err
	}
	return r.GetSettings(ctx, guildID)
}

func (r *Repo) GetSettings(ctx context.Context, guildID snowflake.ID) (*Settings, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT playlist_limit, seconds_wait_after_empty, leave_if_no_listeners,
	       queue_add_ephemeral, default_volume
	FROM settings WHERE guild_id = ?`, guildID.String())

	s := Settings{GuildID: guildID}
	var leave, ephemeral int
	if err := row.Scan(
		&s.PlaylistLimit,
		&s.SecondsWaitAfterEmpty,
		&leave,
		&ephemeral,
		&s.DefaultVolume,
	); err != nil {
		return nil, err
	}
	s.LeaveIfNoListeners = leave != 0
	s.QAddEphemeral = ephemeral != 0
	return &s, nil
}

func (r *Repo) UpdateSettings(ctx context.Context, s *Settings) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE settings SET
		  playlist_limit=?,
		  seconds_wait_after_empty=?,
		  leave_if_no_listeners=?,
		  queue_add_ephemeral=?,
		  default_volume=?
		WHERE guild_id=?`,
		s.PlaylistLimit, s.SecondsWaitAfterEmpty, boolToInt(s.LeaveIfNoListeners),
		boolToInt(s.QAddEphemeral), s.DefaultVolume, s.GuildID.String(),
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update settings for %s: %w", s.GuildID, sql.ErrNoRows)
	}
	return nil
}

// PlaybackSettings loads the guild's settings in the shape the player needs,
// creating the row with defaults on first use.
func (r *Repo) PlaybackSettings(ctx context.Context, guildID snowflake.ID) (player.PlaybackSettings, error) {
	s, err := r.UpsertSettings(ctx, guildID)
	if err != nil {
		return player.PlaybackSettings{}, err
	}
	return s.Playback(), nil
}

func (s *Settings) Playback() player.PlaybackSettings {
	return player.PlaybackSettings{
		PlaylistLimit:      s.PlaylistLimit,
		IdleTimeout:        time.Duration(s.SecondsWaitAfterEmpty) * time.Second,
		LeaveIfNoListeners: s.LeaveIfNoListeners,
		DefaultVolume:      s.DefaultVolume,
	}
}

// GetArtwork returns the cached thumbnail for trackID. ok is false when
// nothing was cached or the entry is older than maxAge.
func (r *Repo) GetArtwork(ctx context.Context, trackID string, maxAge time.Duration) (url string, ok bool, err error) {
	row := r.db.QueryRowContext(ctx, `SELECT url, resolved_at FROM artwork_cache WHERE track_id=?`, trackID)
	var resolvedAt int64
	if err := row.Scan(&url, &resolvedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	if maxAge > 0 && time.Since(time.Unix(resolvedAt, 0)) > maxAge {
		return "", false, nil
	}
	return url, true, nil
}

func (r *Repo) PutArtwork(ctx context.Context, trackID, url string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO artwork_cache(track_id, url, resolved_at) VALUES (?,?,?)`,
		trackID, url, time.Now().Unix(),
	)
	return err
}

func (r *Repo) PruneArtwork(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM artwork_cache WHERE resolved_at < ?`, time.Now().Add(-olderThan).Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
