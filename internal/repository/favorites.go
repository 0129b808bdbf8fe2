package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/disgoorg/snowflake/v2"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrFavoriteExists   = errors.New("a favorite with that name already exists")
	ErrFavoriteNotFound = errors.New("no favorite with that name")
	ErrNotFavoriteOwner = errors.New("favorite belongs to another user")
	ErrInvalidFavorite  = errors.New("favorite name and query must not be empty")
)

// Favorites stores named queries per guild. Names are trimmed before they
// reach the database and only the author may remove a favorite.
type Favorites struct {
	db *sql.DB
}

func NewFavorites(repo *Repo) *Favorites {
	return &Favorites{db: repo.db}
}

func (f *Favorites) Create(ctx context.Context, guildID, authorID snowflake.ID, name, query string) (*Favorite, error) {
	fav := &Favorite{
		GuildID:  guildID,
		AuthorID: authorID,
		Name:     strings.TrimSpace(name),
		Query:    strings.TrimSpace(query),
	}
	if fav.Name == "" || fav.Query == "" {
		return nil, ErrInvalidFavorite
	}
	res, err := f.db.ExecContext(ctx,
		`INSERT INTO favorites(guild_id, author_id, name, query) VALUES (?,?,?,?)`,
		guildID.String(), authorID.String(), fav.Name, fav.Query,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrFavoriteExists
		}
		return nil, fmt.Errorf("insert favorite: %w", err)
	}
	if fav.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return fav, nil
}

func (f *Favorites) Get(ctx context.Context, guildID snowflake.ID, name string) (*Favorite, error) {
	row := f.db.QueryRowContext(ctx,
		`SELECT id, author_id, name, query FROM favorites WHERE guild_id=? AND name=?`,
		guildID.String(), strings.TrimSpace(name),
	)
	fav := Favorite{GuildID: guildID}
	var author string
	if err := row.Scan(&fav.ID, &author, &fav.Name, &fav.Query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFavoriteNotFound
		}
		return nil, err
	}
	fav.AuthorID = parseID(author)
	return &fav, nil
}

// Remove deletes the favorite called name when userID created it.
func (f *Favorites) Remove(ctx context.Context, guildID, userID snowflake.ID, name string) (*Favorite, error) {
	fav, err := f.Get(ctx, guildID, name)
	if err != nil {
		return nil, err
	}
	if fav.AuthorID != userID {
		return nil, ErrNotFavoriteOwner
	}
	res, err := f.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE id=? AND author_id=?`, fav.ID, userID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("delete favorite: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrFavoriteNotFound
	}
	return fav, nil
}

// List returns the guild's favorites ordered by name.
func (f *Favorites) List(ctx context.Context, guildID snowflake.ID) ([]Favorite, error) {
	rows, err := f.db.QueryContext(ctx,
		`SELECT id, author_id, name, query FROM favorites WHERE guild_id=? ORDER BY name ASC`,
		guildID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Favorite
	for rows.Next() {
		fav := Favorite{GuildID: guildID}
		var author string
		if err := rows.Scan(&fav.ID, &author, &fav.Name, &fav.Query); err != nil {
			return nil, err
		}
		fav.AuthorID = parseID(author)
		out = append(out, fav)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func parseID(s string) snowflake.ID {
	id, _ := snowflake.Parse(s)
	return id
}
