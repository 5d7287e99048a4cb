package dictionary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/capstone/vsl/internal/database"
)

//go:generate mockgen -source=repository.go -destination=../mocks/dictionary/mock_repository.go -package=mock_dictionary

// ErrNotFound is returned by Save when updating an id that does not exist.
var ErrNotFound = errors.New("dictionary entry not found")

// Repository defines operations for managing dictionary entries.
type Repository interface {
	// Save inserts the entry when ID is zero and updates it otherwise.
	// Either way the entry is marked unsynced and its version is bumped.
	Save(ctx context.Context, entry *Entry) error
	// FindByID returns nil when no entry has the id.
	FindByID(ctx context.Context, id int64) (*Entry, error)
	FindByIDs(ctx context.Context, ids []int64) ([]Entry, error)
	FindUnsynced(ctx context.Context, limit int) ([]Entry, error)
	// MarkSynced flips index_synced only if the entry is still at version.
	// It reports false when a newer edit landed in between.
	MarkSynced(ctx context.Context, id, version int64) (bool, error)
	SearchContains(ctx context.Context, query string, limit int) ([]Entry, error)
}

const entryColumns = "id, word, definition, video_url, index_synced, version, created_at, updated_at"

// DBRepository implements Repository using MySQL.
type DBRepository struct {
	db *sqlx.DB
}

func NewDBRepository(db *sqlx.DB) *DBRepository {
	return &DBRepository{db: db}
}

func (r *DBRepository) Save(ctx context.Context, entry *Entry) error {
	return database.RunInTx(ctx, r.db, func(ctx context.Context, tx *sqlx.Tx) error {
		if entry.ID == 0 {
			return insertEntry(ctx, tx, entry)
		}
		return updateEntry(ctx, tx, entry)
	})
}

func insertEntry(ctx context.Context, tx *sqlx.Tx, entry *Entry) error {
	result, err := tx.ExecContext(ctx,
		`INSERT INTO dictionary (word, definition, video_url, index_synced, version)
		VALUES (?, ?, ?, FALSE, 1)`,
		entry.Word, entry.Definition, entry.MediaRef)
	if err != nil {
		return fmt.Errorf("tx.ExecContext(insert dictionary) > %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("result.LastInsertId() > %w", err)
	}
	entry.ID = id
	entry.Version = 1
	entry.IndexSynced = false
	return nil
}

func updateEntry(ctx context.Context, tx *sqlx.Tx, entry *Entry) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE dictionary
		SET word = ?, definition = ?, video_url = ?, index_synced = FALSE, version = version + 1
		WHERE id = ?`,
		entry.Word, entry.Definition, entry.MediaRef, entry.ID)
	if err != nil {
		return fmt.Errorf("tx.ExecContext(update dictionary) > %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("result.RowsAffected() > %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update dictionary id=%d: %w", entry.ID, ErrNotFound)
	}

	var version int64
	if err := tx.GetContext(ctx, &version, "SELECT version FROM dictionary WHERE id = ?", entry.ID); err != nil {
		return fmt.Errorf("tx.GetContext(dictionary version) > %w", err)
	}
	entry.Version = version
	entry.IndexSynced = false
	return nil
}

func (r *DBRepository) FindByID(ctx context.Context, id int64) (*Entry, error) {
	var entry Entry
	err := r.db.GetContext(ctx, &entry, "SELECT "+entryColumns+" FROM dictionary WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db.GetContext(dictionary) > %w", err)
	}
	return &entry, nil
}

// FindByIDs returns the entries that still exist, in no particular order.
func (r *DBRepository) FindByIDs(ctx context.Context, ids []int64) ([]Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT "+entryColumns+" FROM dictionary WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("sqlx.In(dictionary) > %w", err)
	}
	var entries []Entry
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("db.SelectContext(dictionary by ids) > %w", err)
	}
	return entries, nil
}

func (r *DBRepository) FindUnsynced(ctx context.Context, limit int) ([]Entry, error) {
	var entries []Entry
	err := r.db.SelectContext(ctx, &entries,
		"SELECT "+entryColumns+" FROM dictionary WHERE index_synced = FALSE ORDER BY id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("db.SelectContext(unsynced dictionary) > %w", err)
	}
	return entries, nil
}

func (r *DBRepository) MarkSynced(ctx context.Context, id, version int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE dictionary SET index_synced = TRUE WHERE id = ? AND version = ?", id, version)
	if err != nil {
		return false, fmt.Errorf("db.ExecContext(mark synced) > %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("result.RowsAffected() > %w", err)
	}
	return affected == 1, nil
}

// SearchContains matches query as a substring of word or definition, in
// insertion order. Matching follows the utf8mb4_unicode_ci column collation,
// so it ignores case and diacritics the same way the index's asciifolding does.
func (r *DBRepository) SearchContains(ctx context.Context, query string, limit int) ([]Entry, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	var entries []Entry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT `+entryColumns+` FROM dictionary
		WHERE LOWER(word) LIKE ? OR LOWER(definition) LIKE ?
		ORDER BY id LIMIT ?`,
		pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("db.SelectContext(search dictionary) > %w", err)
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (r *DBRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM dictionary"); err != nil {
		return 0, fmt.Errorf("db.GetContext(count dictionary) > %w", err)
	}
	return n, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
