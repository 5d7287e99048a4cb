package dictionary

import "time"

// Entry is a dictionary word with its gesture video. The relational store is
// the source of truth; IndexSynced records whether the current Version has
// been written to the search index.
type Entry struct {
	ID          int64     `db:"id" json:"id"`
	Word        string    `db:"word" json:"word"`
	Definition  string    `db:"definition" json:"definition"`
	MediaRef    string    `db:"video_url" json:"video_url"`
	IndexSynced bool      `db:"index_synced" json:"-"`
	Version     int64     `db:"version" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"-"`
	UpdatedAt   time.Time `db:"updated_at" json:"-"`
}
