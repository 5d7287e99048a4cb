package dictionary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SeedEntry is one dictionary word in a seed file.
type SeedEntry struct {
	Word       string `yaml:"word"`
	Definition string `yaml:"definition"`
	VideoURL   string `yaml:"video_url"`
}

type seedFile struct {
	Entries []SeedEntry `yaml:"entries"`
}

// ReadSeedFile loads seed entries from a YAML file.
func ReadSeedFile(path string) ([]SeedEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open(%s) > %w", path, err)
	}
	defer f.Close()
	return DecodeSeed(f)
}

// DecodeSeed parses the YAML form
//
//	entries:
//	  - word: xin chào
//	    definition: lời chào
//	    video_url: https://cdn.example.com/xin-chao.mp4
func DecodeSeed(r io.Reader) ([]SeedEntry, error) {
	var file seedFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("yaml.Decode() > %w", err)
	}
	for i, e := range file.Entries {
		if strings.TrimSpace(e.Word) == "" {
			return nil, fmt.Errorf("seed entry %d: word is required", i)
		}
		if strings.TrimSpace(e.VideoURL) == "" {
			return nil, fmt.Errorf("seed entry %d (%s): video_url is required", i, e.Word)
		}
	}
	return file.Entries, nil
}

// SeedStore is the part of the repository used by Seed.
type SeedStore interface {
	Count(ctx context.Context) (int, error)
	Save(ctx context.Context, entry *Entry) error
}

// Seed saves entries when the store is empty. Existing data is left untouched
// unless force is set. Saved entries stay unsynced until the synchronizer
// indexes them.
func Seed(ctx context.Context, store SeedStore, entries []SeedEntry, force bool) (int, error) {
	if !force {
		n, err := store.Count(ctx)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			slog.Default().Info("dictionary already contains entries, skipping seed", "count", n)
			return 0, nil
		}
	}

	saved := 0
	for _, e := range entries {
		entry := &Entry{
			Word:       strings.TrimSpace(e.Word),
			Definition: strings.TrimSpace(e.Definition),
			MediaRef:   strings.TrimSpace(e.VideoURL),
		}
		if err := store.Save(ctx, entry); err != nil {
			return saved, fmt.Errorf("save seed entry %s: %w", entry.Word, err)
		}
		saved++
	}
	slog.Default().Info("seeded dictionary", "count", saved)
	return saved, nil
}
