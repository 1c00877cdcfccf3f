package songs

import (
	"context"

	"lyrifind-api/services/lrclib"
)

// Song is one search candidate.
type Song struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// Lyrics is display-ready text for a Song. Text always holds either the
// lyrics or a human-readable explanation of why there are none.
type Lyrics struct {
	SongID string `json:"songId"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Text   string `json:"lyrics"`
}

// SearchFunc runs a free-text search against the lyrics database.
type SearchFunc func(ctx context.Context, query string) ([]lrclib.TrackRecord, error)

// LookupFunc fetches the single track matching artist and title. A missing
// track should be reported as an error that classifies as
// lrclib.KindNotFound.
type LookupFunc func(ctx context.Context, artist, title string) (*lrclib.TrackRecord, error)

// Source is the upstream a Service reads from. *lrclib.Client satisfies it.
type Source interface {
	Search(ctx context.Context, query string) ([]lrclib.TrackRecord, error)
	Get(ctx context.Context, artist, title string) (*lrclib.TrackRecord, error)
}
