package songs

import (
	"context"
	"fmt"
	"lyrifind-api/logcolors"
	"lyrifind-api/services/lrclib"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	// MaxResults caps the number of candidates taken from one search.
	MaxResults = 10

	// UnknownArtist is the placeholder artist for queries without a separator.
	UnknownArtist = "Unknown Artist"
)

// Separators tried in order when a query has to be split locally.
var separators = []string{" by ", " - "}

var nonIDChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Resolve turns a free-text query into an ordered list of candidate songs.
// It never fails: upstream errors degrade to the local split heuristic and
// the worst case is an empty list.
func Resolve(ctx context.Context, query string, search SearchFunc) []Song {
	if strings.TrimSpace(query) == "" {
		return []Song{}
	}

	records, err := search(ctx, query)
	if err != nil {
		log.Warnf("%s Search failed for '%s' (%s): %v", logcolors.LogFallback, query, lrclib.Classify(err), err)
		return fallbackAfterFailure(query)
	}

	if found := fromRecords(records); len(found) > 0 {
		log.Debugf("%s %d candidates for '%s'", logcolors.LogSearch, len(found), query)
		return found
	}

	log.Debugf("%s No usable results for '%s', splitting query", logcolors.LogFallback, query)
	return fallbackNoResults(query)
}

// fromRecords maps the first MaxResults records to songs, dropping records
// without a title or artist.
func fromRecords(records []lrclib.TrackRecord) []Song {
	if len(records) > MaxResults {
		records = records[:MaxResults]
	}

	found := make([]Song, 0, len(records))
	for i := range records {
		title, ok := records[i].Title()
		if !ok {
			continue
		}
		artist, ok := records[i].Artist()
		if !ok {
			continue
		}

		id, ok := records[i].IDString()
		if !ok {
			id = fmt.Sprintf("%d_%s_%s", i, title, artist)
		}
		found = append(found, Song{ID: id, Title: title, Artist: artist})
	}
	return found
}

func fallbackNoResults(query string) []Song {
	parts, ok := splitQuery(query)
	if !ok {
		return []Song{{
			ID:     SanitizeID(query),
			Title:  query,
			Artist: UnknownArtist,
		}}
	}
	return []Song{newSplitSong(parts[0], parts[1])}
}

// fallbackAfterFailure reads the split parts the other way round: the second
// part is the title and the first is the artist.
func fallbackAfterFailure(query string) []Song {
	parts, ok := splitQuery(query)
	if !ok {
		return []Song{}
	}
	return []Song{newSplitSong(parts[1], parts[0])}
}

func newSplitSong(title, artist string) Song {
	return Song{
		ID:     SanitizeID(artist + "_" + title),
		Title:  title,
		Artist: artist,
	}
}

// splitQuery splits on the first separator present in query, ignoring case.
// It succeeds only for exactly two parts that are non-empty once trimmed.
func splitQuery(query string) ([2]string, bool) {
	for _, sep := range separators {
		parts := splitFold(query, sep)
		if len(parts) == 1 {
			continue
		}
		if len(parts) != 2 {
			return [2]string{}, false
		}

		first, second := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if first == "" || second == "" {
			return [2]string{}, false
		}
		return [2]string{first, second}, true
	}
	return [2]string{}, false
}

// splitFold is strings.Split with an ASCII case-insensitive separator.
func splitFold(s, sep string) []string {
	var parts []string
	start := 0
	for i := 0; i+len(sep) <= len(s); {
		if strings.EqualFold(s[i:i+len(sep)], sep) {
			parts = append(parts, s[start:i])
			i += len(sep)
			start = i
			continue
		}
		i++
	}
	return append(parts, s[start:])
}

// SanitizeID builds a slug id: spaces become underscores and everything
// outside [A-Za-z0-9_] is removed.
func SanitizeID(s string) string {
	return nonIDChars.ReplaceAllString(strings.ReplaceAll(s, " ", "_"), "")
}
