package songs

import (
	"context"
	"fmt"
	"lyrifind-api/logcolors"
	"lyrifind-api/services/lrclib"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Display texts returned in place of lyrics.
const (
	MsgNeedArtist = "Please search with format: 'Song Title by Artist Name'\n\n" +
		"Example: 'Shape of You by Ed Sheeran'"

	MsgInstrumental = "This is an instrumental track (no lyrics available)"

	msgNoLyrics = "Lyrics not found for '%s' by '%s'.\n\n" +
		"Tips:\n" +
		"• Check spelling of song and artist names\n" +
		"• Try searching for the song first\n" +
		"• Some songs may not be in the database"

	msgTimeout = "Connection timeout while loading '%s' by '%s'. " +
		"Please check your internet connection and try again."

	msgNetwork = "Network error while loading '%s' by '%s'. " +
		"Please check your internet connection."

	msgNotInDatabase = "'%s' by '%s' was not found in the database.\n\n" +
		"Try:\n" +
		"• Different spelling\n" +
		"• Search for the song first\n" +
		"• Check if artist/song names are correct"

	msgGeneric = "Error loading lyrics for '%s' by '%s': %s\n\n" +
		"Please try again or check the song/artist spelling."
)

// Normalize loads lyrics for song and turns the result into display text.
// It never fails; every outcome, including lookup errors, becomes a Lyrics
// value with non-empty text.
func Normalize(ctx context.Context, song Song, lookup LookupFunc) Lyrics {
	artist := strings.TrimSpace(strings.ReplaceAll(song.Artist, UnknownArtist, ""))
	title := strings.TrimSpace(song.Title)

	if artist == "" {
		log.Debugf("%s No artist for '%s', asking for 'Title by Artist'", logcolors.LogLyrics, song.Title)
		return newLyrics(song, MsgNeedArtist)
	}

	record, err := lookup(ctx, artist, title)
	if err != nil {
		kind := lrclib.Classify(err)
		log.Warnf("%s Lookup failed for '%s' by '%s' (%s): %v", logcolors.LogLyrics, title, artist, kind, err)
		return newLyrics(song, failureText(kind, title, artist, err))
	}

	return newLyrics(song, displayText(record, title, artist))
}

func newLyrics(song Song, text string) Lyrics {
	return Lyrics{
		SongID: song.ID,
		Title:  song.Title,
		Artist: song.Artist,
		Text:   text,
	}
}

// displayText applies instrumental > plain > synced > not found.
func displayText(record *lrclib.TrackRecord, title, artist string) string {
	switch {
	case record == nil:
	case record.Instrumental:
		return MsgInstrumental
	case strings.TrimSpace(record.PlainLyrics) != "":
		return record.PlainLyrics
	case strings.TrimSpace(record.SyncedLyrics) != "":
		if text := StripTimestamps(record.SyncedLyrics); text != "" {
			return text
		}
	}
	return fmt.Sprintf(msgNoLyrics, title, artist)
}

func failureText(kind lrclib.ErrorKind, title, artist string, err error) string {
	switch kind {
	case lrclib.KindTimeout:
		return fmt.Sprintf(msgTimeout, title, artist)
	case lrclib.KindUnreachable:
		return fmt.Sprintf(msgNetwork, title, artist)
	case lrclib.KindNotFound:
		return fmt.Sprintf(msgNotInDatabase, title, artist)
	default:
		return fmt.Sprintf(msgGeneric, title, artist, err.Error())
	}
}

// StripTimestamps drops everything up to and including the first ']' on each
// line, trims, and removes lines left blank.
func StripTimestamps(synced string) string {
	lines := strings.Split(strings.ReplaceAll(synced, "\r\n", "\n"), "\n")

	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if i := strings.IndexByte(line, ']'); i >= 0 {
			line = line[i+1:]
		}
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
