package lrclib

import "strconv"

// TrackRecord is a single track as returned by the /get and /search endpoints.
// Identity fields are pointers because LRCLIB omits or nulls them freely and
// callers need to tell "absent" apart from "empty".
type TrackRecord struct {
	ID           *int     `json:"id,omitempty"`
	Name         *string  `json:"name,omitempty"`
	TrackName    *string  `json:"trackName,omitempty"`
	ArtistName   *string  `json:"artistName,omitempty"`
	AlbumName    *string  `json:"albumName,omitempty"`
	Duration     *float64 `json:"duration,omitempty"`
	Instrumental bool     `json:"instrumental"`
	PlainLyrics  string   `json:"plainLyrics,omitempty"`
	SyncedLyrics string   `json:"syncedLyrics,omitempty"`
}

// Title returns trackName, falling back to name when trackName is absent.
func (r *TrackRecord) Title() (string, bool) {
	if r.TrackName != nil {
		return *r.TrackName, true
	}
	if r.Name != nil {
		return *r.Name, true
	}
	return "", false
}

// Artist returns artistName if present.
func (r *TrackRecord) Artist() (string, bool) {
	if r.ArtistName == nil {
		return "", false
	}
	return *r.ArtistName, true
}

// IDString returns the numeric LRCLIB id as a string if present.
func (r *TrackRecord) IDString() (string, bool) {
	if r.ID == nil {
		return "", false
	}
	return strconv.Itoa(*r.ID), true
}
