package songs

import (
	"context"
	"lyrifind-api/logcolors"

	log "github.com/sirupsen/logrus"
)

// Service binds Resolve and Normalize to one upstream Source.
type Service struct {
	src Source
}

// NewService creates a new Service reading from src
func NewService(src Source) *Service {
	return &Service{src: src}
}

// Search resolves query into candidate songs.
func (s *Service) Search(ctx context.Context, query string) []Song {
	return Resolve(ctx, query, s.src.Search)
}

// Lyrics loads display-ready lyrics for song.
func (s *Service) Lyrics(ctx context.Context, song Song) Lyrics {
	return Normalize(ctx, song, s.src.Get)
}

// Find resolves query and loads lyrics for the best candidate. The boolean
// is false when the query produced no candidates.
func (s *Service) Find(ctx context.Context, query string) (Song, Lyrics, bool) {
	candidates := s.Search(ctx, query)
	if len(candidates) == 0 {
		log.Debugf("%s No candidates for '%s'", logcolors.LogSearch, query)
		return Song{}, Lyrics{}, false
	}

	song := candidates[0]
	return song, s.Lyrics(ctx, song), true
}
