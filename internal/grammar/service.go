package grammar

import (
	"context"

	"voicenotes/api/internal/hashutil"
)

// Corrector is the upstream-facing contract; *Client satisfies it.
type Corrector interface {
	Correct(ctx context.Context, text string) (Suggestion, error)
}

// Service fronts the upstream client with the optional Redis cache.
type Service struct {
	client Corrector
	cache  *Cache
}

// NewService wires the corrector with a cache; cache may be nil.
func NewService(client Corrector, cache *Cache) *Service {
	return &Service{client: client, cache: cache}
}

func (s *Service) Correct(ctx context.Context, text string) (Suggestion, error) {
	messageHash := hashutil.MessageHash(text)

	if s.cache != nil {
		if suggestion, ok := s.cache.Get(ctx, messageHash); ok {
			return suggestion, nil
		}
	}

	suggestion, err := s.client.Correct(ctx, text)
	if err != nil {
		return Suggestion{}, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, messageHash, suggestion)
	}
	return suggestion, nil
}
