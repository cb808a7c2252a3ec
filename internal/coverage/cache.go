package coverage

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/tbraaten/quizcov/internal/model"
)

// ResultCache holds computed coverage results keyed by (quiz, module) with a
// freshness window. Entries are only written after a fully successful
// computation; failed or cancelled requests never populate it.
type ResultCache struct {
	lru *expirable.LRU[string, *model.ModuleCoverageResponse]
}

// NewResultCache creates a cache holding up to size results for ttl each.
func NewResultCache(size int, ttl time.Duration) *ResultCache {
	return &ResultCache{
		lru: expirable.NewLRU[string, *model.ModuleCoverageResponse](size, nil, ttl),
	}
}

func cacheKey(quizID uuid.UUID, moduleID string) string {
	return quizID.String() + "/" + moduleID
}

func (c *ResultCache) Get(quizID uuid.UUID, moduleID string) (*model.ModuleCoverageResponse, bool) {
	return c.lru.Get(cacheKey(quizID, moduleID))
}

func (c *ResultCache) Add(quizID uuid.UUID, moduleID string, resp *model.ModuleCoverageResponse) {
	c.lru.Add(cacheKey(quizID, moduleID), resp)
}
