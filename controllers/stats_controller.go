package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/blogdeck/query"
	"github.com/cppla/blogdeck/utils"
)

// StatsController exposes query cache statistics.
type StatsController struct {
	store *query.Store
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(store *query.Store) *StatsController {
	return &StatsController{store: store}
}

// GetCacheStats returns entry, in-flight and hit/miss counters of the query cache.
func (s *StatsController) GetCacheStats(ctx *gin.Context) {
	utils.Success(ctx, s.store.Stats())
}
