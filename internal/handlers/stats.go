package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KalilDev/cached-sized-image/internal/memcache"
)

// StatsHandler reports hot-cache counters.
type StatsHandler struct {
	cache *memcache.Cache
}

func NewStatsHandler(cache *memcache.Cache) *StatsHandler {
	return &StatsHandler{cache: cache}
}

func (h *StatsHandler) Get(c *gin.Context) {
	stats := h.cache.GetStats()
	ratio := 0.0
	if total := stats.Hits + stats.Misses; total > 0 {
		ratio = float64(stats.Hits) / float64(total) * 100
	}
	c.JSON(http.StatusOK, gin.H{
		"memcache":        stats,
		"cache_hit_ratio": ratio,
	})
}
