package controllers

import (
	"github.com/cppla/blogdeck/config"
	"github.com/cppla/blogdeck/utils"
	"github.com/gin-gonic/gin"
)

// ConfigController serves the runtime configuration the view needs.
type ConfigController struct{}

func NewConfigController() *ConfigController { return &ConfigController{} }

// GetAPIConfig returns the blog API base URL as currently resolved, plus cache timings.
func (c *ConfigController) GetAPIConfig(ctx *gin.Context) {
	cfg := config.Get()
	utils.Success(ctx, gin.H{
		"api_base_url":        config.APIBaseURL(),
		"query_stale_seconds": cfg.QueryStaleSeconds,
		"query_gc_seconds":    cfg.QueryGCSeconds,
	})
}
