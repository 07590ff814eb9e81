package main

import (
	"context"
	"time"

	"github.com/cppla/blogdeck/api"
	"github.com/cppla/blogdeck/blogs"
	"github.com/cppla/blogdeck/config"
	"github.com/cppla/blogdeck/query"
	"github.com/cppla/blogdeck/routes"
	"github.com/cppla/blogdeck/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	storeOpts := []query.Option{
		query.WithStaleTime(time.Duration(cfg.QueryStaleSeconds) * time.Second),
		query.WithGCTime(time.Duration(cfg.QueryGCSeconds) * time.Second),
		query.WithLogger(utils.Logger.Named("query")),
	}
	if rc := utils.GetRedis(); rc != nil {
		storeOpts = append(storeOpts, query.WithPersister(utils.NewRedisPersister(rc, cfg.RedisPrefix)))
	}
	store := query.NewStore(storeOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.StartJanitor(ctx, time.Minute)

	client := api.NewClient(api.NewTransport(api.WithLogger(utils.Logger.Named("api"))))
	r := routes.SetupRouter(blogs.NewHooks(store, client))

	utils.Sugar.Infof("Starting server on port %s (graceful), blog api %s", cfg.AppPort, config.APIBaseURL())
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
