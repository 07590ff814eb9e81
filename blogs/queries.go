// Package blogs binds the blog resource client to the query cache.
package blogs

import (
	"context"

	"github.com/cppla/blogdeck/models"
	"github.com/cppla/blogdeck/query"
)

const (
	familyList   = "blogs"
	familyDetail = "blogs/detail"
)

// Keys builds the cache keys for blog reads.
var Keys = struct {
	All    query.Key
	Detail func(id string) query.Key
}{
	All:    query.Key{Family: familyList},
	Detail: func(id string) query.Key { return query.Key{Family: familyDetail, ID: id} },
}

// Resource is the subset of the blog API client the hooks need.
type Resource interface {
	ListPosts(ctx context.Context) ([]models.Post, error)
	GetPost(ctx context.Context, id string) (models.Post, error)
	CreatePost(ctx context.Context, in models.CreatePostInput) (models.Post, error)
}

// Hooks exposes the cache-backed reads and writes the view layer consumes.
type Hooks struct {
	store    *query.Store
	resource Resource
	create   *query.Mutation[models.CreatePostInput, models.Post]
}

// NewHooks binds resource to store.
func NewHooks(store *query.Store, resource Resource) *Hooks {
	h := &Hooks{store: store, resource: resource}
	h.create = query.NewMutation(store, resource.CreatePost, query.MutationOptions[models.CreatePostInput, models.Post]{
		OnSuccess: h.syncCreated,
	})
	return h
}

// Store returns the underlying cache.
func (h *Hooks) Store() *query.Store {
	return h.store
}

// PostsQuery reads all posts.
func (h *Hooks) PostsQuery() *query.Query[[]models.Post] {
	return query.Use(h.store, Keys.All, h.resource.ListPosts)
}

// PostQuery reads one post. It stays disabled, and never fetches, while id is empty.
func (h *Hooks) PostQuery(id string) *query.Query[models.Post] {
	return query.Use(h.store, Keys.Detail(id), func(ctx context.Context) (models.Post, error) {
		return h.resource.GetPost(ctx, id)
	}, query.Enabled(id != ""))
}

// CreatePostMutation creates posts. On success the list is marked stale and the
// new post's detail entry is seeded before any caller continuation runs.
func (h *Hooks) CreatePostMutation() *query.Mutation[models.CreatePostInput, models.Post] {
	return h.create
}

func (h *Hooks) syncCreated(ctx context.Context, created models.Post, _ models.CreatePostInput) error {
	h.store.Invalidate(ctx, Keys.All)
	h.store.SetData(ctx, Keys.Detail(created.ID), created)
	return nil
}
