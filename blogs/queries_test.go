package blogs_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/blogdeck/api"
	"github.com/cppla/blogdeck/api/apitest"
	"github.com/cppla/blogdeck/blogs"
	"github.com/cppla/blogdeck/models"
	"github.com/cppla/blogdeck/query"
)

func newHooks(t *testing.T, seed ...models.Post) (*blogs.Hooks, *apitest.Server) {
	t.Helper()
	srv := apitest.NewServer(seed...)
	t.Cleanup(srv.Close)
	client := api.NewClient(api.NewTransport(api.WithBaseURL(func() string { return srv.URL })))
	return blogs.NewHooks(query.NewStore(query.WithStaleTime(time.Minute)), client), srv
}

func sampleInput() models.CreatePostInput {
	return models.CreatePostInput{
		Title:       "Future of Fintech",
		Description: "summary",
		Content:     "body",
		CoverImage:  "https://img.test/a.png",
		Category:    []string{"FINANCE"},
		Date:        "2026-10-18T08:30:00.000Z",
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, blogs.Keys.Detail("1"), blogs.Keys.Detail("1"))
	assert.NotEqual(t, blogs.Keys.All, blogs.Keys.Detail(""))
}

func TestPostsQueryDeduplicatesConcurrentReads(t *testing.T) {
	h, srv := newHooks(t, models.Post{ID: "1", Title: "a"})
	release := srv.Hold()
	defer release()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := h.PostsQuery().Fetch(context.Background())
			assert.NoError(t, err)
			assert.Len(t, st.Data, 1)
		}()
	}
	require.Eventually(t, func() bool { return h.Store().Stats().Waiters == 2 }, time.Second, time.Millisecond)
	release()
	wg.Wait()

	assert.Equal(t, int64(1), srv.Lists())
}

func TestPostQueryDisabledWithoutID(t *testing.T) {
	h, srv := newHooks(t)

	q := h.PostQuery("")
	st, err := q.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, query.StatusIdle, st.Status)
	assert.False(t, st.Enabled)
	assert.Equal(t, int64(0), srv.Total())
}

func TestPostQueryNotFoundSurfacesTransportError(t *testing.T) {
	h, _ := newHooks(t)

	st, err := h.PostQuery("404").Fetch(context.Background())
	var terr *api.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, 404, terr.Status)
	assert.Equal(t, query.StatusError, st.Status)
	assert.Same(t, terr, st.Err)
}

func TestCreateInvalidatesListAndSeedsDetail(t *testing.T) {
	h, srv := newHooks(t, models.Post{ID: "1", Title: "existing"})
	ctx := context.Background()

	list, err := h.PostsQuery().Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	_, err = h.PostsQuery().Fetch(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), srv.Lists(), "fresh list is served from cache")

	var seen models.Post
	var detailInContinuation query.State[models.Post]
	created, err := h.CreatePostMutation().Mutate(ctx, sampleInput(), func(p models.Post) {
		seen = p
		detailInContinuation = h.PostQuery(p.ID).State()
	})
	require.NoError(t, err)
	assert.Equal(t, created, seen)
	assert.Equal(t, query.StatusSuccess, detailInContinuation.Status, "detail is seeded before the continuation runs")
	assert.Equal(t, created, detailInContinuation.Data)

	before := srv.Total()
	detail, err := h.PostQuery(created.ID).Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, created, detail.Data)
	assert.Equal(t, before, srv.Total(), "seeded detail needs no round trip")

	list, err = h.PostsQuery().Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), srv.Lists(), "list was marked stale by the mutation")
	assert.Len(t, list.Data, 2)
}

func TestCreateRefetchesObservedList(t *testing.T) {
	h, srv := newHooks(t)
	ctx := context.Background()

	_, err := h.PostsQuery().Fetch(ctx)
	require.NoError(t, err)
	_, cancel := h.PostsQuery().Subscribe()
	defer cancel()

	_, err = h.CreatePostMutation().Mutate(ctx, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, int64(2), srv.Lists())
	assert.Len(t, h.PostsQuery().State().Data, 1)
}

func TestCreateFailureLeavesCacheUntouched(t *testing.T) {
	h, srv := newHooks(t)
	ctx := context.Background()
	_, err := h.PostsQuery().Fetch(ctx)
	require.NoError(t, err)

	in := sampleInput()
	in.Title = ""
	ran := false
	_, err = h.CreatePostMutation().Mutate(ctx, in, func(models.Post) { ran = true })

	var terr *api.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "Title required", terr.Message)
	assert.False(t, ran)
	assert.False(t, h.PostsQuery().State().IsStale)
	assert.Equal(t, query.StatusError, h.CreatePostMutation().State().Status)

	_, err = h.PostsQuery().Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), srv.Lists())
}

func TestCreateThenGetRoundTripThroughCache(t *testing.T) {
	h, srv := newHooks(t)
	ctx := context.Background()

	created, err := h.CreatePostMutation().Mutate(ctx, sampleInput())
	require.NoError(t, err)

	// A second session has no seeded entry, so the read goes to the API.
	other := blogs.NewHooks(query.NewStore(), api.NewClient(api.NewTransport(api.WithBaseURL(func() string { return srv.URL }))))
	got, err := other.PostQuery(created.ID).Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, created, got.Data)
	assert.Equal(t, int64(1), srv.Gets())
}

func TestCreateDuringListFetchForcesNextListRead(t *testing.T) {
	h, srv := newHooks(t, models.Post{ID: "1", Title: "a"})
	release := srv.HoldListResponse()
	defer release()

	first := make(chan query.State[[]models.Post], 1)
	go func() {
		st, err := h.PostsQuery().Fetch(context.Background())
		assert.NoError(t, err)
		first <- st
	}()
	// The API has already answered this read with one post.
	require.Eventually(t, func() bool { return srv.Lists() == 1 }, time.Second, time.Millisecond)

	created, err := h.CreatePostMutation().Mutate(context.Background(), sampleInput())
	require.NoError(t, err)
	require.Equal(t, "2", created.ID)

	release()
	st := <-first
	assert.Len(t, st.Data, 1)
	assert.True(t, st.IsStale, "a list read from before the create stays stale")

	st, err = h.PostsQuery().Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, st.Data, 2)
	assert.Equal(t, int64(2), srv.Lists())
}
