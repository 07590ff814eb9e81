package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/blogdeck/api"
	"github.com/cppla/blogdeck/api/apitest"
	"github.com/cppla/blogdeck/models"
)

func newClient(base string) *api.Client {
	return api.NewClient(api.NewTransport(api.WithBaseURL(func() string { return base })))
}

func TestClientCreateThenGetRoundTrip(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	c := newClient(srv.URL)
	ctx := context.Background()

	created, err := c.CreatePost(ctx, models.CreatePostInput{
		Title:       "Future of Fintech",
		Description: "summary",
		Content:     "body",
		CoverImage:  "https://img.test/a.png",
		Category:    []string{"FINANCE", "TECH"},
		Date:        "2026-10-18T08:30:00.000Z",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := c.GetPost(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	all, err := c.ListPosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Post{created}, all)
}

func TestClientCreateDefaultsCategory(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	created, err := newClient(srv.URL).CreatePost(context.Background(), models.CreatePostInput{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, []string{models.DefaultCategory}, created.Category)
}

func TestClientCreateValidationError(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	_, err := newClient(srv.URL).CreatePost(context.Background(), models.CreatePostInput{})
	var terr *api.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusUnprocessableEntity, terr.Status)
	assert.Equal(t, "Title required", terr.Message)
}

func TestClientGetPostNotFound(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	_, err := newClient(srv.URL).GetPost(context.Background(), "missing")
	var terr *api.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusNotFound, terr.Status)
	assert.Equal(t, "Request failed with status 404", terr.Message)
	assert.Equal(t, srv.URL+"/blogs/missing", terr.URL)
}

func TestClientGetPostEscapesID(t *testing.T) {
	var rawPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawPath = r.URL.EscapedPath()
		_ = json.NewEncoder(w).Encode(models.Post{ID: "a/b c"})
	}))
	defer srv.Close()

	p, err := newClient(srv.URL).GetPost(context.Background(), "a/b c")
	require.NoError(t, err)
	assert.Equal(t, "/blogs/a%2Fb%20c", rawPath)
	assert.Equal(t, "a/b c", p.ID)
}

func TestClientCreateRequiresID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"title":"no id"}`)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).CreatePost(context.Background(), models.CreatePostInput{Title: "t"})
	var derr *api.DecodeError
	require.True(t, errors.As(err, &derr))
	assert.ErrorIs(t, err, api.ErrMissingID)
}
