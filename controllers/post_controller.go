package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/blogdeck/api"
	"github.com/cppla/blogdeck/blogs"
	"github.com/cppla/blogdeck/models"
	"github.com/cppla/blogdeck/query"
	"github.com/cppla/blogdeck/utils"
)

// PostController serves the list, detail and create views over the query cache.
type PostController struct {
	hooks *blogs.Hooks
	now   func() time.Time
}

// NewPostController creates a new PostController instance.
func NewPostController(hooks *blogs.Hooks) *PostController {
	return &PostController{hooks: hooks, now: time.Now}
}

type queryMeta struct {
	Status     query.Status `json:"status"`
	UpdatedAt  time.Time    `json:"updated_at"`
	IsStale    bool         `json:"is_stale"`
	IsFetching bool         `json:"is_fetching"`
}

func metaOf[T any](st query.State[T]) queryMeta {
	return queryMeta{Status: st.Status, UpdatedAt: st.UpdatedAt, IsStale: st.IsStale, IsFetching: st.IsFetching}
}

// ListPosts returns every post.
func (p *PostController) ListPosts(ctx *gin.Context) {
	p.listPosts(ctx, false)
}

// RefetchPosts re-reads the list from the API regardless of freshness.
func (p *PostController) RefetchPosts(ctx *gin.Context) {
	p.listPosts(ctx, true)
}

func (p *PostController) listPosts(ctx *gin.Context, force bool) {
	q := p.hooks.PostsQuery()
	read := q.Fetch
	if force {
		read = q.Refetch
	}
	st, err := read(ctx.Request.Context())
	if err != nil {
		respondUpstreamError(ctx, err, nil)
		return
	}
	posts := st.Data
	if posts == nil {
		posts = []models.Post{}
	}
	utils.Success(ctx, gin.H{"posts": posts, "query": metaOf(st)})
}

// GetPost returns a single post.
func (p *PostController) GetPost(ctx *gin.Context) {
	p.getPost(ctx, false)
}

// RefetchPost re-reads a single post from the API regardless of freshness.
func (p *PostController) RefetchPost(ctx *gin.Context) {
	p.getPost(ctx, true)
}

func (p *PostController) getPost(ctx *gin.Context, force bool) {
	id := strings.TrimSpace(ctx.Param("id"))
	q := p.hooks.PostQuery(id)
	read := q.Fetch
	if force {
		read = q.Refetch
	}
	st, err := read(ctx.Request.Context())
	if err != nil {
		respondUpstreamError(ctx, err, nil)
		return
	}
	if !st.Enabled {
		utils.Error(ctx, http.StatusBadRequest, 40010, "post id is required")
		return
	}
	utils.Success(ctx, gin.H{"post": st.Data, "query": metaOf(st)})
}

// NewPostForm returns an empty create form with its defaults.
func (p *PostController) NewPostForm(ctx *gin.Context) {
	utils.Success(ctx, gin.H{"form": models.NewPostForm()})
}

// CreatePost validates the submitted form and creates the post. On failure the
// submitted form is echoed back so it can be corrected and resubmitted.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var form models.PostForm
	if err := ctx.ShouldBindJSON(&form); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	if err := form.Validate(); err != nil {
		utils.Respond(ctx, http.StatusBadRequest, 40021, err.Error(), gin.H{"form": form})
		return
	}
	if field := markupField(form); field != "" {
		utils.Respond(ctx, http.StatusBadRequest, 40022, field+" must be plain text", gin.H{"form": form})
		return
	}

	var location string
	created, err := p.hooks.CreatePostMutation().Mutate(ctx.Request.Context(), form.ToInput(p.now()), func(post models.Post) {
		location = "/api/v1/posts/" + post.ID
	})
	if err != nil {
		respondUpstreamError(ctx, err, gin.H{"form": form})
		return
	}
	utils.Created(ctx, location, gin.H{"post": created})
}

// markupField names the first form field carrying HTML, or returns "".
// Fields are sent to the API verbatim, so markup is refused rather than rewritten.
func markupField(form models.PostForm) string {
	for _, f := range []struct{ name, value string }{
		{"title", form.Title},
		{"description", form.Description},
		{"coverImage", form.CoverImage},
		{"categories", form.Categories},
		{"content", form.Content},
	} {
		if utils.ContainsMarkup(f.value) {
			return f.name
		}
	}
	return ""
}

// respondUpstreamError maps cache and transport failures onto the response envelope.
func respondUpstreamError(ctx *gin.Context, err error, data gin.H) {
	if data == nil {
		data = gin.H{}
	}

	var terr *api.TransportError
	var derr *api.DecodeError
	switch {
	case errors.As(err, &terr):
		data["upstream_status"] = terr.Status
		status := terr.Status
		if status < 400 || status > 499 {
			status = http.StatusBadGateway
		}
		utils.Respond(ctx, status, terr.Status*100+1, terr.Message, data)
	case errors.As(err, &derr):
		utils.Sugar.Warnf("blog api answered with an unexpected shape: %v", derr)
		utils.Respond(ctx, http.StatusBadGateway, 50210, "unexpected response from blog api", data)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		utils.Respond(ctx, http.StatusServiceUnavailable, 50301, "request cancelled", data)
	default:
		utils.Sugar.Errorf("blog api request failed: %v", err)
		utils.Respond(ctx, http.StatusBadGateway, 50220, "blog api unavailable", data)
	}
}
