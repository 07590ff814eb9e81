package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cppla/blogdeck/models"
)

// BlogsPath is the collection path of the blog API.
const BlogsPath = "/blogs"

// ErrMissingID is wrapped in a DecodeError when a created post comes back without an id.
var ErrMissingID = errors.New("created post has no id")

// Client maps the blog resource operations onto a Transport.
// Every call is a single round trip; there are no retries.
type Client struct {
	transport *Transport
}

// NewClient creates a Client over t.
func NewClient(t *Transport) *Client {
	return &Client{transport: t}
}

// ListPosts returns every post.
func (c *Client) ListPosts(ctx context.Context) ([]models.Post, error) {
	return RequestJSON[[]models.Post](ctx, c.transport, BlogsPath, nil)
}

// GetPost returns the post with the given id. A missing post surfaces as the
// TransportError the API answered with.
func (c *Client) GetPost(ctx context.Context, id string) (models.Post, error) {
	return RequestJSON[models.Post](ctx, c.transport, BlogsPath+"/"+url.PathEscape(id), nil)
}

// CreatePost creates a post and returns the server's canonical copy.
func (c *Client) CreatePost(ctx context.Context, in models.CreatePostInput) (models.Post, error) {
	body, err := json.Marshal(in.Normalize())
	if err != nil {
		return models.Post{}, fmt.Errorf("encode post: %w", err)
	}
	post, err := RequestJSON[models.Post](ctx, c.transport, BlogsPath, &RequestOptions{
		Method: http.MethodPost,
		Body:   body,
	})
	if err != nil {
		return models.Post{}, err
	}
	if post.ID == "" {
		return models.Post{}, &DecodeError{URL: c.transport.ResolveURL(BlogsPath), Err: ErrMissingID}
	}
	return post, nil
}
