package models

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultCategory is applied when a new post carries no categories.
	DefaultCategory = "GENERAL"
	// DefaultFormCategory pre-fills the category field of an empty create form.
	DefaultFormCategory = "FINANCE"
	// DateLayout is the ISO-8601 layout used for post creation timestamps.
	DateLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Post represents a blog article served by the remote blog API.
type Post struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	CoverImage  string   `json:"coverImage"`
	Category    []string `json:"category"`
	Date        string   `json:"date"`
}

// CreatePostInput is the request body for creating a post. The server assigns the id.
type CreatePostInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	CoverImage  string   `json:"coverImage"`
	Category    []string `json:"category"`
	Date        string   `json:"date"`
}

// Normalize returns a copy of in with an empty category list replaced by DefaultCategory.
func (in CreatePostInput) Normalize() CreatePostInput {
	if len(in.Category) == 0 {
		in.Category = []string{DefaultCategory}
	}
	return in
}

// Form validation errors.
var (
	ErrTitleRequired       = errors.New("title is required")
	ErrDescriptionRequired = errors.New("description is required")
	ErrCoverImageRequired  = errors.New("cover image is required")
	ErrContentRequired     = errors.New("content is required")
)

// PostForm mirrors the create-post form as the user typed it.
// Categories holds the raw comma separated category field.
type PostForm struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	CoverImage  string `json:"coverImage"`
	Categories  string `json:"categories"`
	Content     string `json:"content"`
}

// NewPostForm returns an empty form with the default category pre-filled.
func NewPostForm() PostForm {
	return PostForm{Categories: DefaultFormCategory}
}

// Validate reports the first missing required field, or nil when the form can be submitted.
func (f PostForm) Validate() error {
	switch {
	case strings.TrimSpace(f.Title) == "":
		return ErrTitleRequired
	case strings.TrimSpace(f.Description) == "":
		return ErrDescriptionRequired
	case strings.TrimSpace(f.CoverImage) == "":
		return ErrCoverImageRequired
	case strings.TrimSpace(f.Content) == "":
		return ErrContentRequired
	}
	return nil
}

// ToInput converts the form into a creation payload stamped with now.
// Content is kept verbatim; the other text fields are trimmed.
func (f PostForm) ToInput(now time.Time) CreatePostInput {
	in := CreatePostInput{
		Title:       strings.TrimSpace(f.Title),
		Description: strings.TrimSpace(f.Description),
		CoverImage:  strings.TrimSpace(f.CoverImage),
		Category:    ParseCategories(f.Categories),
		Content:     f.Content,
		Date:        now.UTC().Format(DateLayout),
	}
	return in.Normalize()
}

// ParseCategories splits a comma separated list, trimming entries and dropping blanks.
func ParseCategories(raw string) []string {
	items := []string{}
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
