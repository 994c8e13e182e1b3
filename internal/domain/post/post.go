package post

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// FeedLimit is the fixed size of the recent posts window.
const FeedLimit = 20

type Author struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
}

type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Content   string    `json:"content"`
	Cover     string    `json:"cover"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var (
	ErrNotFound  = errors.New("post not found")
	ErrNotAuthor = errors.New("not the author of this post")
)

// multipart form fields, the file part is read separately
type CreatePostRequest struct {
	Title   string `form:"title" binding:"required,max=200"`
	Summary string `form:"summary" binding:"required,max=500"`
	Content string `form:"content" binding:"required"`
}

// Full replacement of the text fields: anything omitted is stored empty.
type UpdatePostRequest struct {
	ID      string `form:"id" binding:"required"`
	Title   string `form:"title" binding:"max=200"`
	Summary string `form:"summary" binding:"max=500"`
	Content string `form:"content"`
}

// Changes applied by an owner-conditional update. A nil Cover keeps the
// stored cover.
type Update struct {
	Title   string
	Summary string
	Content string
	Cover   *string
}

func NewFromCreateRequest(req CreatePostRequest, cover string, author Author) Post {
	now := time.Now().UTC()

	return Post{
		ID:        uuid.NewString(),
		Title:     req.Title,
		Summary:   req.Summary,
		Content:   req.Content,
		Cover:     cover,
		Author:    author,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func UpdateFromRequest(req UpdatePostRequest, cover *string) Update {
	return Update{
		Title:   req.Title,
		Summary: req.Summary,
		Content: req.Content,
		Cover:   cover,
	}
}

// Apply returns p with the update applied. ID, author and createdAt are kept.
func (p Post) Apply(u Update, at time.Time) Post {
	p.Title = u.Title
	p.Summary = u.Summary
	p.Content = u.Content
	if u.Cover != nil {
		p.Cover = *u.Cover
	}
	p.UpdatedAt = at
	return p
}
