package mongodb

import (
	"time"

	"github.com/geocoder89/inkwell/internal/domain/post"
	"github.com/geocoder89/inkwell/internal/domain/user"
)

const (
	usersCollection = "users"
	postsCollection = "posts"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	PasswordHash string    `bson:"password"`
	CreatedAt    time.Time `bson:"createdAt"`
}

func (d userDoc) toUser() user.User {
	return user.User{
		ID:           d.ID,
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
	}
}

type postDoc struct {
	ID        string    `bson:"_id"`
	Title     string    `bson:"title"`
	Summary   string    `bson:"summary"`
	Content   string    `bson:"content"`
	Cover     string    `bson:"cover"`
	Author    string    `bson:"author"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// postView is a post with its author joined by $lookup.
type postView struct {
	Doc        postDoc  `bson:",inline"`
	AuthorInfo *userDoc `bson:"authorInfo,omitempty"`
}

func fromPost(p post.Post) postDoc {
	return postDoc{
		ID:        p.ID,
		Title:     p.Title,
		Summary:   p.Summary,
		Content:   p.Content,
		Cover:     p.Cover,
		Author:    p.Author.ID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (d postDoc) toPost(username string) post.Post {
	return post.Post{
		ID:        d.ID,
		Title:     d.Title,
		Summary:   d.Summary,
		Content:   d.Content,
		Cover:     d.Cover,
		Author:    post.Author{ID: d.Author, Username: username},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func (v postView) toPost() post.Post {
	username := ""
	if v.AuthorInfo != nil {
		username = v.AuthorInfo.Username
	}
	return v.Doc.toPost(username)
}
