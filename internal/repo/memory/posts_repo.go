package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/inkwell/internal/domain/post"
)

type PostsRepo struct {
	mu    sync.RWMutex
	items map[string]post.Post
	users *UsersRepo
}

// NewPostsRepo resolves author usernames through users.
func NewPostsRepo(users *UsersRepo) *PostsRepo {
	return &PostsRepo{
		items: make(map[string]post.Post),
		users: users,
	}
}

func (r *PostsRepo) Create(ctx context.Context, p post.Post) (post.Post, error) {
	// only the reference is stored, the username is resolved on read
	stored := p
	stored.Author = post.Author{ID: p.Author.ID}

	r.mu.Lock()
	r.items[p.ID] = stored
	r.mu.Unlock()

	return r.withAuthor(ctx, stored), nil
}

func (r *PostsRepo) GetByID(ctx context.Context, id string) (post.Post, error) {
	r.mu.RLock()
	p, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return post.Post{}, post.ErrNotFound
	}

	return r.withAuthor(ctx, p), nil
}

func (r *PostsRepo) ListRecent(ctx context.Context, limit int) ([]post.Post, error) {
	r.mu.RLock()
	all := make([]post.Post, 0, len(r.items))
	for _, p := range r.items {
		all = append(all, p)
	}
	r.mu.RUnlock()

	// newest first, id breaks ties so the order is stable
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	for i := range all {
		all[i] = r.withAuthor(ctx, all[i])
	}

	return all, nil
}

// UpdateByAuthor checks ownership and writes under one lock.
func (r *PostsRepo) UpdateByAuthor(ctx context.Context, id, authorID string, upd post.Update) (post.Post, error) {
	r.mu.Lock()

	p, ok := r.items[id]
	if !ok {
		r.mu.Unlock()
		return post.Post{}, post.ErrNotFound
	}

	if p.Author.ID != authorID {
		r.mu.Unlock()
		return post.Post{}, post.ErrNotAuthor
	}

	p = p.Apply(upd, time.Now().UTC())
	r.items[id] = p
	r.mu.Unlock()

	return r.withAuthor(ctx, p), nil
}

func (r *PostsRepo) withAuthor(ctx context.Context, p post.Post) post.Post {
	if r.users == nil {
		return p
	}

	if u, err := r.users.GetByID(ctx, p.Author.ID); err == nil {
		p.Author.Username = u.Username
	}

	return p
}
