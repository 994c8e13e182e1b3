package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/inkwell/internal/domain/post"
	"github.com/geocoder89/inkwell/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// author username is joined in, no other user column leaves the store
const selectPostWithAuthor = `SELECT p.id,
		p.title,
		p.summary,
		p.content,
		p.cover,
		p.author_id,
		COALESCE(u.username, ''),
		p.created_at,
		p.updated_at
	FROM posts p
	LEFT JOIN users u ON u.id = p.author_id`

type PostsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewPostsRepo(pool *pgxpool.Pool, prom *observability.Prom) *PostsRepo {
	return &PostsRepo{pool: pool, prom: prom}
}

func (r *PostsRepo) observe(op string, fn func() error) error {
	return r.prom.ObserveDB(op, fn)
}

func (r *PostsRepo) Create(ctx context.Context, p post.Post) (post.Post, error) {
	err := r.observe("posts.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO posts (id, title, summary, content, cover, author_id, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			p.ID, p.Title, p.Summary, p.Content, p.Cover, p.Author.ID, p.CreatedAt, p.UpdatedAt,
		)
		return err
	})

	if err != nil {
		return post.Post{}, err
	}

	return p, nil
}

func (r *PostsRepo) GetByID(ctx context.Context, id string) (post.Post, error) {
	var p post.Post

	err := r.observe("posts.get_by_id", func() error {
		return scanPost(r.pool.QueryRow(ctx, selectPostWithAuthor+` WHERE p.id = $1`, id), &p)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return post.Post{}, post.ErrNotFound
		}
		return post.Post{}, err
	}

	return p, nil
}

func (r *PostsRepo) ListRecent(ctx context.Context, limit int) ([]post.Post, error) {
	output := make([]post.Post, 0, limit)

	err := r.observe("posts.list_recent", func() error {
		rows, err := r.pool.Query(ctx,
			selectPostWithAuthor+` ORDER BY p.created_at DESC, p.id DESC LIMIT $1`,
			limit,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			var p post.Post

			if err := scanPost(rows, &p); err != nil {
				return err
			}

			output = append(output, p)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return output, nil
}

// UpdateByAuthor applies the update only when the row is owned by authorID.
// Ownership and write are one statement, so concurrent updates cannot
// interleave between the check and the write.
func (r *PostsRepo) UpdateByAuthor(ctx context.Context, id, authorID string, upd post.Update) (post.Post, error) {
	var p post.Post

	err := r.observe("posts.update_by_author", func() error {
		return scanPost(r.pool.QueryRow(
			ctx,
			`WITH updated AS (
				UPDATE posts
				SET title = $3,
					summary = $4,
					content = $5,
					cover = COALESCE($6::text, cover),
					updated_at = NOW()
				WHERE id = $1 AND author_id = $2
				RETURNING id, title, summary, content, cover, author_id, created_at, updated_at
			)
			SELECT p.id, p.title, p.summary, p.content, p.cover, p.author_id,
				COALESCE(u.username, ''), p.created_at, p.updated_at
			FROM updated p
			LEFT JOIN users u ON u.id = p.author_id`,
			id,
			authorID,
			upd.Title,
			upd.Summary,
			upd.Content,
			upd.Cover,
		), &p)
	})

	if err == nil {
		return p, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return post.Post{}, err
	}

	// nothing matched: either the post is missing or someone else owns it
	var exists bool

	err = r.observe("posts.exists", func() error {
		return r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)`, id).Scan(&exists)
	})

	if err != nil {
		return post.Post{}, err
	}

	if !exists {
		return post.Post{}, post.ErrNotFound
	}

	return post.Post{}, post.ErrNotAuthor
}

func (r *PostsRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanPost(row pgx.Row, p *post.Post) error {
	return row.Scan(
		&p.ID,
		&p.Title,
		&p.Summary,
		&p.Content,
		&p.Cover,
		&p.Author.ID,
		&p.Author.Username,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}
