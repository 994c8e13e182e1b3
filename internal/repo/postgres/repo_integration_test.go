package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/inkwell/internal/db"
	"github.com/geocoder89/inkwell/internal/domain/post"
	"github.com/geocoder89/inkwell/internal/domain/user"
	"github.com/geocoder89/inkwell/internal/repo/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, dsn, db.PoolOptions{MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.EnsureSchema(ctx, pool))

	reset := func() {
		_, err := pool.Exec(context.Background(), `TRUNCATE posts, users CASCADE`)
		require.NoError(t, err)
	}
	reset()
	t.Cleanup(reset)

	return pool
}

func TestUsersRepo_Postgres(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	users := postgres.NewUsersRepo(pool, nil)

	created, err := users.Create(ctx, "alice", "hash")
	require.NoError(t, err)

	_, err = users.Create(ctx, "alice", "other")
	assert.ErrorIs(t, err, user.ErrUsernameTaken)

	got, err := users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = users.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestPostsRepo_Postgres(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	users := postgres.NewUsersRepo(pool, nil)
	posts := postgres.NewPostsRepo(pool, nil)

	alice, err := users.Create(ctx, "alice", "hash")
	require.NoError(t, err)
	bob, err := users.Create(ctx, "bobby", "hash")
	require.NoError(t, err)

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	var last post.Post
	for i := 0; i < 22; i++ {
		p := post.NewFromCreateRequest(post.CreatePostRequest{
			Title: fmt.Sprintf("p%02d", i), Summary: "s", Content: "c",
		}, "uploads/x.png", post.Author{ID: alice.ID, Username: alice.Username})
		p.CreatedAt = base.Add(time.Duration(i) * time.Second)

		last, err = posts.Create(ctx, p)
		require.NoError(t, err)
	}

	list, err := posts.ListRecent(ctx, post.FeedLimit)
	require.NoError(t, err)
	require.Len(t, list, post.FeedLimit)
	assert.Equal(t, "p21", list[0].Title)
	assert.Equal(t, "alice", list[0].Author.Username)

	got, err := posts.GetByID(ctx, last.ID)
	require.NoError(t, err)
	assert.Equal(t, last.Title, got.Title)
	assert.Equal(t, "alice", got.Author.Username)

	_, err = posts.UpdateByAuthor(ctx, last.ID, bob.ID, post.Update{Title: "hijack"})
	assert.ErrorIs(t, err, post.ErrNotAuthor)

	_, err = posts.UpdateByAuthor(ctx, "6f1c2d3e-0000-4000-8000-000000000000", alice.ID, post.Update{})
	assert.ErrorIs(t, err, post.ErrNotFound)

	updated, err := posts.UpdateByAuthor(ctx, last.ID, alice.ID, post.Update{Title: "edited"})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Title)
	assert.Equal(t, "", updated.Summary)
	assert.Equal(t, "uploads/x.png", updated.Cover)
	assert.Equal(t, "alice", updated.Author.Username)
}
