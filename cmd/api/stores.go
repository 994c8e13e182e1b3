package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geocoder89/inkwell/internal/config"
	"github.com/geocoder89/inkwell/internal/db"
	"github.com/geocoder89/inkwell/internal/http/handlers"
	"github.com/geocoder89/inkwell/internal/observability"
	"github.com/geocoder89/inkwell/internal/repo/memory"
	"github.com/geocoder89/inkwell/internal/repo/mongodb"
	"github.com/geocoder89/inkwell/internal/repo/postgres"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type stores struct {
	users handlers.UserStore
	posts handlers.PostStore
	ping  func(ctx context.Context) error
	close func()
}

// openStores connects the configured backend and makes sure its schema or
// indexes exist.
func openStores(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (stores, error) {
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := db.NewPool(ctx, cfg.DBURL, db.PoolOptions{MaxConns: int32(cfg.DBMaxConns)})
		if err != nil {
			return stores{}, err
		}

		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return stores{}, fmt.Errorf("ensure schema: %w", err)
		}

		log.Info("store ready", "driver", "postgres")

		posts := postgres.NewPostsRepo(pool, prom)

		return stores{
			users: postgres.NewUsersRepo(pool, prom),
			posts: posts,
			ping:  posts.Ping,
			close: pool.Close,
		}, nil

	case "mongo":
		client, database, err := db.NewMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return stores{}, err
		}

		if err := mongodb.EnsureIndexes(ctx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return stores{}, fmt.Errorf("ensure indexes: %w", err)
		}

		log.Info("store ready", "driver", "mongo", "db", cfg.MongoDB)

		users := mongodb.NewUsersRepo(database, prom)

		return stores{
			users: users,
			posts: mongodb.NewPostsRepo(database, users, prom),
			ping: func(ctx context.Context) error {
				return client.Ping(ctx, readpref.Primary())
			},
			close: func() {
				_ = client.Disconnect(context.Background())
			},
		}, nil

	case "memory":
		log.Warn("store ready", "driver", "memory", "note", "data is lost on restart")

		users := memory.NewUsersRepo()

		return stores{
			users: users,
			posts: memory.NewPostsRepo(users),
			ping:  users.Ping,
			close: func() {},
		}, nil
	}

	return stores{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
