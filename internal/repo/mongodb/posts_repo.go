package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/inkwell/internal/domain/post"
	"github.com/geocoder89/inkwell/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PostsRepo struct {
	coll  *mongo.Collection
	users *UsersRepo
	prom  *observability.Prom
}

func NewPostsRepo(db *mongo.Database, users *UsersRepo, prom *observability.Prom) *PostsRepo {
	return &PostsRepo{coll: db.Collection(postsCollection), users: users, prom: prom}
}

// joins the author username only, like a populate restricted to one field
var lookupAuthor = mongo.Pipeline{
	{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: usersCollection},
		{Key: "localField", Value: "author"},
		{Key: "foreignField", Value: "_id"},
		{Key: "pipeline", Value: bson.A{
			bson.D{{Key: "$project", Value: bson.D{{Key: "username", Value: 1}}}},
		}},
		{Key: "as", Value: "authorInfo"},
	}}},
	{{Key: "$unwind", Value: bson.D{
		{Key: "path", Value: "$authorInfo"},
		{Key: "preserveNullAndEmptyArrays", Value: true},
	}}},
}

func (r *PostsRepo) Create(ctx context.Context, p post.Post) (post.Post, error) {
	err := r.prom.ObserveDB("posts.create", func() error {
		_, err := r.coll.InsertOne(ctx, fromPost(p))
		return err
	})

	if err != nil {
		return post.Post{}, err
	}

	return p, nil
}

func (r *PostsRepo) GetByID(ctx context.Context, id string) (post.Post, error) {
	pipeline := append(mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "_id", Value: id}}}},
	}, lookupAuthor...)

	views, err := r.aggregate(ctx, "posts.get_by_id", pipeline)
	if err != nil {
		return post.Post{}, err
	}

	if len(views) == 0 {
		return post.Post{}, post.ErrNotFound
	}

	return views[0], nil
}

func (r *PostsRepo) ListRecent(ctx context.Context, limit int) ([]post.Post, error) {
	pipeline := append(mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
	}, lookupAuthor...)

	return r.aggregate(ctx, "posts.list_recent", pipeline)
}

// UpdateByAuthor matches on {_id, author} so the ownership check and the
// write happen in one server-side operation.
func (r *PostsRepo) UpdateByAuthor(ctx context.Context, id, authorID string, upd post.Update) (post.Post, error) {
	set := bson.M{
		"title":     upd.Title,
		"summary":   upd.Summary,
		"content":   upd.Content,
		"updatedAt": time.Now().UTC(),
	}
	if upd.Cover != nil {
		set["cover"] = *upd.Cover
	}

	var d postDoc

	err := r.prom.ObserveDB("posts.update_by_author", func() error {
		return r.coll.FindOneAndUpdate(
			ctx,
			bson.M{"_id": id, "author": authorID},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&d)
	})

	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return post.Post{}, err
		}

		var n int64
		err = r.prom.ObserveDB("posts.exists", func() error {
			var cerr error
			n, cerr = r.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
			return cerr
		})

		if err != nil {
			return post.Post{}, err
		}

		if n == 0 {
			return post.Post{}, post.ErrNotFound
		}
		return post.Post{}, post.ErrNotAuthor
	}

	username, err := r.users.usernameByID(ctx, d.Author)
	if err != nil {
		return post.Post{}, err
	}

	return d.toPost(username), nil
}

func (r *PostsRepo) aggregate(ctx context.Context, op string, pipeline mongo.Pipeline) ([]post.Post, error) {
	var views []postView

	err := r.prom.ObserveDB(op, func() error {
		cur, err := r.coll.Aggregate(ctx, pipeline)
		if err != nil {
			return err
		}
		return cur.All(ctx, &views)
	})

	if err != nil {
		return nil, err
	}

	out := make([]post.Post, 0, len(views))
	for _, v := range views {
		out = append(out, v.toPost())
	}

	return out, nil
}

// EnsureIndexes creates the unique username index and the feed index.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_username_uniq"),
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(postsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("posts_created_at_idx"),
		},
		{
			Keys:    bson.D{{Key: "author", Value: 1}},
			Options: options.Index().SetName("posts_author_idx"),
		},
	})

	return err
}
