package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/geocoder89/inkwell/internal/config"
	"github.com/geocoder89/inkwell/internal/domain/post"
	"github.com/geocoder89/inkwell/internal/http/middlewares"
	"github.com/geocoder89/inkwell/internal/observability"
	"github.com/geocoder89/inkwell/internal/utils"
	"github.com/gin-gonic/gin"
)

type PostStore interface {
	Create(ctx context.Context, p post.Post) (post.Post, error)
	GetByID(ctx context.Context, id string) (post.Post, error)
	ListRecent(ctx context.Context, limit int) ([]post.Post, error)
	UpdateByAuthor(ctx context.Context, id, authorID string, upd post.Update) (post.Post, error)
}

// ResponseCache holds encoded JSON responses for the public read paths.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte)
	Delete(ctx context.Context, keys ...string)
}

// CoverStore names and removes uploaded covers. The cover string is the
// public path stored on the post, diskPath is only used to write the file.
type CoverStore interface {
	NewCover(originalName string) (cover, diskPath string)
	Remove(cover string) error
}

type PostsHandler struct {
	posts  PostStore
	covers CoverStore
	cache  ResponseCache
	prom   *observability.Prom
	log    *slog.Logger
}

// NewPostsHandler wires the post endpoints. cache may be nil.
func NewPostsHandler(posts PostStore, covers CoverStore, cache ResponseCache, prom *observability.Prom, log *slog.Logger) *PostsHandler {
	if log == nil {
		log = slog.Default()
	}

	return &PostsHandler{
		posts:  posts,
		covers: covers,
		cache:  cache,
		prom:   prom,
		log:    log,
	}
}

func (h *PostsHandler) CreatePost(ctx *gin.Context) {
	id, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "Missing session")
		return
	}

	var req post.CreatePostRequest

	if !BindForm(ctx, &req) {
		return
	}

	file, err := ctx.FormFile("file")

	if err != nil {
		RespondError(ctx, http.StatusBadRequest, "file_required", "A cover file is required", nil)
		return
	}

	cover, ok := h.saveCover(ctx, file)
	if !ok {
		return
	}

	p := post.NewFromCreateRequest(req, cover, post.Author{ID: id.ID, Username: id.Username})

	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	created, err := h.posts.Create(cctx, p)

	if err != nil {
		h.removeCover(ctx, cover)
		h.log.ErrorContext(ctx.Request.Context(), "post_create_failed", "err", err)
		RespondInternal(ctx, "Could not create post")
		return
	}

	if created.Author.Username == "" {
		created.Author.Username = id.Username
	}

	h.invalidate(ctx.Request.Context())

	ctx.JSON(http.StatusOK, created)
}

func (h *PostsHandler) UpdatePost(ctx *gin.Context) {
	id, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "Missing session")
		return
	}

	var req post.UpdatePostRequest

	if !BindForm(ctx, &req) {
		return
	}

	if !utils.IsUUID(req.ID) {
		RespondError(ctx, http.StatusBadRequest, "invalid_id", "id must be a valid UUID", nil)
		return
	}

	var cover *string

	file, err := ctx.FormFile("file")

	switch {
	case err == nil:
		path, ok := h.saveCover(ctx, file)
		if !ok {
			return
		}
		cover = &path
	case errors.Is(err, http.ErrMissingFile):
		// keep the current cover
	default:
		RespondBadRequest(ctx, "Invalid file upload", nil)
		return
	}

	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	updated, err := h.posts.UpdateByAuthor(cctx, req.ID, id.ID, post.UpdateFromRequest(req, cover))

	if err != nil {
		if cover != nil {
			h.removeCover(ctx, *cover)
		}

		switch {
		case errors.Is(err, post.ErrNotFound):
			RespondNotFound(ctx, "Post not found")
		case errors.Is(err, post.ErrNotAuthor):
			RespondError(ctx, http.StatusBadRequest, "not_author", "you are not the author", nil)
		default:
			h.log.ErrorContext(ctx.Request.Context(), "post_update_failed", "post_id", req.ID, "err", err)
			RespondInternal(ctx, "Could not update post")
		}
		return
	}

	h.invalidate(ctx.Request.Context())
	// overwrite rather than drop, so a read that started before the update
	// has to race this Set instead of a Delete
	h.store(ctx.Request.Context(), utils.BuildPostCacheKey(req.ID), updated)

	ctx.JSON(http.StatusOK, updated)
}

func (h *PostsHandler) ListPosts(ctx *gin.Context) {
	key := utils.BuildPostsFeedCacheKey(post.FeedLimit)

	if body, ok := h.cached(ctx.Request.Context(), "feed", key); ok {
		RespondRawJSONWithETag(ctx, http.StatusOK, body)
		return
	}

	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	items, err := h.posts.ListRecent(cctx, post.FeedLimit)

	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "post_list_failed", "err", err)
		RespondInternal(ctx, "Could not list posts")
		return
	}

	if items == nil {
		items = []post.Post{}
	}

	h.respondAndCache(ctx, key, items)
}

func (h *PostsHandler) GetPostByID(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondError(ctx, http.StatusBadRequest, "invalid_id", "id must be a valid UUID", nil)
		return
	}

	key := utils.BuildPostCacheKey(id)

	if body, ok := h.cached(ctx.Request.Context(), "post", key); ok {
		RespondRawJSONWithETag(ctx, http.StatusOK, body)
		return
	}

	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	p, err := h.posts.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			RespondNotFound(ctx, "Post not found")
			return
		}

		h.log.ErrorContext(ctx.Request.Context(), "post_get_failed", "post_id", id, "err", err)
		RespondInternal(ctx, "Could not fetch post")
		return
	}

	h.respondAndCache(ctx, key, p)
}

// saveCover stores the upload under a generated name and returns the
// public cover path.
func (h *PostsHandler) saveCover(ctx *gin.Context, file *multipart.FileHeader) (string, bool) {
	cover, diskPath := h.covers.NewCover(file.Filename)

	if err := ctx.SaveUploadedFile(file, diskPath); err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "cover_save_failed", "err", err)
		RespondInternal(ctx, "Could not store upload")
		return "", false
	}

	h.prom.ObserveUpload(file.Size)

	return cover, true
}

func (h *PostsHandler) removeCover(ctx *gin.Context, cover string) {
	if err := h.covers.Remove(cover); err != nil {
		h.log.WarnContext(ctx.Request.Context(), "cover_cleanup_failed", "cover", cover, "err", err)
	}
}

func (h *PostsHandler) cached(ctx context.Context, kind, key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}

	body, ok := h.cache.Get(ctx, key)
	h.prom.CacheLookup(kind, ok)

	return body, ok
}

func (h *PostsHandler) respondAndCache(ctx *gin.Context, key string, payload interface{}) {
	body, err := h.store(ctx.Request.Context(), key, payload)

	if err != nil {
		RespondInternal(ctx, "Could not encode response")
		return
	}

	RespondRawJSONWithETag(ctx, http.StatusOK, body)
}

// store encodes payload and caches it under key when a cache is wired.
func (h *PostsHandler) store(ctx context.Context, key string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		h.cache.Set(ctx, key, body)
	}

	return body, nil
}

// invalidate drops the feed plus any extra keys after a write.
func (h *PostsHandler) invalidate(ctx context.Context, keys ...string) {
	if h.cache == nil {
		return
	}

	h.cache.Delete(ctx, append(keys, utils.BuildPostsFeedCacheKey(post.FeedLimit))...)
}
