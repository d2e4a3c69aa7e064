package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"article-video-gen/internal/content"
	"article-video-gen/internal/logging"
	"article-video-gen/internal/model"
	"article-video-gen/internal/scheduler"
)

// Posts is the upstream content source.
type Posts interface {
	ListPosts(ctx context.Context, page, perPage int) (model.PostPage, error)
	GetPost(ctx context.Context, id int64) (model.Post, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
}

type Scheduler interface {
	Snapshot() scheduler.Snapshot
	RunCatalog(ctx context.Context) (scheduler.RunStats, error)
	ResetProcessed(ctx context.Context) int
	GenerateForPost(ctx context.Context, id int64) (model.VideoResult, error)
	ListVideos(ctx context.Context, limit int) ([]model.VideoRecord, error)
}

type Handler struct {
	// base outlives a single request; catalog runs started over HTTP use it.
	base  context.Context
	posts Posts
	sched Scheduler
	log   *logging.Logger
}

func NewHandler(base context.Context, posts Posts, sched Scheduler, log *logging.Logger) *Handler {
	return &Handler{base: base, posts: posts, sched: sched, log: log}
}

// ListPosts handles GET /v1/posts?page=&per_page=
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 20)
	if perPage > 100 {
		perPage = 100
	}

	res, err := h.posts.ListPosts(r.Context(), page, perPage)
	if errors.Is(err, content.ErrNoMorePages) {
		respondError(w, http.StatusNotFound, "Page out of range")
		return
	}
	if err != nil {
		h.log.Errorf("api: list posts page %d: %v", page, err)
		respondError(w, http.StatusBadGateway, "Failed to fetch posts")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// GetPost handles GET /v1/posts/{id}
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}
	post, err := h.posts.GetPost(r.Context(), id)
	if errors.Is(err, content.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		h.log.Errorf("api: get post %d: %v", id, err)
		respondError(w, http.StatusBadGateway, "Failed to fetch post")
		return
	}
	respondJSON(w, http.StatusOK, post)
}

// ListCategories handles GET /v1/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.posts.ListCategories(r.Context())
	if err != nil {
		h.log.Errorf("api: list categories: %v", err)
		respondError(w, http.StatusBadGateway, "Failed to fetch categories")
		return
	}
	respondJSON(w, http.StatusOK, cats)
}

// GenerateVideo handles POST /v1/posts/{id}/video. It blocks until the
// pipeline finishes; a pipeline failure is reported as a 500 carrying the
// result record.
func (h *Handler) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}

	res, err := h.sched.GenerateForPost(r.Context(), id)
	switch {
	case errors.Is(err, scheduler.ErrItemInFlight):
		respondError(w, http.StatusConflict, "Video for this post is already being generated")
		return
	case errors.Is(err, content.ErrNotFound):
		respondError(w, http.StatusNotFound, "Post not found")
		return
	case errors.Is(err, scheduler.ErrNoImages):
		respondError(w, http.StatusUnprocessableEntity, "Post has no images")
		return
	case err != nil:
		h.log.Errorf("api: generate post %d: %v", id, err)
		respondError(w, http.StatusBadGateway, "Failed to fetch post")
		return
	}

	if !res.Completed() {
		respondJSON(w, http.StatusInternalServerError, res)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// ListVideos handles GET /v1/videos?limit=
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	recs, err := h.sched.ListVideos(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		h.log.Errorf("api: list videos: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to read videos index")
		return
	}
	if recs == nil {
		recs = []model.VideoRecord{}
	}
	respondJSON(w, http.StatusOK, recs)
}

// SchedulerStatus handles GET /v1/scheduler
func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.sched.Snapshot())
}

// RunCatalog handles POST /v1/scheduler/run. The run continues after the
// response is written.
func (h *Handler) RunCatalog(w http.ResponseWriter, r *http.Request) {
	if h.sched.Snapshot().Status == scheduler.StatusRunning {
		respondError(w, http.StatusConflict, "Catalog run already in progress")
		return
	}
	go func() {
		stats, err := h.sched.RunCatalog(h.base)
		if err != nil && !errors.Is(err, scheduler.ErrAlreadyRunning) {
			h.log.Errorf("api: catalog run: %v", err)
			return
		}
		if err == nil {
			h.log.Infof("api: catalog run finished: %d generated, %d failed", stats.Generated, stats.Failed)
		}
	}()
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// ResetProcessed handles POST /v1/scheduler/reset
func (h *Handler) ResetProcessed(w http.ResponseWriter, r *http.Request) {
	n := h.sched.ResetProcessed(r.Context())
	respondJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func postID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid post ID")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
