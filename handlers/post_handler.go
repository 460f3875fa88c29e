package handlers

import (
	"net/http"

	"github.com/avoronkov/fieldside/middleware"
	"github.com/avoronkov/fieldside/services"
	"github.com/go-chi/chi/v5"
)

type PostHandler struct {
	postService services.PostService
}

func NewPostHandler(postService services.PostService) *PostHandler {
	return &PostHandler{postService: postService}
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	authorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input services.PostInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	post, err := h.postService.Create(r.Context(), authorID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"post": post}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	post, err := h.postService.GetBySlug(r.Context(), slug)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"post": post}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	// Unauthenticated viewers only see published posts.
	publishedOnly := true
	if _, err := middleware.GetUserIDFromContext(r.Context()); err == nil {
		publishedOnly = r.URL.Query().Get("include_drafts") != "true"
	}

	posts, err := h.postService.List(r.Context(), publishedOnly)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"posts": posts}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "postID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.PostInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	post, err := h.postService.Update(r.Context(), id, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"post": post}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "postID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.postService.Delete(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PostHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "postID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	contentType := r.Header.Get("Content-Type")

	if err := h.postService.UploadCover(r.Context(), id, contentType, r.Body); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
