package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"micropost-be/internal/auth"
	"micropost-be/internal/services"
)

// PostHandler handles HTTP requests for posts and like toggling.
type PostHandler struct {
	service services.PostServiceProvider
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(service services.PostServiceProvider) *PostHandler {
	return &PostHandler{service: service}
}

// PostPayload defines the structure for create/update requests.
type PostPayload struct {
	Name string `json:"name" validate:"required,max=100"`
	Text string `json:"text" validate:"required"`
}

// List handles the request to get all posts, newest first.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListPosts()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list posts")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve posts")
		return
	}
	respondJSON(w, http.StatusOK, posts)
}

// Create handles the request to create a new post owned by the caller.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, "Could not retrieve user from token")
		return
	}

	payload, ok := h.decodePayload(w, r)
	if !ok {
		return
	}

	post, err := h.service.CreatePost(claims.UserID, payload.Name, payload.Text)
	if err != nil {
		log.Error().Err(err).Str("user_id", claims.UserID).Msg("Failed to create post")
		respondError(w, http.StatusInternalServerError, "Failed to create post")
		return
	}
	respondJSON(w, http.StatusCreated, post)
}

// Get handles the request to get a single post by its ID.
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}

	post, err := h.service.GetPostByID(id)
	if err != nil {
		if errors.Is(err, services.ErrPostNotFound) {
			respondError(w, http.StatusNotFound, "Post not found")
			return
		}
		log.Error().Err(err).Int64("post_id", id).Msg("Failed to get post")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve post")
		return
	}
	respondJSON(w, http.StatusOK, post)
}

// Update handles the request to update a post's name and text.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, "Could not retrieve user from token")
		return
	}

	id, ok := postID(w, r)
	if !ok {
		return
	}

	payload, ok := h.decodePayload(w, r)
	if !ok {
		return
	}

	post, err := h.service.UpdatePost(id, claims.UserID, payload.Name, payload.Text)
	if err != nil {
		h.respondPostError(w, err, id, "Failed to update post")
		return
	}
	respondJSON(w, http.StatusOK, post)
}

// Delete handles the request to delete a post.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, "Could not retrieve user from token")
		return
	}

	id, ok := postID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeletePost(id, claims.UserID); err != nil {
		h.respondPostError(w, err, id, "Failed to delete post")
		return
	}
	respondMessage(w, http.StatusOK, "Post deleted successfully")
}

// Like adds the caller to a post's liked-by set.
func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, "Could not retrieve user from token")
		return
	}

	id, ok := postID(w, r)
	if !ok {
		return
	}

	if err := h.service.LikePost(id, claims.UserID); err != nil {
		switch {
		case errors.Is(err, services.ErrPostNotFound):
			respondError(w, http.StatusNotFound, "Post not found")
		case errors.Is(err, services.ErrAlreadyLiked):
			respondError(w, http.StatusBadRequest, "You have already liked this post")
		default:
			log.Error().Err(err).Int64("post_id", id).Msg("Failed to like post")
			respondError(w, http.StatusInternalServerError, "Failed to like post")
		}
		return
	}
	respondMessage(w, http.StatusOK, "Post liked")
}

// Unlike removes the caller from a post's liked-by set.
func (h *PostHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, "Could not retrieve user from token")
		return
	}

	id, ok := postID(w, r)
	if !ok {
		return
	}

	if err := h.service.UnlikePost(id, claims.UserID); err != nil {
		switch {
		case errors.Is(err, services.ErrPostNotFound):
			respondError(w, http.StatusNotFound, "Post not found")
		case errors.Is(err, services.ErrNotLiked):
			respondError(w, http.StatusBadRequest, "You have not liked this post")
		default:
			log.Error().Err(err).Int64("post_id", id).Msg("Failed to unlike post")
			respondError(w, http.StatusInternalServerError, "Failed to unlike post")
		}
		return
	}
	respondMessage(w, http.StatusOK, "Like removed")
}

func (h *PostHandler) decodePayload(w http.ResponseWriter, r *http.Request) (PostPayload, bool) {
	var payload PostPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return payload, false
	}
	if err := validate.Struct(payload); err != nil {
		respondError(w, http.StatusBadRequest, postValidationMessage(err))
		return payload, false
	}
	return payload, true
}

func (h *PostHandler) respondPostError(w http.ResponseWriter, err error, id int64, fallback string) {
	switch {
	case errors.Is(err, services.ErrPostNotFound):
		respondError(w, http.StatusNotFound, "Post not found")
	case errors.Is(err, services.ErrNotOwner):
		respondError(w, http.StatusForbidden, "You do not own this post")
	default:
		log.Error().Err(err).Int64("post_id", id).Msg(fallback)
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

func postValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Field() == "Name" && fe.Tag() == "max" {
				return "Name must be at most 100 characters"
			}
		}
	}
	return "Name and text are required"
}

// postID parses the {id} route parameter. Non-numeric IDs behave like
// missing posts.
func postID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusNotFound, "Post not found")
		return 0, false
	}
	return id, true
}
