package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/natours/api/internal/apifeatures"
	"github.com/natours/api/internal/auth"
	"github.com/natours/api/internal/services"
	"github.com/natours/api/types"
)

// ReviewHandler serves /reviews and /tours/{tourID}/reviews.
type ReviewHandler struct {
	Responder
	reviews *services.ReviewService
}

func NewReviewHandler(rs Responder, reviews *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{Responder: rs, reviews: reviews}
}

// ReviewRouter registers review routes. Mounted below a tour, listings and
// new reviews are scoped to that tour.
func ReviewRouter(r chi.Router, h *ReviewHandler, ac *auth.AccessControl) {
	r.Get("/", h.ListReviews)
	r.With(h.guard(ac.Protect(), auth.RestrictTo(types.RoleUser))).Post("/", h.CreateReview)
	r.Route("/{reviewID}", func(r chi.Router) {
		r.Get("/", h.GetReview)
		r.With(h.guard(ac.Protect(), auth.RestrictTo(types.RoleUser, types.RoleAdmin))).Delete("/", h.DeleteReview)
	})
}

// CreateReviewRequest is the review payload. TourID is taken from the
// route when nested under a tour.
type CreateReviewRequest struct {
	Review string `json:"review"`
	Rating int    `json:"rating"`
	TourID int64  `json:"tourId"`
}

// nestedTourID returns the tour of a nested route, or 0.
func nestedTourID(r *http.Request) (int64, error) {
	if chi.URLParam(r, "tourID") == "" {
		return 0, nil
	}
	return parseID(r, "tourID")
}

func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	tourID, err := nestedTourID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	reviews, err := h.reviews.List(r.Context(), apifeatures.Build(r.URL.Query()), tourID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, "reviews", reviews)
}

func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "reviewID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	review, err := h.reviews.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "review", review)
}

func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var req CreateReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	tourID, err := nestedTourID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if tourID == 0 {
		tourID = req.TourID
	}

	created, err := h.reviews.Create(r.Context(), types.Review{
		Review: req.Review,
		Rating: req.Rating,
		TourID: tourID,
		UserID: principal.ID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "review", created)
}

// DeleteReview lets users remove their own reviews and admins any review.
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())

	id, err := parseID(r, "reviewID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	review, err := h.reviews.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if principal.Role != types.RoleAdmin && review.UserID != principal.ID {
		h.authFailure(w, r, auth.ErrForbidden)
		return
	}
	if err := h.reviews.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeNoContent(w)
}
