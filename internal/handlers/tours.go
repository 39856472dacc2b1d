package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/natours/api/internal/apifeatures"
	"github.com/natours/api/internal/apperr"
	"github.com/natours/api/internal/auth"
	"github.com/natours/api/internal/services"
	"github.com/natours/api/types"
)

// TourHandler provides HTTP handlers for tours.
type TourHandler struct {
	Responder
	tours *services.TourService
}

func NewTourHandler(rs Responder, tours *services.TourService) *TourHandler {
	return &TourHandler{Responder: rs, tours: tours}
}

// TourRouter registers tour routes, including the nested review routes.
func TourRouter(r chi.Router, h *TourHandler, reviews *ReviewHandler, ac *auth.AccessControl) {
	manage := h.guard(ac.Protect(), auth.RestrictTo(types.RoleAdmin, types.RoleLeadGuide))
	staff := h.guard(ac.Protect(), auth.RestrictTo(types.RoleAdmin, types.RoleLeadGuide, types.RoleGuide))

	r.Get("/", h.ListTours)
	r.With(manage).Post("/", h.CreateTour)
	r.With(aliasTopTours).Get("/top-5-cheap", h.ListTours)
	r.With(staff).Get("/tour-stats", h.TourStats)
	r.With(staff).Get("/monthly-plan/{year}", h.MonthlyPlan)
	r.Route("/{tourID}", func(r chi.Router) {
		r.Get("/", h.GetTour)
		r.With(manage).Patch("/", h.UpdateTour)
		r.With(manage).Delete("/", h.DeleteTour)
		r.Route("/reviews", func(r chi.Router) {
			ReviewRouter(r, reviews, ac)
		})
	})
}

// aliasTopTours fills in the cheapest best rated listing defaults.
func aliasTopTours(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		aliased := r.Clone(r.Context())
		aliased.URL.RawQuery = apifeatures.AliasTopTours(r.URL.Query()).Encode()
		next.ServeHTTP(w, aliased)
	})
}

func (h *TourHandler) ListTours(w http.ResponseWriter, r *http.Request) {
	tours, err := h.tours.List(r.Context(), apifeatures.Build(r.URL.Query()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, "tours", tours)
}

func (h *TourHandler) GetTour(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "tourID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tour, err := h.tours.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "tour", tour)
}

func (h *TourHandler) CreateTour(w http.ResponseWriter, r *http.Request) {
	var tour types.Tour
	if err := decodeJSON(w, r, &tour); err != nil {
		h.writeError(w, r, err)
		return
	}
	tour.ID = 0
	tour.Version = 0
	tour.CreatedAt = nil

	created, err := h.tours.Create(r.Context(), tour)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "tour", created)
}

// UpdateTour applies the body as a partial update: fields absent from the
// body keep their stored value.
func (h *TourHandler) UpdateTour(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "tourID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var patch json.RawMessage
	if err := decodeJSON(w, r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.tours.Update(r.Context(), id, func(tour *types.Tour) error {
		if err := json.Unmarshal(patch, tour); err != nil {
			return &apperr.Error{Kind: apperr.KindValidation, Message: "Invalid JSON body", Err: err}
		}
		return nil
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "tour", updated)
}

func (h *TourHandler) DeleteTour(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "tourID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.tours.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeNoContent(w)
}

func (h *TourHandler) TourStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tours.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "stats", stats)
}

func (h *TourHandler) MonthlyPlan(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "year")
	year, err := strconv.Atoi(raw)
	if err != nil {
		h.writeError(w, r, apperr.Validationf("Invalid year: %s", raw))
		return
	}
	plan, err := h.tours.MonthlyPlan(r.Context(), year)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "plan", plan)
}
