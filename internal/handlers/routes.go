package handlers

import (
	"github.com/go-chi/chi/v5"

	"github.com/natours/api/internal/auth"
	"github.com/natours/api/internal/services"
)

// Deps are the collaborators the API routes are built from.
type Deps struct {
	Responder Responder
	Access    *auth.AccessControl
	Tours     *services.TourService
	Users     *services.UserService
	Reviews   *services.ReviewService
	Accounts  *services.AccountService

	// PublicURL roots links sent by email. Optional.
	PublicURL string
}

// APIRouter registers the versioned resource routes on r.
func APIRouter(r chi.Router, d Deps) {
	reviews := NewReviewHandler(d.Responder, d.Reviews)

	r.Route("/tours", func(r chi.Router) {
		TourRouter(r, NewTourHandler(d.Responder, d.Tours), reviews, d.Access)
	})
	r.Route("/users", func(r chi.Router) {
		UserRouter(r,
			NewUserHandler(d.Responder, d.Users),
			NewAuthHandler(d.Responder, d.Access, d.Users, d.Accounts, d.PublicURL),
			d.Access,
		)
	})
	r.Route("/reviews", func(r chi.Router) {
		ReviewRouter(r, reviews, d.Access)
	})
	r.NotFound(d.Responder.NotFound)
}
