package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/natours/api/internal/apifeatures"
	"github.com/natours/api/internal/apperr"
	"github.com/natours/api/internal/auth"
	"github.com/natours/api/internal/logging"
	"github.com/natours/api/internal/services"
	"github.com/natours/api/types"
)

const (
	maxPhotoBytes  = 5 << 20
	formFieldPhoto = "photo"
)

// UserHandler serves the current user's account and the admin user routes.
type UserHandler struct {
	Responder
	users *services.UserService
}

func NewUserHandler(rs Responder, users *services.UserService) *UserHandler {
	return &UserHandler{Responder: rs, users: users}
}

// UserRouter registers user routes, the auth routes included. Photo routes
// exist only when object storage is configured.
func UserRouter(r chi.Router, h *UserHandler, authHandler *AuthHandler, ac *auth.AccessControl) {
	AuthRouter(r, authHandler)

	if h.users.PhotosEnabled() {
		r.Get("/{userID}/photo", h.GetPhoto)
	}

	r.Group(func(r chi.Router) {
		r.Use(h.guard(ac.Protect()))
		r.Get("/me", h.GetMe)
		r.Patch("/updateMe", h.UpdateMe)
		if h.users.PhotosEnabled() {
			r.Patch("/updateMe/photo", h.UpdateMyPhoto)
		}
		r.Delete("/deleteMe", h.DeleteMe)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.guard(ac.Protect(), auth.RestrictTo(types.RoleAdmin)))
		r.Get("/", h.ListUsers)
		r.Get("/{userID}", h.GetUser)
		r.Delete("/{userID}", h.DeleteUser)
	})
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())
	user, err := h.users.Get(r.Context(), principal.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "user", user)
}

// UpdateMe changes name and email. Other fields in the body are ignored,
// except password fields which are rejected.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var body map[string]json.RawMessage
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, ok := body["password"]; ok {
		h.writeError(w, r, services.ErrPasswordUpdateNotAllowed)
		return
	}
	if _, ok := body["passwordConfirm"]; ok {
		h.writeError(w, r, services.ErrPasswordUpdateNotAllowed)
		return
	}

	var in services.ProfileInput
	for key, dst := range map[string]**string{"name": &in.Name, "email": &in.Email} {
		raw, ok := body[key]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			h.writeError(w, r, apperr.Validationf("Invalid input data. %s must be a string", key))
			return
		}
		*dst = &value
	}

	user, err := h.users.UpdateMe(r.Context(), principal.ID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "user", user)
}

// UpdateMyPhoto stores the multipart "photo" file as the user's picture.
// The content type is sniffed from the upload rather than trusted.
func (h *UserHandler) UpdateMyPhoto(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes+(1<<20))
	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		h.writeError(w, r, &apperr.Error{Kind: apperr.KindValidation, Message: "Invalid multipart form", Err: err})
		return
	}
	file, header, err := r.FormFile(formFieldPhoto)
	if err != nil {
		h.writeError(w, r, apperr.Validation("Please upload a photo"))
		return
	}
	defer file.Close()
	if header.Size > maxPhotoBytes {
		h.writeError(w, r, apperr.Validation("Photo is too large"))
		return
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		h.writeError(w, r, apperr.Internal("Could not read the upload", err))
		return
	}
	head = head[:n]
	contentType := http.DetectContentType(head)

	user, err := h.users.UpdatePhoto(r.Context(), principal.ID, io.MultiReader(bytes.NewReader(head), file), header.Size, contentType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "user", user)
}

// GetPhoto streams a user's uploaded photo.
func (h *UserHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rc, key, err := h.users.OpenPhoto(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer rc.Close()

	if contentType := mime.TypeByExtension(path.Ext(key)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("key", key).Msg("photo stream interrupted")
	}
}

// DeleteMe deactivates the caller's account.
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())
	if err := h.users.DeactivateMe(r.Context(), principal.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeNoContent(w)
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context(), apifeatures.Build(r.URL.Query()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, "users", users)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "user", user)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeNoContent(w)
}
