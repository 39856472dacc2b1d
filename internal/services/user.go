package services

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/natours/api/internal/apifeatures"
	"github.com/natours/api/internal/apperr"
	"github.com/natours/api/internal/logging"
	"github.com/natours/api/internal/storage"
	"github.com/natours/api/internal/validation"
	"github.com/natours/api/types"
)

const userNotFound = "No user found with that ID"

// UserRepository defines persistence operations for users.
type UserRepository interface {
	List(ctx context.Context, q apifeatures.Query) ([]types.User, error)
	GetByID(ctx context.Context, id int64) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateProfile(ctx context.Context, id int64, name, email string) (types.User, error)
	UpdatePhoto(ctx context.Context, id int64, photo string) (types.User, error)
	Deactivate(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

// PasswordHasher hashes new passwords.
type PasswordHasher interface {
	HashPassword(plain string) (string, error)
}

// PhotoStore keeps uploaded user photos.
type PhotoStore interface {
	PutUserPhoto(ctx context.Context, userID int64, r io.Reader, size int64, contentType string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo   UserRepository
	hasher PasswordHasher
	photos PhotoStore
}

// NewUserService builds the service. photos may be nil when no object
// storage is configured.
func NewUserService(repo UserRepository, hasher PasswordHasher, photos PhotoStore) *UserService {
	return &UserService{repo: repo, hasher: hasher, photos: photos}
}

// SignupInput is the self-registration payload.
type SignupInput struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// Signup creates an account with the user role, whatever the payload
// asks for.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (types.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.Struct(&in); err != nil {
		return types.User{}, err
	}

	hashed, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return types.User{}, err
	}
	user, err := s.repo.Create(ctx, types.User{
		Name:         in.Name,
		Email:        in.Email,
		Role:         types.RoleUser,
		Photo:        types.DefaultPhoto,
		PasswordHash: hashed,
	})
	return user, fromStore(err, userNotFound)
}

func (s *UserService) List(ctx context.Context, q apifeatures.Query) ([]types.User, error) {
	users, err := s.repo.List(ctx, q)
	return users, fromStore(err, userNotFound)
}

func (s *UserService) Get(ctx context.Context, id int64) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	return user, fromStore(err, userNotFound)
}

// ErrPasswordUpdateNotAllowed rejects password fields on profile updates.
var ErrPasswordUpdateNotAllowed = apperr.Validation("This route is not for password updates. Please use /updateMyPassword.")

// ProfileInput holds the fields a user may change about themselves.
// Absent fields keep their current value.
type ProfileInput struct {
	Name  *string `json:"name" validate:"omitnil,min=1"`
	Email *string `json:"email" validate:"omitnil,email"`
}

func (s *UserService) UpdateMe(ctx context.Context, id int64, in ProfileInput) (types.User, error) {
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		in.Name = &trimmed
	}
	if in.Email != nil {
		trimmed := strings.TrimSpace(*in.Email)
		in.Email = &trimmed
	}
	if err := validation.Struct(&in); err != nil {
		return types.User{}, err
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	name, email := current.Name, current.Email
	if in.Name != nil {
		name = *in.Name
	}
	if in.Email != nil {
		email = *in.Email
	}
	user, err := s.repo.UpdateProfile(ctx, id, name, email)
	return user, fromStore(err, userNotFound)
}

// PhotosEnabled reports whether photo uploads can be stored.
func (s *UserService) PhotosEnabled() bool {
	return s.photos != nil
}

var ErrNotAnImage = apperr.Validation("Not an image! Please upload only images.")

// UpdatePhoto stores a new photo and points the user at it. The previous
// uploaded photo, if any, is removed.
func (s *UserService) UpdatePhoto(ctx context.Context, id int64, r io.Reader, size int64, contentType string) (types.User, error) {
	if s.photos == nil {
		return types.User{}, apperr.NotFound("Photo uploads are not enabled")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	key, err := s.photos.PutUserPhoto(ctx, id, r, size, contentType)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) {
			return types.User{}, ErrNotAnImage
		}
		return types.User{}, apperr.Internal("Could not store the photo", err)
	}

	user, err := s.repo.UpdatePhoto(ctx, id, key)
	if err != nil {
		_ = s.photos.Delete(ctx, key)
		return types.User{}, fromStore(err, userNotFound)
	}

	if storage.IsUserPhotoKey(id, current.Photo) {
		if err := s.photos.Delete(ctx, current.Photo); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("key", current.Photo).Msg("failed to delete previous photo")
		}
	}
	return user, nil
}

// OpenPhoto streams a user's uploaded photo.
func (s *UserService) OpenPhoto(ctx context.Context, id int64) (io.ReadCloser, string, error) {
	if s.photos == nil {
		return nil, "", apperr.NotFound("Photo uploads are not enabled")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if !storage.IsUserPhotoKey(id, user.Photo) {
		return nil, "", apperr.NotFound("This user has no uploaded photo")
	}
	rc, err := s.photos.Get(ctx, user.Photo)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", apperr.NotFound("This user has no uploaded photo")
		}
		return nil, "", err
	}
	return rc, user.Photo, nil
}

// DeactivateMe hides the caller's account.
func (s *UserService) DeactivateMe(ctx context.Context, id int64) error {
	return fromStore(s.repo.Deactivate(ctx, id), userNotFound)
}

func (s *UserService) Delete(ctx context.Context, id int64) error {
	return fromStore(s.repo.Delete(ctx, id), userNotFound)
}
