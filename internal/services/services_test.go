package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/natours/api/internal/apifeatures"
	"github.com/natours/api/internal/apperr"
	"github.com/natours/api/internal/store"
	"github.com/natours/api/types"
)

func validTour() types.Tour {
	return types.Tour{
		Name:         "The Forest Hiker",
		Duration:     5,
		MaxGroupSize: 25,
		Difficulty:   types.DifficultyEasy,
		Price:        397,
		Summary:      "Breathtaking hike through the Canadian Banff National Park",
		ImageCover:   "tour-1-cover.jpg",
	}
}

func TestTourService_CreateAppliesDefaults(t *testing.T) {
	repo := newFakeTours()
	svc := NewTourService(repo)

	created, err := svc.Create(context.Background(), validTour())
	require.NoError(t, err)
	require.Equal(t, types.DefaultRatingsAverage, created.RatingsAverage)
}

func TestTourService_CreateValidates(t *testing.T) {
	svc := NewTourService(newFakeTours())

	tour := validTour()
	tour.PriceDiscount = 500
	_, err := svc.Create(context.Background(), tour)
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	require.Contains(t, err.Error(), "priceDiscount")

	tour = validTour()
	tour.Difficulty = "extreme"
	_, err = svc.Create(context.Background(), tour)
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	tour = validTour()
	tour.Name = "Short"
	_, err = svc.Create(context.Background(), tour)
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestTourService_CreateDuplicate(t *testing.T) {
	repo := newFakeTours()
	repo.err = store.ErrDuplicate
	_, err := NewTourService(repo).Create(context.Background(), validTour())
	require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestTourService_GetNotFound(t *testing.T) {
	_, err := NewTourService(newFakeTours()).Get(context.Background(), 1)
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestTourService_ListInvalidInput(t *testing.T) {
	repo := newFakeTours()
	repo.err = errors.Join(store.ErrInvalidInput, errors.New("pq: invalid input syntax"))
	_, err := NewTourService(repo).List(context.Background(), apifeaturesQuery())
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestTourService_UpdateKeepsImmutableFields(t *testing.T) {
	original := validTour()
	original.ID = 1
	original.Version = 2
	original.RatingsAverage = 4.8
	repo := newFakeTours(original)
	svc := NewTourService(repo)

	updated, err := svc.Update(context.Background(), 1, func(tour *types.Tour) error {
		tour.ID = 99
		tour.Version = 0
		tour.Price = 450
		return nil
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, updated.ID)
	require.Equal(t, 3, updated.Version)
	require.Equal(t, 450.0, updated.Price)
	require.Equal(t, 4.8, updated.RatingsAverage)
}

func TestTourService_UpdateRejectsInvalidResult(t *testing.T) {
	original := validTour()
	original.ID = 1
	repo := newFakeTours(original)

	_, err := NewTourService(repo).Update(context.Background(), 1, func(tour *types.Tour) error {
		tour.PriceDiscount = tour.Price + 1
		return nil
	})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	require.Equal(t, 0.0, repo.tours[1].PriceDiscount)
}

func TestTourService_ImportValidatesAll(t *testing.T) {
	repo := newFakeTours()
	bad := validTour()
	bad.Price = 0

	_, err := NewTourService(repo).Import(context.Background(), []types.Tour{validTour(), bad})
	require.Error(t, err)
	require.Empty(t, repo.created)
}

func TestTourService_MonthlyPlanYear(t *testing.T) {
	_, err := NewTourService(newFakeTours()).MonthlyPlan(context.Background(), 0)
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestUserService_SignupForcesUserRole(t *testing.T) {
	repo := newFakeUsers()
	svc := NewUserService(repo, prefixHasher{}, nil)

	user, err := svc.Signup(context.Background(), SignupInput{
		Name:            " Jonas ",
		Email:           "Jonas@Example.com",
		Password:        "pass1234",
		PasswordConfirm: "pass1234",
	})
	require.NoError(t, err)
	require.Equal(t, types.RoleUser, user.Role)
	require.Equal(t, "Jonas", user.Name)
	require.Equal(t, "hashed:pass1234", user.PasswordHash)
	require.Equal(t, types.DefaultPhoto, user.Photo)
}

func TestUserService_SignupValidation(t *testing.T) {
	svc := NewUserService(newFakeUsers(), prefixHasher{}, nil)

	_, err := svc.Signup(context.Background(), SignupInput{Name: "Jonas", Email: "jonas@example.com", Password: "pass1234", PasswordConfirm: "pass12345"})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Signup(context.Background(), SignupInput{Name: "Jonas", Email: "jonas@example.com", Password: "short", PasswordConfirm: "short"})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestUserService_SignupDuplicateEmail(t *testing.T) {
	repo := newFakeUsers(types.User{ID: 1, Email: "jonas@example.com"})
	svc := NewUserService(repo, prefixHasher{}, nil)

	_, err := svc.Signup(context.Background(), SignupInput{Name: "Jonas", Email: "jonas@example.com", Password: "pass1234", PasswordConfirm: "pass1234"})
	require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestUserService_UpdateMeKeepsAbsentFields(t *testing.T) {
	repo := newFakeUsers(types.User{ID: 1, Name: "Jonas", Email: "jonas@example.com"})
	svc := NewUserService(repo, prefixHasher{}, nil)

	name := "Jonas Schmedtmann"
	user, err := svc.UpdateMe(context.Background(), 1, ProfileInput{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Jonas Schmedtmann", user.Name)
	require.Equal(t, "jonas@example.com", user.Email)

	bad := "nope"
	_, err = svc.UpdateMe(context.Background(), 1, ProfileInput{Email: &bad})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	empty := "  "
	_, err = svc.UpdateMe(context.Background(), 1, ProfileInput{Name: &empty})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestUserService_DeactivateHidesUser(t *testing.T) {
	repo := newFakeUsers(types.User{ID: 1, Name: "Jonas", Email: "jonas@example.com"})
	svc := NewUserService(repo, prefixHasher{}, nil)

	require.NoError(t, svc.DeactivateMe(context.Background(), 1))
	_, err := svc.Get(context.Background(), 1)
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestUserService_UpdatePhotoReplacesPrevious(t *testing.T) {
	repo := newFakeUsers(types.User{ID: 1, Name: "Jonas", Email: "jonas@example.com", Photo: types.DefaultPhoto})
	photos := &fakePhotos{objects: map[string]string{}}
	svc := NewUserService(repo, prefixHasher{}, photos)
	require.True(t, svc.PhotosEnabled())

	first, err := svc.UpdatePhoto(context.Background(), 1, strings.NewReader("one"), 3, "image/png")
	require.NoError(t, err)
	require.Len(t, photos.objects, 1)

	second, err := svc.UpdatePhoto(context.Background(), 1, strings.NewReader("two"), 3, "image/png")
	require.NoError(t, err)
	require.NotEqual(t, first.Photo, second.Photo)
	require.Len(t, photos.objects, 1)

	rc, key, err := svc.OpenPhoto(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, second.Photo, key)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "two", string(data))

	_, err = svc.UpdatePhoto(context.Background(), 1, strings.NewReader("%PDF"), 4, "application/pdf")
	require.ErrorIs(t, err, ErrNotAnImage)
}

func TestUserService_PhotosDisabled(t *testing.T) {
	svc := NewUserService(newFakeUsers(types.User{ID: 1}), prefixHasher{}, nil)
	require.False(t, svc.PhotosEnabled())
	_, err := svc.UpdatePhoto(context.Background(), 1, strings.NewReader("x"), 1, "image/png")
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestReviewService_Create(t *testing.T) {
	repo := &fakeReviews{seen: map[[2]int64]bool{}, tour: map[int64]bool{2: true}}
	svc := NewReviewService(repo)

	review := types.Review{Review: " Loved it ", Rating: 5, TourID: 2, UserID: 7}
	created, err := svc.Create(context.Background(), review)
	require.NoError(t, err)
	require.Equal(t, "Loved it", created.Review)

	_, err = svc.Create(context.Background(), review)
	require.ErrorIs(t, err, ErrAlreadyReviewed)
	require.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	review.TourID = 3
	_, err = svc.Create(context.Background(), review)
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = svc.Create(context.Background(), types.Review{Review: "x", Rating: 6, TourID: 2, UserID: 8})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestAccountService_ForgotPassword(t *testing.T) {
	users := newFakeUsers(types.User{ID: 1, Name: "Jonas", Email: "jonas@example.com"})
	tokens := &fakeTokens{}
	mail := &fakeMail{}
	svc := NewAccountService(users, tokens, mail)

	require.NoError(t, svc.ForgotPassword(context.Background(), "jonas@example.com", "https://natours.dev/"))
	require.Equal(t, []int64{1}, tokens.issued)
	require.Empty(t, tokens.cleared)
	require.Len(t, mail.sent, 1)
	require.Equal(t, "jonas@example.com", mail.sent[0].To)
	require.Contains(t, mail.sent[0].Body, "https://natours.dev/api/v1/users/resetPassword/plain-token")
}

func TestAccountService_ForgotPasswordDeliveryFailureRevokesToken(t *testing.T) {
	users := newFakeUsers(types.User{ID: 1, Name: "Jonas", Email: "jonas@example.com"})
	tokens := &fakeTokens{}
	svc := NewAccountService(users, tokens, &fakeMail{fail: errors.New("smtp down")})

	err := svc.ForgotPassword(context.Background(), "jonas@example.com", "http://localhost:3000")
	require.ErrorIs(t, err, ErrResetDelivery)
	require.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	require.Equal(t, []int64{1}, tokens.cleared)
}

func TestAccountService_ForgotPasswordUnknownOrMissingEmail(t *testing.T) {
	svc := NewAccountService(newFakeUsers(), &fakeTokens{}, &fakeMail{})

	require.ErrorIs(t, svc.ForgotPassword(context.Background(), "", "http://x"), ErrEmailRequired)
	require.ErrorIs(t, svc.ForgotPassword(context.Background(), "ghost@example.com", "http://x"), ErrNoSuchEmail)
}

func apifeaturesQuery() apifeatures.Query {
	return apifeatures.Build(nil)
}
