package services

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/natours/api/internal/apifeatures"
	"github.com/natours/api/internal/auth"
	"github.com/natours/api/internal/mailer"
	"github.com/natours/api/internal/storage"
	"github.com/natours/api/internal/store"
	"github.com/natours/api/types"
)

type fakeTours struct {
	tours   map[int64]types.Tour
	created []types.Tour
	err     error
}

func newFakeTours(tours ...types.Tour) *fakeTours {
	f := &fakeTours{tours: map[int64]types.Tour{}}
	for _, t := range tours {
		f.tours[t.ID] = t
	}
	return f
}

func (f *fakeTours) List(context.Context, apifeatures.Query) ([]types.Tour, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]types.Tour, 0, len(f.tours))
	for _, t := range f.tours {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTours) Get(_ context.Context, id int64) (types.Tour, error) {
	t, ok := f.tours[id]
	if !ok {
		return types.Tour{}, store.ErrNotFound
	}
	return t, nil
}

func (f *fakeTours) Create(_ context.Context, tour types.Tour) (types.Tour, error) {
	if f.err != nil {
		return types.Tour{}, f.err
	}
	tour.ID = int64(len(f.tours) + 1)
	f.tours[tour.ID] = tour
	f.created = append(f.created, tour)
	return tour, nil
}

func (f *fakeTours) CreateMany(ctx context.Context, tours []types.Tour) (int, error) {
	for _, t := range tours {
		if _, err := f.Create(ctx, t); err != nil {
			return 0, err
		}
	}
	return len(tours), nil
}

func (f *fakeTours) Update(_ context.Context, tour types.Tour) (types.Tour, error) {
	if _, ok := f.tours[tour.ID]; !ok {
		return types.Tour{}, store.ErrNotFound
	}
	tour.Version++
	f.tours[tour.ID] = tour
	return tour, nil
}

func (f *fakeTours) Delete(_ context.Context, id int64) error {
	if _, ok := f.tours[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.tours, id)
	return nil
}

func (f *fakeTours) DeleteAll(context.Context) (int64, error) {
	n := int64(len(f.tours))
	f.tours = map[int64]types.Tour{}
	return n, nil
}

func (f *fakeTours) Stats(context.Context, float64) ([]store.DifficultyStats, error) {
	return nil, nil
}

func (f *fakeTours) MonthlyPlan(context.Context, int) ([]store.MonthPlan, error) {
	return nil, nil
}

type fakeUsers struct {
	mu     sync.Mutex
	users  map[int64]types.User
	nextID int64
}

func newFakeUsers(users ...types.User) *fakeUsers {
	f := &fakeUsers{users: map[int64]types.User{}}
	for _, u := range users {
		u.Active = true
		f.users[u.ID] = u
		if u.ID > f.nextID {
			f.nextID = u.ID
		}
	}
	return f
}

func (f *fakeUsers) List(context.Context, apifeatures.Query) ([]types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.User
	for _, u := range f.users {
		if u.Active {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || !u.Active {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Active && strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUsers) Create(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.Email = strings.ToLower(user.Email)
	for _, u := range f.users {
		if u.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	f.nextID++
	user.ID = f.nextID
	user.Active = true
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id int64, name, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || !u.Active {
		return types.User{}, store.ErrNotFound
	}
	u.Name, u.Email = name, strings.ToLower(email)
	f.users[id] = u
	return u, nil
}

func (f *fakeUsers) UpdatePhoto(_ context.Context, id int64, photo string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || !u.Active {
		return types.User{}, store.ErrNotFound
	}
	u.Photo = photo
	f.users[id] = u
	return u, nil
}

func (f *fakeUsers) Deactivate(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || !u.Active {
		return store.ErrNotFound
	}
	u.Active = false
	f.users[id] = u
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

type prefixHasher struct{}

func (prefixHasher) HashPassword(plain string) (string, error) { return "hashed:" + plain, nil }

type fakePhotos struct {
	objects map[string]string
}

func (f *fakePhotos) PutUserPhoto(_ context.Context, userID int64, r io.Reader, _ int64, contentType string) (string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", storage.ErrUnsupportedType
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	key := storage.UserPhotoKey(userID, string(rune('a'+len(f.objects))), "png")
	f.objects[key] = string(data)
	return key, nil
}

func (f *fakePhotos) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func (f *fakePhotos) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

type fakeReviews struct {
	seen map[[2]int64]bool
	tour map[int64]bool
}

func (f *fakeReviews) List(context.Context, apifeatures.Query, int64) ([]types.Review, error) {
	return nil, nil
}

func (f *fakeReviews) Get(context.Context, int64) (types.Review, error) {
	return types.Review{}, store.ErrNotFound
}

func (f *fakeReviews) Create(_ context.Context, review types.Review) (types.Review, error) {
	if !f.tour[review.TourID] {
		return types.Review{}, store.ErrMissingReference
	}
	key := [2]int64{review.TourID, review.UserID}
	if f.seen[key] {
		return types.Review{}, store.ErrDuplicate
	}
	f.seen[key] = true
	review.ID = int64(len(f.seen))
	return review, nil
}

func (f *fakeReviews) Delete(context.Context, int64) error {
	return store.ErrNotFound
}

type fakeTokens struct {
	issued  []int64
	cleared []int64
}

func (f *fakeTokens) CreatePasswordResetToken(_ context.Context, p auth.Principal) (string, error) {
	f.issued = append(f.issued, p.ID)
	return "plain-token", nil
}

func (f *fakeTokens) ClearPasswordResetToken(_ context.Context, p auth.Principal) error {
	f.cleared = append(f.cleared, p.ID)
	return nil
}

type fakeMail struct {
	sent []mailer.Message
	fail error
}

func (f *fakeMail) Send(_ context.Context, msg mailer.Message) error {
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, msg)
	return nil
}
