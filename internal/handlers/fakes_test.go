package handlers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/natours/api/internal/apifeatures"
	"github.com/natours/api/internal/mailer"
	"github.com/natours/api/internal/store"
	"github.com/natours/api/types"
)

// memoryDB backs every repository the handlers reach, plus auth.UserStore.
type memoryDB struct {
	mu        sync.Mutex
	users     map[int64]types.User
	tours     map[int64]types.Tour
	reviews   map[int64]types.Review
	nextID    int64
	lastQuery apifeatures.Query
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		users:   map[int64]types.User{},
		tours:   map[int64]types.Tour{},
		reviews: map[int64]types.Review{},
	}
}

func (m *memoryDB) id() int64 {
	m.nextID++
	return m.nextID
}

type memoryUsers struct{ *memoryDB }

func (m memoryUsers) List(_ context.Context, q apifeatures.Query) ([]types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = q
	var out []types.User
	for _, u := range m.users {
		if u.Active {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m memoryUsers) GetByID(_ context.Context, id int64) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || !u.Active {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m memoryUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Active && strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m memoryUsers) GetByResetTokenHash(_ context.Context, hash string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Active && hash != "" && u.PasswordResetToken == hash {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m memoryUsers) Create(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.Email = strings.ToLower(user.Email)
	for _, u := range m.users {
		if u.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = m.id()
	user.Active = true
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return user, nil
}

func (m memoryUsers) update(id int64, apply func(*types.User)) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || !u.Active {
		return types.User{}, store.ErrNotFound
	}
	apply(&u)
	m.users[id] = u
	return u, nil
}

func (m memoryUsers) UpdateProfile(_ context.Context, id int64, name, email string) (types.User, error) {
	return m.update(id, func(u *types.User) { u.Name, u.Email = name, strings.ToLower(email) })
}

func (m memoryUsers) UpdatePhoto(_ context.Context, id int64, photo string) (types.User, error) {
	return m.update(id, func(u *types.User) { u.Photo = photo })
}

func (m memoryUsers) SetPasswordResetToken(_ context.Context, id int64, hash string, expires time.Time) error {
	_, err := m.update(id, func(u *types.User) {
		u.PasswordResetToken = hash
		u.PasswordResetExpires = &expires
	})
	return err
}

func (m memoryUsers) ClearPasswordResetToken(_ context.Context, id int64) error {
	_, err := m.update(id, func(u *types.User) {
		u.PasswordResetToken = ""
		u.PasswordResetExpires = nil
	})
	return err
}

func (m memoryUsers) UpdatePassword(_ context.Context, id int64, passwordHash string, changedAt time.Time) error {
	_, err := m.update(id, func(u *types.User) {
		u.PasswordHash = passwordHash
		u.PasswordChangedAt = &changedAt
		u.PasswordResetToken = ""
		u.PasswordResetExpires = nil
	})
	return err
}

func (m memoryUsers) ResetPassword(_ context.Context, id int64, tokenHash, passwordHash string, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || !u.Active || u.PasswordResetToken != tokenHash ||
		u.PasswordResetExpires == nil || !u.PasswordResetExpires.After(changedAt) {
		return store.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.PasswordChangedAt = &changedAt
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	m.users[id] = u
	return nil
}

func (m memoryUsers) Deactivate(_ context.Context, id int64) error {
	_, err := m.update(id, func(u *types.User) { u.Active = false })
	return err
}

func (m memoryUsers) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

type memoryTours struct{ *memoryDB }

func (m memoryTours) List(_ context.Context, q apifeatures.Query) ([]types.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = q
	out := make([]types.Tour, 0, len(m.tours))
	for _, t := range m.tours {
		out = append(out, t)
	}
	return out, nil
}

func (m memoryTours) Get(_ context.Context, id int64) (types.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tours[id]
	if !ok {
		return types.Tour{}, store.ErrNotFound
	}
	return t, nil
}

func (m memoryTours) Create(_ context.Context, tour types.Tour) (types.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tours {
		if t.Name == tour.Name {
			return types.Tour{}, store.ErrDuplicate
		}
	}
	tour.ID = m.id()
	m.tours[tour.ID] = tour
	return tour, nil
}

func (m memoryTours) CreateMany(ctx context.Context, tours []types.Tour) (int, error) {
	for _, t := range tours {
		if _, err := m.Create(ctx, t); err != nil {
			return 0, err
		}
	}
	return len(tours), nil
}

func (m memoryTours) Update(_ context.Context, tour types.Tour) (types.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tours[tour.ID]; !ok {
		return types.Tour{}, store.ErrNotFound
	}
	tour.Version++
	m.tours[tour.ID] = tour
	return tour, nil
}

func (m memoryTours) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tours[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.tours, id)
	return nil
}

func (m memoryTours) DeleteAll(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.tours))
	m.tours = map[int64]types.Tour{}
	return n, nil
}

func (m memoryTours) Stats(context.Context, float64) ([]store.DifficultyStats, error) {
	return []store.DifficultyStats{{Difficulty: types.DifficultyEasy, NumTours: 1}}, nil
}

func (m memoryTours) MonthlyPlan(context.Context, int) ([]store.MonthPlan, error) {
	return []store.MonthPlan{{Month: 7, NumTourStarts: 1, Tours: []string{"The Forest Hiker"}}}, nil
}

type memoryReviews struct{ *memoryDB }

func (m memoryReviews) List(_ context.Context, _ apifeatures.Query, tourID int64) ([]types.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Review
	for _, r := range m.reviews {
		if tourID == 0 || r.TourID == tourID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m memoryReviews) Get(_ context.Context, id int64) (types.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[id]
	if !ok {
		return types.Review{}, store.ErrNotFound
	}
	return r, nil
}

func (m memoryReviews) Create(_ context.Context, review types.Review) (types.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tours[review.TourID]; !ok {
		return types.Review{}, store.ErrMissingReference
	}
	for _, r := range m.reviews {
		if r.TourID == review.TourID && r.UserID == review.UserID {
			return types.Review{}, store.ErrDuplicate
		}
	}
	review.ID = m.id()
	m.reviews[review.ID] = review
	return review, nil
}

func (m memoryReviews) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reviews[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.reviews, id)
	return nil
}

type plainHasher struct{}

func (plainHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }

func (plainHasher) Compare(plain, hash string) bool { return hash == "hashed:"+plain }

type outbox struct {
	mu   sync.Mutex
	sent []mailer.Message
	fail error
}

func (o *outbox) Send(_ context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return o.fail
	}
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) last() mailer.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sent[len(o.sent)-1]
}
