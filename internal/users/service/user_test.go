package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	userserrors "smartparking/internal/users/errors"
	"smartparking/internal/users/validator"
	"smartparking/pkg/config"
	mongotx "smartparking/pkg/db/mongo"
	apperrors "smartparking/pkg/errors"
	"smartparking/pkg/kafka"
	"smartparking/pkg/logger"
	"smartparking/pkg/model"
	"smartparking/pkg/session"
)

// Mock repository for testing
type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]*model.User

	deleteErr error
	txCalls   int
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: map[string]*model.User{}}
}

func (m *mockUserRepository) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.ID == user.ID || u.Email == user.Email {
			return userserrors.ErrUserExists
		}
	}
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepository) FindByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, userserrors.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *mockUserRepository) FindAll(_ context.Context) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *mockUserRepository) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleteErr != nil {
		return false, m.deleteErr
	}
	if _, ok := m.users[id]; !ok {
		return false, nil
	}
	delete(m.users, id)
	return true, nil
}

func (m *mockUserRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	m.txCalls++
	return fn(nil)
}

type mockCanceller struct {
	emails []string
	count  int64
	err    error
}

func (m *mockCanceller) CancelActiveByEmail(_ context.Context, email string, _ time.Time) (int64, error) {
	m.emails = append(m.emails, email)
	return m.count, m.err
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate(context.Context) { c.n++ }

type userFixture struct {
	svc       UserService
	repo      *mockUserRepository
	canceller *mockCanceller
	board     *countingInvalidator
	events    *kafka.RecordingPublisher
	sessions  *session.Manager
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()

	log := logger.Discard()
	cfg := &config.Config{
		BcryptCost: bcrypt.MinCost,
		Location:   time.UTC,
		Log:        log,
	}
	f := &userFixture{
		repo:      newMockUserRepository(),
		canceller: &mockCanceller{},
		board:     &countingInvalidator{},
		events:    &kafka.RecordingPublisher{},
		sessions:  session.NewManager("unit-test-secret-value", time.Hour),
	}
	f.svc = NewUserService(f.repo, f.canceller, f.board, validator.NewUserValidator(log), f.sessions, f.events, cfg)
	return f
}

func creds(id, email, password, role string) *model.Credentials {
	return &model.Credentials{ID: id, Email: email, Password: password, Role: role}
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T", err)
	assert.Equal(t, status, appErr.StatusCode())
}

func TestSignup(t *testing.T) {
	f := newUserFixture(t)

	user, err := f.svc.Signup(context.Background(), creds(" ann01 ", "Ann@Example.com", "secret", "user"))
	require.NoError(t, err)
	assert.Equal(t, "ann01", user.ID)
	assert.Equal(t, "ann@example.com", user.Email)
	assert.NotEqual(t, "secret", user.Password, "password is stored hashed")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("secret")))
	assert.Equal(t, []string{kafka.EventUserRegistered}, f.events.Types())

	t.Run("duplicate id", func(t *testing.T) {
		_, err := f.svc.Signup(context.Background(), creds("ann01", "other@example.com", "secret", "user"))
		requireStatus(t, err, http.StatusConflict)
	})

	t.Run("duplicate email in another case", func(t *testing.T) {
		_, err := f.svc.Signup(context.Background(), creds("ann02", "ANN@example.com", "secret", "user"))
		requireStatus(t, err, http.StatusConflict)
	})

	t.Run("invalid payload", func(t *testing.T) {
		_, err := f.svc.Signup(context.Background(), creds("", "nope", "x", "owner"))
		requireStatus(t, err, http.StatusBadRequest)
	})
}

func TestLogin(t *testing.T) {
	f := newUserFixture(t)
	_, err := f.svc.Signup(context.Background(), creds("ann01", "ann@example.com", "secret", "user"))
	require.NoError(t, err)

	t.Run("all four match", func(t *testing.T) {
		result, err := f.svc.Login(context.Background(), creds("ann01", "ANN@example.com", "secret", "user"))
		require.NoError(t, err)
		assert.Equal(t, "ann01", result.User.ID)

		claims, err := f.sessions.Parse(result.Token)
		require.NoError(t, err)
		assert.Equal(t, "ann@example.com", claims.Email)
		assert.Equal(t, session.RoleUser, claims.Role)
	})

	mismatches := []struct {
		name  string
		creds *model.Credentials
	}{
		{"unknown id", creds("nobody", "ann@example.com", "secret", "user")},
		{"wrong email", creds("ann01", "bob@example.com", "secret", "user")},
		{"wrong password", creds("ann01", "ann@example.com", "wrong", "user")},
		{"wrong role", creds("ann01", "ann@example.com", "secret", "admin")},
		{"empty password", creds("ann01", "ann@example.com", "", "user")},
	}
	for _, tt := range mismatches {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Login(context.Background(), tt.creds)
			requireStatus(t, err, http.StatusUnauthorized)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidCredentials))
		})
	}
}

func TestDelete(t *testing.T) {
	f := newUserFixture(t)
	_, err := f.svc.Signup(context.Background(), creds("ann01", "ann@example.com", "secret", "user"))
	require.NoError(t, err)
	f.canceller.count = 2

	cancelled, err := f.svc.Delete(context.Background(), "ann01")
	require.NoError(t, err)

	assert.EqualValues(t, 2, cancelled)
	assert.Equal(t, []string{"ann@example.com"}, f.canceller.emails)
	assert.Equal(t, 1, f.repo.txCalls)
	assert.Equal(t, 1, f.board.n)
	assert.Contains(t, f.events.Types(), kafka.EventUserDeleted)

	_, err = f.repo.FindByID(context.Background(), "ann01")
	assert.ErrorIs(t, err, userserrors.ErrNotFound)

	t.Run("unknown user", func(t *testing.T) {
		_, err := f.svc.Delete(context.Background(), "ghost")
		requireStatus(t, err, http.StatusNotFound)
	})
}

func TestDelete_CancelFailureIsInternal(t *testing.T) {
	f := newUserFixture(t)
	_, err := f.svc.Signup(context.Background(), creds("ann01", "ann@example.com", "secret", "user"))
	require.NoError(t, err)
	f.canceller.err = errors.New("write conflict")

	_, err = f.svc.Delete(context.Background(), "ann01")
	requireStatus(t, err, http.StatusInternalServerError)
	assert.Equal(t, 0, f.board.n)
}
