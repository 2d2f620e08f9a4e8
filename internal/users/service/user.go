package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	userserrors "smartparking/internal/users/errors"
	"smartparking/internal/users/repository"
	"smartparking/internal/users/validator"
	"smartparking/pkg/config"
	apperrors "smartparking/pkg/errors"
	"smartparking/pkg/kafka"
	"smartparking/pkg/model"
	"smartparking/pkg/sanitizer"
	"smartparking/pkg/session"

	"go.mongodb.org/mongo-driver/mongo"
)

// BookingCanceller cancels a renter's active bookings. The bookings
// repository satisfies it; inside a transaction it receives the session
// context.
type BookingCanceller interface {
	CancelActiveByEmail(ctx context.Context, email string, at time.Time) (int64, error)
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context)
}

type LoginResult struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

type UserService interface {
	Signup(ctx context.Context, creds *model.Credentials) (*model.User, error)
	Login(ctx context.Context, creds *model.Credentials) (*LoginResult, error)
	List(ctx context.Context) ([]*model.User, error)
	Delete(ctx context.Context, id string) (int64, error)
}

type userService struct {
	repo      repository.UserRepository
	bookings  BookingCanceller
	board     CacheInvalidator
	validator *validator.UserValidator
	sessions  *session.Manager
	events    kafka.Publisher
	cfg       *config.Config
}

func NewUserService(
	repo repository.UserRepository,
	bookings BookingCanceller,
	board CacheInvalidator,
	validator *validator.UserValidator,
	sessions *session.Manager,
	events kafka.Publisher,
	cfg *config.Config,
) UserService {
	return &userService{
		repo:      repo,
		bookings:  bookings,
		board:     board,
		validator: validator,
		sessions:  sessions,
		events:    events,
		cfg:       cfg,
	}
}

func (s *userService) Signup(ctx context.Context, creds *model.Credentials) (*model.User, error) {
	sanitizeCredentials(creds)
	if details := s.validator.Validate(creds); details != nil {
		s.cfg.Log.Warn("Signup validation failed", "user_id", creds.ID, "details", details)
		return nil, apperrors.Validation("Invalid signup input", details)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), s.cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, apperrors.Validation("Invalid signup input", map[string]any{
				"password": "must be at most 72 bytes",
			})
		}
		return nil, apperrors.Internal("Server error", err)
	}

	user := &model.User{
		ID:       creds.ID,
		Email:    creds.Email,
		Password: string(hash),
		Role:     creds.Role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, userserrors.ErrUserExists) {
			return nil, apperrors.Conflict("User already exists")
		}
		s.cfg.Log.Error("Failed to create user", "user_id", creds.ID, "error", err)
		return nil, apperrors.Internal("Server error", err)
	}

	s.events.PublishEvent(ctx, kafka.EventUserRegistered, user.ID, map[string]any{
		"id":    user.ID,
		"email": user.Email,
		"role":  user.Role,
	})
	s.cfg.Log.Info("User registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// Login succeeds only when id, email, role and password all match the stored
// account. Every mismatch yields the same error.
func (s *userService) Login(ctx context.Context, creds *model.Credentials) (*LoginResult, error) {
	sanitizeCredentials(creds)
	if creds.ID == "" || creds.Email == "" || creds.Password == "" || creds.Role == "" {
		return nil, apperrors.InvalidCredentials()
	}

	user, err := s.repo.FindByID(ctx, creds.ID)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			s.cfg.Log.Info("Login rejected", "user_id", creds.ID, "reason", "unknown user")
			return nil, apperrors.InvalidCredentials()
		}
		s.cfg.Log.Error("Failed to load user", "user_id", creds.ID, "error", err)
		return nil, apperrors.Internal("Server error", err)
	}

	if user.Email != creds.Email || user.Role != creds.Role {
		s.cfg.Log.Info("Login rejected", "user_id", creds.ID, "reason", "identity mismatch")
		return nil, apperrors.InvalidCredentials()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)); err != nil {
		s.cfg.Log.Info("Login rejected", "user_id", creds.ID, "reason", "password mismatch")
		return nil, apperrors.InvalidCredentials()
	}

	token, expiresAt, err := s.sessions.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, apperrors.Internal("Server error", err)
	}

	s.cfg.Log.Info("User logged in", "user_id", user.ID, "role", user.Role)
	return &LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *userService) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.repo.FindAll(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to list users", "error", err)
		return nil, apperrors.Internal("Failed to retrieve users", err)
	}
	return users, nil
}

// Delete removes the account and cancels the renter's active bookings in one
// transaction. It returns how many bookings were cancelled.
func (s *userService) Delete(ctx context.Context, id string) (int64, error) {
	id = sanitizer.SanitizeUserID(id)
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			return 0, apperrors.NotFoundWithID("User", id)
		}
		s.cfg.Log.Error("Failed to load user", "user_id", id, "error", err)
		return 0, apperrors.Internal("Failed to delete user", err)
	}

	var cancelled int64
	err = s.repo.ExecuteTransaction(ctx, func(sc mongo.SessionContext) error {
		txCtx := context.Context(sc)
		if sc == nil {
			txCtx = ctx
		}

		removed, err := s.repo.Delete(txCtx, id)
		if err != nil {
			return err
		}
		if !removed {
			return apperrors.NotFoundWithID("User", id)
		}

		cancelled, err = s.bookings.CancelActiveByEmail(txCtx, user.Email, s.cfg.Now())
		return err
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return 0, err
		}
		s.cfg.Log.Error("Failed to delete user", "user_id", id, "error", err)
		return 0, apperrors.Internal("Failed to delete user", err)
	}

	if cancelled > 0 {
		s.board.Invalidate(ctx)
	}
	s.events.PublishEvent(ctx, kafka.EventUserDeleted, id, map[string]any{
		"id":        id,
		"email":     user.Email,
		"cancelled": cancelled,
	})
	s.cfg.Log.Info("User deleted", "user_id", id, "bookings_cancelled", cancelled)
	return cancelled, nil
}

func sanitizeCredentials(creds *model.Credentials) {
	creds.ID = sanitizer.SanitizeUserID(creds.ID)
	creds.Email = sanitizer.SanitizeEmail(creds.Email)
	creds.Role = sanitizer.SanitizeRole(creds.Role)
}
