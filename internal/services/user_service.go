package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"relay-chat/internal/domain/user"
	"relay-chat/internal/mirror"
	"relay-chat/internal/repository"
	relay_errors "relay-chat/pkg/errors"
	"relay-chat/pkg/logger"

	"go.uber.org/zap"
)

// Mirror receives a copy of every new account.
type Mirror interface {
	RegisterUser(ctx context.Context, reg mirror.Registration) error
}

type UserService struct {
	users         repository.UserRepository
	mirror        Mirror
	mirrorTimeout time.Duration
	log           *logger.Logger
	wg            sync.WaitGroup
	now           func() time.Time
}

func NewUserService(users repository.UserRepository, m Mirror, log *logger.Logger) *UserService {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &UserService{
		users:         users,
		mirror:        m,
		mirrorTimeout: 10 * time.Second,
		log:           log,
		now:           time.Now,
	}
}

type SignUpInput struct {
	UID       string
	FirstName string
	LastName  string
	Email     string
}

// SignUp writes the profile and registers the mirror record in the
// background. A failing mirror never fails sign-up.
func (s *UserService) SignUp(ctx context.Context, in SignUpInput) (user.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	if in.UID == "" || in.FirstName == "" || in.LastName == "" || in.Email == "" {
		return user.User{}, fmt.Errorf("sign up: %w", relay_errors.ErrInvalidInput)
	}

	u := user.User{
		UID:        in.UID,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Email:      in.Email,
		Username:   user.Username(in.FirstName, in.LastName),
		SignUpDate: s.now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return user.User{}, err
	}

	if s.mirror != nil {
		s.wg.Add(1)
		go s.registerMirror(context.WithoutCancel(ctx), u)
	}
	return u, nil
}

func (s *UserService) registerMirror(ctx context.Context, u user.User) {
	defer s.wg.Done()
	ctx, cancel := context.WithTimeout(ctx, s.mirrorTimeout)
	defer cancel()
	err := s.mirror.RegisterUser(ctx, mirror.Registration{
		UID:       u.UID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	})
	if err != nil {
		s.log.Ctx(ctx).Warn("mirror registration failed", zap.String("uid", u.UID), zap.Error(err))
	}
}

// Wait blocks until background mirror calls have finished.
func (s *UserService) Wait() {
	s.wg.Wait()
}

func (s *UserService) Get(ctx context.Context, uid string) (user.User, error) {
	return s.users.GetByID(ctx, uid)
}

// UpdateProfile applies patch. The stored username always matches the
// resulting first and last name.
func (s *UserService) UpdateProfile(ctx context.Context, uid string, patch user.Patch) (user.User, error) {
	if err := patch.Validate(); err != nil {
		return user.User{}, err
	}
	current, err := s.users.GetByID(ctx, uid)
	if err != nil {
		return user.User{}, err
	}
	if err := s.users.Update(ctx, uid, patch.Record(current)); err != nil {
		return user.User{}, err
	}
	return s.users.GetByID(ctx, uid)
}

func (s *UserService) RegisterPushToken(ctx context.Context, uid, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("push token: %w", relay_errors.ErrInvalidInput)
	}
	_, err := s.users.AddPushToken(ctx, uid, token)
	return err
}

// RemovePushToken unregisters one device. Other devices of the user keep
// their tokens.
func (s *UserService) RemovePushToken(ctx context.Context, uid, token string) error {
	_, err := s.users.RemovePushToken(ctx, uid, strings.TrimSpace(token))
	return err
}

func (s *UserService) Search(ctx context.Context, query string, limit int) ([]user.User, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	return s.users.Search(ctx, query, limit)
}

func (s *UserService) DeleteAccount(ctx context.Context, uid string) error {
	return s.users.Delete(ctx, uid)
}
