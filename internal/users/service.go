package users

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entrega-app/entrega-backend/pkg/cache"
	"github.com/entrega-app/entrega-backend/pkg/db/models"
	pkgerrors "github.com/entrega-app/entrega-backend/pkg/errors"
	"github.com/entrega-app/entrega-backend/pkg/logger"
)

type userRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ListActiveDrivers(ctx context.Context) ([]models.User, error)
}

// Service exposes read-through cached user lookups.
type Service struct {
	repo  userRepository
	cache *cache.Cache
	logg  *logger.Logger
}

func NewService(repo userRepository, cacheLayer *cache.Cache, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("users service requires a repository")
	}
	return &Service{repo: repo, cache: cacheLayer, logg: logg}, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	key := s.cache.UserKey(id)
	var cached models.User
	if s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	s.cache.SetJSON(ctx, key, user, s.cache.EntityTTL())
	return user, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	key := s.cache.UserEmailKey(email)
	var cached models.User
	if s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user by email")
	}
	s.cache.SetJSON(ctx, key, user, s.cache.EntityTTL())
	return user, nil
}

// ActiveDrivers lists active drivers. The listing is volatile, so it rides
// the short aggregate TTL rather than the entity tier.
func (s *Service) ActiveDrivers(ctx context.Context) ([]models.User, error) {
	key := s.cache.ActiveDriversKey()
	var cached []models.User
	if s.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	drivers, err := s.repo.ListActiveDrivers(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active drivers")
	}
	s.cache.SetJSON(ctx, key, drivers, s.cache.VolatileListTTL())
	return drivers, nil
}
