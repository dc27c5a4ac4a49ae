package service

import (
	"context"

	"fieldbook/internal/domain"
	"fieldbook/internal/models"

	"github.com/rs/zerolog"
)

type UserService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewUserService(repo domain.Repository, logger *zerolog.Logger) *UserService {
	return &UserService{repo: repo, logger: logger}
}

// EnsureUser регистрирует пользователя или обновляет контактные данные.
// Баллы при этом не трогаются.
func (s *UserService) EnsureUser(ctx context.Context, user *models.User) error {
	return s.repo.EnsureUser(ctx, user)
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *UserService) AddPoints(ctx context.Context, userID, delta int64) error {
	return s.repo.AddUserPoints(ctx, userID, delta)
}

func (s *UserService) GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error) {
	return s.repo.GetUserBookings(ctx, userID)
}
