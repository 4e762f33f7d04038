// users.go — сервис управления пользователями api-module.
// Оркестрирует репозиторий и Identity Provider:
//   - регистрация: сначала Identity Provider, затем БД;
//   - смена email: БД-транзакция держится открытой до успешной
//     синхронизации с Identity Provider, иначе откат;
//   - удаление: сначала БД, затем best-effort удаление из Identity Provider.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sftmadness/api-module/internal/cognito"
	"github.com/sftmadness/api-module/internal/domain/model"
	"github.com/sftmadness/api-module/internal/repository"
)

// IdentityProvider — операции с учётными записями во внешнем
// Identity Provider. Реализуется cognito.Client.
type IdentityProvider interface {
	CreateUser(ctx context.Context, email, password string) (string, error)
	UpdateEmail(ctx context.Context, username, newEmail string) error
	DeleteUser(ctx context.Context, username string) error
}

// RegisterInput — входные данные регистрации.
type RegisterInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	CompanyName string `json:"companyName"`
	PhoneNumber string `json:"phoneNumber"`
}

// UserService — сервис управления пользователями.
type UserService struct {
	users  repository.UserRepository
	idp    IdentityProvider
	logger *slog.Logger
}

// NewUserService создаёт сервис пользователей.
func NewUserService(users repository.UserRepository, idp IdentityProvider, logger *slog.Logger) *UserService {
	return &UserService{
		users:  users,
		idp:    idp,
		logger: logger.With(slog.String("component", "user_service")),
	}
}

// Register регистрирует нового пользователя: создаёт учётную запись
// в Identity Provider, затем запись в БД. Если запись в БД не удалась,
// учётная запись в Identity Provider остаётся (осиротевшая учётная
// запись; компенсация не выполняется).
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: требуется корректный email", ErrValidation)
	}
	if in.Password == "" {
		return nil, fmt.Errorf("%w: требуется пароль", ErrValidation)
	}

	role := in.Role
	if role == "" {
		role = model.RoleCustomer
	}
	if !model.ValidRole(role) {
		return nil, fmt.Errorf("%w: недопустимая роль %q", ErrValidation, in.Role)
	}

	sub, err := s.idp.CreateUser(ctx, email, in.Password)
	if err != nil {
		if errors.Is(err, cognito.ErrUserExists) {
			return nil, fmt.Errorf("%w: пользователь с таким email уже зарегистрирован", ErrConflict)
		}
		return nil, fmt.Errorf("ошибка регистрации в Identity Provider: %w", err)
	}

	user := &model.User{
		Email:       email,
		Role:        role,
		CompanyName: in.CompanyName,
		PhoneNumber: in.PhoneNumber,
		CognitoID:   sub,
	}

	if err := s.users.Create(ctx, user); err != nil {
		// Учётная запись в Identity Provider уже создана и останется
		s.logger.Warn("Запись в БД не создана, учётная запись в Identity Provider осиротела",
			slog.String("email", email),
			slog.String("sub", sub),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: пользователь с таким email уже зарегистрирован", ErrConflict)
		}
		return nil, err
	}

	s.logger.Info("Пользователь зарегистрирован",
		slog.Int64("user_id", user.ID),
		slog.String("role", user.Role),
	)

	return user, nil
}

// Get возвращает пользователя по id.
// Доступ: сам пользователь или admin; чужой пользователь — ErrNotFound.
func (s *UserService) Get(ctx context.Context, requester *model.User, userID int64) (*model.User, error) {
	if !canAccessUser(requester, userID) {
		return nil, ErrNotFound
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// Update применяет частичное обновление пользователя.
// Смена роли разрешена только admin и только для чужой учётной записи.
// Смена email синхронизируется с Identity Provider внутри транзакции:
// сбой синхронизации откатывает локальное изменение.
func (s *UserService) Update(ctx context.Context, requester *model.User, userID int64, upd model.UserUpdate) (*model.User, error) {
	if !canAccessUser(requester, userID) {
		return nil, ErrNotFound
	}

	if upd.Role != nil {
		if requester.Role != model.RoleAdmin {
			return nil, fmt.Errorf("%w: смена роли доступна только администратору", ErrForbidden)
		}
		if requester.ID == userID {
			return nil, fmt.Errorf("%w: нельзя менять собственную роль", ErrForbidden)
		}
		if !model.ValidRole(*upd.Role) {
			return nil, fmt.Errorf("%w: недопустимая роль %q", ErrValidation, *upd.Role)
		}
	}

	if upd.Email != nil {
		email := strings.TrimSpace(*upd.Email)
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: требуется корректный email", ErrValidation)
		}
		upd.Email = &email
	}

	current, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	// Синхронизация email с Identity Provider до коммита транзакции
	var beforeCommit func(*model.User) error
	if upd.Email != nil && *upd.Email != current.Email {
		beforeCommit = func(updated *model.User) error {
			if err := s.idp.UpdateEmail(ctx, updated.CognitoID, updated.Email); err != nil {
				return fmt.Errorf("ошибка обновления email в Identity Provider: %w", err)
			}
			return nil
		}
	}

	updated, err := s.users.Update(ctx, userID, upd, beforeCommit)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, repository.ErrConflict):
			return nil, fmt.Errorf("%w: пользователь с таким email уже существует", ErrConflict)
		}
		return nil, err
	}

	s.logger.Info("Пользователь обновлён",
		slog.Int64("user_id", updated.ID),
	)

	return updated, nil
}

// Delete удаляет пользователя: сначала запись из БД (каскадно удаляя
// записи о файлах), затем best-effort удаление из Identity Provider.
// Сбой удаления из Identity Provider логируется, но не считается ошибкой.
func (s *UserService) Delete(ctx context.Context, requester *model.User, userID int64) error {
	if !canAccessUser(requester, userID) {
		return ErrNotFound
	}

	deleted, err := s.users.Delete(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.idp.DeleteUser(ctx, deleted.CognitoID); err != nil && !errors.Is(err, cognito.ErrUserNotFound) {
		s.logger.Warn("Учётная запись не удалена из Identity Provider",
			slog.Int64("user_id", userID),
			slog.String("sub", deleted.CognitoID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("Пользователь удалён",
		slog.Int64("user_id", userID),
	)

	return nil
}

// ResolveBySubject находит пользователя по sub из JWT.
func (s *UserService) ResolveBySubject(ctx context.Context, subject string) (*model.User, error) {
	user, err := s.users.GetByCognitoID(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// canAccessUser — доступ к записи пользователя: сам или admin.
func canAccessUser(requester *model.User, userID int64) bool {
	if requester == nil {
		return false
	}
	return requester.ID == userID || requester.Role == model.RoleAdmin
}
