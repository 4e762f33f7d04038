package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sftmadness/api-module/internal/domain/model"
)

// UserRepository — CRUD для таблицы users.
type UserRepository interface {
	// Create вставляет нового пользователя. Заполняет ID и JoinDate.
	Create(ctx context.Context, u *model.User) error
	// GetByID возвращает пользователя по внутреннему id.
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// GetByCognitoID возвращает пользователя по sub из Identity Provider.
	GetByCognitoID(ctx context.Context, cognitoID string) (*model.User, error)
	// Update применяет частичное обновление внутри транзакции.
	// beforeCommit (может быть nil) вызывается с обновлённой записью до
	// коммита; его ошибка откатывает транзакцию.
	Update(ctx context.Context, id int64, upd model.UserUpdate, beforeCommit func(updated *model.User) error) (*model.User, error)
	// Delete удаляет пользователя и возвращает удалённую запись.
	Delete(ctx context.Context, id int64) (*model.User, error)
}

const userColumns = "id, email, role, company_name, phone_number, join_date, cognito_id"

// userRepo — реализация UserRepository поверх pgxpool.
type userRepo struct {
	db DBTX
	tx *TxRunner
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepo{db: pool, tx: NewTxRunner(pool)}
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (email, role, company_name, phone_number, cognito_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, join_date`

	err := r.db.QueryRow(ctx, query,
		u.Email, u.Role, u.CompanyName, u.PhoneNumber, u.CognitoID,
	).Scan(&u.ID, &u.JoinDate)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: пользователь с таким email уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *userRepo) GetByCognitoID(ctx context.Context, cognitoID string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE cognito_id = $1`
	return scanUser(r.db.QueryRow(ctx, query, cognitoID))
}

// Update строит UPDATE только по заданным полям и выполняет его в транзакции.
// Транзакция держится открытой до возврата beforeCommit: если синхронизация
// с внешней системой (например, смена email в Identity Provider) не удалась,
// локальное изменение откатывается.
func (r *userRepo) Update(ctx context.Context, id int64, upd model.UserUpdate, beforeCommit func(updated *model.User) error) (*model.User, error) {
	var sets []string
	var args []any
	args = append(args, id)
	argNum := 2

	if upd.Email != nil {
		sets = append(sets, fmt.Sprintf("email = $%d", argNum))
		args = append(args, *upd.Email)
		argNum++
	}
	if upd.Role != nil {
		sets = append(sets, fmt.Sprintf("role = $%d", argNum))
		args = append(args, *upd.Role)
		argNum++
	}
	if upd.CompanyName != nil {
		sets = append(sets, fmt.Sprintf("company_name = $%d", argNum))
		args = append(args, *upd.CompanyName)
		argNum++
	}
	if upd.PhoneNumber != nil {
		sets = append(sets, fmt.Sprintf("phone_number = $%d", argNum))
		args = append(args, *upd.PhoneNumber)
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $1 RETURNING %s`,
		strings.Join(sets, ", "), userColumns)

	var updated *model.User
	err := r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		u, err := scanUser(tx.QueryRow(ctx, query, args...))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: пользователь с таким email уже существует", ErrConflict)
			}
			return err
		}
		if beforeCommit != nil {
			if err := beforeCommit(u); err != nil {
				return err
			}
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *userRepo) Delete(ctx context.Context, id int64) (*model.User, error) {
	query := `DELETE FROM users WHERE id = $1 RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// scanUser сканирует одну строку users.
func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Email, &u.Role, &u.CompanyName, &u.PhoneNumber, &u.JoinDate, &u.CognitoID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения пользователя: %w", err)
	}
	return u, nil
}
