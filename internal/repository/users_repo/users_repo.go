package users_repo

import (
	"context"
	"database/sql"
	"fmt"

	"bank/internal/domain"

	"github.com/lib/pq"
)

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *userRepository {
	return &userRepository{db: db}
}

func (r *userRepository) CreateUserTx(ctx context.Context, querier domain.Querier, user *domain.User) error {
	query := `
		INSERT INTO users (id, username, password_hash, name, role, activated, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := querier.ExecContext(ctx, query,
		user.ID, user.Username, user.PasswordHash, user.Name, user.Role, user.Activated,
		user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("failed to create user %s: %w", user.Username, err)
	}
	return nil
}

// userWithAccountQuery выбирает пользователя вместе с его счетом (LEFT JOIN:
// у менеджеров счета нет).
const userWithAccountQuery = `
	SELECT u.id, u.username, u.password_hash, u.name, u.role, u.activated, u.created_at, u.updated_at,
	       a.id, a.user_id, a.balance, a.created_at, a.updated_at
	FROM users u
	LEFT JOIN accounts a ON a.user_id = u.id
`

func (r *userRepository) GetUserByIDTx(ctx context.Context, querier domain.Querier, userID string) (*domain.User, error) {
	row := querier.QueryRowContext(ctx, userWithAccountQuery+` WHERE u.id = $1`, userID)
	user, err := scanUserWithAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	return user, nil
}

func (r *userRepository) GetUserByUsernameTx(ctx context.Context, querier domain.Querier, username string) (*domain.User, error) {
	row := querier.QueryRowContext(ctx, userWithAccountQuery+` WHERE u.username = $1`, username)
	user, err := scanUserWithAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by username %s: %w", username, err)
	}
	return user, nil
}

func (r *userRepository) GetUserByAccountIDTx(ctx context.Context, querier domain.Querier, accountID string) (*domain.User, error) {
	row := querier.QueryRowContext(ctx, userWithAccountQuery+` WHERE a.id = $1`, accountID)
	user, err := scanUserWithAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get user by account %s: %w", accountID, err)
	}
	return user, nil
}

func scanUserWithAccount(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	var accID, accUserID sql.NullString
	var accBalance sql.NullInt64
	var accCreatedAt, accUpdatedAt sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Name,
		&user.Role,
		&user.Activated,
		&user.CreatedAt,
		&user.UpdatedAt,
		&accID,
		&accUserID,
		&accBalance,
		&accCreatedAt,
		&accUpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if accID.Valid {
		user.Account = &domain.Account{
			ID:        accID.String,
			UserID:    accUserID.String,
			Balance:   accBalance.Int64,
			CreatedAt: accCreatedAt.Time,
			UpdatedAt: accUpdatedAt.Time,
		}
	}
	return user, nil
}
