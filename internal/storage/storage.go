package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
	"user_service/internal/common"
	"user_service/internal/models"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
)

const usersTable = "users"

const userColumns = "id, email, password_hash, user_role, phone, address, birth, photo_url, created_at, updated_at"

// Storage is the user repository.
type Storage interface {
	FindByIdentifier(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	// Save inserts a user with a nil ID and updates any other.
	Save(ctx context.Context, user models.User) (models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error

	Close()
}

// pgxIface is satisfied by *pgxpool.Pool and by pgxmock pools.
type pgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

type PostgresStorage struct {
	db pgxIface
}

// NewPostgresStorage connects to DbURL, retrying the first ping with
// exponential backoff, and applies pending migrations.
func NewPostgresStorage(ctx context.Context, DbURL string, attempts uint64) (*PostgresStorage, error) {
	const op = "storage.NewPostgresStorage"

	pool, err := pgxpool.New(ctx, DbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	backoff := retry.WithMaxRetries(attempts, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return newPostgresStorage(pool), nil
}

func newPostgresStorage(db pgxIface) *PostgresStorage {
	return &PostgresStorage{
		db: db,
	}
}

func (p *PostgresStorage) FindByIdentifier(ctx context.Context, email string) (models.User, error) {
	const op = "storage.FindByIdentifier"

	query := fmt.Sprintf("SELECT %s FROM %s WHERE email=$1;", userColumns, usersTable)

	user, err := scanUser(p.db.QueryRow(ctx, query, email))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (p *PostgresStorage) FindByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	const op = "storage.FindByID"

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id=$1;", userColumns, usersTable)

	user, err := scanUser(p.db.QueryRow(ctx, query, id))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (p *PostgresStorage) List(ctx context.Context) ([]models.User, error) {
	const op = "storage.List"

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at;", userColumns, usersTable)

	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows): %w", op, err)
	}

	return users, nil
}

func (p *PostgresStorage) Save(ctx context.Context, user models.User) (models.User, error) {
	const op = "storage.Save"

	if user.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return models.User{}, fmt.Errorf("%s: %w", op, err)
		}
		user.ID = id

		query := fmt.Sprintf(`INSERT INTO %s(id, email, password_hash, user_role, phone, address, birth, photo_url)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at, updated_at;`, usersTable)

		err = p.db.QueryRow(ctx, query,
			user.ID, user.Email, user.PasswordHash, string(user.Role),
			user.Phone, user.Address, user.Birth, user.PhotoURL,
		).Scan(&user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			return models.User{}, fmt.Errorf("%s: %w", op, translate(err))
		}

		return user, nil
	}

	query := fmt.Sprintf(`UPDATE %s
	   SET email=$2, password_hash=$3, user_role=$4, phone=$5, address=$6, birth=$7, photo_url=$8, updated_at=now()
	 WHERE id=$1 RETURNING created_at, updated_at;`, usersTable)

	err := p.db.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, string(user.Role),
		user.Phone, user.Address, user.Birth, user.PhotoURL,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, translate(err))
	}

	return user, nil
}

func (p *PostgresStorage) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "storage.Delete"

	query := fmt.Sprintf("DELETE FROM %s WHERE id=$1;", usersTable)

	tag, err := p.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	}

	return nil
}

func (p *PostgresStorage) Close() {
	p.db.Close()
}

func scanUser(row pgx.Row) (models.User, error) {
	var (
		user models.User
		role string
	)

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.Phone,
		&user.Address,
		&user.Birth,
		&user.PhotoURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return models.User{}, translate(err)
	}
	user.Role = models.Role(role)

	return user, nil
}

// translate maps driver errors onto the repository sentinels.
func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return common.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("%w: %s", common.ErrConflict, pgErr.ConstraintName)
	}

	return err
}
