// internal/directory/postgres.go
package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"intake-engine/internal/common/logger"
	"intake-engine/internal/models"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

const (
	userCacheTTL = 5 * time.Minute

	allUsersCacheKey = "directory:users"
	userCacheKeyStub = "directory:user:"
	userQueryColumns = "name, email, role, practices"
	allUsersQuery    = "SELECT " + userQueryColumns + " FROM users"
	userByEmailQuery = "SELECT " + userQueryColumns + " FROM users WHERE LOWER(email) = LOWER($1)"
)

// PostgresDirectory reads directory users from Postgres through a Redis
// cache-aside layer. Cache failures degrade to direct reads.
type PostgresDirectory struct {
	db     *sql.DB
	redis  *redis.Client
	logger logger.Logger
}

func NewPostgresDirectory(db *sql.DB, redisClient *redis.Client, log logger.Logger) *PostgresDirectory {
	return &PostgresDirectory{
		db:     db,
		redis:  redisClient,
		logger: log,
	}
}

func (d *PostgresDirectory) GetAllUsers(ctx context.Context) ([]models.User, error) {
	if d.redis != nil {
		if cached, err := d.redis.Get(ctx, allUsersCacheKey).Result(); err == nil {
			var users []models.User
			if err := json.Unmarshal([]byte(cached), &users); err == nil {
				return users, nil
			}
		}
	}

	rows, err := d.db.QueryContext(ctx, allUsersQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.Name, &u.Email, &u.Role, pq.Array(&u.Practices)); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user scan failed: %w", err)
	}

	d.cache(ctx, allUsersCacheKey, users)
	return users, nil
}

func (d *PostgresDirectory) GetUser(ctx context.Context, email string) (*models.User, error) {
	key := userCacheKeyStub + strings.ToLower(email)
	if d.redis != nil {
		if cached, err := d.redis.Get(ctx, key).Result(); err == nil {
			var u models.User
			if err := json.Unmarshal([]byte(cached), &u); err == nil {
				return &u, nil
			}
		}
	}

	var u models.User
	err := d.db.QueryRowContext(ctx, userByEmailQuery, email).
		Scan(&u.Name, &u.Email, &u.Role, pq.Array(&u.Practices))
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	d.cache(ctx, key, u)
	return &u, nil
}

func (d *PostgresDirectory) cache(ctx context.Context, key string, value interface{}) {
	if d.redis == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := d.redis.Set(ctx, key, payload, userCacheTTL).Err(); err != nil {
		d.logger.Warn("directory cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
