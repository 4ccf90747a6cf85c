package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/postpilot/internal/models"
)

type PostRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	GetByUserID(ctx context.Context, userID string) ([]*models.Post, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error)
	UpdatePublishState(ctx context.Context, post *models.Post) (bool, error)
	CheckByUserID(ctx context.Context, postID int64, userID string) (bool, error)
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, caption, hashtags, media_url, scheduled_at, timezone, status,
	target_platforms, published_platforms, platform_results, error_message, version,
	created_at, posted_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// textArray binds a nil slice as an empty array; the text[] columns are NOT NULL.
func textArray(values []string) interface{} {
	if values == nil {
		values = []string{}
	}
	return pq.Array(values)
}

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	err := row.Scan(
		&post.ID,
		&post.UserID,
		&post.Caption,
		pq.Array(&post.Hashtags),
		&post.MediaURL,
		&post.ScheduledAt,
		&post.Timezone,
		&post.Status,
		pq.Array(&post.TargetPlatforms),
		pq.Array(&post.PublishedPlatforms),
		&post.PlatformResults,
		&post.ErrorMessage,
		&post.Version,
		&post.CreatedAt,
		&post.PostedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, caption, hashtags, media_url, scheduled_at, timezone, status, target_platforms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	args := []interface{}{
		post.UserID,
		post.Caption,
		textArray(post.Hashtags),
		post.MediaURL,
		post.ScheduledAt,
		post.Timezone,
		post.Status,
		textArray(post.TargetPlatforms),
	}

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID string) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

// ListDue returns scheduled posts whose time has come, oldest first.
func (r *postRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE status = $1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2
		ORDER BY scheduled_at
		LIMIT $3`
	return r.list(ctx, query, models.PostStatusScheduled, now, limit)
}

func (r *postRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

// UpdatePublishState writes the publish outcome only if nobody else has
// written the row since post was read. It reports false on a version
// conflict; on success post.Version is advanced.
func (r *postRepository) UpdatePublishState(ctx context.Context, post *models.Post) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			target_platforms = $2,
			published_platforms = $3,
			platform_results = $4,
			error_message = $5,
			posted_at = $6,
			version = version + 1,
			updated_at = $7
		WHERE id = $8 AND version = $9
	`
	result, err := r.db.ExecContext(ctx, query,
		post.Status,
		textArray(post.TargetPlatforms),
		textArray(post.PublishedPlatforms),
		post.PlatformResults,
		post.ErrorMessage,
		post.PostedAt,
		time.Now(),
		post.ID,
		post.Version,
	)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	if affected != 1 {
		return false, nil
	}

	post.Version++
	return true, nil
}

func (r *postRepository) CheckByUserID(ctx context.Context, postID int64, userID string) (bool, error) {
	query := "SELECT 1 FROM posts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)

	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
