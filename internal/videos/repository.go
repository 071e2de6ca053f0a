package videos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clipstack/backend/internal/models"
)

// ErrVideoNotFound means no video row matched within the organization.
var ErrVideoNotFound = errors.New("video not found")

// Repository handles video persistence. Every query is scoped by
// organization ID; there is no unscoped lookup.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a videos repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const videoCols = `id, organization_id, user_id, title, description, object_key,
	content_type, size_bytes, visibility, status, created_at, updated_at`

func scanVideo(row pgx.Row) (*models.Video, error) {
	var v models.Video
	var visibility, status string
	err := row.Scan(&v.ID, &v.OrganizationID, &v.UserID, &v.Title, &v.Description, &v.ObjectKey,
		&v.ContentType, &v.SizeBytes, &visibility, &status, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	v.Visibility = models.VideoVisibility(visibility)
	v.Status = models.VideoStatus(status)
	return &v, nil
}

// Create inserts a video row. The caller assigns the ID up front so the
// object key can embed it before the row exists.
func (r *Repository) Create(ctx context.Context, v *models.Video) error {
	const q = `INSERT INTO videos
		(id, organization_id, user_id, title, description, object_key, content_type, size_bytes, visibility, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, q, v.ID, v.OrganizationID, v.UserID, v.Title, v.Description,
		v.ObjectKey, v.ContentType, v.SizeBytes, string(v.Visibility), string(v.Status)).
		Scan(&v.CreatedAt, &v.UpdatedAt)
}

// GetByID returns a video within the organization, or (nil, nil) if no such
// video exists there. A video in another organization is indistinguishable
// from a missing one.
func (r *Repository) GetByID(ctx context.Context, orgID, videoID uuid.UUID) (*models.Video, error) {
	const q = `SELECT ` + videoCols + ` FROM videos WHERE organization_id = $1 AND id = $2`
	v, err := scanVideo(r.pool.QueryRow(ctx, q, orgID, videoID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ListByOwner returns a member's own videos in the organization, newest first.
func (r *Repository) ListByOwner(ctx context.Context, orgID, userID uuid.UUID) ([]models.Video, error) {
	const q = `SELECT ` + videoCols + ` FROM videos
		WHERE organization_id = $1 AND user_id = $2
		ORDER BY created_at DESC`
	return r.list(ctx, q, orgID, userID)
}

// ListByOrganization returns every video in the organization, newest first.
func (r *Repository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Video, error) {
	const q = `SELECT ` + videoCols + ` FROM videos
		WHERE organization_id = $1
		ORDER BY created_at DESC`
	return r.list(ctx, q, orgID)
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]models.Video, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *v)
	}
	return list, rows.Err()
}

// UpdateStatusSize records the outcome of an upload within the organization.
func (r *Repository) UpdateStatusSize(ctx context.Context, orgID, videoID uuid.UUID, status models.VideoStatus, sizeBytes int64) error {
	const q = `UPDATE videos SET status = $3, size_bytes = $4, updated_at = NOW()
		WHERE organization_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, q, orgID, videoID, string(status), sizeBytes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVideoNotFound
	}
	return nil
}

// Delete removes a video row within the organization.
func (r *Repository) Delete(ctx context.Context, orgID, videoID uuid.UUID) error {
	const q = `DELETE FROM videos WHERE organization_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, q, orgID, videoID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVideoNotFound
	}
	return nil
}

// Stats summarizes an organization's video usage for quota checks and the
// stats endpoint.
type Stats struct {
	TotalVideos    int64 `json:"total_videos"`
	ReadyVideos    int64 `json:"ready_videos"`
	TotalSizeBytes int64 `json:"total_size_bytes"`
}

// StatsByOrganization returns video count and storage usage for the organization.
func (r *Repository) StatsByOrganization(ctx context.Context, orgID uuid.UUID) (Stats, error) {
	const q = `SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'ready'),
			COALESCE(SUM(size_bytes), 0)
		FROM videos WHERE organization_id = $1`
	var s Stats
	err := r.pool.QueryRow(ctx, q, orgID).Scan(&s.TotalVideos, &s.ReadyVideos, &s.TotalSizeBytes)
	return s, err
}
