package organizations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clipstack/backend/internal/models"
)

var (
	// ErrDuplicateSlug means the slug is already taken by another organization.
	ErrDuplicateSlug = errors.New("organization slug already in use")
	// ErrDuplicateMembership means the user is already a member; the existing
	// row (and its role) is left untouched.
	ErrDuplicateMembership = errors.New("user is already a member of this organization")
	// ErrMembershipNotFound means no membership row matched the update or delete.
	ErrMembershipNotFound = errors.New("membership not found")
	// ErrOrganizationNotFound means no organization row matched.
	ErrOrganizationNotFound = errors.New("organization not found")
)

// Repository handles organization and membership persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organizations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateWithAdmin creates an organization and its first admin membership in
// one transaction, so no organization can exist without an admin.
func (r *Repository) CreateWithAdmin(ctx context.Context, org *models.Organization, adminID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const orgQ = `INSERT INTO organizations (id, name, slug, status, settings)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		ON CONFLICT (slug) DO NOTHING
		RETURNING id, created_at, updated_at`
	err = tx.QueryRow(ctx, orgQ, org.Name, org.Slug, string(org.Status), org.Settings).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDuplicateSlug
	}
	if err != nil {
		return err
	}

	const memQ = `INSERT INTO memberships (organization_id, user_id, role)
		VALUES ($1, $2, $3)`
	if _, err := tx.Exec(ctx, memQ, org.ID, adminID, string(models.RoleAdmin)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetByID returns an organization by ID, or (nil, nil) if it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	const q = `SELECT id, name, slug, status, settings, created_at, updated_at
		FROM organizations WHERE id = $1`
	var org models.Organization
	var status string
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&org.ID, &org.Name, &org.Slug, &status, &org.Settings, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	org.Status = models.OrganizationStatus(status)
	return &org, nil
}

// GetBySlug returns an organization by slug, or (nil, nil) if it does not exist.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	const q = `SELECT id, name, slug, status, settings, created_at, updated_at
		FROM organizations WHERE slug = $1`
	var org models.Organization
	var status string
	err := r.pool.QueryRow(ctx, q, slug).
		Scan(&org.ID, &org.Name, &org.Slug, &status, &org.Settings, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	org.Status = models.OrganizationStatus(status)
	return &org, nil
}

// UpdateSettings replaces the organization's settings bag.
func (r *Repository) UpdateSettings(ctx context.Context, orgID uuid.UUID, settings models.OrganizationSettings) error {
	const q = `UPDATE organizations SET settings = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, orgID, settings)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrganizationNotFound
	}
	return nil
}

// UpdateStatus moves the organization to a new lifecycle state.
func (r *Repository) UpdateStatus(ctx context.Context, orgID uuid.UUID, status models.OrganizationStatus) error {
	const q = `UPDATE organizations SET status = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, orgID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrganizationNotFound
	}
	return nil
}

// SoftDelete marks the organization deleted and removes all memberships in
// one transaction. Videos and audit events are kept for retention.
func (r *Repository) SoftDelete(ctx context.Context, orgID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const q = `UPDATE organizations SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status <> $2`
	tag, err := tx.Exec(ctx, q, orgID, string(models.OrgStatusDeleted))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrganizationNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM memberships WHERE organization_id = $1`, orgID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetMembership returns the membership for (org, user), or (nil, nil) if the
// user is not a member. This is the authorization hot path: a single primary
// key lookup per request.
func (r *Repository) GetMembership(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error) {
	const q = `SELECT organization_id, user_id, role, joined_at, updated_at
		FROM memberships WHERE organization_id = $1 AND user_id = $2`
	var m models.Membership
	var role string
	err := r.pool.QueryRow(ctx, q, orgID, userID).
		Scan(&m.OrganizationID, &m.UserID, &role, &m.JoinedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.Role = models.Role(role)
	return &m, nil
}

// ListMembershipsForUser returns all memberships of a user, earliest joined
// first. The first entry is the login fallback organization.
func (r *Repository) ListMembershipsForUser(ctx context.Context, userID uuid.UUID) ([]models.Membership, error) {
	const q = `SELECT organization_id, user_id, role, joined_at, updated_at
		FROM memberships WHERE user_id = $1 ORDER BY joined_at ASC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Membership
	for rows.Next() {
		var m models.Membership
		var role string
		if err := rows.Scan(&m.OrganizationID, &m.UserID, &role, &m.JoinedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.Role = models.Role(role)
		list = append(list, m)
	}
	return list, rows.Err()
}

// AddMember inserts a membership. An existing membership is never modified;
// the caller gets ErrDuplicateMembership and must use UpdateMemberRole to
// change a role.
func (r *Repository) AddMember(ctx context.Context, orgID, userID uuid.UUID, role models.Role) error {
	const q = `INSERT INTO memberships (organization_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (organization_id, user_id) DO NOTHING`
	tag, err := r.pool.Exec(ctx, q, orgID, userID, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateMembership
	}
	return nil
}

// UpdateMemberRole sets the member's role. Single-row atomic update;
// concurrent updates are last-write-wins.
func (r *Repository) UpdateMemberRole(ctx context.Context, orgID, userID uuid.UUID, role models.Role) error {
	const q = `UPDATE memberships SET role = $3, updated_at = NOW()
		WHERE organization_id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, q, orgID, userID, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

// RemoveMember deletes the membership. Removing a non-member reports
// ErrMembershipNotFound rather than succeeding silently.
func (r *Repository) RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error {
	const q = `DELETE FROM memberships WHERE organization_id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, q, orgID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

// CountAdmins returns the number of admins in the organization. Used by the
// last-admin guard on role changes and removals.
func (r *Repository) CountAdmins(ctx context.Context, orgID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM memberships WHERE organization_id = $1 AND role = $2`
	var n int
	err := r.pool.QueryRow(ctx, q, orgID, string(models.RoleAdmin)).Scan(&n)
	return n, err
}

// Member is an organization member with user details (for GET /organizations/:orgID/members).
type Member struct {
	UserID   uuid.UUID   `json:"user_id"`
	Email    string      `json:"email"`
	FullName string      `json:"full_name"`
	Role     models.Role `json:"role"`
	JoinedAt time.Time   `json:"joined_at"`
}

// ListMembers returns members of an organization, earliest joined first.
func (r *Repository) ListMembers(ctx context.Context, orgID uuid.UUID) ([]Member, error) {
	const q = `SELECT m.user_id, u.email, COALESCE(u.full_name, ''), m.role, m.joined_at
		FROM memberships m
		INNER JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = $1
		ORDER BY m.joined_at ASC`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Member
	for rows.Next() {
		var m Member
		var role string
		if err := rows.Scan(&m.UserID, &m.Email, &m.FullName, &role, &m.JoinedAt); err != nil {
			return nil, err
		}
		m.Role = models.Role(role)
		list = append(list, m)
	}
	return list, rows.Err()
}

// UserOrganization is one entry of "my organizations": the organization plus
// the caller's role in it.
type UserOrganization struct {
	Organization models.Organization `json:"organization"`
	Role         models.Role         `json:"role"`
	JoinedAt     time.Time           `json:"joined_at"`
}

// ListOrganizationsForUser returns the organizations the user belongs to with
// the user's role in each, earliest joined first. Deleted organizations are
// excluded; suspended ones are listed so clients can show why they are locked.
func (r *Repository) ListOrganizationsForUser(ctx context.Context, userID uuid.UUID) ([]UserOrganization, error) {
	const q = `SELECT o.id, o.name, o.slug, o.status, o.settings, o.created_at, o.updated_at,
			m.role, m.joined_at
		FROM organizations o
		INNER JOIN memberships m ON m.organization_id = o.id
		WHERE m.user_id = $1 AND o.status <> 'deleted'
		ORDER BY m.joined_at ASC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []UserOrganization
	for rows.Next() {
		var uo UserOrganization
		var status, role string
		if err := rows.Scan(&uo.Organization.ID, &uo.Organization.Name, &uo.Organization.Slug,
			&status, &uo.Organization.Settings, &uo.Organization.CreatedAt, &uo.Organization.UpdatedAt,
			&role, &uo.JoinedAt); err != nil {
			return nil, err
		}
		uo.Organization.Status = models.OrganizationStatus(status)
		uo.Role = models.Role(role)
		list = append(list, uo)
	}
	return list, rows.Err()
}
