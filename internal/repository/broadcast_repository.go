package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/models"
)

const broadcastColumns = `id, kind, unit_id, title_ar, title_en, body_ar, body_en, scope, publish_at, published_at, ack_required, creator_id, created_at`

// BroadcastRepository provides persistence for announcements and memos.
type BroadcastRepository struct {
	db *sqlx.DB
}

// NewBroadcastRepository constructs the repository.
func NewBroadcastRepository(db *sqlx.DB) *BroadcastRepository {
	return &BroadcastRepository{db: db}
}

// Create inserts a new broadcast.
func (r *BroadcastRepository) Create(ctx context.Context, broadcast *models.Broadcast) error {
	if broadcast.ID == "" {
		broadcast.ID = uuid.NewString()
	}
	if broadcast.CreatedAt.IsZero() {
		broadcast.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO broadcasts (id, kind, unit_id, title_ar, title_en, body_ar, body_en, scope, publish_at, published_at, ack_required, creator_id, created_at)
VALUES (:id, :kind, :unit_id, :title_ar, :title_en, :body_ar, :body_en, :scope, :publish_at, :published_at, :ack_required, :creator_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, broadcast); err != nil {
		return fmt.Errorf("create broadcast: %w", err)
	}
	return nil
}

// FindByID returns a broadcast by identifier.
func (r *BroadcastRepository) FindByID(ctx context.Context, id string) (*models.Broadcast, error) {
	query := fmt.Sprintf(`SELECT %s FROM broadcasts WHERE id = $1`, broadcastColumns)
	var broadcast models.Broadcast
	if err := r.db.GetContext(ctx, &broadcast, query, id); err != nil {
		return nil, err
	}
	return &broadcast, nil
}

// ListPublished returns every published broadcast of a kind, newest
// first. This is the coarse phase of the two-phase listing filter; the
// exact audience predicate and the page window are applied in-process
// afterwards, so slicing here would hide rows the caller may see.
func (r *BroadcastRepository) ListPublished(ctx context.Context, filter models.BroadcastFilter) ([]models.Broadcast, error) {
	where := []string{"published_at IS NOT NULL"}
	args := []interface{}{}
	if filter.Kind != "" {
		where = append(where, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}
	clause := strings.Join(where, " AND ")

	query := fmt.Sprintf(`SELECT %s FROM broadcasts WHERE %s ORDER BY published_at DESC`,
		broadcastColumns, clause)
	var broadcasts []models.Broadcast
	if err := r.db.SelectContext(ctx, &broadcasts, query, args...); err != nil {
		return nil, fmt.Errorf("list broadcasts: %w", err)
	}
	return broadcasts, nil
}

// ListDue returns unpublished broadcasts whose publish time has passed.
func (r *BroadcastRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.Broadcast, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM broadcasts WHERE published_at IS NULL AND publish_at <= $1 ORDER BY publish_at ASC LIMIT %d`,
		broadcastColumns, limit)
	var due []models.Broadcast
	if err := r.db.SelectContext(ctx, &due, query, now); err != nil {
		return nil, fmt.Errorf("list due broadcasts: %w", err)
	}
	return due, nil
}

// PublishWithEvents atomically claims the broadcast for publication and
// writes the derived timeline events. The claim is the nullity of
// published_at: when another worker already published, zero rows update,
// nothing is written and (false, nil) is returned. Any insert failure
// rolls the claim back so readers never observe a partial fan-out.
func (r *BroadcastRepository) PublishWithEvents(ctx context.Context, id string, publishedAt time.Time, events []*models.TimelineEvent) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin publish tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE broadcasts SET published_at = $2 WHERE id = $1 AND published_at IS NULL`,
		id, publishedAt)
	if err != nil {
		return false, fmt.Errorf("claim broadcast %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim broadcast %s: %w", id, err)
	}
	if affected == 0 {
		return false, nil
	}

	for _, event := range events {
		if err := insertTimelineEvent(ctx, tx, event); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit publish tx: %w", err)
	}
	return true, nil
}
