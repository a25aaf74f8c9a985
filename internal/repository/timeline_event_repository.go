package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/models"
)

const timelineEventColumns = `id, unit_id, section_id, student_id, actor_id, event_type, title_ar, title_en, body_ar, body_en, payload, visibility_scope, audience_roles, created_at`

// TimelineEventRepository is the append-only store for timeline events.
type TimelineEventRepository struct {
	db *sqlx.DB
}

// NewTimelineEventRepository constructs the repository.
func NewTimelineEventRepository(db *sqlx.DB) *TimelineEventRepository {
	return &TimelineEventRepository{db: db}
}

// insertTimelineEvent writes one event row through any executor so the
// same statement serves both standalone inserts and fan-out transactions.
func insertTimelineEvent(ctx context.Context, ext sqlx.ExtContext, event *models.TimelineEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO timeline_events (id, unit_id, section_id, student_id, actor_id, event_type, title_ar, title_en, body_ar, body_en, payload, visibility_scope, audience_roles, created_at)
VALUES (:id, :unit_id, :section_id, :student_id, :actor_id, :event_type, :title_ar, :title_en, :body_ar, :body_en, :payload, :visibility_scope, :audience_roles, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, ext, query, event); err != nil {
		return fmt.Errorf("insert timeline event: %w", err)
	}
	return nil
}

// Insert persists a single event.
func (r *TimelineEventRepository) Insert(ctx context.Context, event *models.TimelineEvent) error {
	return insertTimelineEvent(ctx, r.db, event)
}

// InsertTx persists a single event inside an open transaction.
func (r *TimelineEventRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, event *models.TimelineEvent) error {
	return insertTimelineEvent(ctx, tx, event)
}

// FindByID returns one event.
func (r *TimelineEventRepository) FindByID(ctx context.Context, id string) (*models.TimelineEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM timeline_events WHERE id = $1`, timelineEventColumns)
	var event models.TimelineEvent
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// ListFeed streams events visible under the resolved role predicate,
// newest first, keyset-paginated on (created_at, id).
func (r *TimelineEventRepository) ListFeed(ctx context.Context, q models.FeedQuery) ([]models.TimelineEvent, error) {
	var conditions []string
	var args []interface{}

	switch q.Viewer {
	case models.UserTypeStaff:
		if !q.Unrestricted {
			conditions = append(conditions, fmt.Sprintf(
				`((visibility_scope IN ('UNIT','SECTION','STAFF_ONLY') AND unit_id = ANY($%d)) OR (visibility_scope = 'CUSTOM' AND audience_roles && $%d))`,
				len(args)+1, len(args)+2))
			args = append(args, pq.Array(q.UnitIDs), pq.Array(q.RoleNames))
		}
	case models.UserTypeGuardian:
		conditions = append(conditions, fmt.Sprintf(
			`(student_id = ANY($%d)
OR (section_id = ANY($%d) AND visibility_scope IN ('SECTION','GUARDIANS_ONLY','CUSTOM'))
OR (unit_id = ANY($%d) AND visibility_scope IN ('UNIT','GUARDIANS_ONLY'))
OR (visibility_scope = 'CUSTOM' AND $%d = ANY(audience_roles)))`,
			len(args)+1, len(args)+2, len(args)+3, len(args)+4))
		args = append(args, pq.Array(q.StudentIDs), pq.Array(q.SectionIDs), pq.Array(q.UnitIDs), models.RoleGuardian)
	default:
		// Student feeds are reserved; the service short-circuits before
		// reaching the store.
		return nil, nil
	}

	if q.EventType != "" {
		conditions = append(conditions, fmt.Sprintf("event_type = $%d", len(args)+1))
		args = append(args, q.EventType)
	}
	if q.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *q.DateFrom)
	}
	if q.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)+1))
		args = append(args, *q.DateTo)
	}
	if q.After != nil {
		conditions = append(conditions, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)+1, len(args)+2))
		args = append(args, q.After.CreatedAt, q.After.ID)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	// Page-size policy lives in the feed service, which asks for one row
	// beyond its clamped page to detect another page. Capping again here
	// would swallow that look-ahead row at the maximum page size.
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM timeline_events%s ORDER BY created_at DESC, id DESC LIMIT %d`,
		timelineEventColumns, clause, limit)

	var events []models.TimelineEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list feed events: %w", err)
	}
	return events, nil
}
