package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/models"
)

// AcknowledgementRepository persists memo acknowledgements.
type AcknowledgementRepository struct {
	db *sqlx.DB
}

// NewAcknowledgementRepository constructs the repository.
func NewAcknowledgementRepository(db *sqlx.DB) *AcknowledgementRepository {
	return &AcknowledgementRepository{db: db}
}

// Upsert records an acknowledgement at most once per (broadcast, user).
// A conflicting insert is absorbed and the surviving row returned, so
// the first acknowledged_at always wins.
func (r *AcknowledgementRepository) Upsert(ctx context.Context, broadcastID, userID string, at time.Time) (*models.Acknowledgement, error) {
	const insert = `INSERT INTO acknowledgements (id, broadcast_id, user_id, acknowledged_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (broadcast_id, user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, uuid.NewString(), broadcastID, userID, at); err != nil {
		return nil, fmt.Errorf("insert acknowledgement: %w", err)
	}
	return r.FindByBroadcastAndUser(ctx, broadcastID, userID)
}

// FindByBroadcastAndUser returns the acknowledgement row if present.
func (r *AcknowledgementRepository) FindByBroadcastAndUser(ctx context.Context, broadcastID, userID string) (*models.Acknowledgement, error) {
	const query = `SELECT id, broadcast_id, user_id, acknowledged_at FROM acknowledgements WHERE broadcast_id = $1 AND user_id = $2`
	var ack models.Acknowledgement
	if err := r.db.GetContext(ctx, &ack, query, broadcastID, userID); err != nil {
		return nil, err
	}
	return &ack, nil
}

// AcknowledgedSet reports which of the given broadcasts the user has
// acknowledged. Used to decorate memo listings.
func (r *AcknowledgementRepository) AcknowledgedSet(ctx context.Context, userID string, broadcastIDs []string) (map[string]bool, error) {
	set := make(map[string]bool, len(broadcastIDs))
	if len(broadcastIDs) == 0 {
		return set, nil
	}
	const query = `SELECT broadcast_id FROM acknowledgements WHERE user_id = $1 AND broadcast_id = ANY($2)`
	var acked []string
	if err := r.db.SelectContext(ctx, &acked, query, userID, pq.Array(broadcastIDs)); err != nil {
		return nil, fmt.Errorf("list acknowledged broadcasts: %w", err)
	}
	for _, id := range acked {
		set[id] = true
	}
	return set, nil
}

// ListByBroadcast returns all acknowledgements for one broadcast.
func (r *AcknowledgementRepository) ListByBroadcast(ctx context.Context, broadcastID string) ([]models.Acknowledgement, error) {
	const query = `SELECT id, broadcast_id, user_id, acknowledged_at FROM acknowledgements WHERE broadcast_id = $1 ORDER BY acknowledged_at ASC`
	var acks []models.Acknowledgement
	if err := r.db.SelectContext(ctx, &acks, query, broadcastID); err != nil {
		return nil, fmt.Errorf("list acknowledgements: %w", err)
	}
	return acks, nil
}
