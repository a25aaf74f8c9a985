package models

import "time"

// Acknowledgement records that a user has seen an ack-required memo.
// (broadcast_id, user_id) is unique; the first write wins.
type Acknowledgement struct {
	ID             string    `db:"id" json:"id"`
	BroadcastID    string    `db:"broadcast_id" json:"broadcast_id"`
	UserID         string    `db:"user_id" json:"user_id"`
	AcknowledgedAt time.Time `db:"acknowledged_at" json:"acknowledged_at"`
}
