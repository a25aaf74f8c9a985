package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/models"
)

func broadcastRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "kind", "unit_id", "title_ar", "title_en", "body_ar", "body_en", "scope", "publish_at", "published_at", "ack_required", "creator_id", "created_at"})
	ts := time.Now().UTC()
	for _, id := range ids {
		rows.AddRow(id, "MEMO", nil, "تعميم", "Memo", "", "", []byte(`{"audience":["STAFF"]}`), ts, ts, true, "staff-1", ts)
	}
	return rows
}

func TestBroadcastRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBroadcastRepository(db)

	mock.ExpectExec("INSERT INTO broadcasts").
		WillReturnResult(sqlmock.NewResult(1, 1))

	broadcast := &models.Broadcast{
		Kind:    models.KindAnnouncement,
		TitleAr: "إعلان",
		Scope:   models.AudienceScope{Audience: []models.UserType{models.UserTypeStaff}},
	}
	require.NoError(t, repo.Create(context.Background(), broadcast))
	assert.NotEmpty(t, broadcast.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBroadcastRepositoryListPublished(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBroadcastRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM broadcasts WHERE published_at IS NOT NULL AND kind = $1 ORDER BY published_at DESC`)).
		WithArgs("MEMO").
		WillReturnRows(broadcastRows("b1", "b2"))

	list, err := repo.ListPublished(context.Background(), models.BroadcastFilter{Kind: models.KindMemo})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBroadcastRepositoryListDue(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBroadcastRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM broadcasts WHERE published_at IS NULL AND publish_at <= $1 ORDER BY publish_at ASC LIMIT 100`)).
		WithArgs(now).
		WillReturnRows(broadcastRows("b1"))

	due, err := repo.ListDue(context.Background(), now, 0)
	require.NoError(t, err)
	assert.Len(t, due, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBroadcastRepositoryPublishWithEvents(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBroadcastRepository(db)

	publishedAt := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE broadcasts SET published_at = $2 WHERE id = $1 AND published_at IS NULL`)).
		WithArgs("b1", publishedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO timeline_events").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO timeline_events").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	unitA, unitB := "u1", "u2"
	events := []*models.TimelineEvent{
		{UnitID: &unitA, EventType: "ANNOUNCEMENT_PUBLISHED", TitleAr: "إعلان", Scope: models.ScopeUnit},
		{UnitID: &unitB, EventType: "ANNOUNCEMENT_PUBLISHED", TitleAr: "إعلان", Scope: models.ScopeUnit},
	}
	claimed, err := repo.PublishWithEvents(context.Background(), "b1", publishedAt, events)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBroadcastRepositoryPublishWithEventsAlreadyClaimed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBroadcastRepository(db)

	publishedAt := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE broadcasts SET published_at = $2 WHERE id = $1 AND published_at IS NULL`)).
		WithArgs("b1", publishedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	claimed, err := repo.PublishWithEvents(context.Background(), "b1", publishedAt, nil)
	require.NoError(t, err)
	assert.False(t, claimed, "a second publisher must not re-claim")
	assert.NoError(t, mock.ExpectationsWereMet())
}
