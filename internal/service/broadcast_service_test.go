package service

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/models"
	appErrors "github.com/jamsheerpanat/madrasatonaa-sub000/pkg/errors"
)

type broadcastStoreStub struct {
	broadcasts map[string]*models.Broadcast
	fanout     []*models.TimelineEvent
	claims     int
}

func newBroadcastStore() *broadcastStoreStub {
	return &broadcastStoreStub{broadcasts: map[string]*models.Broadcast{}}
}

func (s *broadcastStoreStub) Create(ctx context.Context, broadcast *models.Broadcast) error {
	if broadcast.ID == "" {
		broadcast.ID = "b" + time.Now().Format("150405.000000000")
	}
	copied := *broadcast
	s.broadcasts[broadcast.ID] = &copied
	return nil
}

func (s *broadcastStoreStub) FindByID(ctx context.Context, id string) (*models.Broadcast, error) {
	if b, ok := s.broadcasts[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *broadcastStoreStub) ListPublished(ctx context.Context, filter models.BroadcastFilter) ([]models.Broadcast, error) {
	var out []models.Broadcast
	for _, b := range s.broadcasts {
		if b.PublishedAt == nil {
			continue
		}
		if filter.Kind != "" && b.Kind != filter.Kind {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *broadcastStoreStub) ListDue(ctx context.Context, now time.Time, limit int) ([]models.Broadcast, error) {
	var due []models.Broadcast
	for _, b := range s.broadcasts {
		if b.PublishedAt == nil && !b.PublishAt.After(now) {
			due = append(due, *b)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

func (s *broadcastStoreStub) PublishWithEvents(ctx context.Context, id string, publishedAt time.Time, events []*models.TimelineEvent) (bool, error) {
	s.claims++
	b, ok := s.broadcasts[id]
	if !ok || b.PublishedAt != nil {
		return false, nil
	}
	at := publishedAt
	b.PublishedAt = &at
	s.fanout = append(s.fanout, events...)
	return true, nil
}

type ackStoreStub struct {
	acks map[string]*models.Acknowledgement
}

func newAckStore() *ackStoreStub {
	return &ackStoreStub{acks: map[string]*models.Acknowledgement{}}
}

func ackKey(broadcastID, userID string) string { return broadcastID + "/" + userID }

func (s *ackStoreStub) Upsert(ctx context.Context, broadcastID, userID string, at time.Time) (*models.Acknowledgement, error) {
	key := ackKey(broadcastID, userID)
	if existing, ok := s.acks[key]; ok {
		return existing, nil
	}
	ack := &models.Acknowledgement{ID: key, BroadcastID: broadcastID, UserID: userID, AcknowledgedAt: at}
	s.acks[key] = ack
	return ack, nil
}

func (s *ackStoreStub) AcknowledgedSet(ctx context.Context, userID string, broadcastIDs []string) (map[string]bool, error) {
	set := map[string]bool{}
	for _, id := range broadcastIDs {
		if _, ok := s.acks[ackKey(id, userID)]; ok {
			set[id] = true
		}
	}
	return set, nil
}

func (s *ackStoreStub) ListByBroadcast(ctx context.Context, broadcastID string) ([]models.Acknowledgement, error) {
	var out []models.Acknowledgement
	for _, ack := range s.acks {
		if ack.BroadcastID == broadcastID {
			out = append(out, *ack)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AcknowledgedAt.Before(out[j].AcknowledgedAt) })
	return out, nil
}

func newBroadcastService(store *broadcastStoreStub, acks *ackStoreStub, memberships *membershipStub, strict bool) *BroadcastService {
	return NewBroadcastService(store, acks, newResolver(memberships), nil, nil, strict, nil, nil)
}

func validBroadcastRequest(kind models.BroadcastKind) CreateBroadcastRequest {
	return CreateBroadcastRequest{
		Kind:    string(kind),
		TitleAr: "إعلان مدرسي",
		TitleEn: "School announcement",
		BodyAr:  "نص الإعلان",
		BodyEn:  "Announcement body",
		Scope: models.AudienceScope{
			Audience: []models.UserType{models.UserTypeGuardian},
		},
	}
}

func TestBroadcastCreatePublishesImmediately(t *testing.T) {
	store := newBroadcastStore()
	svc := newBroadcastService(store, newAckStore(), &membershipStub{}, false)

	req := validBroadcastRequest(models.KindAnnouncement)
	req.Scope.StudentIDs = []string{"s1", "s2"}

	broadcast, err := svc.Create(context.Background(), req, staffClaims("staff-1"))
	require.NoError(t, err)
	assert.True(t, broadcast.Published())
	require.Len(t, store.fanout, 2)
	for _, event := range store.fanout {
		assert.Equal(t, "AnnouncementPublished", event.EventType)
		assert.Equal(t, models.ScopeStudent, event.Scope)
		assert.Equal(t, broadcast.ID, event.Payload["broadcast_id"])
	}
}

func TestBroadcastCreateScheduledStaysUnpublished(t *testing.T) {
	store := newBroadcastStore()
	svc := newBroadcastService(store, newAckStore(), &membershipStub{}, false)

	future := time.Now().UTC().Add(time.Hour)
	req := validBroadcastRequest(models.KindAnnouncement)
	req.PublishAt = &future

	broadcast, err := svc.Create(context.Background(), req, staffClaims("staff-1"))
	require.NoError(t, err)
	assert.False(t, broadcast.Published())
	assert.Empty(t, store.fanout)
	assert.Zero(t, store.claims)
}

func TestBroadcastCreateAckRequiredIsMemoOnly(t *testing.T) {
	svc := newBroadcastService(newBroadcastStore(), newAckStore(), &membershipStub{}, false)

	req := validBroadcastRequest(models.KindAnnouncement)
	req.AckRequired = true
	_, err := svc.Create(context.Background(), req, staffClaims("staff-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req = validBroadcastRequest(models.KindMemo)
	req.AckRequired = true
	_, err = svc.Create(context.Background(), req, staffClaims("staff-1"))
	require.NoError(t, err)
}

func TestBroadcastCreateRejectsEmptyAudience(t *testing.T) {
	svc := newBroadcastService(newBroadcastStore(), newAckStore(), &membershipStub{}, false)

	req := validBroadcastRequest(models.KindAnnouncement)
	req.Scope.Audience = nil
	_, err := svc.Create(context.Background(), req, staffClaims("staff-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBroadcastCreateStrictScopeRejectsMixedTargets(t *testing.T) {
	req := validBroadcastRequest(models.KindAnnouncement)
	req.Scope.StudentIDs = []string{"s1"}
	req.Scope.UnitIDs = []string{"u1"}

	strict := newBroadcastService(newBroadcastStore(), newAckStore(), &membershipStub{}, true)
	_, err := strict.Create(context.Background(), req, staffClaims("staff-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	lenient := newBroadcastService(newBroadcastStore(), newAckStore(), &membershipStub{}, false)
	_, err = lenient.Create(context.Background(), req, staffClaims("staff-1"))
	require.NoError(t, err)
}

func TestBroadcastPublishIdempotent(t *testing.T) {
	store := newBroadcastStore()
	svc := newBroadcastService(store, newAckStore(), &membershipStub{}, false)

	req := validBroadcastRequest(models.KindAnnouncement)
	req.Scope.UnitIDs = []string{"u1"}
	broadcast, err := svc.Create(context.Background(), req, staffClaims("staff-1"))
	require.NoError(t, err)
	require.Len(t, store.fanout, 1)

	require.NoError(t, svc.Publish(context.Background(), broadcast))
	assert.Len(t, store.fanout, 1, "re-publishing must not duplicate events")
	assert.Equal(t, 1, store.claims)

	// Simulate a concurrent worker racing on a stale copy.
	stale := *broadcast
	stale.PublishedAt = nil
	require.NoError(t, svc.Publish(context.Background(), &stale))
	assert.Len(t, store.fanout, 1)
}

func TestBroadcastFanOutSectionCarriesUnit(t *testing.T) {
	store := newBroadcastStore()
	svc := newBroadcastService(store, newAckStore(), &membershipStub{}, false)

	unitID := "u1"
	req := validBroadcastRequest(models.KindMemo)
	req.UnitID = &unitID
	req.Scope.SectionIDs = []string{"sec1"}

	_, err := svc.Create(context.Background(), req, staffClaims("staff-1"))
	require.NoError(t, err)
	require.Len(t, store.fanout, 1)
	event := store.fanout[0]
	assert.Equal(t, "MemoPublished", event.EventType)
	assert.Equal(t, models.ScopeSection, event.Scope)
	require.NotNil(t, event.SectionID)
	assert.Equal(t, "sec1", *event.SectionID)
	require.NotNil(t, event.UnitID)
	assert.Equal(t, "u1", *event.UnitID)
	assert.Equal(t, true, event.Payload["ack_required"])
}

func TestBroadcastPublishDue(t *testing.T) {
	store := newBroadcastStore()
	svc := newBroadcastService(store, newAckStore(), &membershipStub{}, false)

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)
	for i, at := range []time.Time{past, past, future} {
		req := validBroadcastRequest(models.KindAnnouncement)
		at := at
		req.PublishAt = &at
		_, err := svc.Create(context.Background(), req, staffClaims("staff-1"))
		require.NoError(t, err, "create %d", i)
	}

	published, err := svc.PublishDue(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 2, published)

	published, err = svc.PublishDue(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, published, "a second sweep finds nothing due")
}

func TestBroadcastListAnnouncementsFiltersAudience(t *testing.T) {
	store := newBroadcastStore()
	memberships := &membershipStub{children: map[string][]models.GuardianChild{
		"g1": {{StudentID: "s1", SectionID: "sec1", UnitID: "u1"}},
	}}
	svc := newBroadcastService(store, newAckStore(), memberships, false)

	visible := validBroadcastRequest(models.KindAnnouncement)
	visible.Scope.StudentIDs = []string{"s1"}
	_, err := svc.Create(context.Background(), visible, staffClaims("staff-1"))
	require.NoError(t, err)

	hidden := validBroadcastRequest(models.KindAnnouncement)
	hidden.Scope.StudentIDs = []string{"s9"}
	_, err = svc.Create(context.Background(), hidden, staffClaims("staff-1"))
	require.NoError(t, err)

	staffOnly := validBroadcastRequest(models.KindAnnouncement)
	staffOnly.Scope.Audience = []models.UserType{models.UserTypeStaff}
	_, err = svc.Create(context.Background(), staffOnly, staffClaims("staff-1"))
	require.NoError(t, err)

	announcements, pagination, err := svc.ListAnnouncements(context.Background(), guardianClaims("g1"), 1, 50)
	require.NoError(t, err)
	require.Len(t, announcements, 1)
	assert.Equal(t, []string{"s1"}, announcements[0].Scope.StudentIDs)
	assert.Equal(t, 1, pagination.TotalCount, "total counts only visible rows")
}

func TestBroadcastListPaginatesAfterAudienceFilter(t *testing.T) {
	store := newBroadcastStore()
	memberships := &membershipStub{children: map[string][]models.GuardianChild{
		"g1": {{StudentID: "s1", SectionID: "sec1", UnitID: "u1"}},
	}}
	svc := newBroadcastService(store, newAckStore(), memberships, false)

	// Alternate hidden and visible rows so a window cut before the
	// audience filter would return short pages with rows left behind.
	for i := 0; i < 3; i++ {
		hidden := validBroadcastRequest(models.KindAnnouncement)
		hidden.Scope.StudentIDs = []string{"s9"}
		_, err := svc.Create(context.Background(), hidden, staffClaims("staff-1"))
		require.NoError(t, err)

		visible := validBroadcastRequest(models.KindAnnouncement)
		visible.Scope.StudentIDs = []string{"s1"}
		_, err = svc.Create(context.Background(), visible, staffClaims("staff-1"))
		require.NoError(t, err)
	}

	first, pagination, err := svc.ListAnnouncements(context.Background(), guardianClaims("g1"), 1, 2)
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Equal(t, 3, pagination.TotalCount)

	second, _, err := svc.ListAnnouncements(context.Background(), guardianClaims("g1"), 2, 2)
	require.NoError(t, err)
	assert.Len(t, second, 1, "the remaining visible row lands on the second page")

	third, _, err := svc.ListAnnouncements(context.Background(), guardianClaims("g1"), 3, 2)
	require.NoError(t, err)
	assert.Empty(t, third)
}

func TestBroadcastUnpublishedInvisible(t *testing.T) {
	store := newBroadcastStore()
	svc := newBroadcastService(store, newAckStore(), &membershipStub{}, false)

	future := time.Now().UTC().Add(time.Hour)
	req := validBroadcastRequest(models.KindAnnouncement)
	req.Scope.Audience = []models.UserType{models.UserTypeStaff}
	req.PublishAt = &future
	_, err := svc.Create(context.Background(), req, staffClaims("staff-1"))
	require.NoError(t, err)

	announcements, _, err := svc.ListAnnouncements(context.Background(), staffClaims("t1"), 1, 50)
	require.NoError(t, err)
	assert.Empty(t, announcements, "scheduled broadcasts stay invisible until published")
}

func TestBroadcastListMemosDecoratesAcknowledgement(t *testing.T) {
	store := newBroadcastStore()
	acks := newAckStore()
	svc := newBroadcastService(store, acks, &membershipStub{}, false)

	req := validBroadcastRequest(models.KindMemo)
	req.AckRequired = true
	memo, err := svc.Create(context.Background(), req, staffClaims("staff-1"))
	require.NoError(t, err)

	memos, _, err := svc.ListMemos(context.Background(), guardianClaims("g1"), 1, 50)
	require.NoError(t, err)
	require.Len(t, memos, 1)
	assert.False(t, memos[0].IsAcknowledged)

	_, err = svc.Acknowledge(context.Background(), memo.ID, guardianClaims("g1"))
	require.NoError(t, err)

	memos, _, err = svc.ListMemos(context.Background(), guardianClaims("g1"), 1, 50)
	require.NoError(t, err)
	require.Len(t, memos, 1)
	assert.True(t, memos[0].IsAcknowledged)
}

func TestBroadcastAcknowledgeFirstTimestampWins(t *testing.T) {
	store := newBroadcastStore()
	acks := newAckStore()
	svc := newBroadcastService(store, acks, &membershipStub{}, false)

	req := validBroadcastRequest(models.KindMemo)
	req.AckRequired = true
	memo, err := svc.Create(context.Background(), req, staffClaims("staff-1"))
	require.NoError(t, err)

	first, err := svc.Acknowledge(context.Background(), memo.ID, guardianClaims("g1"))
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := svc.Acknowledge(context.Background(), memo.ID, guardianClaims("g1"))
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.True(t, second.AcknowledgedAt.Equal(first.AcknowledgedAt))
	assert.Len(t, acks.acks, 1)
}

func TestBroadcastAcknowledgeGuards(t *testing.T) {
	store := newBroadcastStore()
	memberships := &membershipStub{children: map[string][]models.GuardianChild{
		"g1": {{StudentID: "s1", SectionID: "sec1", UnitID: "u1"}},
	}}
	svc := newBroadcastService(store, newAckStore(), memberships, false)

	_, err := svc.Acknowledge(context.Background(), "missing", guardianClaims("g1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	announcement := validBroadcastRequest(models.KindAnnouncement)
	created, err := svc.Create(context.Background(), announcement, staffClaims("staff-1"))
	require.NoError(t, err)
	_, err = svc.Acknowledge(context.Background(), created.ID, guardianClaims("g1"))
	require.Error(t, err, "announcements are not acknowledgeable")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	outside := validBroadcastRequest(models.KindMemo)
	outside.AckRequired = true
	outside.Scope.StudentIDs = []string{"s9"}
	memo, err := svc.Create(context.Background(), outside, staffClaims("staff-1"))
	require.NoError(t, err)
	_, err = svc.Acknowledge(context.Background(), memo.ID, guardianClaims("g1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestBroadcastAcknowledgeOptionalMemoIsNoOp(t *testing.T) {
	store := newBroadcastStore()
	acks := newAckStore()
	svc := newBroadcastService(store, acks, &membershipStub{}, false)

	req := validBroadcastRequest(models.KindMemo)
	memo, err := svc.Create(context.Background(), req, staffClaims("staff-1"))
	require.NoError(t, err)

	ack, err := svc.Acknowledge(context.Background(), memo.ID, guardianClaims("g1"))
	require.NoError(t, err)
	assert.Nil(t, ack)
	assert.Empty(t, acks.acks)
}
