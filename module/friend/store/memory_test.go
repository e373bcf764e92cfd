package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"PPChat/module/friend/model"
	"PPChat/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newFriendship(sender, recipient string, st model.Status, at time.Time) *model.Friendship {
	return &model.Friendship{
		ID:          primitive.NewObjectID(),
		SenderID:    sender,
		RecipientID: recipient,
		Status:      st,
		PairKey:     model.PairKey(sender, recipient),
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

func TestRunTxRollsBackEveryWrite(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	f := newFriendship("a", "b", model.StatusPending, time.Now())
	boom := errors.New("boom")

	err := s.RunTx(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.InsertFriendship(ctx, f))
		require.NoError(t, tx.UpsertNotification(ctx, &model.Notification{ID: primitive.NewObjectID(), FriendShipDocID: f.ID}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.FriendshipByPair(ctx, "a", "b")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, s.CountNotifications(f.ID))
}

func TestInsertRejectsReversedPair(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	require.NoError(t, s.RunTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertFriendship(ctx, newFriendship("a", "b", model.StatusPending, time.Now()))
	}))

	err := s.RunTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertFriendship(ctx, newFriendship("b", "a", model.StatusPending, time.Now()))
	})
	assert.ErrorIs(t, err, errs.ErrConflict)
	assert.Equal(t, 1, s.CountFriendships("a", "b"))
}

func TestUpdateIsCompareAndSet(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	f := newFriendship("a", "b", model.StatusPending, time.Now())
	require.NoError(t, s.RunTx(ctx, func(ctx context.Context, tx Tx) error { return tx.InsertFriendship(ctx, f) }))

	next := *f
	next.Status = model.StatusAccepted
	err := s.RunTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.UpdateFriendship(ctx, &next, model.StatusAccepted)
	})
	assert.ErrorIs(t, err, errs.ErrConflict)

	require.NoError(t, s.RunTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.UpdateFriendship(ctx, &next, model.StatusPending)
	}))
	got, _ := s.FriendshipByPair(ctx, "b", "a")
	assert.Equal(t, model.StatusAccepted, got.Status)
}

func TestListFiltersByRoleAndStatus(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.RunTx(ctx, func(ctx context.Context, tx Tx) error {
		for _, f := range []*model.Friendship{
			newFriendship("a", "b", model.StatusPending, base),
			newFriendship("c", "a", model.StatusPending, base.Add(time.Minute)),
			newFriendship("a", "d", model.StatusAccepted, base.Add(2*time.Minute)),
			newFriendship("e", "a", model.StatusBlocked, base.Add(3*time.Minute)),
		} {
			if err := tx.InsertFriendship(ctx, f); err != nil {
				return err
			}
		}
		return nil
	}))

	sent, err := s.ListFriendships(ctx, Query{UserID: "a", Role: RoleSender, Statuses: []model.Status{model.StatusPending}})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "b", sent[0].RecipientID)

	received, err := s.ListFriendships(ctx, Query{UserID: "a", Role: RoleRecipient, Statuses: []model.Status{model.StatusPending}})
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "c", received[0].SenderID)

	all, err := s.ListFriendships(ctx, Query{UserID: "a", Statuses: []model.Status{model.StatusAccepted, model.StatusBlocked}})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "e", all[0].SenderID, "most recently updated first")
}
