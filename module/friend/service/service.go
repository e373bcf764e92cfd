package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"PPChat/logger"
	"PPChat/module/friend/model"
	"PPChat/module/friend/store"
	usermodel "PPChat/module/user/model"
	"PPChat/service/metrics"
	"PPChat/tools/errs"
	"PPChat/tools/safe"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Dispatcher pushes one live event to a user's connection, if there is one.
// It must never block and has nothing to report back.
type Dispatcher interface {
	Dispatch(userID, event string, payload any) bool
}

// EventPublisher forwards committed transitions to the event bus.
type EventPublisher interface {
	Publish(ctx context.Context, key string, payload any) error
}

// UserDirectory is the slice of the user service this package needs.
type UserDirectory interface {
	EnsureExists(ctx context.Context, uid string) error
	PublicProfiles(ctx context.Context, ids []string) (map[string]usermodel.PublicProfile, error)
}

// profileTimeout bounds the sender profile lookup done for a live push.
const profileTimeout = time.Second

type Options struct {
	Dispatcher     Dispatcher
	Publisher      EventPublisher
	Now            func() time.Time
	PublishTimeout time.Duration
}

type Service struct {
	store      store.Store
	users      UserDirectory
	dispatcher Dispatcher
	publisher  EventPublisher
	now        func() time.Time
	pubTimeout time.Duration
}

func NewService(st store.Store, users UserDirectory, opts Options) *Service {
	safe.MustNotNil(st, "friend store")
	safe.MustNotNil(users, "user directory")
	s := &Service{
		store:      st,
		users:      users,
		dispatcher: opts.Dispatcher,
		publisher:  opts.Publisher,
		now:        opts.Now,
		pubTimeout: opts.PublishTimeout,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.pubTimeout <= 0 {
		s.pubTimeout = 3 * time.Second
	}
	return s
}

// Result is what a committed transition produced.
type Result struct {
	Friendship   model.Friendship
	Notification model.Notification
}

// change is the write a transition plans inside the transaction.
type change struct {
	f      model.Friendship
	insert bool
	expect model.Status // compare-and-set guard for updates
}

// ===== transitions =====

func (s *Service) SendRequest(ctx context.Context, actor, recipientID string) (*Result, error) {
	recipientID = strings.TrimSpace(recipientID)
	if err := validatePair(actor, recipientID, "recipientId"); err != nil {
		return nil, err
	}
	if err := s.users.EnsureExists(ctx, recipientID); err != nil {
		return nil, err
	}
	return s.run(ctx, KindRequest, actor, func(ctx context.Context, tx store.Tx, now time.Time) (*change, error) {
		cur, err := tx.FriendshipByPair(ctx, actor, recipientID)
		if err != nil {
			return nil, err
		}
		if cur == nil {
			return &change{f: newFriendship(actor, recipientID, model.StatusPending, now), insert: true}, nil
		}
		switch {
		case cur.Status == model.StatusAccepted:
			return nil, ErrAlreadyFriends.Wrap()
		case cur.Status == model.StatusPending:
			return nil, ErrRequestPending.Wrap()
		case cur.Status == model.StatusBlocked:
			return nil, ErrBlocked.Wrap()
		case cur.Status.Reopenable():
			// 原地复用旧记录，方向改为本次发起方
			next := *cur
			next.SenderID, next.RecipientID = actor, recipientID
			next.Status = model.StatusPending
			next.UpdatedAt = now
			return &change{f: next, expect: cur.Status}, nil
		}
		return nil, errs.ErrInternalServer.WrapMsg("unknown friendship status", "status", cur.Status)
	})
}

func (s *Service) Cancel(ctx context.Context, actor, friendshipID string) (*Result, error) {
	return s.respond(ctx, KindCancel, actor, friendshipID, func(f *model.Friendship) error {
		if f.SenderID != actor {
			return ErrNotSender.Wrap()
		}
		return expectStatus(f, model.StatusPending, ErrNotPending)
	}, model.StatusCancelled)
}

func (s *Service) Accept(ctx context.Context, actor, friendshipID string) (*Result, error) {
	return s.respond(ctx, KindAccept, actor, friendshipID, func(f *model.Friendship) error {
		if f.RecipientID != actor {
			return ErrNotRecipient.Wrap()
		}
		return expectStatus(f, model.StatusPending, ErrNotPending)
	}, model.StatusAccepted)
}

func (s *Service) Reject(ctx context.Context, actor, friendshipID string) (*Result, error) {
	return s.respond(ctx, KindReject, actor, friendshipID, func(f *model.Friendship) error {
		if f.RecipientID != actor {
			return ErrNotRecipient.Wrap()
		}
		return expectStatus(f, model.StatusPending, ErrNotPending)
	}, model.StatusRejected)
}

func (s *Service) Remove(ctx context.Context, actor, friendshipID string) (*Result, error) {
	return s.respond(ctx, KindRemove, actor, friendshipID, func(f *model.Friendship) error {
		if !f.Involves(actor) {
			return ErrNotParticipant.Wrap()
		}
		return expectStatus(f, model.StatusAccepted, ErrNotFriends)
	}, model.StatusRemoved)
}

// Block overrides whatever the pair had, including an accepted friendship.
// The blocker becomes the record's sender so the record says who blocked whom.
func (s *Service) Block(ctx context.Context, actor, targetID string) (*Result, error) {
	targetID = strings.TrimSpace(targetID)
	if err := validatePair(actor, targetID, "recipientId"); err != nil {
		return nil, err
	}
	if err := s.users.EnsureExists(ctx, targetID); err != nil {
		return nil, err
	}
	return s.run(ctx, KindBlock, actor, func(ctx context.Context, tx store.Tx, now time.Time) (*change, error) {
		cur, err := tx.FriendshipByPair(ctx, actor, targetID)
		if err != nil {
			return nil, err
		}
		if cur == nil {
			return &change{f: newFriendship(actor, targetID, model.StatusBlocked, now), insert: true}, nil
		}
		next := *cur
		next.SenderID, next.RecipientID = actor, targetID
		next.Status = model.StatusBlocked
		next.UpdatedAt = now
		return &change{f: next, expect: cur.Status}, nil
	})
}

// respond covers the transitions addressed by friendship id.
func (s *Service) respond(ctx context.Context, kind Kind, actor, rawID string, check func(*model.Friendship) error, to model.Status) (*Result, error) {
	if actor == "" {
		return nil, errs.ErrUnauthenticated.Wrap()
	}
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, kind, actor, func(ctx context.Context, tx store.Tx, now time.Time) (*change, error) {
		cur, err := tx.FriendshipByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := check(cur); err != nil {
			return nil, err
		}
		next := *cur
		next.Status = to
		next.UpdatedAt = now
		return &change{f: next, expect: cur.Status}, nil
	})
}

// run is the two phase pipeline: commit, then best-effort delivery.
func (s *Service) run(ctx context.Context, kind Kind, actor string, plan func(context.Context, store.Tx, time.Time) (*change, error)) (*Result, error) {
	res, err := s.commit(ctx, kind, actor, plan)
	if err != nil {
		metrics.FriendTransitions.WithLabelValues(string(kind), resultLabel(err)).Inc()
		return nil, err
	}
	metrics.FriendTransitions.WithLabelValues(string(kind), "ok").Inc()
	s.dispatch(ctx, res)
	return res, nil
}

// commit writes the friendship change and its notification in one
// transaction. Either both are stored or neither is.
func (s *Service) commit(ctx context.Context, kind Kind, actor string, plan func(context.Context, store.Tx, time.Time) (*change, error)) (*Result, error) {
	var res Result
	err := s.store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := s.now()
		ch, err := plan(ctx, tx, now)
		if err != nil {
			return err
		}
		if ch.insert {
			err = tx.InsertFriendship(ctx, &ch.f)
		} else {
			err = tx.UpdateFriendship(ctx, &ch.f, ch.expect)
		}
		if err != nil {
			return err
		}
		prior, err := tx.NotificationByFriendship(ctx, ch.f.ID)
		if err != nil {
			return err
		}
		n := ProjectNotification(prior, Transition{Kind: kind, Friendship: ch.f, Actor: actor, At: now})
		if err := tx.UpsertNotification(ctx, &n); err != nil {
			return err
		}
		res = Result{Friendship: ch.f, Notification: n}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// dispatch pushes the committed notification to its recipient and forwards
// the transition to the event bus. Nothing here can fail the request.
func (s *Service) dispatch(ctx context.Context, res *Result) {
	n := res.Notification
	if s.dispatcher != nil {
		view := NotificationView{Notification: n}
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), profileTimeout)
		profiles, err := s.users.PublicProfiles(pctx, []string{n.SenderID})
		cancel()
		if err == nil {
			if p, ok := profiles[n.SenderID]; ok {
				view.Sender = &p
			}
		} else {
			logger.Warn("[Friend] resolve sender profile for push", zap.String("sender", n.SenderID), zap.Error(err))
		}
		if !s.dispatcher.Dispatch(n.RecipientID, string(n.Type), view) {
			logger.Debug("[Friend] recipient offline, push dropped",
				zap.String("recipient", n.RecipientID), zap.String("type", string(n.Type)))
		}
	}
	if s.publisher != nil {
		evt := newFriendEvent(res)
		safe.SafeGo("friend-event-publish", func() {
			pctx, cancel := context.WithTimeout(context.Background(), s.pubTimeout)
			defer cancel()
			if err := s.publisher.Publish(pctx, evt.FriendshipID, evt); err != nil {
				logger.Warn("[Friend] publish event", zap.String("type", evt.Type), zap.Error(err))
			}
		})
	}
}

// AreFriends is the room access check.
func (s *Service) AreFriends(ctx context.Context, a, b string) (bool, error) {
	f, err := s.store.FriendshipByPair(ctx, a, b)
	if err != nil {
		return false, err
	}
	return f != nil && f.Status == model.StatusAccepted, nil
}

// ===== helpers =====

func newFriendship(sender, recipient string, st model.Status, now time.Time) model.Friendship {
	return model.Friendship{
		ID:          primitive.NewObjectID(),
		SenderID:    sender,
		RecipientID: recipient,
		Status:      st,
		PairKey:     model.PairKey(sender, recipient),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func validatePair(actor, other, field string) error {
	if actor == "" {
		return errs.ErrUnauthenticated.Wrap()
	}
	if other == "" {
		return errs.ErrArgs.WrapMsg(field + " is required")
	}
	if other == actor {
		return ErrSelfRequest.Wrap()
	}
	// pairKey 用 "_" 拼接两个 uid，含 "_" 的 id 会和别的组合撞 key
	if strings.Contains(actor, "_") || strings.Contains(other, "_") {
		return errs.ErrArgs.WrapMsg("user ids must not contain '_'")
	}
	return nil
}

func expectStatus(f *model.Friendship, want model.Status, onMismatch *errs.CodeError) error {
	if f.Status != want {
		return onMismatch.Wrap()
	}
	return nil
}

func parseID(raw string) (primitive.ObjectID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return primitive.NilObjectID, errs.ErrArgs.WrapMsg("friendShipDocId is required")
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, errs.ErrArgs.WrapMsg("friendShipDocId is malformed")
	}
	return id, nil
}

func resultLabel(err error) string {
	ce, ok := errs.AsCode(err)
	if !ok {
		return "error"
	}
	switch {
	case errors.Is(ce, errs.ErrConflict):
		return "conflict"
	case errors.Is(ce, errs.ErrNoPermission):
		return "forbidden"
	case errors.Is(ce, errs.ErrRecordNotFound):
		return "not_found"
	case errors.Is(ce, errs.ErrArgs):
		return "invalid"
	}
	return "error"
}
