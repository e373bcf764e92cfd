package store

import (
	"context"
	"errors"

	"PPChat/data/database"
	"PPChat/data/database/mgo/mongoutil"
	"PPChat/module/friend/model"
	"PPChat/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoStore struct {
	db database.Provider
}

func NewMongoStore(db database.Provider) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) friendships() *mongo.Collection {
	return database.Coll(s.db, model.Friendship{})
}

func (s *MongoStore) notifications() *mongo.Collection {
	return database.Coll(s.db, model.Notification{})
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if err := mongoutil.EnsureIndexes(ctx, s.friendships(),
		mongo.IndexModel{
			Keys:    bson.D{{Key: "senderId", Value: 1}, {Key: "recipientId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		// 同一对用户无论谁先发起都只能有一条
		mongo.IndexModel{
			Keys:    bson.D{{Key: "pairKey", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		mongo.IndexModel{Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "status", Value: 1}}},
	); err != nil {
		return err
	}
	return mongoutil.EnsureIndexes(ctx, s.notifications(),
		mongo.IndexModel{
			Keys:    bson.D{{Key: "friendShipDocId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		mongo.IndexModel{Keys: bson.D{
			{Key: "recipientId", Value: 1}, {Key: "isRead", Value: 1}, {Key: "updatedAt", Value: -1},
		}},
	)
}

func (s *MongoStore) RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &mongoTx{s: s}
	return mongoutil.RunTx(ctx, s.db.GetDB(), func(sc mongo.SessionContext) error {
		return fn(sc, tx)
	})
}

func (s *MongoStore) FriendshipByPair(ctx context.Context, a, b string) (*model.Friendship, error) {
	return findPair(ctx, s.friendships(), a, b)
}

func (s *MongoStore) ListFriendships(ctx context.Context, q Query) ([]model.Friendship, error) {
	filter := bson.M{}
	switch q.Role {
	case RoleSender:
		filter["senderId"] = q.UserID
	case RoleRecipient:
		filter["recipientId"] = q.UserID
	default:
		filter["$or"] = bson.A{bson.M{"senderId": q.UserID}, bson.M{"recipientId": q.UserID}}
	}
	if len(q.Statuses) > 0 {
		filter["status"] = bson.M{"$in": q.Statuses}
	}
	cur, err := s.friendships().Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}))
	if err != nil {
		return nil, errs.WrapMsg(err, "find friendships", "user", q.UserID)
	}
	out := make([]model.Friendship, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode friendships")
	}
	return out, nil
}

func (s *MongoStore) ListUnreadNotifications(ctx context.Context, recipientID string, limit int) ([]model.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.notifications().Find(ctx, bson.M{"recipientId": recipientID, "isRead": false}, opts)
	if err != nil {
		return nil, errs.WrapMsg(err, "find notifications", "recipient", recipientID)
	}
	out := make([]model.Notification, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode notifications")
	}
	return out, nil
}

type mongoTx struct {
	s *MongoStore
}

func (t *mongoTx) FriendshipByID(ctx context.Context, id primitive.ObjectID) (*model.Friendship, error) {
	var f model.Friendship
	err := t.s.friendships().FindOne(ctx, bson.M{"_id": id}).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrRecordNotFound.WrapMsg("friendship not found", "id", id.Hex())
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find friendship", "id", id.Hex())
	}
	return &f, nil
}

func (t *mongoTx) FriendshipByPair(ctx context.Context, a, b string) (*model.Friendship, error) {
	return findPair(ctx, t.s.friendships(), a, b)
}

func (t *mongoTx) InsertFriendship(ctx context.Context, f *model.Friendship) error {
	if _, err := t.s.friendships().InsertOne(ctx, f); err != nil {
		if mongoutil.IsDuplicateKey(err) {
			return errs.ErrConflict.WrapMsg("friendship already exists")
		}
		return errs.WrapMsg(err, "insert friendship")
	}
	return nil
}

func (t *mongoTx) UpdateFriendship(ctx context.Context, f *model.Friendship, expect model.Status) error {
	res, err := t.s.friendships().UpdateOne(ctx,
		bson.M{"_id": f.ID, "status": expect},
		bson.M{"$set": bson.M{
			"senderId":    f.SenderID,
			"recipientId": f.RecipientID,
			"status":      f.Status,
			"updatedAt":   f.UpdatedAt,
		}},
	)
	if err != nil {
		if mongoutil.IsDuplicateKey(err) {
			return errs.ErrConflict.WrapMsg("friendship already exists")
		}
		return errs.WrapMsg(err, "update friendship", "id", f.ID.Hex())
	}
	if res.MatchedCount == 0 {
		return errs.ErrConflict.WrapMsg("friendship changed concurrently", "id", f.ID.Hex())
	}
	return nil
}

func (t *mongoTx) NotificationByFriendship(ctx context.Context, friendshipID primitive.ObjectID) (*model.Notification, error) {
	var n model.Notification
	err := t.s.notifications().FindOne(ctx, bson.M{"friendShipDocId": friendshipID}).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find notification", "friendship", friendshipID.Hex())
	}
	return &n, nil
}

func (t *mongoTx) UpsertNotification(ctx context.Context, n *model.Notification) error {
	_, err := t.s.notifications().ReplaceOne(ctx,
		bson.M{"friendShipDocId": n.FriendShipDocID},
		n,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return errs.WrapMsg(err, "upsert notification", "friendship", n.FriendShipDocID.Hex())
	}
	return nil
}

func findPair(ctx context.Context, coll *mongo.Collection, a, b string) (*model.Friendship, error) {
	var f model.Friendship
	err := coll.FindOne(ctx, bson.M{"pairKey": model.PairKey(a, b)}).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find friendship by pair")
	}
	return &f, nil
}
