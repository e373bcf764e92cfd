package room

import (
	"context"
	"errors"

	"PPChat/data/database"
	"PPChat/data/database/mgo/mongoutil"
	"PPChat/module/chat/model"
	"PPChat/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoStore struct {
	db database.Provider
}

func NewMongoStore(db database.Provider) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) coll() *mongo.Collection {
	return database.Coll(s.db, model.ChatRoom{})
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	return mongoutil.EnsureIndexes(ctx, s.coll(),
		mongo.IndexModel{Keys: bson.D{{Key: "participants", Value: 1}}},
		mongo.IndexModel{Keys: bson.D{{Key: "lastMessageTimestamp", Value: -1}}},
	)
}

// Upsert 以 _id 为键 $setOnInsert；并发 upsert 撞唯一键时视为已存在
func (s *MongoStore) Upsert(ctx context.Context, r *model.ChatRoom) (bool, error) {
	res, err := s.coll().UpdateOne(ctx,
		bson.M{"_id": r.ID},
		bson.M{"$setOnInsert": r},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongoutil.IsDuplicateKey(err) {
			return false, nil
		}
		return false, errs.WrapMsg(err, "upsert chat room", "id", r.ID)
	}
	return res.UpsertedCount == 1, nil
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*model.ChatRoom, error) {
	var r model.ChatRoom
	err := s.coll().FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrRecordNotFound.WrapMsg("chat room not found", "id", id)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find chat room", "id", id)
	}
	return &r, nil
}

func (s *MongoStore) ListByParticipant(ctx context.Context, userID string) ([]model.ChatRoom, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastMessageTimestamp", Value: -1}})
	cur, err := s.coll().Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, errs.WrapMsg(err, "find chat rooms", "user", userID)
	}
	out := make([]model.ChatRoom, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode chat rooms")
	}
	return out, nil
}

// TouchLastMessage never moves the preview backwards in time.
func (s *MongoStore) TouchLastMessage(ctx context.Context, roomID string, m LastMessage) error {
	_, err := s.coll().UpdateOne(ctx,
		bson.M{"_id": roomID, "lastMessageTimestamp": bson.M{"$lte": m.Timestamp}},
		bson.M{"$set": bson.M{
			"lastMessageId":        m.ID,
			"lastMessageContent":   m.Content,
			"lastMessageTimestamp": m.Timestamp,
			"updatedAt":            m.Timestamp,
		}},
	)
	if err != nil {
		return errs.WrapMsg(err, "touch chat room", "id", roomID)
	}
	return nil
}
