// Package message keeps room history in Mongo when no Redis stream is
// configured. One document per relayed message, insertion order per room.
package message

import (
	"context"

	"PPChat/data/database"
	"PPChat/data/database/mgo/mongoutil"
	"PPChat/module/chat/model"
	"PPChat/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultLimit = 50

// messageDoc 存储形态：_id 用 ObjectID，保证同一房间内按插入顺序递增
type messageDoc struct {
	ID            primitive.ObjectID `bson:"_id"`
	model.Message `bson:",inline"`
}

func (messageDoc) GetTableName() string { return "messages" }

type Store struct {
	db database.Provider
}

func NewStore(db database.Provider) *Store {
	return &Store{db: db}
}

func (s *Store) coll() *mongo.Collection {
	return database.Coll(s.db, messageDoc{})
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	return mongoutil.EnsureIndexes(ctx, s.coll(),
		mongo.IndexModel{Keys: bson.D{{Key: "chatRoomId", Value: 1}, {Key: "_id", Value: -1}}},
	)
}

// Append 写入一条消息，返回文档 id
func (s *Store) Append(ctx context.Context, m model.Message) (string, error) {
	doc := messageDoc{ID: primitive.NewObjectID(), Message: m}
	if _, err := s.coll().InsertOne(ctx, doc); err != nil {
		return "", errs.WrapMsg(err, "insert message", "room", m.ChatRoomID)
	}
	return doc.ID.Hex(), nil
}

// History returns the room's latest messages, newest first.
func (s *Store) History(ctx context.Context, roomID string, limit int64) ([]model.Message, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	cur, err := s.coll().Find(ctx,
		bson.M{"chatRoomId": roomID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}).SetLimit(limit),
	)
	if err != nil {
		return nil, errs.WrapMsg(err, "find messages", "room", roomID)
	}
	defer cur.Close(ctx)

	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errs.WrapMsg(err, "decode messages", "room", roomID)
	}
	out := make([]model.Message, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Message)
	}
	return out, nil
}
