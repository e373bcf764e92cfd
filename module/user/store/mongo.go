package store

import (
	"context"
	"errors"
	"time"

	"PPChat/data/database"
	"PPChat/data/database/mgo/mongoutil"
	"PPChat/module/user/model"
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
	return database.Coll(s.db, model.User{})
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	return mongoutil.EnsureIndexes(ctx, s.coll(),
		mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	)
}

func (s *MongoStore) Create(ctx context.Context, u *model.User) error {
	if _, err := s.coll().InsertOne(ctx, u); err != nil {
		if mongoutil.IsDuplicateKey(err) {
			return errs.ErrConflict.WrapMsg("user already exists", "id", u.ID)
		}
		return errs.WrapMsg(err, "insert user", "id", u.ID)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.coll().FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrRecordNotFound.WrapMsg("user not found", "id", id)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find user", "id", id)
	}
	return &u, nil
}

func (s *MongoStore) Update(ctx context.Context, id string, upd model.ProfileUpdate, now time.Time) (*model.User, error) {
	set := bson.M{"updatedAt": now}
	if upd.Nickname != nil {
		set["nickname"] = *upd.Nickname
	}
	if upd.ProfileImgURL != nil {
		set["profileImgUrl"] = *upd.ProfileImgURL
	}
	if upd.StatusMessage != nil {
		set["statusMessage"] = *upd.StatusMessage
	}
	if upd.BirthYear != nil {
		set["birthYear"] = *upd.BirthYear
	}
	if upd.Bio != nil {
		set["bio"] = *upd.Bio
	}
	if upd.Gender != nil {
		set["gender"] = *upd.Gender
	}
	if upd.Region != nil {
		set["region"] = *upd.Region
	}
	if upd.MinAgeGroup != nil {
		set["minAgeGroup"] = *upd.MinAgeGroup
	}
	if upd.MaxAgeGroup != nil {
		set["maxAgeGroup"] = *upd.MaxAgeGroup
	}

	var u model.User
	err := s.coll().FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrRecordNotFound.WrapMsg("user not found", "id", id)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "update user", "id", id)
	}
	return &u, nil
}

func (s *MongoStore) PublicProfiles(ctx context.Context, ids []string) (map[string]model.PublicProfile, error) {
	out := make(map[string]model.PublicProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	proj := bson.M{"nickname": 1, "gender": 1, "profileImgUrl": 1, "statusMessage": 1}
	cur, err := s.coll().Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetProjection(proj))
	if err != nil {
		return nil, errs.WrapMsg(err, "find public profiles", "count", len(ids))
	}
	var rows []model.PublicProfile
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errs.WrapMsg(err, "decode public profiles")
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

func (s *MongoStore) SetPresence(ctx context.Context, id string, online bool, at time.Time) error {
	res, err := s.coll().UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"isOnline": online, "lastActive": at}})
	if err != nil {
		return errs.WrapMsg(err, "set presence", "id", id)
	}
	if res.MatchedCount == 0 {
		return errs.ErrRecordNotFound.WrapMsg("user not found", "id", id)
	}
	return nil
}
