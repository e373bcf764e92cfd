package mongoutil

import (
	"context"

	"PPChat/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
)

// EnsureIndexes creates the given indexes; existing identical indexes are a no-op on the server.
func EnsureIndexes(ctx context.Context, coll *mongo.Collection, models ...mongo.IndexModel) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
		return errs.WrapMsg(err, "create indexes", "collection", coll.Name())
	}
	return nil
}
