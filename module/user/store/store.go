package store

import (
	"context"
	"time"

	"PPChat/module/user/model"
)

// Store persists user profiles. Missing users are reported as
// errs.ErrRecordNotFound, duplicates as errs.ErrConflict.
type Store interface {
	Create(ctx context.Context, u *model.User) error
	Get(ctx context.Context, id string) (*model.User, error)
	Update(ctx context.Context, id string, upd model.ProfileUpdate, now time.Time) (*model.User, error)
	PublicProfiles(ctx context.Context, ids []string) (map[string]model.PublicProfile, error)
	SetPresence(ctx context.Context, id string, online bool, at time.Time) error
	EnsureIndexes(ctx context.Context) error
}
