package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"PPChat/module/user/model"
	"PPChat/module/user/store"
	"PPChat/tools/errs"
	"PPChat/tools/retry"
	"PPChat/tools/safe"
)

// ProfileImageTTL is how long a signed profile-image URL stays readable.
const ProfileImageTTL = 300 * time.Second

const maxNicknameLen = 30

// ImageURLSigner issues a time-limited read URL for an object in blob storage.
type ImageURLSigner interface {
	SignReadURL(ctx context.Context, rawURL string, ttl time.Duration) (string, error)
}

// PassthroughSigner is used when images are served from a public bucket.
type PassthroughSigner struct{}

func (PassthroughSigner) SignReadURL(_ context.Context, rawURL string, _ time.Duration) (string, error) {
	return rawURL, nil
}

type Options struct {
	ClientBaseURL string
	Retry         retry.Policy
	Signer        ImageURLSigner
	Now           func() time.Time
}

type Service struct {
	store  store.Store
	opts   Options
	signer ImageURLSigner
	now    func() time.Time
}

func NewService(st store.Store, opts Options) *Service {
	safe.MustNotNil(st, "user store")
	s := &Service{store: st, opts: opts, signer: opts.Signer, now: opts.Now}
	if s.signer == nil {
		s.signer = PassthroughSigner{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type SignupInput struct {
	Nickname    string `json:"nickname"`
	Email       string `json:"email"`
	Gender      string `json:"gender"`
	BirthYear   int    `json:"birthYear"`
	Region      string `json:"region"`
	MinAgeGroup string `json:"minAgeGroup"`
	MaxAgeGroup string `json:"maxAgeGroup"`
}

// Signup creates the profile for a freshly verified identity.
func (s *Service) Signup(ctx context.Context, uid string, in SignupInput) (*model.User, error) {
	// 房间 id 用 "_" 拼接两个 uid
	if uid == "" || strings.Contains(uid, "_") {
		return nil, errs.ErrArgs.WrapMsg("uid must be non-empty and must not contain '_'")
	}
	nickname, err := normNickname(in.Nickname)
	if err != nil {
		return nil, err
	}
	if !model.ValidGender(in.Gender) {
		return nil, errs.ErrArgs.WrapMsg("invalid gender", "gender", in.Gender)
	}
	now := s.now()
	u := &model.User{
		ID:            uid,
		Nickname:      nickname,
		Email:         strings.TrimSpace(in.Email),
		ProfileImgURL: model.DefaultProfileImageURL(s.opts.ClientBaseURL, in.Gender),
		LastActive:    now,
		BirthYear:     in.BirthYear,
		Gender:        in.Gender,
		Region:        in.Region,
		MinAgeGroup:   in.MinAgeGroup,
		MaxAgeGroup:   in.MaxAgeGroup,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, uid string) (*model.User, error) {
	return s.store.Get(ctx, uid)
}

// GetWithRetry absorbs the window in which a user written by the signup path
// is not yet visible to this reader.
func (s *Service) GetWithRetry(ctx context.Context, uid string) (*model.User, error) {
	return retry.Do(ctx, s.opts.Retry, isNotFound, func(ctx context.Context) (*model.User, error) {
		return s.store.Get(ctx, uid)
	})
}

// EnsureExists is used before a relationship points at uid.
func (s *Service) EnsureExists(ctx context.Context, uid string) error {
	_, err := s.GetWithRetry(ctx, uid)
	return err
}

func (s *Service) UpdateProfile(ctx context.Context, uid string, upd model.ProfileUpdate) (*model.User, error) {
	if upd.Empty() {
		return nil, errs.ErrArgs.WrapMsg("nothing to update")
	}
	if upd.Nickname != nil {
		n, err := normNickname(*upd.Nickname)
		if err != nil {
			return nil, err
		}
		upd.Nickname = &n
	}
	if upd.Gender != nil && !model.ValidGender(*upd.Gender) {
		return nil, errs.ErrArgs.WrapMsg("invalid gender", "gender", *upd.Gender)
	}
	return s.store.Update(ctx, uid, upd, s.now())
}

func (s *Service) PublicProfile(ctx context.Context, uid string) (model.PublicProfile, error) {
	u, err := s.store.Get(ctx, uid)
	if err != nil {
		return model.PublicProfile{}, err
	}
	return u.Public(), nil
}

// PublicProfiles resolves several users at once; unknown ids are simply absent.
func (s *Service) PublicProfiles(ctx context.Context, ids []string) (map[string]model.PublicProfile, error) {
	return s.store.PublicProfiles(ctx, dedupe(ids))
}

// ProfileImageURL returns a signed, short-lived URL for the caller's avatar.
func (s *Service) ProfileImageURL(ctx context.Context, uid string) (string, time.Time, error) {
	u, err := s.GetWithRetry(ctx, uid)
	if err != nil {
		return "", time.Time{}, err
	}
	raw := u.ProfileImgURL
	if raw == "" {
		raw = model.DefaultProfileImageURL(s.opts.ClientBaseURL, u.Gender)
	}
	signed, err := s.signer.SignReadURL(ctx, raw, ProfileImageTTL)
	if err != nil {
		return "", time.Time{}, errs.ErrUpstream.WrapMsg("sign profile image url", "reason", err.Error())
	}
	return signed, s.now().Add(ProfileImageTTL), nil
}

func (s *Service) SetOnline(ctx context.Context, uid string, online bool) error {
	return s.store.SetPresence(ctx, uid, online, s.now())
}

func normNickname(n string) (string, error) {
	n = strings.TrimSpace(n)
	if n == "" {
		return "", errs.ErrArgs.WrapMsg("nickname is required")
	}
	if len([]rune(n)) > maxNicknameLen {
		return "", errs.ErrArgs.WrapMsg("nickname too long")
	}
	return n, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, errs.ErrRecordNotFound)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
