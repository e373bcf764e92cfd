package model

import (
	"strings"
	"time"
)

const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// User 用户主档；_id 为身份服务分配的 uid，创建于首次注册
type User struct {
	ID            string    `bson:"_id" json:"_id"`
	Nickname      string    `bson:"nickname" json:"nickname"`
	Email         string    `bson:"email,omitempty" json:"email,omitempty"`
	ProfileImgURL string    `bson:"profileImgUrl,omitempty" json:"profileImgUrl,omitempty"`
	StatusMessage string    `bson:"statusMessage,omitempty" json:"statusMessage,omitempty"`
	IsOnline      bool      `bson:"isOnline" json:"isOnline"`
	LastActive    time.Time `bson:"lastActive" json:"lastActive"`
	BirthYear     int       `bson:"birthYear,omitempty" json:"birthYear,omitempty"`
	Bio           string    `bson:"bio" json:"bio"`
	Gender        string    `bson:"gender,omitempty" json:"gender,omitempty"`
	Region        string    `bson:"region,omitempty" json:"region,omitempty"`
	MinAgeGroup   string    `bson:"minAgeGroup,omitempty" json:"minAgeGroup,omitempty"`
	MaxAgeGroup   string    `bson:"maxAgeGroup,omitempty" json:"maxAgeGroup,omitempty"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (User) GetTableName() string { return "users" }

// PublicProfile is what other users may see inline in lists and pushes.
type PublicProfile struct {
	ID            string `bson:"_id" json:"_id"`
	Nickname      string `bson:"nickname" json:"nickname"`
	Gender        string `bson:"gender,omitempty" json:"gender,omitempty"`
	ProfileImgURL string `bson:"profileImgUrl,omitempty" json:"profileImgUrl,omitempty"`
	StatusMessage string `bson:"statusMessage,omitempty" json:"statusMessage,omitempty"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:            u.ID,
		Nickname:      u.Nickname,
		Gender:        u.Gender,
		ProfileImgURL: u.ProfileImgURL,
		StatusMessage: u.StatusMessage,
	}
}

// ProfileUpdate carries the mutable profile fields; nil means "leave as is".
type ProfileUpdate struct {
	Nickname      *string `json:"nickname"`
	ProfileImgURL *string `json:"profileImgUrl"`
	StatusMessage *string `json:"statusMessage"`
	BirthYear     *int    `json:"birthYear"`
	Bio           *string `json:"bio"`
	Gender        *string `json:"gender"`
	Region        *string `json:"region"`
	MinAgeGroup   *string `json:"minAgeGroup"`
	MaxAgeGroup   *string `json:"maxAgeGroup"`
}

func (p *ProfileUpdate) Empty() bool {
	return p.Nickname == nil && p.ProfileImgURL == nil && p.StatusMessage == nil &&
		p.BirthYear == nil && p.Bio == nil && p.Gender == nil && p.Region == nil &&
		p.MinAgeGroup == nil && p.MaxAgeGroup == nil
}

// Apply copies the set fields onto u.
func (p *ProfileUpdate) Apply(u *User) {
	if p.Nickname != nil {
		u.Nickname = strings.TrimSpace(*p.Nickname)
	}
	if p.ProfileImgURL != nil {
		u.ProfileImgURL = *p.ProfileImgURL
	}
	if p.StatusMessage != nil {
		u.StatusMessage = *p.StatusMessage
	}
	if p.BirthYear != nil {
		u.BirthYear = *p.BirthYear
	}
	if p.Bio != nil {
		u.Bio = *p.Bio
	}
	if p.Gender != nil {
		u.Gender = *p.Gender
	}
	if p.Region != nil {
		u.Region = *p.Region
	}
	if p.MinAgeGroup != nil {
		u.MinAgeGroup = *p.MinAgeGroup
	}
	if p.MaxAgeGroup != nil {
		u.MaxAgeGroup = *p.MaxAgeGroup
	}
}

func ValidGender(g string) bool {
	switch g {
	case "", GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// DefaultProfileImageURL picks the bundled avatar served by the web client.
func DefaultProfileImageURL(clientBaseURL, gender string) string {
	name := "default_profile_guest.png"
	switch gender {
	case GenderMale:
		name = "default_profile_male.png"
	case GenderFemale:
		name = "default_profile_female.png"
	}
	return strings.TrimRight(clientBaseURL, "/") + "/img/" + name
}
