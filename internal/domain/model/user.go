package model

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// DefaultRating is the rating every new profile starts with.
const DefaultRating = 1000

const (
	DefaultAvatar = "/avatars/default.png"
	MaxBioLength  = 500
)

type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"` // Not exposed
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Profile holds a player's duel aggregates and the fields they edit themselves.
type Profile struct {
	UserID           string    `json:"user_id"`
	Username         string    `json:"username"`
	Rating           int       `json:"rating"`
	TotalMatches     int       `json:"total_matches"`
	Wins             int       `json:"wins"`
	Losses           int       `json:"losses"`
	Bio              string    `json:"bio,omitempty"`
	Avatar           string    `json:"avatar"`
	LeetcodeUsername string    `json:"leetcode_username,omitempty"`
	CodechefUsername string    `json:"codechef_username,omitempty"`
	CodeforcesHandle string    `json:"codeforces_handle,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func NewProfile(userID, username string) *Profile {
	return &Profile{UserID: userID, Username: username, Rating: DefaultRating, Avatar: DefaultAvatar}
}

// ProfileEdit changes the user-editable fields; nil fields are left alone.
type ProfileEdit struct {
	Bio              *string `json:"bio"`
	Avatar           *string `json:"avatar"`
	LeetcodeUsername *string `json:"leetcode_username"`
	CodechefUsername *string `json:"codechef_username"`
	CodeforcesHandle *string `json:"codeforces_handle"`
}

// Edit applies e. An empty avatar goes back to DefaultAvatar.
func (p *Profile) Edit(e ProfileEdit) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&p.Bio, e.Bio)
	set(&p.Avatar, e.Avatar)
	set(&p.LeetcodeUsername, e.LeetcodeUsername)
	set(&p.CodechefUsername, e.CodechefUsername)
	set(&p.CodeforcesHandle, e.CodeforcesHandle)
	if p.Avatar == "" {
		p.Avatar = DefaultAvatar
	}
}

// Apply adds one finished match to the aggregates.
func (p *Profile) Apply(delta int, won bool) {
	p.TotalMatches++
	p.Rating += delta
	if won {
		p.Wins++
	} else {
		p.Losses++
	}
}
