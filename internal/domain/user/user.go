package user

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	CreatedAt    time.Time `json:"createdAt"`
}

// Identity is what a verified session token resolves to.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

var (
	ErrNotFound      = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
)

const MinUsernameLength = 4

type Credentials struct {
	Username string `json:"username" binding:"required,min=4,max=64"`
	Password string `json:"password" binding:"required,max=72"` // rune count; the hasher enforces 72 bytes
}

func New(username, passwordHash string) User {
	return User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
}

func (u User) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username}
}
