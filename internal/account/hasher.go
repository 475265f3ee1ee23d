package account

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/nazeru/phoneshop-go/internal/domain"
)

// Hasher is the single place passwords are hashed and verified.
type Hasher struct {
	cost int
}

// NewHasher clamps cost into bcrypt's accepted range; 0 selects the default.
func NewHasher(cost int) Hasher {
	switch {
	case cost == 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return Hasher{cost: cost}
}

func (h Hasher) Cost() int { return h.cost }

func (h Hasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare returns ErrUnauthenticated when password does not match hash.
func (h Hasher) Compare(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return domain.Unauthenticatedf("invalid username or password")
	}
	return err
}
