package auth

import (
	"errors"
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/pathwayfr/pathway/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// Hasher is the one-way password hashing contract.
type Hasher interface {
	Hash(password string) (string, error)
	// Verify reports whether password matches hash. A malformed hash is a mismatch.
	Verify(password, hash string) bool
}

// BcryptHasher hashes with bcrypt at a fixed cost.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost, or bcrypt.DefaultCost when
// cost is out of range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", common.Validation("password is required")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", common.Validation("password must be at most 72 bytes")
		}
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(b), nil
}

func (h *BcryptHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

const PasswordSymbols = `!@#$%^&*(),.?":{}|<>`

var (
	reUpper  = regexp.MustCompile(`[A-Z]`)
	reDigit  = regexp.MustCompile(`\d`)
	reSymbol = regexp.MustCompile(`[` + regexp.QuoteMeta(PasswordSymbols) + `]`)
)

// CheckPasswordStrength enforces at least 8 characters with one uppercase
// letter, one digit and one symbol from PasswordSymbols.
func CheckPasswordStrength(password string) error {
	err := validation.Validate(password,
		validation.Required,
		validation.Length(8, 0),
		validation.Match(reUpper),
		validation.Match(reDigit),
		validation.Match(reSymbol),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrWeakPassword, err)
	}
	return nil
}
