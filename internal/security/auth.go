package security

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrInvalidToken     = errors.New("invalid or expired session token")
	ErrPasswordMismatch = errors.New("incorrect password")
	ErrWeakPassword     = errors.New("password must be at least 6 characters and contain upper and lower case letters, a digit and a special character")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
)

const sessionSubject = "sql-console"

// HashPassword returns the bcrypt hash stored in the settings file.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a candidate against a stored hash.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}

// CheckStrength enforces the minimum length always and the character-class
// rule only when strict is set.
func CheckStrength(password string, strict bool) error {
	if len([]rune(password)) < 6 {
		return ErrPasswordTooShort
	}
	if !strict {
		return nil
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if !(upper && lower && digit && special) {
		return ErrWeakPassword
	}
	return nil
}

// Sessions issues and verifies the HS256 tokens handed out after a successful
// password check. The signing key is derived from the server secret and the
// current password hash, so changing the password revokes every token.
type Sessions struct {
	secret []byte
	now    func() time.Time
}

func NewSessions(secret []byte) *Sessions {
	return &Sessions{secret: secret, now: time.Now}
}

func (s *Sessions) key(passwordHash string) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, s.secret, []byte(passwordHash), []byte("session-token"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	return key, nil
}

// Issue returns a signed token valid for ttl.
func (s *Sessions) Issue(passwordHash string, ttl time.Duration) (string, time.Time, error) {
	key, err := s.key(passwordHash)
	if err != nil {
		return "", time.Time{}, err
	}
	now := s.now()
	expires := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sessionSubject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expires, nil
}

// Verify checks signature, expiry and subject.
func (s *Sessions) Verify(tokenString, passwordHash string) error {
	if tokenString == "" {
		return ErrInvalidToken
	}
	key, err := s.key(passwordHash)
	if err != nil {
		return err
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithSubject(sessionSubject),
	)
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
