package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
	ErrWrongKind    = errors.New("wrong token kind")
)

const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

type Claims struct {
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// Codec signs and verifies the two signed-token families. Access and
// refresh tokens use separate secrets so that leaking one key does not
// compromise the other.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
}

func NewCodec(accessSecret, refreshSecret string) *Codec {
	return &Codec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
	}
}

func (c *Codec) secretFor(kind string) []byte {
	if kind == KindRefresh {
		return c.refreshSecret
	}
	return c.accessSecret
}

func (c *Codec) issue(userID uuid.UUID, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secretFor(kind))
}

func (c *Codec) IssueAccessToken(userID uuid.UUID) (string, error) {
	return c.issue(userID, KindAccess, AccessTokenTTL)
}

func (c *Codec) IssueRefreshToken(userID uuid.UUID) (string, error) {
	return c.issue(userID, KindRefresh, RefreshTokenTTL)
}

func (c *Codec) IssuePair(userID uuid.UUID) (accessToken string, refreshToken string, err error) {
	if accessToken, err = c.IssueAccessToken(userID); err != nil {
		return "", "", err
	}
	if refreshToken, err = c.IssueRefreshToken(userID); err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// Verify checks signature, expiry and kind, in that order. Expiry is
// reported separately from other failures so that clients holding an
// expired access token know to refresh instead of re-login.
func (c *Codec) Verify(tokenString, kind string) (uuid.UUID, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secretFor(kind), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, ErrExpiredToken
		}
		return uuid.Nil, ErrInvalidToken
	}

	if claims.Kind != kind {
		return uuid.Nil, ErrWrongKind
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}

	return userID, nil
}

// GenerateOpaqueToken returns a 256-bit random token for verification and
// password-reset links. The caller clears it after one use.
func GenerateOpaqueToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// HashToken is the one-way digest stored in place of a live refresh token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
