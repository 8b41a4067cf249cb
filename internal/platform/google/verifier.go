package google

import (
	"context"
	"errors"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

var ErrGoogleAuth = errors.New("google authentication failed")

// Identity is what the external provider attests: a stable subject plus the
// profile fields adopted at link-or-create time. Trust in the email is
// delegated to Google, so accounts created this way start verified.
type Identity struct {
	GoogleID string
	Email    string
	Name     string
	Picture  *string
}

type Verifier interface {
	Verify(ctx context.Context, credential string) (*Identity, error)
}

const jwksURL = "https://www.googleapis.com/oauth2/v3/certs"

type idTokenClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

// IDTokenVerifier validates Google-issued ID tokens against Google's JWKS.
type IDTokenVerifier struct {
	clientID string
	jwks     *keyfunc.JWKS
}

func NewIDTokenVerifier(clientID string) (*IDTokenVerifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, err
	}

	return &IDTokenVerifier{clientID: clientID, jwks: jwks}, nil
}

func (v *IDTokenVerifier) Verify(ctx context.Context, credential string) (*Identity, error) {
	var claims idTokenClaims
	token, err := jwt.ParseWithClaims(credential, &claims, v.jwks.Keyfunc,
		jwt.WithAudience(v.clientID),
		jwt.WithValidMethods([]string{"RS256"}),
	)
	if err != nil || !token.Valid {
		return nil, ErrGoogleAuth
	}

	if claims.Issuer != "accounts.google.com" && claims.Issuer != "https://accounts.google.com" {
		return nil, ErrGoogleAuth
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, ErrGoogleAuth
	}

	identity := &Identity{
		GoogleID: claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
	}
	if claims.Picture != "" {
		identity.Picture = &claims.Picture
	}

	return identity, nil
}
