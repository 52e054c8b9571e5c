package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	// TokenExpiration defines the validity duration of minted identity tokens.
	TokenExpiration = 24 * time.Hour

	// TokenIssuer identifies the issuer of the token.
	TokenIssuer = "dmrelay"
)

// Claims defines the JWT claims carried by an identity token.
type Claims struct {
	// StandardClaims embeds the JWT standard fields (Exp, Iat, Iss, Sub).
	jwt.StandardClaims

	// Name mirrors the display name the token was minted for.
	Name string `json:"name"`
}

// GenerateToken creates and signs a token binding the given identity ID and name.
func GenerateToken(id Identity, secretKey string) (string, error) {
	now := time.Now()

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   id.ID,
			ExpiresAt: now.Add(TokenExpiration).Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    TokenIssuer,
		},
		Name: id.Name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(secretKey))
}

// ParseToken parses and validates a token string using the provided secretKey.
func ParseToken(tokenString string, secretKey string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	return claims, nil
}

// TokenVerifier validates signed identity tokens. The token subject must match
// the claimed identity ID; the display name is not checked, since the claim is
// presentation-level.
type TokenVerifier struct {
	Secret string
}

// Verify parses the token and checks the subject against the claimed ID.
func (v TokenVerifier) Verify(ctx context.Context, claimed Identity, token string) error {
	if token == "" {
		return errors.New("identity token required")
	}

	claims, err := ParseToken(token, v.Secret)
	if err != nil {
		return fmt.Errorf("identity token rejected: %w", err)
	}

	if claims.Subject != claimed.ID {
		return fmt.Errorf("identity token subject %q does not match claimed id %q", claims.Subject, claimed.ID)
	}

	return nil
}
