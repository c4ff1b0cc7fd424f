package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"thientam/pkg/models"
)

// Claims carries both the single `role` claim used by end-user tokens and
// the `roles` list used by the admin console.
type Claims struct {
	Role  string   `json:"role,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// AllRoles merges role and roles without duplicates.
func (c *Claims) AllRoles() []string {
	out := make([]string, 0, len(c.Roles)+1)
	seen := map[string]bool{}
	for _, r := range append([]string{c.Role}, c.Roles...) {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// TTL is the remaining lifetime of the token.
func (c *Claims) TTL() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return time.Until(c.ExpiresAt.Time)
}

// SignAccess issues an access token for userID with the given role.
func SignAccess(secret []byte, userID, role string, ttl time.Duration) (string, error) {
	claims := Claims{
		Role:  role,
		Roles: []string{role},
	}
	return sign(secret, userID, ttl, claims)
}

// SignRefresh issues a refresh token carrying only the subject.
func SignRefresh(secret []byte, userID string, ttl time.Duration) (string, error) {
	return sign(secret, userID, ttl, Claims{})
}

func sign(secret []byte, userID string, ttl time.Duration, claims Claims) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ParseJWT(secret []byte, tokenStr string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// Issuer signs token pairs with the configured secrets and lifetimes.
// Admin access tokens get a shorter lifetime than end-user tokens.
type Issuer struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AdminTTL      time.Duration
	UserTTL       time.Duration
	RefreshTTL    time.Duration
}

func (i *Issuer) Access(userID, role string) (string, error) {
	ttl := i.UserTTL
	if role == models.RoleAdmin {
		ttl = i.AdminTTL
	}
	return SignAccess(i.AccessSecret, userID, role, ttl)
}

func (i *Issuer) Pair(userID, role string) (access, refresh string, err error) {
	if access, err = i.Access(userID, role); err != nil {
		return "", "", fmt.Errorf("sign access: %w", err)
	}
	if refresh, err = SignRefresh(i.RefreshSecret, userID, i.RefreshTTL); err != nil {
		return "", "", fmt.Errorf("sign refresh: %w", err)
	}
	return access, refresh, nil
}

// ParseRefresh verifies a refresh token against the refresh secret.
func (i *Issuer) ParseRefresh(token string) (*Claims, error) {
	return ParseJWT(i.RefreshSecret, token)
}
