package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	claimTokenType   = "tokenType"
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var errNoSession = errors.New("no valid session")

// tokenIssuer mints and verifies the HS256 access/refresh token pair. The
// subject claim carries the user's UUID.
type tokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func newTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) tokenIssuer {
	return tokenIssuer{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (t tokenIssuer) issueAccess(userID string) (string, error) {
	return t.issue(userID, tokenTypeAccess, t.accessTTL)
}

func (t tokenIssuer) issueRefresh(userID string) (string, error) {
	return t.issue(userID, tokenTypeRefresh, t.refreshTTL)
}

func (t tokenIssuer) issue(userID, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":          userID,
		claimTokenType: tokenType,
		"iat":          now.Unix(),
		"exp":          now.Add(ttl).Unix(),
	})
	return token.SignedString(t.secret)
}

// verify checks signature, expiry, and token type, and returns the user ID.
func (t tokenIssuer) verify(raw, wantType string) (string, error) {
	token, err := jwt.Parse(raw, func(tk *jwt.Token) (any, error) {
		if _, ok := tk.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tk.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errNoSession
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errNoSession
	}
	if typ, _ := claims[claimTokenType].(string); typ != wantType {
		return "", errNoSession
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return "", errNoSession
	}
	if _, err := uuid.Parse(sub); err != nil {
		return "", errNoSession
	}
	return sub, nil
}

// bearerToken extracts the raw token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	return token, found && token != ""
}
