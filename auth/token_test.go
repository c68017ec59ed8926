package auth

import (
	"chat-sync/errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func sign(t *testing.T, claims Claims) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server_side_key"))
	require.NoError(t, err)
	return token
}

func TestCheckSession(t *testing.T) {
	tests := []struct {
		name    string
		claims  Claims
		wantErr error
	}{
		{"Valid token", Claims{UserID: "me", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))}}, nil},
		{"Subject fallback", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "me"}}, nil},
		{"Other user", Claims{UserID: "alice"}, errors.ErrTokenMismatch},
		{"Expired", Claims{UserID: "me", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute))}}, errors.ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			err := CheckSession(sign(t, tt.claims), "me", now)
			if tt.wantErr == nil {
				req.NoError(err)
				return
			}
			req.ErrorIs(err, tt.wantErr)
		})
	}
}

func TestCheckSession_Opaque_Token_Is_Accepted(t *testing.T) {
	req := require.New(t)
	req.NoError(CheckSession("3f2a9c81d0e4", "me", now))
}

func TestParseToken_Malformed(t *testing.T) {
	req := require.New(t)

	// Given three segments that are not base64 JSON
	_, err := ParseToken("not.a.jwt")

	// Then the error is typed
	req.ErrorIs(err, errors.ErrInvalidToken)
}

func TestParseToken_Reads_Claims_Without_Key(t *testing.T) {
	req := require.New(t)
	token := sign(t, Claims{UserID: "me", RegisteredClaims: jwt.RegisteredClaims{Issuer: "chat-api"}})

	claims, err := ParseToken(token)

	req.NoError(err)
	req.Equal("me", claims.UserID)
	req.Equal("chat-api", claims.Issuer)
}
