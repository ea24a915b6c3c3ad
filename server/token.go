package server

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("token is invalid")
	ErrExpiredToken = errors.New("token has expired")
)

// Payload identifies the participant a token was issued to.
type Payload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

type Token struct {
	secretKey []byte
	ttl       time.Duration
}

func NewToken(secret string, ttl time.Duration) Token {
	return Token{secretKey: []byte(secret), ttl: ttl}
}

// RandomSecret makes a secret of n letters and digits; tokens signed with
// it stop working when the process restarts.
func RandomSecret(n int) (string, error) {
	letters := []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

	s := make([]rune, n)
	for i := range s {
		k, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", err
		}
		s[i] = letters[k.Int64()]
	}
	return string(s), nil
}

func (t *Token) CreateToken(id int64, name string) (string, error) {
	now := time.Now()
	payload := Payload{
		ID:   id,
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	jwtToken := jwt.NewWithClaims(jwt.SigningMethodHS256, &payload)
	return jwtToken.SignedString(t.secretKey)
}

func (t *Token) CheckTokenRequest(r *http.Request) (*Payload, error) {
	return t.VerifyToken(ExtractToken(r))
}

func ExtractToken(r *http.Request) string {
	bearToken := r.Header.Get("Authorization")
	strArr := strings.Split(bearToken, " ")
	if len(strArr) == 2 {
		return strArr[1]
	}
	return ""
}

func (t *Token) VerifyToken(token string) (*Payload, error) {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.secretKey, nil
	}

	jwtToken, err := jwt.ParseWithClaims(token, &Payload{}, keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	payload, ok := jwtToken.Claims.(*Payload)
	if !ok || !jwtToken.Valid {
		return nil, ErrInvalidToken
	}
	return payload, nil
}

func (t *Token) CheckTokenVars(vars map[string]string) (*Payload, error) {
	token, ok := vars["sessionToken"]
	if !ok {
		return nil, fmt.Errorf("missing parameter for sessionToken")
	}
	return t.VerifyToken(token)
}
