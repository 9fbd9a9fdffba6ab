package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const secretSetting = "pilot_secret"

// ErrInvalidToken is returned for pilot tokens that fail validation.
var ErrInvalidToken = errors.New("invalid pilot token")

// Auth issues and checks pilot tokens. A pilot token grants control of one
// session; anyone else who joins only spectates.
type Auth struct {
	secret []byte
	ttl    time.Duration
}

// NewAuth creates a token issuer. An empty secret is loaded from the
// database, or generated and persisted there.
func NewAuth(secret string, ttl time.Duration, db *DB, log *logrus.Entry) *Auth {
	key := []byte(secret)
	if len(key) == 0 {
		key = loadOrCreateSecret(db, log)
	}
	return &Auth{secret: key, ttl: ttl}
}

// loadOrCreateSecret loads the signing key from the database, or generates
// and persists a new one if none exists.
func loadOrCreateSecret(db *DB, log *logrus.Entry) []byte {
	if db != nil {
		if h, err := db.GetSetting(secretSetting); err == nil && h != "" {
			if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
				return b
			}
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("failed to generate token secret: " + err.Error())
	}
	if db != nil {
		if err := db.SetSetting(secretSetting, hex.EncodeToString(secret)); err != nil {
			log.WithError(err).Warn("could not persist token secret")
		}
	}
	return secret
}

// IssuePilotToken signs a token for sessionID.
func (a *Auth) IssuePilotToken(sessionID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sid": sessionID,
		"iat": now.Unix(),
		"exp": now.Add(a.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidatePilotToken checks that tokenStr is a live token for sessionID.
func (a *Auth) ValidatePilotToken(tokenStr, sessionID string) error {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return ErrInvalidToken
	}
	sid, ok := claims["sid"].(string)
	if !ok || sid != sessionID {
		return fmt.Errorf("%w: wrong session", ErrInvalidToken)
	}
	return nil
}
