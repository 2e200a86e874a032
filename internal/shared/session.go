package shared

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionManager issues opaque bearer tokens backed by Redis.
type SessionManager struct {
	client *redis.Client
	ttl    time.Duration
	secret []byte
}

// Session holds per-request session data.
type Session struct {
	Token     string
	Principal Principal
	ExpiresAt time.Time
}

type sessionPayload struct {
	Principal Principal `json:"principal"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, secret string, ttl time.Duration) *SessionManager {
	return &SessionManager{
		client: client,
		ttl:    ttl,
		secret: []byte(secret),
	}
}

// Create starts a session for the principal and returns it with a fresh token.
func (sm *SessionManager) Create(ctx context.Context, p Principal) (*Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	sess := &Session{
		Token:     id.String(),
		Principal: p,
		ExpiresAt: time.Now().Add(sm.ttl).UTC(),
	}
	data, err := json.Marshal(sessionPayload{Principal: p, ExpiresAt: sess.ExpiresAt})
	if err != nil {
		return nil, err
	}
	if err := sm.client.Set(ctx, sm.redisKey(sess.Token), data, sm.ttl).Err(); err != nil {
		return nil, err
	}
	return sess, nil
}

// Load resolves the bearer token on the request. A request without a token,
// or with an unknown or expired one, yields a nil session and no error.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	token := BearerToken(r)
	if token == "" {
		return nil, nil
	}
	payload, err := sm.client.Get(ctx, sm.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}
	return &Session{Token: token, Principal: stored.Principal, ExpiresAt: stored.ExpiresAt}, nil
}

// Destroy removes the session from Redis.
func (sm *SessionManager) Destroy(ctx context.Context, sess *Session) error {
	if sess == nil || sess.Token == "" {
		return nil
	}
	if err := sm.client.Del(ctx, sm.redisKey(sess.Token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// Raw tokens never reach Redis; keys are keyed HMACs of the token.
func (sm *SessionManager) redisKey(token string) string {
	mac := hmac.New(sha256.New, sm.secret)
	_, _ = mac.Write([]byte(token))
	return "session:" + hex.EncodeToString(mac.Sum(nil))
}
