package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrInvalidRefreshToken indicates the token is unknown or expired.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrRefreshTokenReplay indicates reuse of an already-rotated token.
	ErrRefreshTokenReplay = errors.New("refresh token replay detected")
)

// Tokens rotate within a family: each refresh invalidates the previous token
// but keeps the family alive, and replay of a stale family member revokes
// the whole family.

type refreshFamily struct {
	userID      string
	currentHash string
	expiry      time.Time
}

// MemoryRefreshTokenStore keeps refresh token families in memory.
type MemoryRefreshTokenStore struct {
	mu           sync.Mutex
	families     map[string]refreshFamily
	tokenFamily  map[string]string              // tokenHash -> familyID
	familyTokens map[string]map[string]struct{} // familyID -> token hashes
	userFamilies map[string]map[string]struct{} // userID -> family IDs
}

// NewMemoryRefreshTokenStore constructs an in-memory refresh token store.
func NewMemoryRefreshTokenStore() *MemoryRefreshTokenStore {
	return &MemoryRefreshTokenStore{
		families:     make(map[string]refreshFamily),
		tokenFamily:  make(map[string]string),
		familyTokens: make(map[string]map[string]struct{}),
		userFamilies: make(map[string]map[string]struct{}),
	}
}

// NewToken issues and stores a new refresh token family.
func (s *MemoryRefreshTokenStore) NewToken(userID string, ttl time.Duration) (string, error) {
	token, err := randomToken(32)
	if err != nil {
		return "", err
	}
	familyID, err := randomToken(16)
	if err != nil {
		return "", err
	}
	hash := tokenDigest(token)

	s.mu.Lock()
	s.families[familyID] = refreshFamily{
		userID:      userID,
		currentHash: hash,
		expiry:      time.Now().UTC().Add(ttl),
	}
	s.tokenFamily[hash] = familyID
	s.familyTokens[familyID] = map[string]struct{}{hash: {}}
	if s.userFamilies[userID] == nil {
		s.userFamilies[userID] = make(map[string]struct{})
	}
	s.userFamilies[userID][familyID] = struct{}{}
	s.mu.Unlock()
	return token, nil
}

// RotateToken validates the token and issues its successor in the same family.
func (s *MemoryRefreshTokenStore) RotateToken(token string, ttl time.Duration) (string, string, error) {
	hash := tokenDigest(token)
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	familyID, ok := s.tokenFamily[hash]
	if !ok {
		return "", "", ErrInvalidRefreshToken
	}
	family, ok := s.families[familyID]
	if !ok || now.After(family.expiry) {
		s.dropFamilyLocked(familyID)
		return "", "", ErrInvalidRefreshToken
	}
	if family.currentHash != hash {
		// Stale token from this family: treat as theft, revoke everything.
		s.dropFamilyLocked(familyID)
		return "", "", ErrRefreshTokenReplay
	}

	next, err := randomToken(32)
	if err != nil {
		return "", "", err
	}
	nextHash := tokenDigest(next)
	family.currentHash = nextHash
	family.expiry = now.Add(ttl)
	s.families[familyID] = family
	s.tokenFamily[nextHash] = familyID
	s.familyTokens[familyID][nextHash] = struct{}{}
	return family.userID, next, nil
}

// DeleteToken revokes the whole family containing this token.
func (s *MemoryRefreshTokenStore) DeleteToken(token string) error {
	hash := tokenDigest(token)
	s.mu.Lock()
	if familyID, ok := s.tokenFamily[hash]; ok {
		s.dropFamilyLocked(familyID)
	}
	s.mu.Unlock()
	return nil
}

// RevokeUserRefreshTokens revokes every family issued to a user.
func (s *MemoryRefreshTokenStore) RevokeUserRefreshTokens(userID string) error {
	s.mu.Lock()
	familyIDs := make([]string, 0, len(s.userFamilies[userID]))
	for familyID := range s.userFamilies[userID] {
		familyIDs = append(familyIDs, familyID)
	}
	for _, familyID := range familyIDs {
		s.dropFamilyLocked(familyID)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryRefreshTokenStore) dropFamilyLocked(familyID string) {
	userID := s.families[familyID].userID
	for h := range s.familyTokens[familyID] {
		delete(s.tokenFamily, h)
	}
	delete(s.familyTokens, familyID)
	delete(s.families, familyID)
	if userID != "" {
		if fams, ok := s.userFamilies[userID]; ok {
			delete(fams, familyID)
			if len(fams) == 0 {
				delete(s.userFamilies, userID)
			}
		}
	}
}

// RedisRefreshTokenStore stores refresh token families in Redis. Rotation is
// a Lua script so concurrent refreshes of the same token cannot both win.
type RedisRefreshTokenStore struct {
	client *redis.Client
}

// NewRedisRefreshTokenStore builds a Redis-backed refresh token store.
func NewRedisRefreshTokenStore(addr, password string) *RedisRefreshTokenStore {
	return &RedisRefreshTokenStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

// KEYS[1] token->family, KEYS[2] family hash, KEYS[3] family token set,
// ARGV[1] presented hash, ARGV[2] new hash, ARGV[3] ttl millis.
// Returns {userID} on success, "replay" when a stale member was presented.
var rotateScript = redis.NewScript(`
local family = redis.call("GET", KEYS[1])
if not family then
  return false
end
local current = redis.call("HGET", KEYS[2], "currentHash")
local user = redis.call("HGET", KEYS[2], "userId")
if current ~= ARGV[1] then
  local members = redis.call("SMEMBERS", KEYS[3])
  for _, h in ipairs(members) do
    redis.call("DEL", "meridian:refresh:token:" .. h)
  end
  redis.call("DEL", KEYS[2], KEYS[3])
  return "replay"
end
redis.call("HSET", KEYS[2], "currentHash", ARGV[2])
redis.call("PEXPIRE", KEYS[2], ARGV[3])
redis.call("SADD", KEYS[3], ARGV[2])
redis.call("PEXPIRE", KEYS[3], ARGV[3])
redis.call("SET", "meridian:refresh:token:" .. ARGV[2], family, "PX", ARGV[3])
return user
`)

// NewToken issues and stores a new refresh token family.
func (s *RedisRefreshTokenStore) NewToken(userID string, ttl time.Duration) (string, error) {
	token, err := randomToken(32)
	if err != nil {
		return "", err
	}
	familyID, err := randomToken(16)
	if err != nil {
		return "", err
	}
	hash := tokenDigest(token)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, refreshTokenKey(hash), familyID, ttl)
	pipe.HSet(ctx, refreshFamilyKey(familyID), map[string]any{
		"userId":      userID,
		"currentHash": hash,
	})
	pipe.Expire(ctx, refreshFamilyKey(familyID), ttl)
	pipe.SAdd(ctx, refreshFamilyTokensKey(familyID), hash)
	pipe.Expire(ctx, refreshFamilyTokensKey(familyID), ttl)
	pipe.SAdd(ctx, refreshUserKey(userID), familyID)
	pipe.Expire(ctx, refreshUserKey(userID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return token, nil
}

// RotateToken validates the token and issues its successor in the same family.
func (s *RedisRefreshTokenStore) RotateToken(token string, ttl time.Duration) (string, string, error) {
	hash := tokenDigest(token)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	familyID, err := s.client.Get(ctx, refreshTokenKey(hash)).Result()
	if err == redis.Nil {
		return "", "", ErrInvalidRefreshToken
	}
	if err != nil {
		return "", "", fmt.Errorf("resolve refresh family: %w", err)
	}

	next, err := randomToken(32)
	if err != nil {
		return "", "", err
	}
	nextHash := tokenDigest(next)
	res, err := rotateScript.Run(ctx, s.client,
		[]string{refreshTokenKey(hash), refreshFamilyKey(familyID), refreshFamilyTokensKey(familyID)},
		hash, nextHash, ttl.Milliseconds(),
	).Result()
	if err == redis.Nil || res == nil {
		return "", "", ErrInvalidRefreshToken
	}
	if err != nil {
		return "", "", fmt.Errorf("rotate refresh token: %w", err)
	}
	out, _ := res.(string)
	if out == "replay" {
		return "", "", ErrRefreshTokenReplay
	}
	if out == "" {
		return "", "", ErrInvalidRefreshToken
	}
	return out, next, nil
}

// DeleteToken revokes the whole family containing this token.
func (s *RedisRefreshTokenStore) DeleteToken(token string) error {
	hash := tokenDigest(token)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	familyID, err := s.client.Get(ctx, refreshTokenKey(hash)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	return s.dropFamily(ctx, familyID)
}

// RevokeUserRefreshTokens revokes every family issued to a user.
func (s *RedisRefreshTokenStore) RevokeUserRefreshTokens(userID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	familyIDs, err := s.client.SMembers(ctx, refreshUserKey(userID)).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	for _, familyID := range familyIDs {
		if err := s.dropFamily(ctx, familyID); err != nil {
			return err
		}
	}
	return s.client.Del(ctx, refreshUserKey(userID)).Err()
}

func (s *RedisRefreshTokenStore) dropFamily(ctx context.Context, familyID string) error {
	hashes, err := s.client.SMembers(ctx, refreshFamilyTokensKey(familyID)).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	keys := make([]string, 0, len(hashes)+2)
	for _, h := range hashes {
		keys = append(keys, refreshTokenKey(h))
	}
	keys = append(keys, refreshFamilyKey(familyID), refreshFamilyTokensKey(familyID))
	return s.client.Del(ctx, keys...).Err()
}

func refreshTokenKey(hash string) string {
	return "meridian:refresh:token:" + hash
}

func refreshFamilyKey(familyID string) string {
	return "meridian:refresh:family:" + familyID
}

func refreshFamilyTokensKey(familyID string) string {
	return "meridian:refresh:familytokens:" + familyID
}

func refreshUserKey(userID string) string {
	return "meridian:refresh:user:" + userID
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
