package credential

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rotateStatusNotLive int64 = 0
	rotateStatusRotated int64 = 1
)

const recordFailureScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return {-1, 0}
end
local now = tonumber(ARGV[1])
local threshold = tonumber(ARGV[2])

local lock = 0
local raw = redis.call("HGET", KEYS[1], "lock_until")
if raw then
  lock = tonumber(raw) or 0
end

local attempts
if lock > 0 and lock <= now then
  attempts = 1
  lock = 0
  redis.call("HSET", KEYS[1], "login_attempts", 1, "lock_until", 0)
else
  attempts = redis.call("HINCRBY", KEYS[1], "login_attempts", 1)
  if attempts >= threshold and lock == 0 then
    lock = tonumber(ARGV[3])
    redis.call("HSET", KEYS[1], "lock_until", ARGV[3])
  end
end
redis.call("HSET", KEYS[1], "updated_at", ARGV[1])
return {attempts, lock}
`

var recordFailureLua = redis.NewScript(recordFailureScript)

// LREM and the append run in one script so two rotations presenting the same
// token cannot both find it.
const rotateRefreshScript = `
local removed = redis.call("LREM", KEYS[1], 0, ARGV[1])
if removed == 0 then
  return 0
end
redis.call("RPUSH", KEYS[1], ARGV[2])
redis.call("LTRIM", KEYS[1], -tonumber(ARGV[3]), -1)
return 1
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// RedisStore keeps each account in a hash with side indexes for email,
// one-time tokens and billing references.
//
// Key layout (prefix "acct" by default):
//
//	acct:{id}              hash   account fields
//	acct:{id}:rt           list   live refresh token digests, oldest first
//	acct:email:{email}     string account id, claimed with SETNX
//	acct:reset:{digest}    string account id, expires with the token
//	acct:reset:exp         zset   account ids scored by reset expiry (ms)
//	acct:verify:{token}    string account id
//	acct:billing:{ref}     string account id
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore returns a Store backed by client.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "acct"
	}
	return &RedisStore{redis: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(id string) string { return s.prefix + ":" + id }
func (s *RedisStore) tokensKey(id string) string { return s.prefix + ":" + id + ":rt" }
func (s *RedisStore) emailKey(email string) string { return s.prefix + ":email:" + email }
func (s *RedisStore) resetKey(digest string) string { return s.prefix + ":reset:" + digest }
func (s *RedisStore) resetExpiryKey() string { return s.prefix + ":reset:exp" }
func (s *RedisStore) verifyKey(token string) string { return s.prefix + ":verify:" + token }
func (s *RedisStore) billingKey(ref string) string { return s.prefix + ":billing:" + ref }

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// Create claims the email index first so concurrent registrations for the
// same address cannot both succeed.
func (s *RedisStore) Create(ctx context.Context, a *Account) error {
	if a == nil || a.ID == "" {
		return errors.New("account id required")
	}
	a.Email = NormalizeEmail(a.Email)

	claimed, err := s.redis.SetNX(ctx, s.emailKey(a.Email), a.ID, 0).Result()
	if err != nil {
		return unavailable(err)
	}
	if !claimed {
		return ErrEmailTaken
	}

	now := s.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(a.ID), encodeAccount(a))
		if a.VerificationToken != "" {
			pipe.Set(ctx, s.verifyKey(a.VerificationToken), a.ID, 0)
		}
		if a.BillingCustomerID != "" {
			pipe.Set(ctx, s.billingKey(a.BillingCustomerID), a.ID, 0)
		}
		return nil
	})
	if err != nil {
		_ = s.redis.Del(ctx, s.emailKey(a.Email)).Err()
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) FindByEmail(ctx context.Context, email string, fields Fields) (*Account, error) {
	id, err := s.redis.Get(ctx, s.emailKey(NormalizeEmail(email))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	return s.FindByID(ctx, id, fields)
}

func (s *RedisStore) FindByID(ctx context.Context, id string, fields Fields) (*Account, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	var (
		hashCmd   *redis.MapStringStringCmd
		tokensCmd *redis.StringSliceCmd
	)
	_, err := s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		hashCmd = pipe.HGetAll(ctx, s.key(id))
		if fields.Has(FieldRefreshTokens) {
			tokensCmd = pipe.LRange(ctx, s.tokensKey(id), 0, -1)
		}
		return nil
	})
	if err != nil {
		return nil, unavailable(err)
	}

	values := hashCmd.Val()
	if len(values) == 0 {
		return nil, ErrNotFound
	}
	a := decodeAccount(values)
	if tokensCmd != nil {
		a.RefreshTokens = tokensCmd.Val()
	}
	return scrub(a, fields), nil
}

func (s *RedisStore) RecordFailedAttempt(ctx context.Context, id string, policy LockoutPolicy, now time.Time) (LockoutState, error) {
	res, err := recordFailureLua.Run(ctx, s.redis, []string{s.key(id)},
		now.UnixMilli(), policy.Threshold, now.Add(policy.Duration).UnixMilli(),
	).Int64Slice()
	if err != nil {
		return LockoutState{}, unavailable(err)
	}
	if len(res) != 2 {
		return LockoutState{}, fmt.Errorf("%w: invalid lockout script response", ErrStoreUnavailable)
	}
	if res[0] < 0 {
		return LockoutState{}, ErrNotFound
	}
	return LockoutState{Attempts: int(res[0]), LockUntil: fromMillis(res[1])}, nil
}

func (s *RedisStore) RecordSuccess(ctx context.Context, id string, now time.Time) error {
	return s.hset(ctx, id,
		"login_attempts", 0,
		"lock_until", 0,
		"last_login", now.UnixMilli(),
	)
}

func (s *RedisStore) PushRefreshToken(ctx context.Context, id, token string, max int) error {
	if max <= 0 {
		max = DefaultRefreshTokenCap
	}
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, s.tokensKey(id), token)
		pipe.LTrim(ctx, s.tokensKey(id), int64(-max), -1)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) RotateRefreshToken(ctx context.Context, id, oldToken, newToken string, max int) error {
	if max <= 0 {
		max = DefaultRefreshTokenCap
	}
	code, err := rotateRefreshLua.Run(ctx, s.redis, []string{s.tokensKey(id)}, oldToken, newToken, max).Int64()
	if err != nil {
		return unavailable(err)
	}
	switch code {
	case rotateStatusRotated:
		return nil
	case rotateStatusNotLive:
		return ErrRefreshNotLive
	default:
		return fmt.Errorf("%w: unknown rotate script status", ErrStoreUnavailable)
	}
}

func (s *RedisStore) RemoveRefreshToken(ctx context.Context, id, token string) error {
	if err := s.redis.LRem(ctx, s.tokensKey(id), 0, token).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) ClearRefreshTokens(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, s.tokensKey(id)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) SetPasswordHash(ctx context.Context, id, hash string, revokeSessions bool) error {
	if err := s.mustExist(ctx, id); err != nil {
		return err
	}
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(id), "password_hash", hash, "updated_at", s.now().UnixMilli())
		if revokeSessions {
			pipe.Del(ctx, s.tokensKey(id))
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// SetResetToken replaces any outstanding reset token for the account.
func (s *RedisStore) SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	prev, err := s.redis.HGet(ctx, s.key(id), "reset_token_hash").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return unavailable(err)
	}
	if errors.Is(err, redis.Nil) {
		if err := s.mustExist(ctx, id); err != nil {
			return err
		}
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if prev != "" {
			pipe.Del(ctx, s.resetKey(prev))
		}
		pipe.HSet(ctx, s.key(id), "reset_token_hash", tokenHash, "reset_expires", expires.UnixMilli())
		pipe.Set(ctx, s.resetKey(tokenHash), id, 0)
		pipe.PExpireAt(ctx, s.resetKey(tokenHash), expires)
		pipe.ZAdd(ctx, s.resetExpiryKey(), redis.Z{Score: float64(expires.UnixMilli()), Member: id})
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// ConsumeResetToken is single-use: the index entry is removed with GETDEL
// before the expiry check.
func (s *RedisStore) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	id, err := s.redis.GetDel(ctx, s.resetKey(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrTokenNotFound
		}
		return "", unavailable(err)
	}

	vals, err := s.redis.HMGet(ctx, s.key(id), "reset_token_hash", "reset_expires").Result()
	if err != nil {
		return "", unavailable(err)
	}
	stored, _ := vals[0].(string)
	expires := fromMillis(parseInt(vals[1]))

	if err := s.clearReset(ctx, id); err != nil {
		return "", err
	}
	if stored != tokenHash || !expires.After(now) {
		return "", ErrTokenNotFound
	}
	return id, nil
}

func (s *RedisStore) SetVerificationToken(ctx context.Context, id, token string) error {
	prev, err := s.redis.HGet(ctx, s.key(id), "verification_token").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return unavailable(err)
	}
	if errors.Is(err, redis.Nil) {
		if err := s.mustExist(ctx, id); err != nil {
			return err
		}
	}
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if prev != "" {
			pipe.Del(ctx, s.verifyKey(prev))
		}
		pipe.HSet(ctx, s.key(id), "verification_token", token)
		pipe.Set(ctx, s.verifyKey(token), id, 0)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) ConsumeVerificationToken(ctx context.Context, token string) (string, error) {
	id, err := s.redis.GetDel(ctx, s.verifyKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrTokenNotFound
		}
		return "", unavailable(err)
	}
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(id), "email_verified", "1", "updated_at", s.now().UnixMilli())
		pipe.HDel(ctx, s.key(id), "verification_token")
		return nil
	})
	if err != nil {
		return "", unavailable(err)
	}
	return id, nil
}

func (s *RedisStore) UpdateProfile(ctx context.Context, id string, p Profile) error {
	if err := s.mustExist(ctx, id); err != nil {
		return err
	}
	values := map[string]any{"updated_at": s.now().UnixMilli()}
	encodeProfile(values, p)
	if err := s.redis.HSet(ctx, s.key(id), values).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) SetBillingCustomer(ctx context.Context, id, customerID string) error {
	if err := s.mustExist(ctx, id); err != nil {
		return err
	}
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(id), "billing_customer_id", customerID, "updated_at", s.now().UnixMilli())
		pipe.Set(ctx, s.billingKey(customerID), id, 0)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) ClearBillingCustomer(ctx context.Context, customerID string) (string, error) {
	id, err := s.redis.GetDel(ctx, s.billingKey(customerID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", unavailable(err)
	}
	if err := s.hset(ctx, id, "billing_customer_id", ""); err != nil {
		return "", err
	}
	return id, nil
}

// SoftDelete deactivates the account and revokes every refresh token. The
// record and its email claim are kept.
func (s *RedisStore) SoftDelete(ctx context.Context, id string, now time.Time) error {
	if err := s.mustExist(ctx, id); err != nil {
		return err
	}
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(id),
			"active", "0",
			"deleted", "1",
			"deleted_at", now.UnixMilli(),
			"updated_at", now.UnixMilli(),
		)
		pipe.Del(ctx, s.tokensKey(id))
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// PurgeExpired clears reset fields whose tokens expired. The index keys
// expire on their own.
func (s *RedisStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.redis.ZRangeByScore(ctx, s.resetExpiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	for _, id := range ids {
		if err := s.clearReset(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) clearReset(ctx context.Context, id string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.key(id), "reset_token_hash", "reset_expires")
		pipe.ZRem(ctx, s.resetExpiryKey(), id)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) mustExist(ctx context.Context, id string) error {
	n, err := s.redis.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) hset(ctx context.Context, id string, values ...any) error {
	if err := s.mustExist(ctx, id); err != nil {
		return err
	}
	values = append(values, "updated_at", s.now().UnixMilli())
	if err := s.redis.HSet(ctx, s.key(id), values...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func encodeAccount(a *Account) map[string]any {
	m := map[string]any{
		"id":                  a.ID,
		"email":               a.Email,
		"password_hash":       a.PasswordHash,
		"email_verified":      boolFlag(a.EmailVerified),
		"active":              boolFlag(a.Active),
		"deleted":             boolFlag(a.Deleted),
		"deleted_at":          toMillis(a.DeletedAt),
		"billing_customer_id": a.BillingCustomerID,
		"login_attempts":      a.LoginAttempts,
		"lock_until":          toMillis(a.LockUntil),
		"last_login":          toMillis(a.LastLogin),
		"verification_token":  a.VerificationToken,
		"created_at":          toMillis(a.CreatedAt),
		"updated_at":          toMillis(a.UpdatedAt),
	}
	encodeProfile(m, a.Profile)
	return m
}

func encodeProfile(m map[string]any, p Profile) {
	m["first_name"] = p.FirstName
	m["last_name"] = p.LastName
	m["phone"] = p.Phone
	m["addr_line1"] = p.Address.Line1
	m["addr_line2"] = p.Address.Line2
	m["addr_city"] = p.Address.City
	m["addr_state"] = p.Address.State
	m["addr_postal_code"] = p.Address.PostalCode
	m["addr_country"] = p.Address.Country
}

func decodeAccount(v map[string]string) *Account {
	attempts, _ := strconv.Atoi(v["login_attempts"])
	return &Account{
		ID:    v["id"],
		Email: v["email"],
		Profile: Profile{
			FirstName: v["first_name"],
			LastName:  v["last_name"],
			Phone:     v["phone"],
			Address: Address{
				Line1:      v["addr_line1"],
				Line2:      v["addr_line2"],
				City:       v["addr_city"],
				State:      v["addr_state"],
				PostalCode: v["addr_postal_code"],
				Country:    v["addr_country"],
			},
		},
		EmailVerified:     v["email_verified"] == "1",
		Active:            v["active"] == "1",
		Deleted:           v["deleted"] == "1",
		DeletedAt:         fromMillis(parseInt(v["deleted_at"])),
		BillingCustomerID: v["billing_customer_id"],
		LastLogin:         fromMillis(parseInt(v["last_login"])),
		CreatedAt:         fromMillis(parseInt(v["created_at"])),
		UpdatedAt:         fromMillis(parseInt(v["updated_at"])),
		PasswordHash:      v["password_hash"],
		LoginAttempts:     attempts,
		LockUntil:         fromMillis(parseInt(v["lock_until"])),
		VerificationToken: v["verification_token"],
		ResetTokenHash:    v["reset_token_hash"],
		ResetTokenExpires: fromMillis(parseInt(v["reset_expires"])),
	}
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func parseInt(v any) int64 {
	s, _ := v.(string)
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
