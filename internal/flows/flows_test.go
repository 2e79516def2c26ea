package flows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goAccount/credential"
)

type memStore struct {
	mu       sync.Mutex
	accounts map[string]*credential.Account
	tokens   map[string][]string
	hashSets int
}

func newMemStore(accounts ...*credential.Account) *memStore {
	s := &memStore{accounts: map[string]*credential.Account{}, tokens: map[string][]string{}}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *memStore) FindByEmail(_ context.Context, email string, _ credential.Fields) (*credential.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, credential.ErrNotFound
}

func (s *memStore) FindByID(_ context.Context, id string, _ credential.Fields) (*credential.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, credential.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) SetPasswordHash(_ context.Context, id, hash string, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[id].PasswordHash = hash
	s.hashSets++
	return nil
}

func (s *memStore) RotateRefreshToken(_ context.Context, id, oldToken, newToken string, max int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.tokens[id]
	for i, tok := range live {
		if tok == oldToken {
			live = append(live[:i:i], live[i+1:]...)
			live = append(live, newToken)
			if len(live) > max {
				live = live[len(live)-max:]
			}
			s.tokens[id] = live
			return nil
		}
	}
	return credential.ErrRefreshNotLive
}

type fakeLockout struct {
	threshold int
	failures  int
	until     time.Time
	resets    int
}

func (l *fakeLockout) Locked(lockUntil, now time.Time) bool {
	return credential.IsLocked(lockUntil, now)
}

func (l *fakeLockout) RecordFailure(_ context.Context, _ string, now time.Time) (bool, time.Time, error) {
	l.failures++
	if l.failures >= l.threshold {
		l.until = now.Add(time.Hour)
		return true, l.until, nil
	}
	return false, time.Time{}, nil
}

func (l *fakeLockout) Reset(context.Context, string, time.Time) error {
	l.resets++
	l.failures = 0
	return nil
}

type counters struct {
	mu sync.Mutex
	n  map[int]int
}

func (c *counters) inc(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == nil {
		c.n = map[int]int{}
	}
	c.n[id]++
}

func (c *counters) get(id int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n[id]
}

func plainVerify(_ context.Context, password, hash string) (bool, error) {
	return "h:"+password == hash, nil
}

func loginDeps(store *memStore, lockout *fakeLockout, c *counters) LoginDeps {
	deps := LoginDeps{
		Store:          store,
		VerifyPassword: plainVerify,
		IssueTokens: func(context.Context, *credential.Account) (IssuedTokens, error) {
			return IssuedTokens{AccessToken: "at", RefreshToken: "rt"}, nil
		},
		Metrics: LoginMetrics{LoginSuccess: 1, LoginFailure: 2, LoginLocked: 3, AccountLocked: 4},
	}
	if lockout != nil {
		deps.Lockout = lockout
	}
	deps.MetricInc = c.inc
	return deps
}

func activeAccount(id, email, password string) *credential.Account {
	return &credential.Account{ID: id, Email: email, Active: true, PasswordHash: "h:" + password}
}

func TestRunLoginSuccessClearsSecrets(t *testing.T) {
	store := newMemStore(activeAccount("a1", "a@example.com", "pw"))
	lockout := &fakeLockout{threshold: 5}
	c := &counters{}

	res := RunLogin(context.Background(), " A@Example.com ", "pw", loginDeps(store, lockout, c))
	if res.Failure != LoginFailureNone {
		t.Fatalf("unexpected failure %v: %v", res.Failure, res.Err)
	}
	if res.Account.PasswordHash != "" {
		t.Fatal("password hash must not leave the flow")
	}
	if res.Account.LastLogin.IsZero() {
		t.Fatal("expected last login to be set")
	}
	if lockout.resets != 1 || c.get(1) != 1 {
		t.Fatalf("resets=%d success=%d", lockout.resets, c.get(1))
	}
}

func TestRunLoginUnknownEmailUsesDummyHash(t *testing.T) {
	store := newMemStore()
	var dummyUsed bool
	deps := loginDeps(store, nil, &counters{})
	deps.DummyHash = func() string {
		dummyUsed = true
		return "h:dummy"
	}

	res := RunLogin(context.Background(), "ghost@example.com", "pw", deps)
	if res.Failure != LoginFailureInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %v", res.Failure)
	}
	if !dummyUsed {
		t.Fatal("expected a dummy hash comparison for unknown email")
	}
}

func TestRunLoginLocksAtThreshold(t *testing.T) {
	store := newMemStore(activeAccount("a1", "a@example.com", "pw"))
	lockout := &fakeLockout{threshold: 2}
	c := &counters{}
	deps := loginDeps(store, lockout, c)

	first := RunLogin(context.Background(), "a@example.com", "bad", deps)
	second := RunLogin(context.Background(), "a@example.com", "bad", deps)
	if first.LockedNow || !second.LockedNow {
		t.Fatalf("expected lock on second failure: first=%v second=%v", first.LockedNow, second.LockedNow)
	}
	if second.Failure != LoginFailureInvalidCredentials {
		t.Fatalf("locking attempt must still report invalid credentials, got %v", second.Failure)
	}
	if c.get(4) != 1 {
		t.Fatalf("expected one lock metric, got %d", c.get(4))
	}

	store.accounts["a1"].LockUntil = lockout.until
	third := RunLogin(context.Background(), "a@example.com", "pw", deps)
	if third.Failure != LoginFailureLocked {
		t.Fatalf("expected locked, got %v", third.Failure)
	}
}

func TestRunLoginInactiveAfterPasswordCheck(t *testing.T) {
	a := activeAccount("a1", "a@example.com", "pw")
	a.Active = false
	store := newMemStore(a)

	if res := RunLogin(context.Background(), "a@example.com", "bad", loginDeps(store, nil, &counters{})); res.Failure != LoginFailureInvalidCredentials {
		t.Fatalf("wrong password on inactive account: got %v", res.Failure)
	}
	if res := RunLogin(context.Background(), "a@example.com", "pw", loginDeps(store, nil, &counters{})); res.Failure != LoginFailureInactive {
		t.Fatalf("expected inactive, got %v", res.Failure)
	}
}

func TestRunLoginUpgradesHash(t *testing.T) {
	store := newMemStore(activeAccount("a1", "a@example.com", "pw"))
	deps := loginDeps(store, nil, &counters{})
	deps.UpgradeOnLogin = true
	deps.NeedsUpgrade = func(string) (bool, error) { return true, nil }
	deps.HashPassword = func(_ context.Context, pw string) (string, error) { return "h:" + pw, nil }

	if res := RunLogin(context.Background(), "a@example.com", "pw", deps); res.Failure != LoginFailureNone {
		t.Fatalf("login failed: %v", res.Failure)
	}
	if store.hashSets != 1 {
		t.Fatalf("expected one rehash, got %d", store.hashSets)
	}
}

func refreshDeps(store *memStore, owner string) RefreshDeps {
	var mu sync.Mutex
	seq := 0
	return RefreshDeps{
		Store: store,
		Cap:   credential.DefaultRefreshTokenCap,
		ParseRefresh: func(token string) (string, error) {
			if token == "garbage" {
				return "", errors.New("bad signature")
			}
			return owner, nil
		},
		DigestToken: func(token string) string { return "d:" + token },
		IssueAccess: func(*credential.Account) (string, time.Time, error) {
			return "access", time.Now().Add(time.Hour), nil
		},
		IssueRefresh: func(*credential.Account) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return "next-" + string(rune('a'+seq)), nil
		},
	}
}

func TestRunRefreshRotates(t *testing.T) {
	store := newMemStore(activeAccount("a1", "a@example.com", "pw"))
	store.tokens["a1"] = []string{"d:old"}

	res := RunRefresh(context.Background(), "old", refreshDeps(store, "a1"))
	if res.Failure != RefreshFailureNone {
		t.Fatalf("unexpected failure %v: %v", res.Failure, res.Err)
	}
	if got := store.tokens["a1"]; len(got) != 1 || got[0] != "d:"+res.Tokens.RefreshToken {
		t.Fatalf("live set not rotated: %v", got)
	}

	if again := RunRefresh(context.Background(), "old", refreshDeps(store, "a1")); again.Failure != RefreshFailureNotLive {
		t.Fatalf("expected not-live on reuse, got %v", again.Failure)
	}
}

func TestRunRefreshFailureKinds(t *testing.T) {
	inactive := activeAccount("a2", "b@example.com", "pw")
	inactive.Active = false
	store := newMemStore(inactive)

	if res := RunRefresh(context.Background(), "garbage", refreshDeps(store, "a2")); res.Failure != RefreshFailureParse {
		t.Fatalf("expected parse failure, got %v", res.Failure)
	}
	if res := RunRefresh(context.Background(), "tok", refreshDeps(store, "missing")); res.Failure != RefreshFailureAccountMissing {
		t.Fatalf("expected missing account, got %v", res.Failure)
	}
	if res := RunRefresh(context.Background(), "tok", refreshDeps(store, "a2")); res.Failure != RefreshFailureAccountInactive {
		t.Fatalf("expected inactive, got %v", res.Failure)
	}
}

func TestRunRefreshConcurrentSingleWinner(t *testing.T) {
	store := newMemStore(activeAccount("a1", "a@example.com", "pw"))
	store.tokens["a1"] = []string{"d:shared"}
	deps := refreshDeps(store, "a1")

	const n = 8
	var wg sync.WaitGroup
	results := make([]RefreshFailureKind, n)
	for i := range n {
		wg.Go(func() {
			results[i] = RunRefresh(context.Background(), "shared", deps).Failure
		})
	}
	wg.Wait()

	wins := 0
	for _, k := range results {
		if k == RefreshFailureNone {
			wins++
		} else if k != RefreshFailureNotLive {
			t.Fatalf("unexpected failure kind %v", k)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}
