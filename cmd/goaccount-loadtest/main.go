// Command goaccount-loadtest drives session resolution and refresh-token
// rotation against a Redis-backed engine and prints latency percentiles.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/credential"
)

type account struct {
	mu      sync.Mutex
	access  string
	refresh string
}

func main() {
	var (
		accounts    = flag.Int("accounts", 2000, "number of accounts to register")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "loadtest", "account key prefix")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency and ops must be > 0")
		os.Exit(2)
	}

	client, cleanup, err := connect(*redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	engine, err := newEngine(client, *prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx := context.Background()
	states, err := seed(ctx, engine, *accounts, *concurrency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}

	resolve := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		a := &states[r.Intn(len(states))]
		a.mu.Lock()
		token := a.access
		a.mu.Unlock()
		_, err := engine.ResolveSession(ctx, token)
		return err
	})

	refresh := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		a := &states[r.Intn(len(states))]
		a.mu.Lock()
		defer a.mu.Unlock()
		pair, err := engine.Refresh(ctx, a.refresh)
		if err != nil {
			return err
		}
		a.access, a.refresh = pair.AccessToken, pair.RefreshToken
		return nil
	})

	doubles, winners := raceRefresh(ctx, engine, states)

	fmt.Println("---- results ----")
	resolve.print("resolve")
	refresh.print("refresh")
	fmt.Printf("double-refresh: pairs=%d single-winner=%d\n", doubles, winners)
	if winners != doubles {
		os.Exit(1)
	}
}

func connect(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func newEngine(client redis.UniversalClient, prefix string) (*goAccount.Engine, error) {
	cfg := goAccount.DefaultConfig()
	cfg.JWT.AccessSecret = []byte(strings.Repeat("l", 32))
	cfg.JWT.RefreshSecret = []byte(strings.Repeat("r", 32))
	cfg.Password.BcryptCost = 4
	cfg.Audit.Enabled = false

	return goAccount.New().
		WithConfig(cfg).
		WithStore(credential.NewRedisStore(client, prefix)).
		WithRedis(client).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
}

func seed(ctx context.Context, engine *goAccount.Engine, n, concurrency int) ([]account, error) {
	fmt.Printf("registering %d accounts...\n", n)
	start := time.Now()
	states := make([]account, n)

	var (
		wg       sync.WaitGroup
		cursor   int64
		firstErr atomic.Value
	)
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= n {
					return
				}
				res, err := engine.Register(ctx, goAccount.RegisterRequest{
					Email:     fmt.Sprintf("load-%d@example.test", i),
					Password:  "Load-test-pass-1!",
					FirstName: "Load",
					LastName:  fmt.Sprintf("User%d", i),
				})
				if err != nil {
					firstErr.CompareAndSwap(nil, err)
					return
				}
				states[i].access = res.Tokens.AccessToken
				states[i].refresh = res.Tokens.RefreshToken
			}
		}()
	}
	wg.Wait()
	if err, ok := firstErr.Load().(error); ok {
		return nil, err
	}
	fmt.Printf("registered in %s\n", time.Since(start).Round(time.Millisecond))
	return states, nil
}

// raceRefresh presents every account's refresh token twice at once and
// counts the pairs where exactly one rotation won.
func raceRefresh(ctx context.Context, engine *goAccount.Engine, states []account) (pairs, winners int) {
	for i := range states {
		a := &states[i]
		var (
			wg   sync.WaitGroup
			wins int32
			next [2]goAccount.TokenPair
		)
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				pair, err := engine.Refresh(ctx, a.refresh)
				if err == nil {
					atomic.AddInt32(&wins, 1)
					next[j] = pair
				}
			}(j)
		}
		wg.Wait()
		pairs++
		if wins == 1 {
			winners++
		}
		for _, p := range next {
			if p.RefreshToken != "" {
				a.access, a.refresh = p.AccessToken, p.RefreshToken
			}
		}
	}
	return pairs, winners
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
}

func runPhase(ops, concurrency int, op func(*rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, ops)
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			local := make([]time.Duration, 0, ops/concurrency+1)
			for int(atomic.AddInt64(&cursor, 1)) <= ops {
				t0 := time.Now()
				if err := op(r); err != nil {
					atomic.AddInt64(&failures, 1)
				}
				local = append(local, time.Since(t0))
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()

	slices.Sort(latencies)
	return phaseStats{
		total:    time.Since(start),
		ops:      len(latencies),
		failures: failures,
		p50:      percentile(latencies, 50),
		p95:      percentile(latencies, 95),
		p99:      percentile(latencies, 99),
	}
}

func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[(len(sorted)-1)*p/100]
}

func (s phaseStats) print(name string) {
	var perSec float64
	if s.total > 0 {
		perSec = float64(s.ops) / s.total.Seconds()
	}
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name, s.ops, s.failures, s.total.Round(time.Millisecond), perSec,
		s.p50.Round(time.Microsecond), s.p95.Round(time.Microsecond), s.p99.Round(time.Microsecond))
}
