// README: Check cases; connectivity, HTTP smoke tests, SQL invariant audits and load probes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"vanbora/internal/infra"
)

const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
	StatusWarn = "WARN"
	StatusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		if client, err := infra.NewRedis(ctx, r.cfg.RedisAddr); err == nil {
			r.redis = client
		}
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{Name: "Env: Postgres connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.db == nil {
				return Result{Status: StatusFail, Note: "db not configured or unreachable"}
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := r.db.Ping(ctx); err != nil {
				return Result{Status: StatusFail, Note: err.Error()}
			}
			return Result{Status: StatusPass}
		}},
		{Name: "Env: Redis connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.cfg.RedisAddr == "" {
				return Result{Status: StatusSkip, Note: "no redis address; API uses process-local locks"}
			}
			if r.redis == nil {
				return Result{Status: StatusFail, Note: "redis unreachable"}
			}
			return Result{Status: StatusPass}
		}},
		httpCase("HTTP: health", http.MethodGet, base+"/health", "", http.StatusOK),
		httpCase("HTTP: trip search", http.MethodGet, base+"/api/trips", "", http.StatusOK),
		httpCase("HTTP: booking requires auth", http.MethodPost, base+"/api/trips/x/reservations", "", http.StatusUnauthorized),
		httpCase("HTTP: webhook for unknown payment is acknowledged", http.MethodPost,
			base+"/api/webhooks/payments?data.id=bench-unknown", "", http.StatusOK, http.StatusUnauthorized),
		sqlAudit("Audit: available seats match confirmed reservations", StatusFail, `
			SELECT t.id::text
			FROM trips t
			LEFT JOIN reservations r ON r.trip_id = t.id AND r.status = 'CONFIRMED'
			GROUP BY t.id, t.capacity, t.available_seats
			HAVING t.available_seats <> t.capacity - COUNT(r.id)`),
		sqlAudit("Audit: seat counters within bounds", StatusFail, `
			SELECT id::text FROM trips WHERE available_seats < 0 OR available_seats > capacity`),
		sqlAudit("Audit: rejected payments hold no seat", StatusFail, `
			SELECT id::text FROM reservations WHERE payment_status = 'REJECTED' AND status = 'CONFIRMED'`),
		sqlAudit("Audit: approved electronic payments claimed a payout", StatusFail, `
			SELECT id::text FROM reservations
			WHERE payment_status = 'APPROVED' AND payment_method <> 'CASH' AND payout_outcome = 'NONE'`),
		{Name: "Audit: no stuck payouts", Run: func(ctx context.Context, r *Runner) Result {
			return r.audit(ctx, StatusWarn, `
				SELECT id::text FROM reservations
				WHERE payout_outcome = 'PENDING' AND updated_at < now() - $1::interval`,
				fmt.Sprintf("%d seconds", int(r.cfg.StaleAfter.Seconds())))
		}},
		{Name: "Audit: no stale pending payments", Run: func(ctx context.Context, r *Runner) Result {
			return r.audit(ctx, StatusWarn, `
				SELECT id::text FROM reservations
				WHERE payment_status = 'PENDING' AND status = 'CONFIRMED' AND created_at < now() - $1::interval`,
				fmt.Sprintf("%d seconds", int(r.cfg.StaleAfter.Seconds())))
		}},
		{Name: "Load: concurrent booking never oversells", Run: func(ctx context.Context, r *Runner) Result {
			return concurrentBooking(ctx, r)
		}},
		{Name: "Load: trip search throughput", Run: func(ctx context.Context, r *Runner) Result {
			return perfLoad(ctx, r, base+"/api/trips")
		}},
	}
}

func sqlAudit(name, failStatus, query string) TestCase {
	return TestCase{Name: name, Run: func(ctx context.Context, r *Runner) Result {
		return r.audit(ctx, failStatus, query)
	}}
}

// audit runs a query that lists offending row ids; an empty result passes.
func (r *Runner) audit(ctx context.Context, failStatus, query string, args ...any) Result {
	if r.db == nil {
		return Result{Status: StatusSkip, Note: "db not configured"}
	}
	start := time.Now()
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return Result{Status: StatusFail, Note: err.Error()}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	latency := time.Since(start)
	if len(ids) == 0 {
		return Result{Status: StatusPass, Latency: latency}
	}
	if len(ids) > 5 {
		ids = append(ids[:5], "...")
	}
	return Result{Status: failStatus, Latency: latency, Note: fmt.Sprintf("offending=%s", strings.Join(ids, ","))}
}

func httpCase(name, method, url, token string, okStatuses ...int) TestCase {
	return TestCase{Name: name, Run: func(ctx context.Context, r *Runner) Result {
		start := time.Now()
		status, err := r.do(ctx, method, url, token, nil)
		if err != nil {
			return Result{Status: StatusFail, Note: err.Error()}
		}
		latency := time.Since(start)
		if contains(okStatuses, status) {
			return Result{Status: StatusPass, Latency: latency, Note: fmt.Sprintf("status=%d", status)}
		}
		return Result{Status: StatusFail, Latency: latency, Note: fmt.Sprintf("status=%d", status)}
	}}
}

func (r *Runner) do(ctx context.Context, method, url, token string, body any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}

// concurrentBooking has every configured passenger book the same trip at once
// and checks that no more bookings succeed than the trip had free seats.
func concurrentBooking(ctx context.Context, r *Runner) Result {
	if r.cfg.TripID == "" || len(r.cfg.Tokens) < 2 {
		return Result{Status: StatusSkip, Note: "needs -trip and at least two -tokens"}
	}
	if r.db == nil {
		return Result{Status: StatusSkip, Note: "db not configured"}
	}
	var available int
	if err := r.db.QueryRow(ctx, `SELECT available_seats FROM trips WHERE id = $1`, r.cfg.TripID).Scan(&available); err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}

	url := r.cfg.BaseURL + "/api/trips/" + r.cfg.TripID + "/reservations"
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		full     int
		failures int
	)
	start := time.Now()
	for _, token := range r.cfg.Tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			status, err := r.do(ctx, http.MethodPost, url, token, map[string]string{"payment_method": "CASH"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				failures++
			case status == http.StatusCreated:
				created++
			case status == http.StatusConflict:
				full++
			default:
				failures++
			}
		}(token)
	}
	wg.Wait()

	note := fmt.Sprintf("available=%d created=%d conflict=%d other=%d", available, created, full, failures)
	if created > available {
		return Result{Status: StatusFail, Latency: time.Since(start), Note: note}
	}
	return Result{Status: StatusPass, Latency: time.Since(start), Note: note}
}

func perfLoad(ctx context.Context, r *Runner, url string) Result {
	end := time.Now().Add(r.cfg.Duration)
	var (
		mu       sync.Mutex
		count    int64
		errCount int64
		wg       sync.WaitGroup
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, err := r.do(ctx, http.MethodGet, url, "", nil)
				mu.Lock()
				if err != nil || status >= 500 {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: StatusFail, Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: StatusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}
