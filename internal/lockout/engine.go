package lockout

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strings"
	"time"

	"volleykit-proxy/internal/domain"
)

// Fixed policy constants calibrated to frustrate credential-stuffing
// while tolerating a forgetful user.
const (
	MaxAttempts     = 5
	InitialDuration = 30 * time.Second
	MaxDuration     = 300 * time.Second
	AttemptWindow   = 900 * time.Second
	KVTTL           = 3600 * time.Second
)

// authSubPath is the upstream's authentication sub-path; any pathname
// containing it is treated as an auth request alongside the bare
// "/login" exact match.
const authSubPath = "sportmanager.volleyball/authentication"

// Engine is the lockout state machine sitting on top of a Store.
type Engine struct {
	store  Store
	logger *slog.Logger
}

// NewEngine creates a lockout engine over the given store.
func NewEngine(store Store, logger *slog.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

func key(ip string) string {
	return "auth:lockout:" + ip
}

// loadState reads and JSON-decodes the record for ip. KV read failure,
// decode error, or a shape violation are all treated identically as "no
// state" so the next write heals the record (fail-open on the counter).
func (e *Engine) loadState(ctx context.Context, ip string) *domain.LockoutRecord {
	raw, found, err := e.store.Get(ctx, key(ip))
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("lockout state read failed, treating as no state", "ip", ip, "error", err)
		}
		return nil
	}
	if !found {
		return nil
	}

	var rec domain.LockoutRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		if e.logger != nil {
			e.logger.Warn("lockout state decode failed, treating as no state", "ip", ip, "error", err)
		}
		return nil
	}
	if rec.FailedAttempts < 0 || rec.LockoutCount < 0 || rec.FirstAttemptAt <= 0 {
		if e.logger != nil {
			e.logger.Warn("lockout state shape violation, treating as no state", "ip", ip)
		}
		return nil
	}
	return &rec
}

// writeState persists rec under ip's key with the fixed KV TTL. Failure
// is logged and ignored: the worst case is one extra allowed attempt.
func (e *Engine) writeState(ctx context.Context, ip string, rec *domain.LockoutRecord) {
	raw, err := json.Marshal(rec)
	if err != nil {
		if e.logger != nil {
			e.logger.Error("lockout state encode failed", "ip", ip, "error", err)
		}
		return
	}
	if err := e.store.Set(ctx, key(ip), raw, KVTTL); err != nil {
		if e.logger != nil {
			e.logger.Warn("lockout state write failed, ignoring", "ip", ip, "error", err)
		}
	}
}

// CalculateLockoutDuration returns the progressive back-off for the
// lockoutCount-th completed cycle: 30, 60, 120, 240, 300, 300, ...
func CalculateLockoutDuration(lockoutCount int) time.Duration {
	d := InitialDuration * time.Duration(math.Pow(2, float64(lockoutCount)))
	if d > MaxDuration {
		d = MaxDuration
	}
	return d
}

// checkLockoutStatus is the pure read-side decision: given state (which
// may be nil) and now, decide whether the IP is currently locked.
func checkLockoutStatus(state *domain.LockoutRecord, now time.Time) domain.LockoutStatus {
	nowMs := now.UnixMilli()

	if state == nil {
		return domain.LockoutStatus{AttemptsRemaining: MaxAttempts}
	}

	if state.LockedUntil != nil && *state.LockedUntil > nowMs {
		remaining := int(math.Ceil(float64(*state.LockedUntil-nowMs) / 1000))
		return domain.LockoutStatus{
			Locked:           true,
			LockedUntil:      state.LockedUntil,
			RemainingSeconds: remaining,
			FailedAttempts:   state.FailedAttempts,
		}
	}

	windowEnd := state.FirstAttemptAt + AttemptWindow.Milliseconds()
	if nowMs > windowEnd {
		return domain.LockoutStatus{AttemptsRemaining: MaxAttempts}
	}

	remaining := MaxAttempts - state.FailedAttempts
	if remaining < 0 {
		remaining = 0
	}
	return domain.LockoutStatus{
		FailedAttempts:    state.FailedAttempts,
		AttemptsRemaining: remaining,
	}
}

// CheckLockoutStatus loads the current record for ip and reports its
// lockout status as of now.
func (e *Engine) CheckLockoutStatus(ctx context.Context, ip string, now time.Time) domain.LockoutStatus {
	return checkLockoutStatus(e.loadState(ctx, ip), now)
}

// RecordFailedAttempt applies one failed-login transition for ip and
// returns the post-write lockout status.
func (e *Engine) RecordFailedAttempt(ctx context.Context, ip string, now time.Time) domain.LockoutStatus {
	nowMs := now.UnixMilli()
	state := e.loadState(ctx, ip)

	switch {
	case state == nil:
		newState := &domain.LockoutRecord{
			FailedAttempts: 1,
			FirstAttemptAt: nowMs,
			LockoutCount:   0,
		}
		e.writeState(ctx, ip, newState)
		return checkLockoutStatus(newState, now)

	case state.LockedUntil != nil && *state.LockedUntil > nowMs:
		// LOCKED: defensive no-op, the client is already being throttled.
		return checkLockoutStatus(state, now)

	case state.LockedUntil != nil && *state.LockedUntil <= nowMs:
		// LOCK_EXPIRED: the lock has run out but the attempt window
		// hasn't. Back to COUNTING with a fresh window rather than
		// resuming at the failedAttempts the lock was imposed at,
		// otherwise the very next failure re-locks instantly.
		newState := &domain.LockoutRecord{
			FailedAttempts: 1,
			FirstAttemptAt: nowMs,
			LockoutCount:   state.LockoutCount,
		}
		e.writeState(ctx, ip, newState)
		return checkLockoutStatus(newState, now)

	case nowMs > state.FirstAttemptAt+AttemptWindow.Milliseconds():
		// WINDOW_EXPIRED: reset the counter but keep lockoutCount so a
		// repeat offender does not reset progressive back-off.
		newState := &domain.LockoutRecord{
			FailedAttempts: 1,
			FirstAttemptAt: nowMs,
			LockoutCount:   state.LockoutCount,
		}
		e.writeState(ctx, ip, newState)
		return checkLockoutStatus(newState, now)

	default:
		// COUNTING
		newState := *state
		newState.FailedAttempts++
		newState.LockedUntil = nil
		if newState.FailedAttempts >= MaxAttempts {
			duration := CalculateLockoutDuration(newState.LockoutCount)
			lockedUntil := nowMs + duration.Milliseconds()
			newState.LockedUntil = &lockedUntil
			newState.LockoutCount++
		}
		e.writeState(ctx, ip, &newState)
		return checkLockoutStatus(&newState, now)
	}
}

// ClearAuthLockout unconditionally deletes ip's lockout record, e.g. on a
// successful login.
func (e *Engine) ClearAuthLockout(ctx context.Context, ip string) {
	if err := e.store.Delete(ctx, key(ip)); err != nil {
		if e.logger != nil {
			e.logger.Warn("lockout clear failed, ignoring", "ip", ip, "error", err)
		}
	}
}

// IsAuthRequest reports whether pathname/method identify a login attempt
// subject to the lockout gate. GET participates only to accommodate a
// browser-level resubmission pattern; since transformAuthFormData is
// gated on HasAuthCredentials, a bodyless GET flows through untransformed
// while still updating the lockout counter on the eventual response.
func IsAuthRequest(pathname, method string) bool {
	if method != "POST" && method != "GET" {
		return false
	}
	return pathname == "/login" || strings.Contains(pathname, authSubPath)
}
