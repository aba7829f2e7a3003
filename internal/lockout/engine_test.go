package lockout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateLockoutDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, CalculateLockoutDuration(0))
	assert.Equal(t, 60*time.Second, CalculateLockoutDuration(1))
	assert.Equal(t, 120*time.Second, CalculateLockoutDuration(2))
	assert.Equal(t, 240*time.Second, CalculateLockoutDuration(3))
	assert.Equal(t, 300*time.Second, CalculateLockoutDuration(4))
	assert.Equal(t, 300*time.Second, CalculateLockoutDuration(5))
}

func TestRecordFailedAttempt_LocksAfterMaxAttempts(t *testing.T) {
	engine := NewEngine(NewMemoryStore(0), nil)
	ctx := context.Background()
	now := time.Now()
	ip := "203.0.113.7"

	last := engine.CheckLockoutStatus(ctx, ip, now)
	assert.False(t, last.Locked)

	result := engine.RecordFailedAttempt(ctx, ip, now)
	for i := 1; i < MaxAttempts; i++ {
		result = engine.RecordFailedAttempt(ctx, ip, now)
	}

	require.True(t, result.Locked)
	require.NotNil(t, result.LockedUntil)
	expected := now.Add(30 * time.Second).UnixMilli()
	assert.InDelta(t, expected, *result.LockedUntil, 50)
}

func TestRecordFailedAttempt_ProgressiveSecondCycle(t *testing.T) {
	engine := NewEngine(NewMemoryStore(0), nil)
	ctx := context.Background()
	now := time.Now()
	ip := "203.0.113.9"

	result := engine.CheckLockoutStatus(ctx, ip, now)
	for i := 0; i < MaxAttempts; i++ {
		result = engine.RecordFailedAttempt(ctx, ip, now)
	}
	require.True(t, result.Locked)

	afterExpiry := now.Add(31 * time.Second)
	result = engine.CheckLockoutStatus(ctx, ip, afterExpiry)
	assert.False(t, result.Locked)

	for i := 0; i < MaxAttempts; i++ {
		result = engine.RecordFailedAttempt(ctx, ip, afterExpiry)
	}
	require.True(t, result.Locked)
	expected := afterExpiry.Add(60 * time.Second).UnixMilli()
	assert.InDelta(t, expected, *result.LockedUntil, 50)
}

func TestRecordFailedAttempt_SingleFailureAfterLockExpiryDoesNotReLock(t *testing.T) {
	engine := NewEngine(NewMemoryStore(0), nil)
	ctx := context.Background()
	now := time.Now()
	ip := "203.0.113.13"

	last := engine.CheckLockoutStatus(ctx, ip, now)
	for i := 0; i < MaxAttempts; i++ {
		last = engine.RecordFailedAttempt(ctx, ip, now)
	}
	require.True(t, last.Locked)

	afterExpiry := now.Add(31 * time.Second)
	last = engine.RecordFailedAttempt(ctx, ip, afterExpiry)

	assert.False(t, last.Locked)
	assert.Equal(t, 1, last.FailedAttempts)
	assert.Equal(t, MaxAttempts-1, last.AttemptsRemaining)
}

func TestClearAuthLockout(t *testing.T) {
	engine := NewEngine(NewMemoryStore(0), nil)
	ctx := context.Background()
	now := time.Now()
	ip := "203.0.113.11"

	for i := 0; i < MaxAttempts; i++ {
		engine.RecordFailedAttempt(ctx, ip, now)
	}

	engine.ClearAuthLockout(ctx, ip)
	status := engine.CheckLockoutStatus(ctx, ip, now)
	assert.False(t, status.Locked)
	assert.Equal(t, MaxAttempts, status.AttemptsRemaining)
}

func TestIsAuthRequest(t *testing.T) {
	assert.True(t, IsAuthRequest("/login", "POST"))
	assert.True(t, IsAuthRequest("/sportmanager.volleyball/authentication", "POST"))
	assert.True(t, IsAuthRequest("/sportmanager.volleyball/authentication", "GET"))
	assert.False(t, IsAuthRequest("/sportmanager.volleyball/authentication", "PUT"))
	assert.False(t, IsAuthRequest("/sportmanager.volleyball/main/dashboard", "POST"))
}
