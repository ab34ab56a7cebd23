package verify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danielolaszy/onboard/internal/config"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockLookup implements DirectoryLookup for testing
type MockLookup struct {
	LookupUserFunc func(ctx context.Context, address string, call int) (UserInfo, error)

	calls []string
}

func (m *MockLookup) LookupUser(ctx context.Context, address string) (UserInfo, error) {
	m.calls = append(m.calls, address)
	if m.LookupUserFunc != nil {
		return m.LookupUserFunc(ctx, address, len(m.calls))
	}
	return UserInfo{}, nil
}

var start = time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC)

func newTestVerifier(lookup DirectoryLookup, clock clockwork.Clock) *Verifier {
	return NewVerifier(lookup, config.PropagationConfig{
		GoogleWorkspaceDomain: "acme.example",
		MaxWaitMinutes:        2,
		PollIntervalSeconds:   30,
		MaxAge:                time.Hour,
	}, clock)
}

// drive runs Verify in the background and advances the fake clock one poll
// interval at a time until it returns.
func drive(t *testing.T, v *Verifier, clock *clockwork.FakeClock, username string) (bool, int) {
	t.Helper()

	done := make(chan bool, 1)
	go func() { done <- v.Verify(context.Background(), username).Verified }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sleeps := 0
	for {
		select {
		case verified := <-done:
			return verified, sleeps
		default:
		}

		waitCtx, waitCancel := context.WithTimeout(ctx, 50*time.Millisecond)
		err := clock.BlockUntilContext(waitCtx, 1)
		waitCancel()
		if err != nil {
			require.NoError(t, ctx.Err(), "verifier neither slept nor returned")
			continue
		}
		clock.Advance(v.PollInterval)
		sleeps++
	}
}

func TestVerifyDisabledWithoutDomain(t *testing.T) {
	lookup := &MockLookup{}
	v := newTestVerifier(lookup, clockwork.NewFakeClockAt(start))
	v.Domain = ""

	result := v.Verify(context.Background(), "jane.doe")

	assert.True(t, result.Verified)
	assert.Equal(t, "jane.doe", result.Username)
	assert.Empty(t, lookup.calls, "no lookups without a domain")
}

func TestVerifyFoundAfterPolling(t *testing.T) {
	clock := clockwork.NewFakeClockAt(start)
	lookup := &MockLookup{
		LookupUserFunc: func(_ context.Context, address string, call int) (UserInfo, error) {
			if call < 3 {
				return UserInfo{}, nil
			}
			return UserInfo{Exists: true, Created: start.Add(-2 * time.Minute)}, nil
		},
	}
	v := newTestVerifier(lookup, clock)

	verified, sleeps := drive(t, v, clock, "jane.doe")

	assert.True(t, verified)
	assert.Equal(t, 2, sleeps)
	assert.Equal(t, []string{"jane.doe@acme.example", "jane.doe@acme.example", "jane.doe@acme.example"}, lookup.calls)
}

func TestVerifyTimesOut(t *testing.T) {
	clock := clockwork.NewFakeClockAt(start)
	lookup := &MockLookup{}
	v := newTestVerifier(lookup, clock)

	verified, sleeps := drive(t, v, clock, "jane.doe")

	assert.False(t, verified)
	assert.Len(t, lookup.calls, 4)
	assert.Equal(t, 3, sleeps)
}

func TestVerifyStaleAccountIsNotRepolled(t *testing.T) {
	lookup := &MockLookup{
		LookupUserFunc: func(context.Context, string, int) (UserInfo, error) {
			return UserInfo{Exists: true, Created: start.Add(-3 * time.Hour)}, nil
		},
	}
	v := newTestVerifier(lookup, clockwork.NewFakeClockAt(start))

	result := v.Verify(context.Background(), "jane.doe")

	assert.False(t, result.Verified)
	assert.Len(t, lookup.calls, 1)
}

func TestVerifyZeroMaxAgeAcceptsOldAccount(t *testing.T) {
	lookup := &MockLookup{
		LookupUserFunc: func(context.Context, string, int) (UserInfo, error) {
			return UserInfo{Exists: true, Created: start.Add(-3 * time.Hour)}, nil
		},
	}
	v := newTestVerifier(lookup, clockwork.NewFakeClockAt(start))
	v.MaxAge = 0

	result := v.Verify(context.Background(), "jane.doe")

	assert.True(t, result.Verified)
	assert.Len(t, lookup.calls, 1)
}

func TestVerifyUnreadableCreationTimeIsAccepted(t *testing.T) {
	lookup := &MockLookup{
		LookupUserFunc: func(context.Context, string, int) (UserInfo, error) {
			return UserInfo{Exists: true}, nil
		},
	}
	v := newTestVerifier(lookup, clockwork.NewFakeClockAt(start))

	assert.True(t, v.Verify(context.Background(), "jane.doe").Verified)
}

func TestVerifyLookupErrorKeepsPolling(t *testing.T) {
	clock := clockwork.NewFakeClockAt(start)
	lookup := &MockLookup{
		LookupUserFunc: func(_ context.Context, _ string, call int) (UserInfo, error) {
			if call == 1 {
				return UserInfo{}, errors.New("gam: quota exceeded")
			}
			return UserInfo{Exists: true, Created: start}, nil
		},
	}
	v := newTestVerifier(lookup, clock)

	verified, sleeps := drive(t, v, clock, "jane.doe")

	assert.True(t, verified)
	assert.Equal(t, 1, sleeps)
}

func TestVerifyCancelled(t *testing.T) {
	clock := clockwork.NewFakeClockAt(start)
	v := newTestVerifier(&MockLookup{}, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() { done <- v.Verify(ctx, "jane.doe").Verified }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	cancel()

	select {
	case verified := <-done:
		assert.False(t, verified)
	case <-waitCtx.Done():
		t.Fatal("verifier ignored cancellation")
	}
}

func TestAttempts(t *testing.T) {
	tests := []struct {
		name     string
		maxWait  time.Duration
		poll     time.Duration
		expected int
	}{
		{name: "Default policy", maxWait: 15 * time.Minute, poll: 30 * time.Second, expected: 30},
		{name: "Rounds up", maxWait: time.Minute, poll: 45 * time.Second, expected: 2},
		{name: "No wait still checks once", maxWait: 0, poll: 30 * time.Second, expected: 1},
		{name: "Zero interval", maxWait: time.Minute, poll: 0, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Verifier{MaxWait: tt.maxWait, PollInterval: tt.poll}
			assert.Equal(t, tt.expected, v.Attempts())
		})
	}
}
