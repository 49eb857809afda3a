package session

import (
	"testing"
	"time"
)

func TestGateEvaluate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := Gate{Cooldown: 60 * time.Second, Operator: 99}

	cases := []struct {
		name string
		id   UserID
		busy bool
		last time.Time
		want Decision
	}{
		{name: "fresh user admitted", id: 1, want: Admitted},
		{name: "busy rejected", id: 1, busy: true, want: RejectedBusy},
		{name: "busy wins over cooldown", id: 1, busy: true, last: now.Add(-time.Second), want: RejectedBusy},
		{name: "inside cooldown rejected", id: 1, last: now.Add(-10 * time.Second), want: RejectedCooldown},
		{name: "exactly at boundary admitted", id: 1, last: now.Add(-60 * time.Second), want: Admitted},
		{name: "just inside boundary rejected", id: 1, last: now.Add(-60*time.Second + time.Millisecond), want: RejectedCooldown},
		{name: "operator skips cooldown", id: 99, last: now.Add(-time.Second), want: Admitted},
		{name: "operator still blocked when busy", id: 99, busy: true, want: RejectedBusy},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			adm := g.Evaluate(tc.id, tc.busy, tc.last, now)
			if adm.Decision != tc.want {
				t.Fatalf("decision = %v, want %v", adm.Decision, tc.want)
			}
			if tc.want == RejectedCooldown && adm.Remaining < time.Second {
				t.Fatalf("remaining = %v, want >= 1s", adm.Remaining)
			}
			if tc.want != RejectedCooldown && adm.Remaining != 0 {
				t.Fatalf("remaining = %v, want 0", adm.Remaining)
			}
		})
	}
}

func TestGateRemainingRounding(t *testing.T) {
	t.Parallel()

	now := time.Now()
	g := Gate{Cooldown: 60 * time.Second}

	// 59.4s elapsed leaves 0.6s, which must be reported as a full second.
	adm := g.Evaluate(1, false, now.Add(-59*time.Second-400*time.Millisecond), now)
	if adm.Decision != RejectedCooldown {
		t.Fatalf("decision = %v, want RejectedCooldown", adm.Decision)
	}
	if adm.Remaining != time.Second {
		t.Fatalf("remaining = %v, want 1s", adm.Remaining)
	}

	adm = g.Evaluate(1, false, now.Add(-10*time.Second-300*time.Millisecond), now)
	if adm.Remaining != 50*time.Second {
		t.Fatalf("remaining = %v, want 50s", adm.Remaining)
	}
}

func TestGateZeroCooldownDisabled(t *testing.T) {
	t.Parallel()

	g := Gate{}
	now := time.Now()
	adm := g.Evaluate(1, false, now.Add(-time.Millisecond), now)
	if adm.Decision != Admitted {
		t.Fatalf("decision = %v, want Admitted", adm.Decision)
	}
}
