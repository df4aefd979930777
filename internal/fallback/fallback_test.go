package fallback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type fakeStrategy struct {
	name     string
	availErr error
	runErr   error
	result   string
	calls    int
}

func (f *fakeStrategy) Name() string     { return f.name }
func (f *fakeStrategy) Available() error { return f.availErr }

func run(ctx context.Context, s *fakeStrategy) (string, error) {
	s.calls++
	if s.runErr != nil {
		return "", s.runErr
	}
	return s.result, nil
}

func TestRun(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name       string
		policy     Policy
		strategies []*fakeStrategy
		want       string
		wantErr    bool
		wantCalls  []int
	}{
		{
			name:   "first success wins",
			policy: OnUnavailable,
			strategies: []*fakeStrategy{
				{name: "a", result: "A"},
				{name: "b", result: "B"},
			},
			want:      "A",
			wantCalls: []int{1, 0},
		},
		{
			name:   "unavailable strategy skipped",
			policy: OnUnavailable,
			strategies: []*fakeStrategy{
				{name: "a", availErr: fmt.Errorf("%w: no api key", ErrUnavailable)},
				{name: "b", result: "B"},
			},
			want:      "B",
			wantCalls: []int{0, 1},
		},
		{
			name:   "runtime error stops under OnUnavailable",
			policy: OnUnavailable,
			strategies: []*fakeStrategy{
				{name: "a", runErr: boom},
				{name: "b", result: "B"},
			},
			wantErr:   true,
			wantCalls: []int{1, 0},
		},
		{
			name:   "runtime error falls through under OnError",
			policy: OnError,
			strategies: []*fakeStrategy{
				{name: "a", runErr: boom},
				{name: "b", result: "B"},
			},
			want:      "B",
			wantCalls: []int{1, 1},
		},
		{
			name:   "unavailable returned at call time falls through",
			policy: OnUnavailable,
			strategies: []*fakeStrategy{
				{name: "a", runErr: fmt.Errorf("binary vanished: %w", ErrUnavailable)},
				{name: "b", result: "B"},
			},
			want:      "B",
			wantCalls: []int{1, 1},
		},
		{
			name:   "all fail",
			policy: OnError,
			strategies: []*fakeStrategy{
				{name: "a", runErr: boom},
				{name: "b", availErr: errors.New("missing")},
			},
			wantErr:   true,
			wantCalls: []int{1, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Run(context.Background(), tt.strategies, tt.policy, run)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Run = %q, want %q", got, tt.want)
			}
			for i, s := range tt.strategies {
				if s.calls != tt.wantCalls[i] {
					t.Errorf("strategy %s called %d times, want %d", s.name, s.calls, tt.wantCalls[i])
				}
			}
		})
	}
}

func TestRun_ErrorNamesEveryAttempt(t *testing.T) {
	boom := errors.New("boom")
	strategies := []*fakeStrategy{
		{name: "ffmpeg", runErr: boom},
		{name: "docker", availErr: errors.New("daemon not reachable")},
	}

	_, err := Run(context.Background(), strategies, OnError, run)
	if err == nil {
		t.Fatal("expected error")
	}

	msg := err.Error()
	for _, want := range []string{"ffmpeg: boom", "docker:", "daemon not reachable"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not contain %q", msg, want)
		}
	}
	if !errors.Is(err, boom) {
		t.Error("errors.Is should see the runtime error")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Error("errors.Is should see ErrUnavailable from the skipped strategy")
	}
}

func TestRun_NoStrategies(t *testing.T) {
	_, err := Run(context.Background(), []*fakeStrategy{}, OnError, run)
	if !errors.Is(err, ErrNoStrategies) {
		t.Errorf("error = %v, want ErrNoStrategies", err)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &fakeStrategy{name: "a", result: "A"}
	_, err := Run(ctx, []*fakeStrategy{s}, OnError, run)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if s.calls != 0 {
		t.Error("strategy should not run on a cancelled context")
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"unavailable", OnUnavailable, false},
		{" ERROR ", OnError, false},
		{"sometimes", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePolicy(%q) = %q, %v", tt.in, got, err)
		}
	}
}
