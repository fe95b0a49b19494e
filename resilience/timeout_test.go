package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewTimeout_Defaults(t *testing.T) {
	tests := []struct {
		name   string
		config TimeoutConfig
		want   time.Duration
	}{
		{"zero falls back", TimeoutConfig{}, 30 * time.Second},
		{"negative falls back", TimeoutConfig{Timeout: -1}, 30 * time.Second},
		{"explicit", TimeoutConfig{Timeout: 5 * time.Second}, 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timeout := NewTimeout(tt.config)
			if timeout.limit != tt.want {
				t.Errorf("limit = %v, want %v", timeout.limit, tt.want)
			}
			if got := timeout.Config().Timeout; got != tt.want {
				t.Errorf("Config().Timeout = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimeout_Execute(t *testing.T) {
	opErr := errors.New("embedding provider unavailable")
	tests := []struct {
		name    string
		op      func(context.Context) error
		wantErr error
	}{
		{
			name:    "fast operation passes through nil",
			op:      func(context.Context) error { return nil },
			wantErr: nil,
		},
		{
			name:    "fast operation passes through its error",
			op:      func(context.Context) error { return opErr },
			wantErr: opErr,
		},
		{
			name: "overrun maps to ErrTimeout",
			op: func(context.Context) error {
				time.Sleep(200 * time.Millisecond)
				return nil
			},
			wantErr: ErrTimeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timeout := NewTimeout(TimeoutConfig{Timeout: 20 * time.Millisecond})
			err := timeout.Execute(context.Background(), tt.op)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Execute() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTimeout_CallerCancellationIsNotATimeout(t *testing.T) {
	timeout := NewTimeout(TimeoutConfig{Timeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())

	err := timeout.Execute(ctx, func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("caller cancellation was misreported as a timeout")
	}
}

func TestTimeout_OperationSeesDeadline(t *testing.T) {
	timeout := NewTimeout(TimeoutConfig{Timeout: 20 * time.Millisecond})

	sawDeadline := make(chan bool, 1)
	err := timeout.Execute(context.Background(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			sawDeadline <- true
		case <-time.After(time.Second):
			sawDeadline <- false
		}
		return nil
	})

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Execute() error = %v, want ErrTimeout", err)
	}
	select {
	case saw := <-sawDeadline:
		if !saw {
			t.Error("operation never observed the cancelled context")
		}
	case <-time.After(2 * time.Second):
		t.Error("operation goroutine did not finish")
	}
}
