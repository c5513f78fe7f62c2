package worker

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestApp() *App {
	return &App{logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))}
}

func TestApp_Drain(t *testing.T) {
	tests := []struct {
		name    string
		jobTime time.Duration
		timeout time.Duration
		want    bool
	}{
		{name: "no jobs in flight", timeout: time.Second, want: true},
		{name: "job finishes before timeout", jobTime: 50 * time.Millisecond, timeout: 5 * time.Second, want: true},
		{name: "job outlives timeout", jobTime: 2 * time.Second, timeout: 50 * time.Millisecond, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp()
			finished := make(chan struct{})
			if tt.jobTime > 0 {
				a.inflight.Add(1)
				go func() {
					defer a.inflight.Done()
					time.Sleep(tt.jobTime)
					close(finished)
				}()
			} else {
				close(finished)
			}

			got := a.drain(tt.timeout)
			assert.Equal(t, tt.want, got)
			if got {
				select {
				case <-finished:
				default:
					t.Fatal("drain returned before the job finished")
				}
			}
			<-finished
		})
	}
}
