package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/storefront/pkg/logger"
)

func init() { logger.Discard() }

func fast() *Scheduler {
	s := New()
	s.tick = 5 * time.Millisecond
	return s
}

func TestImmediateTaskRunsRepeatedly(t *testing.T) {
	s := fast()
	var runs atomic.Int32
	s.Every(10 * time.Millisecond).Name("count").Immediately().Run(func(context.Context) { runs.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Start(ctx); close(done) }()

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestDelayedTaskWaitsOneInterval(t *testing.T) {
	s := fast()
	var runs atomic.Int32
	s.Every(time.Hour).Run(func(context.Context) { runs.Add(1) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	assert.Equal(t, int32(0), runs.Load())
}

func TestWithoutOverlappingSkipsBusyTask(t *testing.T) {
	s := fast()
	var runs atomic.Int32
	release := make(chan struct{})
	s.Every(time.Millisecond).Immediately().WithoutOverlapping().Run(func(context.Context) {
		runs.Add(1)
		<-release
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Start(ctx); close(done) }()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	close(release)
	cancel()
	<-done
}

func TestPanickingTaskDoesNotStopScheduler(t *testing.T) {
	s := fast()
	var runs atomic.Int32
	s.Every(5 * time.Millisecond).Immediately().Run(func(context.Context) {
		runs.Add(1)
		panic("boom")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Start(ctx); close(done) }()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestNonPositiveIntervalIsIgnored(t *testing.T) {
	s := New()
	s.Every(0).Name("off").Run(func(context.Context) {})
	s.Every(time.Minute).Name("sweep").Run(func(context.Context) {})

	assert.Equal(t, []string{"sweep  [every 1m0s]"}, s.List())
}
