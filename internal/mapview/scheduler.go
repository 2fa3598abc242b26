package mapview

import "time"

// CancelFunc stops a scheduled callback if it has not run yet.
type CancelFunc func()

// Scheduler runs deferred work: delayed retries and once-per-frame passes.
// Callbacks may run on any goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) CancelFunc
	Frame(fn func()) CancelFunc
}

const defaultFrameInterval = 16 * time.Millisecond

type timerScheduler struct {
	frame time.Duration
}

// NewScheduler returns a Scheduler backed by time.AfterFunc. A frame is one
// frameInterval away; zero means 16ms.
func NewScheduler(frameInterval time.Duration) Scheduler {
	if frameInterval <= 0 {
		frameInterval = defaultFrameInterval
	}
	return timerScheduler{frame: frameInterval}
}

func (s timerScheduler) AfterFunc(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

func (s timerScheduler) Frame(fn func()) CancelFunc {
	return s.AfterFunc(s.frame, fn)
}

// retryBackoff grows the init retry delay exponentially from base, capped.
func retryBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	if attempt <= 0 {
		return base
	}
	if attempt > 5 {
		attempt = 5
	}
	d := base * time.Duration(1<<attempt)
	if d > 2*time.Second {
		return 2 * time.Second
	}
	return d
}
