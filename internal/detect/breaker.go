package detect

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/imagegate/internal/model"
)

// ErrDetectorUnavailable is returned while the breaker holds the classifier
// offline after repeated failures.
var ErrDetectorUnavailable = eris.New("detect: classifier temporarily unavailable")

// Breaker defaults.
const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 30 * time.Second
)

// BreakerDetector wraps a detector with a circuit breaker. After
// FailureThreshold consecutive failures it rejects calls for Cooldown, then
// lets a single probe through. The pipeline treats the rejection like any
// other detection failure and degrades to a two-signal verdict.
type BreakerDetector struct {
	inner     Provider
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	probing  bool

	now func() time.Time
}

// WithBreaker wraps provider. threshold <= 0 or cooldown <= 0 select the
// defaults.
func WithBreaker(provider Provider, threshold int, cooldown time.Duration) *BreakerDetector {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &BreakerDetector{
		inner:     provider,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Detect forwards to the wrapped detector unless the breaker is open.
func (b *BreakerDetector) Detect(ctx context.Context, data []byte) (*model.DetectionSignal, error) {
	if err := b.allow(); err != nil {
		return nil, err
	}

	sig, err := b.inner.Detect(ctx, data)
	b.record(err)
	return sig, err
}

func (b *BreakerDetector) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return nil
	}
	if b.now().Sub(b.openedAt) < b.cooldown {
		return ErrDetectorUnavailable
	}
	// Cooldown elapsed: admit one probe, hold the rest until it reports.
	if b.probing {
		return ErrDetectorUnavailable
	}
	b.probing = true
	return nil
}

func (b *BreakerDetector) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false

	// Caller-side cancellation says nothing about classifier health.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}

	if err == nil {
		if b.failures >= b.threshold {
			zap.L().Info("detect: classifier recovered")
		}
		b.failures = 0
		return
	}

	b.failures++
	b.openedAt = b.now()
	if b.failures == b.threshold {
		zap.L().Warn("detect: classifier offline after repeated failures",
			zap.Int("failures", b.failures),
			zap.Duration("cooldown", b.cooldown),
		)
	}
}
