// Package humanoid produces the human-plausible pacing every portal
// interaction is wrapped in. Pacing is a first-class behavioral constraint
// of the engine: intervals are drawn from noisy distributions and drift
// with fatigue over the session, never fixed or periodic.
package humanoid

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/config"
)

// commonNgrams are letter sequences a practiced typist rolls through faster
// than isolated keys.
var commonNgrams = map[string]bool{
	"th": true, "he": true, "in": true, "er": true, "an": true, "re": true,
	"es": true, "on": true, "st": true, "nt": true,
	"the": true, "and": true, "ing": true, "ion": true, "tio": true,
}

// Pacer models one operator's rhythm for the lifetime of a session. Fatigue
// rises with every action and recovers during pauses, so timing drifts the
// way a real operator's does. State is owned by the single session; nothing
// here is process-wide.
type Pacer struct {
	cfg config.HumanoidConfig
	log *zap.Logger

	mu           sync.Mutex
	rng          *rand.Rand
	fatigueLevel float64 // 0.0 rested .. 1.0 exhausted
	sleep        func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer for one session. A nil rng seeds from the clock;
// tests inject a deterministic source.
func NewPacer(cfg config.HumanoidConfig, logger *zap.Logger, rng *rand.Rand) *Pacer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Pacer{
		cfg:   cfg,
		log:   logger.Named("humanoid"),
		rng:   rng,
		sleep: contextSleep,
	}
}

// Pause blocks for a cognitively plausible think-time drawn from a normal
// distribution and scaled by current fatigue.
func (p *Pacer) Pause(ctx context.Context) error {
	if !p.cfg.Enabled {
		return nil
	}

	p.mu.Lock()
	fatigueFactor := 1.0 + p.fatigueLevel
	d := time.Duration(fatigueFactor*(p.cfg.PauseMeanMs+p.rng.NormFloat64()*p.cfg.PauseStdDevMs)) * time.Millisecond
	p.fatigueLevel = clamp(p.fatigueLevel+p.cfg.FatigueRate, 0, 1)
	sleep := p.sleep
	p.mu.Unlock()

	if d <= 0 {
		return nil
	}
	// Long pauses recover a little fatigue, like a real breather.
	if d > time.Second {
		p.mu.Lock()
		p.fatigueLevel = clamp(p.fatigueLevel-float64(d/time.Second)*0.005, 0, 1)
		p.mu.Unlock()
	}
	return sleep(ctx, d)
}

// KeyDelay returns the inter-key delay to insert before typing rune i of
// text. Common n-grams come out faster; fatigue slows everything down.
func (p *Pacer) KeyDelay(text []rune, i int) time.Duration {
	if !p.cfg.Enabled {
		return 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	mean := p.cfg.KeyMeanMs
	if i >= 2 && commonNgrams[string(text[i-2:i+1])] {
		mean *= 0.7
	} else if i >= 1 && commonNgrams[string(text[i-1:i+1])] {
		mean *= 0.8
	}

	fatigueFactor := 1.0 + p.fatigueLevel*0.5
	d := fatigueFactor * (mean + p.rng.NormFloat64()*p.cfg.KeyStdDevMs)
	if d < 15 {
		d = 15 // physiological floor on inter-key interval
	}
	p.fatigueLevel = clamp(p.fatigueLevel+p.cfg.FatigueRate*0.1, 0, 1)
	return time.Duration(d) * time.Millisecond
}

// Fatigue reports the current fatigue level.
func (p *Pacer) Fatigue() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fatigueLevel
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
