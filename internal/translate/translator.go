// Package translate detects complaint languages and translates text through
// an ordered list of providers.
package translate

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"smartgriev/internal/metrics"
)

const defaultCallTimeout = 20 * time.Second

type cacheKey struct {
	text, target, source string
}

// Translator is safe for concurrent use. Successful translations are
// memoized for the life of the process.
type Translator struct {
	providers   []Provider
	defaultLang string
	timeout     time.Duration
	limiter     *rate.Limiter
	metrics     *metrics.Metrics

	mu    sync.RWMutex
	cache map[cacheKey]string
}

type Option func(*Translator)

func WithDefaultLanguage(code string) Option {
	return func(t *Translator) {
		if c, err := Canonical(code); err == nil && c != "" {
			t.defaultLang = c
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(t *Translator) {
		if d > 0 {
			t.timeout = d
		}
	}
}

func WithRateLimit(rps float64, burst int) Option {
	return func(t *Translator) {
		if rps <= 0 {
			t.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Translator) { t.metrics = m }
}

func New(providers []Provider, opts ...Option) *Translator {
	t := &Translator{
		providers:   providers,
		defaultLang: DefaultLanguage,
		timeout:     defaultCallTimeout,
		cache:       make(map[cacheKey]string),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Translator) DefaultLanguage() string { return t.defaultLang }

// Translate returns text in the target language. It never fails: when every
// provider fails the input comes back unchanged with ok=false.
func (t *Translator) Translate(ctx context.Context, text, target, source string) (string, bool) {
	rawTarget, rawSource := target, source
	target, err := Canonical(rawTarget)
	if err != nil || target == "" {
		log.WithField("target", rawTarget).Warn("translate: invalid target language")
		return text, false
	}
	source, err = Canonical(rawSource)
	if err != nil {
		log.WithField("source", rawSource).Warn("translate: invalid source language, detecting instead")
		source = ""
	}

	if target == source {
		return text, true
	}
	if target == t.defaultLang && (source == "" || source == t.defaultLang) {
		return text, true
	}
	if text == "" {
		return text, true
	}

	key := cacheKey{text: text, target: target, source: source}
	t.mu.RLock()
	cached, hit := t.cache[key]
	t.mu.RUnlock()
	if hit {
		return cached, true
	}

	for _, p := range t.providers {
		out, err := t.call(ctx, p, text, source, target)
		if errors.Is(err, ErrUnsupportedPair) {
			continue
		}
		t.metrics.ObserveTranslation(p.Name(), err == nil)
		if err != nil {
			log.WithFields(log.Fields{
				"provider": p.Name(),
				"source":   source,
				"target":   target,
				"error":    err,
			}).Warn("translation provider failed")
			if ctx.Err() != nil {
				break
			}
			continue
		}
		t.mu.Lock()
		t.cache[key] = out
		t.mu.Unlock()
		return out, true
	}
	return text, false
}

func (t *Translator) call(ctx context.Context, p Provider, text, source, target string) (string, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return p.Translate(callCtx, text, source, target)
}
