package httpx

import (
	"math/rand"
	"strings"
	"time"
)

// Class is the retry disposition of a single request outcome.
type Class int

const (
	// ClassOK is a successful response (200/201).
	ClassOK Class = iota
	// ClassThrottled is an HTTP 429; retry with capped exponential backoff.
	ClassThrottled
	// ClassConnReset is a connection-level failure (TLS failure, reset,
	// broken pipe, unexpected EOF); retry with exponential backoff plus
	// jitter so concurrent workers do not retry in lockstep.
	ClassConnReset
	// ClassTransient is any other transport error; retry with a short
	// linear backoff.
	ClassTransient
	// ClassFatal is a non-retryable outcome (any other HTTP status).
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassOK:
		return "ok"
	case ClassThrottled:
		return "throttled"
	case ClassConnReset:
		return "conn-reset"
	case ClassTransient:
		return "transient"
	default:
		return "fatal"
	}
}

// Retryable reports whether another attempt is worthwhile.
func (c Class) Retryable() bool {
	return c == ClassThrottled || c == ClassConnReset || c == ClassTransient
}

// connErrorSignatures are substrings of transport errors that are safe to
// retry. Matching on the error text follows the upstream client: these come
// from several layers (crypto/tls, net, syscall) with no shared error type.
var connErrorSignatures = []string{
	"ssl",
	"tls",
	"eof",
	"connection reset",
	"connection aborted",
	"broken pipe",
}

// Classify maps a request outcome to its retry class. status is ignored when
// err is non-nil. Pure function so the policy is testable without I/O.
func Classify(status int, err error) Class {
	if err != nil {
		s := strings.ToLower(err.Error())
		for _, sig := range connErrorSignatures {
			if strings.Contains(s, sig) {
				return ClassConnReset
			}
		}
		return ClassTransient
	}
	switch status {
	case 200, 201:
		return ClassOK
	case 429:
		return ClassThrottled
	default:
		return ClassFatal
	}
}

// RetryPolicy holds the backoff shape per class. Durations are exported so
// tests can shrink them.
type RetryPolicy struct {
	MaxAttempts   int
	ThrottleBase  time.Duration // doubled per attempt, capped
	ThrottleCap   time.Duration
	ConnBase      time.Duration // doubled per attempt, jittered, capped
	ConnCap       time.Duration
	TransientStep time.Duration // linear per attempt
}

// DefaultRetryPolicy matches the upstream API's observed behavior: throttle
// backoff 3s doubling up to 60s, connection backoff 2s doubling with up to
// 50% jitter capped at 45s, six attempts total.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   6,
		ThrottleBase:  3 * time.Second,
		ThrottleCap:   60 * time.Second,
		ConnBase:      2 * time.Second,
		ConnCap:       45 * time.Second,
		TransientStep: 500 * time.Millisecond,
	}
}

// Backoff returns the delay before attempt+1. attempt is zero-based.
func (p RetryPolicy) Backoff(class Class, attempt int, rng *rand.Rand) time.Duration {
	switch class {
	case ClassThrottled:
		d := p.ThrottleBase << uint(attempt)
		if d > p.ThrottleCap || d <= 0 {
			d = p.ThrottleCap
		}
		return d
	case ClassConnReset:
		base := p.ConnBase << uint(attempt)
		if base <= 0 || base > p.ConnCap {
			base = p.ConnCap
		}
		jitter := time.Duration(0)
		if rng != nil {
			jitter = time.Duration(rng.Int63n(int64(base)/2 + 1))
		}
		d := base + jitter
		if d > p.ConnCap {
			d = p.ConnCap
		}
		return d
	case ClassTransient:
		return p.TransientStep * time.Duration(attempt+1)
	default:
		return 0
	}
}
