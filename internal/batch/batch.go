// Package batch implements bounded-concurrency fan-out over many independent
// fetch targets. A batch always returns one entry per requested key, even when
// individual fetches fail; failures are counted, never raised.
package batch

import (
	"log"
	"sync"
	"time"
)

// DefaultMaxWorkers matches the shared connection pool headroom: 60 workers
// against an 80-connection pool leaves room for retries.
const DefaultMaxWorkers = 60

// Result summarizes a completed batch.
type Result struct {
	Total   int
	Errors  int
	Elapsed time.Duration
}

// Fetcher runs keyed fan-out with a bounded worker pool.
type Fetcher struct {
	MaxWorkers int
	// Label appears in progress log lines, e.g. "time entries".
	Label string

	// now is swappable for tests.
	now func() time.Time
}

// New returns a Fetcher with the given worker cap (<=0 uses the default).
func New(maxWorkers int, label string) *Fetcher {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	return &Fetcher{MaxWorkers: maxWorkers, Label: label, now: time.Now}
}

// FetchAll calls fetchOne for every key concurrently and returns a map with
// exactly one entry per key. On per-key error the zero value of V is stored
// and the error counted. Completion order is unspecified. Progress is logged
// every max(100, total/20) completions so large batches stay observable.
func FetchAll[K comparable, V any](f *Fetcher, keys []K, fetchOne func(K) (V, error)) (map[K]V, Result) {
	result := make(map[K]V, len(keys))
	if len(keys) == 0 {
		return result, Result{}
	}

	total := len(keys)
	workers := f.MaxWorkers
	if workers > total {
		workers = total
	}
	logEvery := total / 20
	if logEvery < 100 {
		logEvery = 100
	}

	start := f.now()
	log.Printf("batch %s start total=%d workers=%d", f.Label, total, workers)

	type outcome struct {
		key K
		val V
		err error
	}

	jobs := make(chan K)
	outcomes := make(chan outcome)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for k := range jobs {
				v, err := fetchOne(k)
				outcomes <- outcome{key: k, val: v, err: err}
			}
		}()
	}
	go func() {
		for _, k := range keys {
			jobs <- k
		}
		close(jobs)
		wg.Wait()
		close(outcomes)
	}()

	processed, errors := 0, 0
	for o := range outcomes {
		if o.err != nil {
			var zero V
			result[o.key] = zero
			errors++
		} else {
			result[o.key] = o.val
		}
		processed++
		if processed%logEvery == 0 || processed == total {
			elapsed := f.now().Sub(start)
			rate := 0.0
			if elapsed > 0 {
				rate = float64(processed) / elapsed.Seconds()
			}
			eta := 0.0
			if rate > 0 {
				eta = float64(total-processed) / rate
			}
			log.Printf("batch %s progress %d/%d (%.0f%%) rate=%.1f/s eta=%.0fs errors=%d",
				f.Label, processed, total, float64(processed)/float64(total)*100, rate, eta, errors)
		}
	}

	elapsed := f.now().Sub(start)
	log.Printf("batch %s done total=%d elapsed=%.1fs errors=%d", f.Label, total, elapsed.Seconds(), errors)
	return result, Result{Total: total, Errors: errors, Elapsed: elapsed}
}
