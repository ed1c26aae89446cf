package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// BenchOptions configures a load run.
type BenchOptions struct {
	Addr        string // TCP address, ignored when URL is set
	URL         string // WebSocket URL
	Options     Options
	Connections int
	Requests    int // Per connection
}

// BenchResult summarizes a load run.
type BenchResult struct {
	Total      int
	Succeeded  int
	Failed     int // Transport or server errors
	Mismatched int // Wrong answers
	Elapsed    time.Duration
	FirstError error
}

// RequestsPerSecond returns the completed request rate.
func (r BenchResult) RequestsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Succeeded+r.Mismatched) / r.Elapsed.Seconds()
}

// Bench opens opts.Connections connections and sends opts.Requests requests
// on each, alternating echo and add, checking every answer. progress, when
// non-nil, is called after each request with the number completed so far.
// It is called from several goroutines.
func Bench(ctx context.Context, opts BenchOptions, progress func(done int)) BenchResult {
	if opts.Connections <= 0 {
		opts.Connections = 1
	}
	if opts.Requests <= 0 {
		opts.Requests = 1
	}

	var (
		succeeded  atomic.Int64
		failed     atomic.Int64
		mismatched atomic.Int64
		done       atomic.Int64
		errOnce    sync.Once
		firstErr   error
	)
	recordErr := func(err error) {
		errOnce.Do(func() { firstErr = err })
	}
	step := func() {
		n := done.Add(1)
		if progress != nil {
			progress(int(n))
		}
	}

	start := time.Now()
	var wg sync.WaitGroup
	for conn := 0; conn < opts.Connections; conn++ {
		wg.Add(1)
		go func(conn int) {
			defer wg.Done()

			c, err := opts.dial()
			if err != nil {
				recordErr(err)
				for i := 0; i < opts.Requests; i++ {
					failed.Add(1)
					step()
				}
				return
			}
			defer c.Close()

			for i := 0; i < opts.Requests; i++ {
				if ctx.Err() != nil {
					recordErr(ctx.Err())
					failed.Add(int64(opts.Requests - i))
					return
				}

				ok, err := exchange(c, conn, i)
				switch {
				case err != nil:
					recordErr(err)
					failed.Add(1)
				case !ok:
					mismatched.Add(1)
				default:
					succeeded.Add(1)
				}
				step()
			}
		}(conn)
	}
	wg.Wait()

	return BenchResult{
		Total:      opts.Connections * opts.Requests,
		Succeeded:  int(succeeded.Load()),
		Failed:     int(failed.Load()),
		Mismatched: int(mismatched.Load()),
		Elapsed:    time.Since(start),
		FirstError: firstErr,
	}
}

func (o BenchOptions) dial() (*Client, error) {
	if o.URL != "" {
		return DialWebSocket(o.URL, o.Options)
	}
	return Dial(o.Addr, o.Options)
}

// exchange sends request i of connection conn and checks the answer.
func exchange(c *Client, conn, i int) (bool, error) {
	if i%2 == 0 {
		want := fmt.Sprintf("conn-%d-req-%d", conn, i)
		got, err := c.Echo(want)
		if err != nil {
			return false, err
		}
		return got == want, nil
	}

	a, b := int32(conn), int32(i)
	got, err := c.Add(a, b)
	if err != nil {
		return false, err
	}
	return got == a+b, nil
}
