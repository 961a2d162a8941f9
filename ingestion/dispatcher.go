// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Mode selects how a Dispatcher schedules enrichment.
type Mode int

const (
	// ModeInline runs the pass on the caller's goroutine before Dispatch returns.
	ModeInline Mode = iota
	// ModeDeferred queues the pass for a bounded worker pool.
	ModeDeferred
)

// ParseMode converts "inline" or "deferred" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "inline":
		return ModeInline, nil
	case "deferred":
		return ModeDeferred, nil
	default:
		return ModeInline, fmt.Errorf("unknown enrichment mode %q", s)
	}
}

func (m Mode) String() string {
	if m == ModeDeferred {
		return "deferred"
	}
	return "inline"
}

// DefaultQueueSize bounds the number of passes waiting for a worker.
const DefaultQueueSize = 256

// Dispatcher hands enrichment jobs to an Enricher, either inline or through
// a bounded queue drained by an ants worker pool. A job that cannot be
// queued leaves its record unenriched; ingestion is never failed by it.
type Dispatcher struct {
	enricher  *Enricher
	mode      Mode
	workers   int
	queueSize int

	pool   *ants.Pool
	queue  chan Job
	fed    chan struct{}
	base   context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	logger *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher) error

// WithMode sets the scheduling model. Default is ModeInline.
func WithMode(mode Mode) DispatcherOption {
	return func(d *Dispatcher) error {
		d.mode = mode
		return nil
	}
}

// WithWorkers sets the worker pool size for deferred enrichment.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithWorkers(size int) DispatcherOption {
	return func(d *Dispatcher) error {
		if size < 1 {
			size = 1
		}
		d.workers = size
		return nil
	}
}

// WithQueueSize sets how many deferred jobs may wait for a worker.
func WithQueueSize(size int) DispatcherOption {
	return func(d *Dispatcher) error {
		if size < 1 {
			return fmt.Errorf("queue size must be positive: %d", size)
		}
		d.queueSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger.With("component", "dispatcher")
		return nil
	}
}

// NewDispatcher creates a dispatcher for enricher.
func NewDispatcher(enricher *Enricher, opts ...DispatcherOption) (*Dispatcher, error) {
	if enricher == nil {
		return nil, ErrEnricherRequired
	}

	workers := runtime.NumCPU() / 2
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{
		enricher:  enricher,
		mode:      ModeInline,
		workers:   workers,
		queueSize: DefaultQueueSize,
		logger:    slog.Default().With("component", "dispatcher"),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	if d.mode == ModeDeferred {
		pool, err := ants.NewPool(d.workers,
			ants.WithPanicHandler(func(p any) {
				d.logger.Error("enrichment worker panicked", "panic", p)
			}),
			ants.WithLogger(antsLogger{d.logger}),
		)
		if err != nil {
			return nil, err
		}
		d.pool = pool
		d.queue = make(chan Job, d.queueSize)
		d.fed = make(chan struct{})
		d.base, d.cancel = context.WithCancel(context.Background())
		go d.feed()
	}
	return d, nil
}

// Mode returns the scheduling model in use.
func (d *Dispatcher) Mode() Mode {
	return d.mode
}

// Dispatch schedules one enrichment pass for job. In inline mode the
// returned Outcome is final; in deferred mode it is StatusQueued, or
// StatusFailed at StageDispatch when the job could not be queued.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) Outcome {
	if d.mode == ModeInline {
		return d.enricher.Enrich(ctx, job)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return d.rejected(job, ErrDispatcherClosed)
	}

	d.tasks.Add(1)
	select {
	case d.queue <- job:
		d.logger.Debug("queued enrichment", "record", job.ID, "owner", job.Owner)
		return Outcome{Status: StatusQueued, Stage: StageDispatch}
	default:
		d.tasks.Done()
		return d.rejected(job, ErrQueueFull)
	}
}

func (d *Dispatcher) rejected(job Job, err error) Outcome {
	d.logger.Error("enrichment not scheduled", "record", job.ID, "owner", job.Owner, "err", err)
	return Outcome{
		Status: StatusFailed,
		Stage:  StageDispatch,
		Err:    &StageError{RecordID: job.ID, Stage: StageDispatch, Err: err},
	}
}

// feed moves queued jobs onto the pool, blocking while all workers are busy.
func (d *Dispatcher) feed() {
	defer close(d.fed)
	for job := range d.queue {
		err := d.pool.Submit(func() {
			defer d.tasks.Done()
			d.enricher.Enrich(d.base, job)
		})
		if err != nil {
			d.logger.Error("failed to submit enrichment", "record", job.ID, "err", err)
			d.tasks.Done()
		}
	}
}

// Wait blocks until every queued pass has finished.
func (d *Dispatcher) Wait() {
	d.tasks.Wait()
}

// Close stops accepting jobs and drains the queue. If ctx ends first, running
// passes are cancelled, which they record as stage failures.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d.mode != ModeDeferred {
		return nil
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		d.tasks.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		d.cancel()
		<-drained
		err = ctx.Err()
	}
	<-d.fed
	d.cancel()
	d.pool.Release()
	return err
}

// antsLogger routes ants pool messages to slog.
type antsLogger struct {
	logger *slog.Logger
}

func (l antsLogger) Printf(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}
