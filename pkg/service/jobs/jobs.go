// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Core.
//
// Zaparoo Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Core.  If not, see <http://www.gnu.org/licenses/>.

// Package jobs runs long background tasks one at a time. It only handles
// scheduling, timeouts and cancellation. What a job reports while it runs
// is up to the job.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/helpers/syncutil"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultQueueSize is the default number of jobs waiting to run
	DefaultQueueSize = 16
	// DefaultTimeout is the hard wall-clock limit of a job
	DefaultTimeout = 4 * time.Hour
	// maxHistory is how many finished jobs List keeps reporting
	maxHistory = 50
)

var (
	ErrQueueFull    = errors.New("job queue is full")
	ErrQueueClosed  = errors.New("job queue is closed")
	ErrJobCancelled = errors.New("job cancelled")
	ErrJobTimeout   = errors.New("job timed out")
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Job is a named unit of work. Run must return promptly once its context
// is done. OnSkip, when set, is called from the worker for a job that was
// dropped without ever running: cancelled while queued, or still queued
// when the runner stopped.
type Job struct {
	Run    func(ctx context.Context) error
	OnSkip func(info JobInfo)
	Name   string
}

// JobInfo is a snapshot of a job's state.
type JobInfo struct {
	EnqueuedAt time.Time `json:"enqueuedAt"`
	StartedAt  time.Time `json:"startedAt,omitzero"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

type entry struct {
	cancel  context.CancelCauseFunc
	job     Job
	info    JobInfo
	timeout time.Duration
}

// Runner executes queued jobs on a single worker goroutine.
type Runner struct {
	clock    clockwork.Clock
	ctx      context.Context
	stop     context.CancelFunc
	queue    chan *entry
	jobs     map[string]*entry
	order    []string
	wg       sync.WaitGroup
	mu       syncutil.Mutex
	closed   bool
	queueCap int
}

type Option func(*Runner)

// WithClock sets the clock used for timestamps and timeouts.
func WithClock(clock clockwork.Clock) Option {
	return func(r *Runner) {
		r.clock = clock
	}
}

// WithQueueSize sets how many jobs may wait while another one runs.
func WithQueueSize(size int) Option {
	return func(r *Runner) {
		if size > 0 {
			r.queueCap = size
		}
	}
}

// NewRunner starts the worker. Cancelling ctx or calling Close stops it.
func NewRunner(ctx context.Context, opts ...Option) *Runner {
	r := &Runner{
		clock:    clockwork.NewRealClock(),
		jobs:     make(map[string]*entry),
		queueCap: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.ctx, r.stop = context.WithCancel(ctx)
	r.queue = make(chan *entry, r.queueCap)

	r.wg.Add(1)
	go r.worker()
	return r
}

// Enqueue adds a job and returns its id. A timeout of zero uses
// DefaultTimeout.
func (r *Runner) Enqueue(ctx context.Context, job Job, timeout time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", job.Name, err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", ErrQueueClosed
	}

	e := &entry{
		job:     job,
		timeout: timeout,
		info: JobInfo{
			ID:         uuid.New().String(),
			Name:       job.Name,
			Status:     StatusQueued,
			EnqueuedAt: r.clock.Now(),
		},
	}

	select {
	case r.queue <- e:
	default:
		return "", ErrQueueFull
	}

	r.jobs[e.info.ID] = e
	r.order = append(r.order, e.info.ID)
	r.pruneLocked()

	log.Debug().Str("id", e.info.ID).Str("name", job.Name).Msg("job enqueued")
	return e.info.ID, nil
}

// Cancel cancels a queued or running job. It returns false when the job
// is unknown or already finished.
func (r *Runner) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		return false
	}
	return r.cancelLocked(e)
}

// CancelByName cancels every queued or running job with the given name
// and returns how many were cancelled.
func (r *Runner) CancelByName(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, id := range r.order {
		e := r.jobs[id]
		if e.info.Name == name && r.cancelLocked(e) {
			n++
		}
	}
	return n
}

func (r *Runner) cancelLocked(e *entry) bool {
	switch e.info.Status {
	case StatusQueued:
		e.info.Status = StatusCancelled
		e.info.FinishedAt = r.clock.Now()
		log.Info().Str("id", e.info.ID).Str("name", e.info.Name).Msg("queued job cancelled")
		return true
	case StatusRunning:
		if e.cancel != nil {
			e.cancel(ErrJobCancelled)
		}
		log.Info().Str("id", e.info.ID).Str("name", e.info.Name).Msg("running job cancel requested")
		return true
	case StatusCompleted, StatusFailed, StatusCancelled:
		return false
	}
	return false
}

// List returns every known job in the order they were enqueued.
func (r *Runner) List() []JobInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := make([]JobInfo, 0, len(r.order))
	for _, id := range r.order {
		list = append(list, r.jobs[id].info)
	}
	return list
}

// Get returns a job by id.
func (r *Runner) Get(id string) (JobInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		return JobInfo{}, false
	}
	return e.info, true
}

// Close stops accepting jobs, cancels the running one and waits for the
// worker to exit. Jobs still queued are marked cancelled.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.stop()
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
	log.Debug().Msg("job runner stopped")
}

// pruneLocked drops the oldest finished jobs past maxHistory.
func (r *Runner) pruneLocked() {
	if len(r.order) <= maxHistory {
		return
	}
	kept := r.order[:0]
	excess := len(r.order) - maxHistory
	for _, id := range r.order {
		e := r.jobs[id]
		finished := e.info.Status != StatusQueued && e.info.Status != StatusRunning
		if excess > 0 && finished {
			delete(r.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for e := range r.queue {
		if r.ctx.Err() != nil {
			r.mu.Lock()
			r.cancelLocked(e)
			r.mu.Unlock()
			r.skip(e)
			continue
		}
		r.execute(e)
	}
}

// skip reports a job that will never run to its OnSkip hook.
func (r *Runner) skip(e *entry) {
	r.mu.Lock()
	info := e.info
	r.mu.Unlock()

	log.Debug().Str("id", info.ID).Str("name", info.Name).Msg("skipping cancelled job")
	if e.job.OnSkip != nil {
		e.job.OnSkip(info)
	}
}

// start moves a queued job to running. It returns a nil context when the
// job was cancelled while it waited.
func (r *Runner) start(e *entry) (context.Context, context.CancelCauseFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.info.Status != StatusQueued {
		return nil, nil
	}
	ctx, cancel := context.WithCancelCause(r.ctx)
	e.cancel = cancel
	e.info.Status = StatusRunning
	e.info.StartedAt = r.clock.Now()
	return ctx, cancel
}

func (r *Runner) execute(e *entry) {
	ctx, cancel := r.start(e)
	if ctx == nil {
		r.skip(e)
		return
	}

	timer := r.clock.AfterFunc(e.timeout, func() {
		cancel(ErrJobTimeout)
	})

	log.Info().
		Str("id", e.info.ID).
		Str("name", e.job.Name).
		Dur("timeout", e.timeout).
		Msg("job started")

	err := r.run(ctx, e)

	timer.Stop()
	cause := context.Cause(ctx)
	cancel(nil)

	r.mu.Lock()
	defer r.mu.Unlock()

	e.info.FinishedAt = r.clock.Now()
	e.cancel = nil
	switch {
	case errors.Is(cause, ErrJobCancelled) || (cause != nil && r.ctx.Err() != nil):
		e.info.Status = StatusCancelled
	case errors.Is(cause, ErrJobTimeout):
		e.info.Status = StatusFailed
		e.info.Error = ErrJobTimeout.Error()
	case err != nil:
		e.info.Status = StatusFailed
		e.info.Error = err.Error()
	default:
		e.info.Status = StatusCompleted
	}

	log.Info().
		Str("id", e.info.ID).
		Str("name", e.job.Name).
		Str("status", string(e.info.Status)).
		Dur("elapsed", e.info.FinishedAt.Sub(e.info.StartedAt)).
		Msg("job finished")
}

// run calls the job and reports a panic as a job error.
func (r *Runner) run(ctx context.Context, e *entry) (err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Str("name", e.job.Name).Msg("job panicked")
			err = fmt.Errorf("job %s panicked: %v", e.job.Name, p)
		}
	}()
	return e.job.Run(ctx)
}
