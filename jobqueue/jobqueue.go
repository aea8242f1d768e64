// Package jobqueue implements C2, the durable priority/delay/retry job
// queue (spec.md §4.2). State is held entirely in Redis so that multiple
// worker processes share one queue; claim races are resolved by a
// conditional ZREM (only one claimant observes removed==1) rather than
// in-process locking (spec.md §5 shared-resource policy).
package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/catalystvision/core/config"
	"github.com/catalystvision/core/errors"
	"github.com/catalystvision/core/eventbus"
	"github.com/catalystvision/core/log"
	"github.com/catalystvision/core/video"
)

const (
	keyWaiting   = "jobqueue:waiting"
	keyDelayed   = "jobqueue:delayed"
	keyActive    = "jobqueue:active"
	keyCompleted = "jobqueue:completed"
	keyFailed    = "jobqueue:failed"
	keyJobPrefix = "jobqueue:job:"
)

func jobKey(id string) string { return keyJobPrefix + id }

// Queue is the Redis-backed JobQueue (C2).
type Queue struct {
	rdb   *redis.Client
	bus   *eventbus.Bus
	clock config.TimestampGenerator

	mu          sync.Mutex
	cancelFuncs map[string]context.CancelFunc
}

func New(rdb *redis.Client, bus *eventbus.Bus) *Queue {
	return &Queue{
		rdb:         rdb,
		bus:         bus,
		clock:       config.RealTimestampGenerator{},
		cancelFuncs: make(map[string]context.CancelFunc),
	}
}

// EnqueueOptions mirrors the options bag in spec.md §4.2.
type EnqueueOptions struct {
	Priority    int
	Delay       time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	Retention   video.RetentionPolicy
}

func (o EnqueueOptions) withDefaults() EnqueueOptions {
	if o.Priority == 0 {
		o.Priority = config.DefaultPriority
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = config.DefaultMaxAttempts
	}
	if o.BackoffBase == 0 {
		o.BackoffBase = config.DefaultBackoffBase
	}
	if o.Retention.KeepCompleted == 0 {
		o.Retention.KeepCompleted = config.DefaultRetainKeepOK
	}
	if o.Retention.KeepFailed == 0 {
		o.Retention.KeepFailed = config.DefaultRetainKeepKO
	}
	return o
}

// Enqueue creates a job record and makes it eligible for claim (spec.md
// §4.2). Validation of origin/reference is the caller's responsibility
// (pipeline Prepare stage re-validates file:// paths regardless).
func (q *Queue) Enqueue(ctx context.Context, owner string, origin video.Origin, reference string, options video.ProcessingOptions, opts EnqueueOptions) (string, error) {
	if opts.Priority != 0 && (opts.Priority < config.MinPriority || opts.Priority > config.MaxPriority) {
		return "", errors.Validation("priority out of range", nil)
	}
	opts = opts.withDefaults()

	now := q.clock.GetTime()
	job := video.Job{
		ID:          uuid.NewString(),
		Owner:       owner,
		Origin:      origin,
		Reference:   reference,
		Options:     options,
		Priority:    opts.Priority,
		Attempts:    0,
		MaxAttempts: opts.MaxAttempts,
		Backoff:     video.BackoffExponential,
		BackoffBase: opts.BackoffBase,
		EnqueuedAt:  now,
		Retention:   opts.Retention,
	}

	if opts.Delay > 0 {
		delayUntil := now.Add(opts.Delay)
		job.DelayUntil = &delayUntil
		job.State = video.StateDelayed
	} else {
		job.State = video.StateWaiting
	}

	if err := q.saveJob(ctx, &job); err != nil {
		return "", err
	}

	pipe := q.rdb.TxPipeline()
	if job.State == video.StateDelayed {
		pipe.ZAdd(ctx, keyDelayed, redis.Z{Score: float64(job.DelayUntil.UnixMilli()), Member: job.ID})
	} else {
		pipe.ZAdd(ctx, keyWaiting, redis.Z{Score: waitingScore(job.Priority, now), Member: job.ID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}

	q.publishState(ctx, &job)
	return job.ID, nil
}

// retryDelay computes base · 2^(attempts-1) (spec.md §4.2, §8 backoff law)
// by driving cenkalti/backoff's exponential policy with randomization
// disabled, rather than hand-rolling the power-of-two arithmetic.
func retryDelay(base time.Duration, attempts int) time.Duration {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = base
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = 24 * time.Hour // effectively unbounded; MaxAttempts caps retries instead
	eb.MaxElapsedTime = 0           // never give up based on elapsed time
	var d time.Duration
	for i := 0; i < attempts; i++ {
		d = eb.NextBackOff()
	}
	return d
}

// waitingScore ranks highest priority first, earliest enqueuedAt as
// tiebreak (spec.md §4.2 claim fairness): lower score pops first.
func waitingScore(priority int, enqueuedAt time.Time) float64 {
	return float64(config.MaxPriority-priority)*1e13 + float64(enqueuedAt.UnixMilli())
}

func (q *Queue) saveJob(ctx context.Context, job *video.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.rdb.Set(ctx, jobKey(job.ID), data, 0).Err()
}

func (q *Queue) loadJob(ctx context.Context, id string) (*video.Job, error) {
	data, err := q.rdb.Get(ctx, jobKey(id)).Bytes()
	if err == redis.Nil {
		return nil, errors.NewObjectNotFoundError(fmt.Sprintf("job %s not found", id), nil)
	}
	if err != nil {
		return nil, err
	}
	var job video.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetStatus returns the job's status, or false if the job is unknown
// (spec.md §4.2).
func (q *Queue) GetStatus(ctx context.Context, id string) (video.Status, bool, error) {
	job, err := q.loadJob(ctx, id)
	if errors.IsObjectNotFound(err) {
		return video.Status{}, false, nil
	}
	if err != nil {
		return video.Status{}, false, err
	}
	return video.Status{
		State:        job.State,
		Progress:     job.Progress,
		EnqueuedAt:   job.EnqueuedAt,
		StartedAt:    job.StartedAt,
		FinishedAt:   job.FinishedAt,
		Error:        job.Error,
		AttemptsMade: job.Attempts,
	}, true, nil
}

// SetProgress updates the stored progress and publishes a ProgressUpdate
// (spec.md §4.6 "after each stage").
func (q *Queue) SetProgress(ctx context.Context, id string, progress int, stage, message string) error {
	job, err := q.loadJob(ctx, id)
	if err != nil {
		return err
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	if err := q.saveJob(ctx, job); err != nil {
		return err
	}
	payload, err := eventbus.MarshalProgressUpdate(eventbus.ProgressUpdate{
		JobID: id, Progress: job.Progress, Stage: stage, Message: message,
	})
	if err != nil {
		return err
	}
	q.bus.PublishLogged(ctx, id, eventbus.ProgressTopic(id), payload)
	return nil
}

// Cancel requests cancellation of a waiting, delayed, or active job
// (spec.md §4.2). For an active job it signals the in-flight worker (if
// claimed by this process) via context, and publishes a cross-process
// cancel notice so a worker in another process can react on its own
// cancellation subscription.
func (q *Queue) Cancel(ctx context.Context, id string) (bool, error) {
	job, err := q.loadJob(ctx, id)
	if err != nil {
		if errors.IsObjectNotFound(err) {
			return false, nil
		}
		return false, err
	}
	switch job.State {
	case video.StateWaiting:
		q.rdb.ZRem(ctx, keyWaiting, id)
	case video.StateDelayed:
		q.rdb.ZRem(ctx, keyDelayed, id)
	case video.StateActive:
		q.rdb.ZRem(ctx, keyActive, id)
		q.mu.Lock()
		if cancel, ok := q.cancelFuncs[id]; ok {
			cancel()
		}
		q.mu.Unlock()
		payload, _ := eventbus.MarshalJobEvent(eventbus.JobEvent{JobID: id, State: video.StateCancelled})
		q.bus.PublishLogged(ctx, id, cancelTopic(id), payload)
	default:
		return false, nil
	}

	now := q.clock.GetTime()
	job.State = video.StateCancelled
	job.FinishedAt = &now
	if err := q.saveJob(ctx, job); err != nil {
		return false, err
	}
	q.publishState(ctx, job)
	return true, nil
}

func cancelTopic(id string) string { return "jobs:" + id + ":cancel" }

// ClaimedJob is returned by Claim; its Ctx is cancelled when Cancel is
// called for this job id, or when the caller's parent ctx is cancelled.
type ClaimedJob struct {
	Job *video.Job
	Ctx context.Context

	queue  *Queue
	cancel context.CancelFunc
	subCancel context.CancelFunc
}

// Release must be called once the worker is done with the job (regardless
// of outcome), to stop the background cancellation subscriber.
func (c *ClaimedJob) Release() {
	c.subCancel()
	c.cancel()
	c.queue.mu.Lock()
	delete(c.queue.cancelFuncs, c.Job.ID)
	c.queue.mu.Unlock()
}

// Claim performs a fair blocking claim (spec.md §4.2): highest priority
// first, earliest enqueuedAt among ties, delayed jobs promoted once their
// delay has elapsed. It polls at a short interval since Redis sorted sets
// have no native blocking-pop-with-priority primitive.
func (q *Queue) Claim(ctx context.Context, workerID string) (*ClaimedJob, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		id, err := q.tryClaim(ctx)
		if err != nil {
			return nil, err
		}
		if id != "" {
			return q.finishClaim(ctx, id, workerID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *Queue) tryClaim(ctx context.Context) (string, error) {
	now := q.clock.GetTime()
	ready, err := q.rdb.ZRangeByScore(ctx, keyDelayed, &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%d", now.UnixMilli())}).Result()
	if err != nil {
		return "", err
	}
	for _, id := range ready {
		job, err := q.loadJob(ctx, id)
		if err != nil {
			continue
		}
		pipe := q.rdb.TxPipeline()
		pipe.ZRem(ctx, keyDelayed, id)
		pipe.ZAdd(ctx, keyWaiting, redis.Z{Score: waitingScore(job.Priority, job.EnqueuedAt), Member: id})
		if _, err := pipe.Exec(ctx); err != nil {
			return "", err
		}
	}

	top, err := q.rdb.ZRange(ctx, keyWaiting, 0, 0).Result()
	if err != nil {
		return "", err
	}
	if len(top) == 0 {
		return "", nil
	}
	removed, err := q.rdb.ZRem(ctx, keyWaiting, top[0]).Result()
	if err != nil {
		return "", err
	}
	if removed == 0 {
		// another claimant won the race; caller retries.
		return "", nil
	}
	return top[0], nil
}

func (q *Queue) finishClaim(ctx context.Context, id, workerID string) (*ClaimedJob, error) {
	job, err := q.loadJob(ctx, id)
	if err != nil {
		return nil, err
	}
	now := q.clock.GetTime()
	job.State = video.StateActive
	job.StartedAt = &now
	job.Attempts++
	if err := q.saveJob(ctx, job); err != nil {
		return nil, err
	}
	if err := q.rdb.ZAdd(ctx, keyActive, redis.Z{Score: float64(now.UnixMilli()), Member: id}).Err(); err != nil {
		return nil, err
	}
	q.publishState(ctx, job)

	jobCtx, cancel := context.WithCancel(ctx)
	q.mu.Lock()
	q.cancelFuncs[id] = cancel
	q.mu.Unlock()

	subCtx, subCancel := context.WithCancel(ctx)
	go q.watchCancelSignal(subCtx, id, cancel)
	go q.heartbeatLoop(subCtx, id)

	_ = workerID
	return &ClaimedJob{Job: job, Ctx: jobCtx, queue: q, cancel: cancel, subCancel: subCancel}, nil
}

// heartbeatLoop periodically renews this claim's lease in keyActive so
// ReapExpiredLeases knows the worker is still alive (spec.md §4.2 "worker
// death (missed heartbeat or broken context)"). It stops when subCtx is
// cancelled by Release.
func (q *Queue) heartbeatLoop(ctx context.Context, id string) {
	ticker := time.NewTicker(config.LeaseHeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.renewLease(ctx, id)
		}
	}
}

func (q *Queue) renewLease(ctx context.Context, id string) {
	now := q.clock.GetTime()
	if err := q.rdb.ZAdd(ctx, keyActive, redis.Z{Score: float64(now.UnixMilli()), Member: id}).Err(); err != nil {
		log.LogError(id, "failed to renew job lease", err)
	}
}

func (q *Queue) watchCancelSignal(ctx context.Context, id string, cancel context.CancelFunc) {
	sub := q.bus.Subscribe(ctx, cancelTopic(id))
	defer sub.Close()
	for {
		_, err := sub.Next(ctx)
		if err != nil {
			return
		}
		cancel()
		return
	}
}

// Outcome is passed to Ack.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimeout   Outcome = "timeout"   // treated as failed (spec.md §4.2)
	OutcomeCancelled Outcome = "cancelled" // the worker observed ctx cancellation
)

// Ack resolves a claimed job (spec.md §4.2). Failed jobs are retried with
// exponential backoff (base · 2^(attempts-1)) until attempts are exhausted.
//
// A terminal job is immutable (spec.md §3): Cancel can finalize an active
// job (State -> cancelled) out from under a worker that is still mid-run,
// so Ack no-ops whenever the stored job has already reached a terminal
// state, regardless of the outcome the caller passes in — it never
// reopens a cancelled job into waiting or clobbers it into failed.
func (q *Queue) Ack(ctx context.Context, id string, outcome Outcome, result *video.ProcessingResult, jobErr *video.JobError) error {
	job, err := q.loadJob(ctx, id)
	if err != nil {
		return err
	}
	q.rdb.ZRem(ctx, keyActive, id)

	if job.State.IsTerminal() {
		return nil
	}

	now := q.clock.GetTime()

	if outcome == OutcomeTimeout {
		outcome = OutcomeFailed
	}

	switch outcome {
	case OutcomeCompleted:
		job.State = video.StateCompleted
		job.FinishedAt = &now
		if err := q.saveJob(ctx, job); err != nil {
			return err
		}
		q.retain(ctx, keyCompleted, id, job.Retention.KeepCompleted)
	case OutcomeFailed:
		if err := q.failOrRetry(ctx, job, now, jobErr); err != nil {
			return err
		}
	case OutcomeCancelled:
		// Cancel already wrote the terminal state and published it (it is
		// the only path that ever sets StateCancelled); there is nothing
		// left for Ack to do.
		return nil
	}

	q.publishState(ctx, job)
	return nil
}

// failOrRetry applies the §8 backoff law: retry to waiting while attempts
// remain, otherwise terminal failed. Shared by Ack(..., OutcomeFailed) and
// ReapExpiredLeases, since a worker death is handled identically to an
// explicit failure ack (spec.md §4.2).
func (q *Queue) failOrRetry(ctx context.Context, job *video.Job, now time.Time, jobErr *video.JobError) error {
	job.Error = jobErr
	if job.Attempts < job.MaxAttempts {
		delay := retryDelay(job.BackoffBase, job.Attempts)
		delayUntil := now.Add(delay)
		job.DelayUntil = &delayUntil
		job.State = video.StateWaiting
		if err := q.saveJob(ctx, job); err != nil {
			return err
		}
		return q.rdb.ZAdd(ctx, keyDelayed, redis.Z{Score: float64(delayUntil.UnixMilli()), Member: job.ID}).Err()
	}
	job.State = video.StateFailed
	job.FinishedAt = &now
	if err := q.saveJob(ctx, job); err != nil {
		return err
	}
	q.retain(ctx, keyFailed, job.ID, job.Retention.KeepFailed)
	return nil
}

// ReapExpiredLeases scans the active set for jobs whose heartbeat is older
// than LeaseTTL (spec.md §4.2 "worker death (missed heartbeat or broken
// context)") and returns them to waiting with incremented attempts and
// backoff applied, exactly as an explicit Ack(..., OutcomeFailed) would.
func (q *Queue) ReapExpiredLeases(ctx context.Context) (int, error) {
	now := q.clock.GetTime()
	cutoff := now.Add(-config.LeaseTTL)
	expired, err := q.rdb.ZRangeByScore(ctx, keyActive, &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%d", cutoff.UnixMilli())}).Result()
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, id := range expired {
		removed, err := q.rdb.ZRem(ctx, keyActive, id).Result()
		if err != nil || removed == 0 {
			continue // a live heartbeat or a concurrent Ack/reaper already claimed it
		}
		job, err := q.loadJob(ctx, id)
		if err != nil {
			continue
		}
		if job.State.IsTerminal() {
			continue
		}
		jobErr := &video.JobError{Code: string(errors.CodeExternalTransient), Message: "worker lease expired"}
		if err := q.failOrRetry(ctx, job, now, jobErr); err != nil {
			continue
		}
		q.publishState(ctx, job)
		reaped++
	}
	return reaped, nil
}

// RunReaper polls ReapExpiredLeases on interval until ctx is done (interval
// <= 0 uses config.ReaperInterval). This is the background process that
// makes worker death recoverable instead of leaving a job active forever.
func (q *Queue) RunReaper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = config.ReaperInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := q.ReapExpiredLeases(ctx); err != nil {
				log.LogError("", "lease reaper pass failed", err)
			}
		}
	}
}

// retain appends to a retention list and trims terminal job hashes beyond
// the configured keep count (spec.md §4.2 retention invariant).
func (q *Queue) retain(ctx context.Context, listKey, id string, keep int) {
	q.rdb.LPush(ctx, listKey, id)
	dropped, err := q.rdb.LRange(ctx, listKey, int64(keep), -1).Result()
	if err != nil {
		return
	}
	if len(dropped) > 0 {
		q.rdb.LTrim(ctx, listKey, 0, int64(keep)-1)
		for _, did := range dropped {
			q.rdb.Del(ctx, jobKey(did))
		}
	}
}

func (q *Queue) publishState(ctx context.Context, job *video.Job) {
	payload, err := eventbus.MarshalJobEvent(eventbus.JobEvent{
		JobID: job.ID, State: job.State, Attempts: job.Attempts, Error: job.Error, Timestamp: q.clock.GetTime(),
	})
	if err != nil {
		return
	}
	q.bus.PublishLogged(ctx, job.ID, eventbus.JobTopic(job.ID), payload)
	q.bus.PublishLogged(ctx, job.ID, eventbus.TopicJobs, payload)
}

// Metrics reports queue depth per state (spec.md §4.2).
func (q *Queue) Metrics(ctx context.Context) (video.Metrics, error) {
	waiting, err := q.rdb.ZCard(ctx, keyWaiting).Result()
	if err != nil {
		return video.Metrics{}, err
	}
	delayed, err := q.rdb.ZCard(ctx, keyDelayed).Result()
	if err != nil {
		return video.Metrics{}, err
	}
	active, err := q.rdb.ZCard(ctx, keyActive).Result()
	if err != nil {
		return video.Metrics{}, err
	}
	completed, err := q.rdb.LLen(ctx, keyCompleted).Result()
	if err != nil {
		return video.Metrics{}, err
	}
	failed, err := q.rdb.LLen(ctx, keyFailed).Result()
	if err != nil {
		return video.Metrics{}, err
	}
	return video.Metrics{
		Waiting:   waiting,
		Delayed:   delayed,
		Active:    active,
		Completed: completed,
		Failed:    failed,
	}, nil
}
