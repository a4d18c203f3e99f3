// Package worker schedules background document processing on a bounded
// goroutine pool. Documents are independent units of work: failures are
// retried per-document with fixed backoff and never affect other
// documents.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"

	"docchat/internal/ingest"
)

// Processor is the idempotent operation the pool invokes; satisfied by
// the ingest pipeline.
type Processor interface {
	Process(ctx context.Context, documentID string) ingest.Result
}

// Options bound the pool's retry and wall-clock policy.
type Options struct {
	PoolSize      int
	MaxRetries    int
	RetryBackoff  time.Duration
	SoftTimeLimit time.Duration // exceeded: logged
	HardTimeLimit time.Duration // exceeded: job context cancelled
}

type Pool struct {
	processor Processor
	pool      *ants.Pool
	opts      Options
	wg        sync.WaitGroup
}

func NewPool(processor Processor, opts Options) (*Pool, error) {
	if opts.PoolSize <= 0 {
		opts.PoolSize = 4
	}
	p, err := ants.NewPool(opts.PoolSize)
	if err != nil {
		return nil, err
	}
	return &Pool{processor: processor, pool: p, opts: opts}, nil
}

// Submit schedules processing of one document. Returns an error only if
// the pool rejects the job; processing outcomes are logged and retried
// inside the job.
func (p *Pool) Submit(ctx context.Context, documentID string) error {
	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		p.run(ctx, documentID)
	})
	if err != nil {
		p.wg.Done()
	}
	return err
}

func (p *Pool) run(ctx context.Context, documentID string) {
	attempts := p.opts.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		result := p.processOnce(ctx, documentID)
		elapsed := time.Since(start)

		if p.opts.SoftTimeLimit > 0 && elapsed > p.opts.SoftTimeLimit {
			log.Warn().Str("document_id", documentID).Dur("elapsed", elapsed).Msg("Processing exceeded soft time limit")
		}
		if result.Err == nil {
			return
		}

		log.Error().Err(result.Err).Str("document_id", documentID).Int("attempt", attempt).Msg("Document processing failed")
		if attempt == attempts || ctx.Err() != nil {
			return
		}
		select {
		case <-time.After(p.opts.RetryBackoff):
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool) processOnce(ctx context.Context, documentID string) ingest.Result {
	if p.opts.HardTimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.HardTimeLimit)
		defer cancel()
	}
	return p.processor.Process(ctx, documentID)
}

// Wait blocks until all submitted jobs finish.
func (p *Pool) Wait() { p.wg.Wait() }

// Release waits for in-flight jobs and shuts the pool down.
func (p *Pool) Release() {
	p.wg.Wait()
	p.pool.Release()
}
