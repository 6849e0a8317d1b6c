package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/kacperjurak/goloadflow"
	"github.com/kacperjurak/goloadflow/pkg/models"
	"github.com/kacperjurak/goloadflow/pkg/profiling"
)

// Pool manages concurrent load-flow workers
type Pool struct {
	jobs         chan models.WorkItem
	results      chan models.WorkResult
	webhookQueue chan models.WebhookItem
	workers      int
	shutdown     chan struct{}
	wg           sync.WaitGroup
	sends        sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	processor    ProcessorFunc
	sender       Sender
	quiet        bool
	once         sync.Once
}

// ErrPoolClosed is returned by SubmitJob once Shutdown has started.
var ErrPoolClosed = errors.New("worker pool is shut down")

// ProcessorFunc solves one case
type ProcessorFunc func(ctx context.Context, req models.SolveRequest, settings goloadflow.Settings) (*goloadflow.Result, error)

// Sender delivers webhook items
type Sender interface {
	Send(ctx context.Context, item models.WebhookItem) error
}

// Options holds configuration for creating a new worker pool
type Options struct {
	Workers   int
	Processor ProcessorFunc
	// Sender may be nil, queued webhooks are then dropped.
	Sender Sender
	Quiet  bool
}

// New creates a new worker pool with specified configuration
func New(opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}

	ctx, cancel := context.WithCancel(context.Background())

	// buffer jobs and results so submitters don't block while workers are busy
	pool := &Pool{
		jobs:         make(chan models.WorkItem, opts.Workers*2),
		results:      make(chan models.WorkResult, opts.Workers*2),
		webhookQueue: make(chan models.WebhookItem, opts.Workers*4), // webhooks are slower than solves
		workers:      opts.Workers,
		shutdown:     make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
		processor:    opts.Processor,
		sender:       opts.Sender,
		quiet:        opts.Quiet,
	}

	pool.start()
	return pool
}

// start initializes and starts all workers
func (p *Pool) start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.wg.Add(1)
	go p.webhookProcessor()

	log.Printf("🔧 Worker pool started with %d workers", p.workers)
}

// Workers returns the number of solve workers.
func (p *Pool) Workers() int {
	return p.workers
}

// worker processes load-flow jobs from the jobs channel
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobs:
			result := p.processJob(id, job)
			var out chan<- models.WorkResult = p.results
			if job.Reply != nil {
				out = job.Reply
			}
			select {
			case out <- result:
			case <-p.shutdown:
				return
			}

		case <-p.shutdown:
			return
		}
	}
}

// processJob runs the solve and records its timing
func (p *Pool) processJob(workerID int, job models.WorkItem) models.WorkResult {
	var timer *profiling.SolveTimer
	if !p.quiet {
		timer = profiling.NewSolveTimer(workerID, job.RequestID)
	}
	startTime := time.Now()
	res, err := p.processor(p.ctx, job.Case, job.Settings)
	processingTime := time.Since(startTime)

	if timer != nil {
		timer.Finish(err == nil)
		if err != nil {
			log.Printf("⚠️  Job %d (%s) failed: %v", job.ID, job.RequestID, err)
		}
	}

	return models.WorkResult{
		ID:             job.ID,
		RequestID:      job.RequestID,
		BatchID:        job.BatchID,
		Iteration:      job.Iteration,
		Result:         res,
		Err:            err,
		ProcessingTime: processingTime,
		Success:        err == nil,
	}
}

// webhookProcessor hands queued webhooks to the sender without blocking workers
func (p *Pool) webhookProcessor() {
	defer p.wg.Done()

	for {
		select {
		case item := <-p.webhookQueue:
			p.sends.Add(1)
			go p.sendWebhook(item)

		case <-p.shutdown:
			return
		}
	}
}

func (p *Pool) sendWebhook(item models.WebhookItem) {
	defer p.sends.Done()

	if p.sender == nil {
		if !p.quiet {
			log.Printf("No webhook configured, dropping result for %s", item.RequestID)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := p.sender.Send(ctx, item); err != nil {
		log.Printf("❌ Webhook for %s failed: %v", item.RequestID, err)
	}
}

// SubmitJob submits a job to the worker pool. It blocks while the jobs
// channel is full and gives up with ErrPoolClosed when the pool shuts down.
func (p *Pool) SubmitJob(job models.WorkItem) error {
	select {
	case <-p.shutdown:
		return ErrPoolClosed
	default:
	}

	select {
	case p.jobs <- job:
		return nil
	default:
		log.Printf("⚠️  Worker pool jobs channel full, job may be delayed")
	}

	select {
	case p.jobs <- job:
		return nil
	case <-p.shutdown:
		return ErrPoolClosed
	}
}

// Done is closed when Shutdown starts. Jobs still queued at that point
// never produce a result.
func (p *Pool) Done() <-chan struct{} {
	return p.shutdown
}

// GetResult retrieves a result from the worker pool (non-blocking)
func (p *Pool) GetResult() (models.WorkResult, bool) {
	select {
	case result := <-p.results:
		return result, true
	default:
		return models.WorkResult{}, false
	}
}

// QueueWebhook queues a webhook for async processing
func (p *Pool) QueueWebhook(item models.WebhookItem) {
	select {
	case p.webhookQueue <- item:
	default:
		log.Printf("⚠️  Webhook queue full, dropping webhook for %s", item.RequestID)
	}
}

// Shutdown stops the workers, cancels in-flight solves and waits for
// webhooks already being sent.
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		log.Printf("🛑 Shutting down worker pool...")
		p.cancel()
		close(p.shutdown)
		p.wg.Wait()
		p.sends.Wait()
		log.Printf("✅ Worker pool shutdown complete")
	})
}
