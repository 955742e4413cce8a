package llmcall

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackzampolin/redline/internal/providers"
)

// RecorderConfig configures the batching recorder.
type RecorderConfig struct {
	Store         Store
	BatchSize     int           // Flush after N calls (default: 50)
	FlushInterval time.Duration // Or after duration (default: 5s)
	QueueSize     int           // Buffer size (default: 1000)
	Logger        *slog.Logger
}

// Recorder handles fire-and-forget LLM call recording.
// Calls are queued and written to the store in batches.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	store  Store
	logger *slog.Logger

	batchSize     int
	flushInterval time.Duration

	queue   chan Call
	batch   []Call
	batchMu sync.Mutex
	flushCh chan struct{}
	done    chan struct{}

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRecorder creates a new LLM call recorder. Call Start before recording.
func NewRecorder(cfg RecorderConfig) *Recorder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Recorder{
		store:         cfg.Store,
		logger:        cfg.Logger,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		queue:         make(chan Call, cfg.QueueSize),
		batch:         make([]Call, 0, cfg.BatchSize),
		flushCh:       make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

// Start begins processing queued calls.
func (r *Recorder) Start(ctx context.Context) {
	if r == nil {
		return
	}
	// Writes must outlive ctx so Stop can flush after the caller's context ends.
	r.ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))

	r.wg.Add(1)
	go r.runBatcher()
}

// Stop gracefully shuts down the recorder, flushing remaining calls.
func (r *Recorder) Stop() {
	if r == nil {
		return
	}
	r.stopOnce.Do(func() {
		close(r.done)
		close(r.queue)
		r.wg.Wait()
		if r.cancel != nil {
			r.cancel()
		}
		r.logger.Debug("llm call recorder stopped")
	})
}

// Record captures an LLM call asynchronously.
// This is non-blocking unless the queue is full.
func (r *Recorder) Record(result *providers.ChatResult, opts RecordOptions) {
	if r == nil || r.store == nil {
		return
	}
	if call := FromChatResult(result, opts); call != nil {
		r.RecordCall(call)
	}
}

// RecordCall captures an already-constructed Call asynchronously.
func (r *Recorder) RecordCall(call *Call) {
	if r == nil || r.store == nil || call == nil {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("recorder closed, dropping llm call", "id", call.ID)
		}
	}()

	select {
	case r.queue <- *call:
	case <-r.done:
		r.logger.Warn("recorder closed, dropping llm call", "id", call.ID)
	}
}

// Flush requests an immediate write of the current batch.
func (r *Recorder) Flush() {
	if r == nil {
		return
	}
	select {
	case r.flushCh <- struct{}{}:
	default:
		// Flush already pending
	}
}

func (r *Recorder) runBatcher() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case call, ok := <-r.queue:
			if !ok {
				r.flushBatch()
				return
			}
			r.addToBatch(call)

		case <-ticker.C:
			r.flushBatch()

		case <-r.flushCh:
			r.flushBatch()
		}
	}
}

func (r *Recorder) addToBatch(call Call) {
	r.batchMu.Lock()
	r.batch = append(r.batch, call)
	shouldFlush := len(r.batch) >= r.batchSize
	r.batchMu.Unlock()

	if shouldFlush {
		r.flushBatch()
	}
}

func (r *Recorder) flushBatch() {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}
	calls := r.batch
	r.batch = make([]Call, 0, r.batchSize)
	r.batchMu.Unlock()

	r.logger.Debug("flushing llm calls", "count", len(calls))
	if err := r.store.Insert(r.ctx, calls); err != nil {
		r.logger.Error("failed to record llm calls", "count", len(calls), "error", err)
	}
}
