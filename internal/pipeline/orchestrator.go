// Package pipeline runs correction over groups of items.
//
// Each group is split into chunks that are corrected strictly in order,
// while groups run concurrently. Identical chunk prompts within a run are
// sent to the correction service once. Chunk failures become synthetic
// Error results and never stop a group or the run.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/redline/internal/cache"
	"github.com/jackzampolin/redline/internal/chunker"
	"github.com/jackzampolin/redline/internal/classify"
	"github.com/jackzampolin/redline/internal/correction"
	"github.com/jackzampolin/redline/internal/metrics"
	"github.com/jackzampolin/redline/internal/repair"
	"github.com/jackzampolin/redline/internal/types"
)

// Corrector builds and sends chunk prompts. *correction.Client implements it.
type Corrector interface {
	BuildPrompt(chunk types.Chunk) string
	Do(ctx context.Context, req correction.Request) (correction.Response, error)
}

// Config configures an Orchestrator.
type Config struct {
	Corrector Corrector

	// MaxCharsPerChunk is the chunk budget (default chunker.DefaultMaxChars).
	MaxCharsPerChunk int
	// MaxConcurrentGroups bounds concurrent group tasks; 0 runs every group at once.
	MaxConcurrentGroups int

	Classifier *classify.Classifier // default: classify.New(nil)
	Parser     *repair.Parser       // default: repair.NewParser(Logger)
	Metrics    *metrics.Recorder    // optional
	Observer   Observer             // optional, receives events of every run
	Logger     *slog.Logger
}

// Orchestrator runs correction passes. It is safe to start several runs
// concurrently; each run gets its own cache and status.
type Orchestrator struct {
	corrector     Corrector
	maxChars      int
	maxConcurrent int
	classifier    *classify.Classifier
	parser        *repair.Parser
	metrics       *metrics.Recorder
	observer      Observer
	logger        *slog.Logger

	mu   sync.RWMutex
	last *Handle
}

// New creates an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Corrector == nil {
		return nil, errors.New("pipeline: corrector is required")
	}
	if cfg.MaxCharsPerChunk <= 0 {
		cfg.MaxCharsPerChunk = chunker.DefaultMaxChars
	}
	if cfg.MaxConcurrentGroups < 0 {
		cfg.MaxConcurrentGroups = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Classifier == nil {
		cfg.Classifier = classify.New(nil)
	}
	if cfg.Parser == nil {
		cfg.Parser = repair.NewParser(cfg.Logger)
	}
	return &Orchestrator{
		corrector:     cfg.Corrector,
		maxChars:      cfg.MaxCharsPerChunk,
		maxConcurrent: cfg.MaxConcurrentGroups,
		classifier:    cfg.Classifier,
		parser:        cfg.Parser,
		metrics:       cfg.Metrics,
		observer:      cfg.Observer,
		logger:        cfg.Logger,
	}, nil
}

// Run processes groups and blocks until every group finished or was cancelled.
// On cancellation it returns the results gathered so far with ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, groups []types.ItemGroup, obs ...Observer) (types.Results, error) {
	return o.Start(ctx, groups, obs...).Wait()
}

// Start launches a run in the background and returns its handle.
func (o *Orchestrator) Start(ctx context.Context, groups []types.ItemGroup, obs ...Observer) *Handle {
	var all observers
	if o.observer != nil {
		all = append(all, o.observer)
	}
	all = append(all, obs...)

	h := newHandle(o, mergeGroups(groups), all)

	o.mu.Lock()
	o.last = h
	o.mu.Unlock()

	go h.run(ctx)
	return h
}

// Status reports the most recently started run, or RunIdle if none.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	h := o.last
	o.mu.RUnlock()
	if h == nil {
		return Status{State: RunIdle}
	}
	return h.Status()
}

// GroupsFromMap converts a key to items mapping into groups ordered by key.
func GroupsFromMap(m map[string][]types.ScannedItem) []types.ItemGroup {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups := make([]types.ItemGroup, len(keys))
	for i, k := range keys {
		groups[i] = types.ItemGroup{Key: k, Items: m[k]}
	}
	return groups
}

// mergeGroups folds repeated keys into the first occurrence, keeping item order.
func mergeGroups(groups []types.ItemGroup) []types.ItemGroup {
	index := make(map[string]int, len(groups))
	out := make([]types.ItemGroup, 0, len(groups))
	for _, g := range groups {
		if i, ok := index[g.Key]; ok {
			out[i].Items = append(out[i].Items, g.Items...)
			continue
		}
		index[g.Key] = len(out)
		items := make([]types.ScannedItem, len(g.Items))
		copy(items, g.Items)
		out = append(out, types.ItemGroup{Key: g.Key, Items: items})
	}
	return out
}

// Handle tracks one run.
type Handle struct {
	o        *Orchestrator
	id       string
	groups   []types.ItemGroup
	observer Observer
	cache    *cache.Cache
	logger   *slog.Logger
	done     chan struct{}

	// progressMu serializes progress emission so values arrive in order.
	progressMu sync.Mutex

	mu        sync.Mutex
	results   types.Results
	state     RunState
	statuses  []GroupStatus
	total     int
	processed int
	cancelled bool
	err       error
}

func newHandle(o *Orchestrator, groups []types.ItemGroup, obs observers) *Handle {
	id := uuid.New().String()
	h := &Handle{
		o:        o,
		id:       id,
		groups:   groups,
		observer: obs,
		cache:    cache.New(),
		logger:   o.logger.With("run_id", id),
		done:     make(chan struct{}),
		results:  make(types.Results, len(groups)),
		state:    RunRunning,
		statuses: make([]GroupStatus, len(groups)),
	}
	for i, g := range groups {
		h.statuses[i] = GroupStatus{Key: g.Key, State: GroupPending}
		h.results[g.Key] = []types.CorrectionResult{}
	}
	return h
}

// ID returns the run identifier.
func (h *Handle) ID() string { return h.id }

// Done is closed once the run has completed.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the run completes and returns its results.
func (h *Handle) Wait() (types.Results, error) {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.results, h.err
}

// CacheStats reports the run's content cache counters.
func (h *Handle) CacheStats() cache.Stats {
	return h.cache.Stats()
}

// Status returns a snapshot of the run.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	groups := make([]GroupStatus, len(h.statuses))
	copy(groups, h.statuses)
	return Status{
		RunID:           h.id,
		State:           h.state,
		TotalChunks:     h.total,
		ProcessedChunks: h.processed,
		Percent:         percent(h.processed, h.total),
		Cancelled:       h.cancelled,
		Groups:          groups,
	}
}

func percent(processed, total int) int {
	if total == 0 {
		return 100
	}
	return 100 * processed / total
}

func (h *Handle) run(ctx context.Context) {
	defer close(h.done)

	total := 0
	for _, g := range h.groups {
		total += chunker.Count(g.Items, h.o.maxChars)
	}
	h.mu.Lock()
	h.total = total
	h.mu.Unlock()

	h.logger.Info("correction run started", "groups", len(h.groups), "chunks", total)

	if total == 0 {
		h.mu.Lock()
		for i := range h.statuses {
			h.statuses[i].State = GroupCompleted
		}
		h.mu.Unlock()
		h.observer.OnProgress(100)
	} else {
		var g errgroup.Group
		if h.o.maxConcurrent > 0 {
			g.SetLimit(h.o.maxConcurrent)
		}
		for i := range h.groups {
			g.Go(func() error {
				h.processGroup(ctx, i)
				return nil
			})
		}
		_ = g.Wait()
	}

	h.mu.Lock()
	h.state = RunAllCompleted
	if err := ctx.Err(); err != nil && h.cancelled {
		h.err = err
	}
	processed := h.processed
	h.mu.Unlock()

	stats := h.cache.Stats()
	h.logger.Info("correction run completed",
		"processed_chunks", processed,
		"total_chunks", total,
		"cache_hits", stats.Hits,
		"cancelled", h.err != nil)

	h.observer.OnAllCompleted()
}

func (h *Handle) setGroup(i int, state GroupState, chunk, chunks int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := &h.statuses[i]
	s.State = state
	if chunk > 0 {
		s.Chunk = chunk
	}
	if chunks > 0 {
		s.Chunks = chunks
	}
}

func (h *Handle) cancelGroup(i int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses[i].State = GroupCancelled
	h.cancelled = true
}

// processGroup corrects one group's chunks in order.
func (h *Handle) processGroup(ctx context.Context, i int) {
	group := h.groups[i]
	logger := h.logger.With("group", group.Key)

	if ctx.Err() != nil {
		h.cancelGroup(i)
		return
	}

	h.setGroup(i, GroupChunking, 0, 0)
	chunks := chunker.Split(group.Items, h.o.maxChars)

	for _, chunk := range chunks {
		if ctx.Err() != nil {
			logger.Info("group cancelled", "remaining_chunks", len(chunks)-chunk.Index)
			h.cancelGroup(i)
			return
		}
		h.setGroup(i, GroupProcessing, chunk.Index+1, len(chunks))

		results, ok := h.correctChunk(ctx, logger, group.Key, chunk)
		if !ok {
			h.cancelGroup(i)
			return
		}

		h.mu.Lock()
		h.results[group.Key] = append(h.results[group.Key], results...)
		h.statuses[i].Corrections += len(results)
		h.mu.Unlock()

		h.observer.OnChunkProcessed(group.Key, results)

		h.progressMu.Lock()
		h.mu.Lock()
		h.processed++
		p := percent(h.processed, h.total)
		h.mu.Unlock()
		h.observer.OnProgress(p)
		h.progressMu.Unlock()
	}

	h.setGroup(i, GroupCompleted, 0, 0)
}

// correctChunk returns the mapped, classified results for chunk.
// ok is false when the run was cancelled while the request was in flight.
func (h *Handle) correctChunk(ctx context.Context, logger *slog.Logger, groupKey string, chunk types.Chunk) ([]types.CorrectionResult, bool) {
	prompt := h.o.corrector.BuildPrompt(chunk)
	key := cache.ComputeKey(prompt)
	opts := metrics.RecordOpts{
		RunID:      h.id,
		GroupKey:   groupKey,
		ChunkIndex: chunk.Index,
		Items:      chunk.Len(),
	}

	parsed, hit, err := h.cache.GetOrCompute(key, func() ([]types.CorrectionResult, bool, error) {
		resp, err := h.o.corrector.Do(ctx, correction.Request{
			Prompt:     prompt,
			RunID:      h.id,
			GroupKey:   groupKey,
			ChunkIndex: chunk.Index,
		})
		if err != nil && ctx.Err() != nil {
			return nil, false, ctx.Err()
		}

		list := h.o.parser.Parse(resp.Raw, chunk.Text())
		for j := range list {
			if list[j].IsSynthetic() && list[j].OriginalText == "" {
				list[j].OriginalText = chunk.Text()
			}
		}

		if err != nil {
			logger.Warn("chunk failed", "chunk", chunk.Index, "kind", correction.ErrorKind(err), "error", err)
		}
		h.o.metrics.RecordLLMCall(opts, resp.Result, len(list))

		// Failed requests stay uncached so an identical chunk later in the run tries again.
		return list, err == nil, nil
	})
	if err != nil {
		return nil, false
	}
	if hit {
		logger.Debug("chunk served from cache", "chunk", chunk.Index)
		h.o.metrics.RecordCacheHit(opts, len(parsed))
	}

	for j := range parsed {
		if id, ok := chunk.SourceIDForLine(parsed[j].LineNumber); ok {
			parsed[j].SourceID = id
		}
	}
	return h.o.classifier.Apply(parsed), true
}
