package pipeline

import (
	"sync"

	"github.com/jackzampolin/redline/internal/types"
)

// Observer receives run events. Methods may be called concurrently from
// different group tasks; within one group, chunk events arrive in item order.
// Progress values are delivered in non-decreasing order.
type Observer interface {
	OnChunkProcessed(groupKey string, results []types.CorrectionResult)
	OnProgress(percent int)
	OnAllCompleted()
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	ChunkProcessed func(groupKey string, results []types.CorrectionResult)
	Progress       func(percent int)
	AllCompleted   func()
}

func (f ObserverFuncs) OnChunkProcessed(groupKey string, results []types.CorrectionResult) {
	if f.ChunkProcessed != nil {
		f.ChunkProcessed(groupKey, results)
	}
}

func (f ObserverFuncs) OnProgress(percent int) {
	if f.Progress != nil {
		f.Progress(percent)
	}
}

func (f ObserverFuncs) OnAllCompleted() {
	if f.AllCompleted != nil {
		f.AllCompleted()
	}
}

// ChunkEvent is one processed chunk.
type ChunkEvent struct {
	GroupKey string
	Results  []types.CorrectionResult
}

// Signal selects which ChannelObserver streams are delivered.
type Signal uint8

const (
	SignalChunks Signal = 1 << iota
	SignalProgress
	SignalCompleted

	SignalAll = SignalChunks | SignalProgress | SignalCompleted
)

// ChannelObserver exposes the three run signals as separate channels.
// Only subscribed streams are fed; unsubscribed accessors return nil.
// Sends on subscribed streams block once the buffer is full, so a
// subscriber must drain what it asked for. Chunks and Progress are
// closed after the run completes; Completed is closed at completion.
type ChannelObserver struct {
	chunks    chan ChunkEvent
	progress  chan int
	completed chan struct{}
	once      sync.Once
}

// NewChannelObserver creates an observer feeding the selected signals,
// each buffered with buffer slots.
func NewChannelObserver(signals Signal, buffer int) *ChannelObserver {
	if buffer < 0 {
		buffer = 0
	}
	o := &ChannelObserver{}
	if signals&SignalChunks != 0 {
		o.chunks = make(chan ChunkEvent, buffer)
	}
	if signals&SignalProgress != 0 {
		o.progress = make(chan int, buffer)
	}
	if signals&SignalCompleted != 0 {
		o.completed = make(chan struct{})
	}
	return o
}

// Chunks returns the chunk event stream, or nil when not subscribed.
func (o *ChannelObserver) Chunks() <-chan ChunkEvent { return o.chunks }

// Progress returns the progress stream, or nil when not subscribed.
func (o *ChannelObserver) Progress() <-chan int { return o.progress }

// Completed is closed when the run completes, or nil when not subscribed.
func (o *ChannelObserver) Completed() <-chan struct{} { return o.completed }

func (o *ChannelObserver) OnChunkProcessed(groupKey string, results []types.CorrectionResult) {
	if o.chunks != nil {
		o.chunks <- ChunkEvent{GroupKey: groupKey, Results: results}
	}
}

func (o *ChannelObserver) OnProgress(percent int) {
	if o.progress != nil {
		o.progress <- percent
	}
}

func (o *ChannelObserver) OnAllCompleted() {
	o.once.Do(func() {
		if o.chunks != nil {
			close(o.chunks)
		}
		if o.progress != nil {
			close(o.progress)
		}
		if o.completed != nil {
			close(o.completed)
		}
	})
}

// observers fans events out to several observers in order.
type observers []Observer

func (obs observers) OnChunkProcessed(groupKey string, results []types.CorrectionResult) {
	for _, o := range obs {
		o.OnChunkProcessed(groupKey, results)
	}
}

func (obs observers) OnProgress(percent int) {
	for _, o := range obs {
		o.OnProgress(percent)
	}
}

func (obs observers) OnAllCompleted() {
	for _, o := range obs {
		o.OnAllCompleted()
	}
}

var (
	_ Observer = ObserverFuncs{}
	_ Observer = (*ChannelObserver)(nil)
	_ Observer = observers(nil)
)
