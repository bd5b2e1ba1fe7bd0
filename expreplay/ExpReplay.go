// Package expreplay implements a fixed-capacity experience replay
// buffer with first-in-first-out eviction and uniform random sampling.
package expreplay

import (
	"fmt"

	"golang.org/x/exp/rand"

	"raceline/timestep"
)

// Batch is a batch of transitions sampled from the buffer. States and
// NextStates are flattened row-major, one featureSize-length row per
// sample. Discounts already fold episode termination in: a terminal
// transition carries a discount of 0.
type Batch struct {
	States     []float64
	Actions    []int
	Rewards    []float64
	Discounts  []float64
	NextStates []float64
	Size       int
}

// Buffer is a capacity-bounded store of transitions. When full, the
// oldest transition is evicted first. Sampling is uniform with
// replacement; the sampled output carries no ordering or recency
// guarantee.
//
// A Buffer is owned by a single goroutine and is not safe for
// concurrent use.
type Buffer struct {
	stateCache     []float64
	actionCache    []int
	rewardCache    []float64
	discountCache  []float64
	nextStateCache []float64

	// insert is the ring index of the next write; with FIFO eviction
	// it always points at the oldest element once the buffer is full
	insert int
	size   int

	featureSize int
	minCapacity int
	maxCapacity int
	batchSize   int

	rng *rand.Rand
}

// New creates and returns a new Buffer. The buffer refuses to sample
// until it holds at least minCapacity transitions (and never fewer
// than a batch).
func New(minCapacity, maxCapacity, featureSize, batchSize int,
	seed uint64) (*Buffer, error) {
	if minCapacity <= 0 {
		return nil, fmt.Errorf("new: minCapacity must be > 0")
	}
	if maxCapacity < 1 {
		return nil, fmt.Errorf("new: maxCapacity must be >= 1")
	}
	if batchSize > maxCapacity {
		return nil, fmt.Errorf("new: cannot have batch size (%v) > max "+
			"buffer capacity (%v)", batchSize, maxCapacity)
	}
	if featureSize <= 0 {
		return nil, fmt.Errorf("new: featureSize must be > 0")
	}

	return &Buffer{
		stateCache:     make([]float64, maxCapacity*featureSize),
		actionCache:    make([]int, maxCapacity),
		rewardCache:    make([]float64, maxCapacity),
		discountCache:  make([]float64, maxCapacity),
		nextStateCache: make([]float64, maxCapacity*featureSize),

		featureSize: featureSize,
		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
		batchSize:   batchSize,

		rng: rand.New(rand.NewSource(seed)),
	}, nil
}

// Capacity returns the current number of samples in the buffer
func (b *Buffer) Capacity() int { return b.size }

// MaxCapacity returns the maximum allowable samples in the buffer
func (b *Buffer) MaxCapacity() int { return b.maxCapacity }

// MinCapacity returns the number of samples required to be in the
// buffer before the buffer can be sampled
func (b *Buffer) MinCapacity() int { return b.minCapacity }

// BatchSize returns the number of samples returned by Sample()
func (b *Buffer) BatchSize() int { return b.batchSize }

// CanSample returns whether the buffer currently holds enough samples
// for Sample to succeed. Callers must guard Sample with this
// predicate.
func (b *Buffer) CanSample() bool {
	return b.size >= b.minCapacity && b.size >= b.batchSize
}

// Add adds a transition to the buffer, evicting the oldest transition
// if the buffer is at capacity.
func (b *Buffer) Add(t timestep.Transition) error {
	if t.State.Len() != b.featureSize || t.NextState.Len() != b.featureSize {
		return fmt.Errorf("add: invalid feature size \n\twant(%v)"+
			"\n\thave(%v)", b.featureSize, t.State.Len())
	}

	start := b.insert * b.featureSize
	for i := 0; i < b.featureSize; i++ {
		b.stateCache[start+i] = t.State.AtVec(i)
		b.nextStateCache[start+i] = t.NextState.AtVec(i)
	}
	b.actionCache[b.insert] = t.Action
	b.rewardCache[b.insert] = t.Reward
	b.discountCache[b.insert] = t.Discount

	b.insert = (b.insert + 1) % b.maxCapacity
	if b.size < b.maxCapacity {
		b.size++
	}
	return nil
}

// Sample draws a batch of transitions uniformly at random with
// replacement. It fails when the buffer holds fewer samples than
// CanSample requires.
func (b *Buffer) Sample() (*Batch, error) {
	if b.size == 0 {
		return nil, &ExpReplayError{Op: "sample", Err: errEmptyBuffer}
	}
	if !b.CanSample() {
		return nil, &ExpReplayError{Op: "sample", Err: errInsufficientSamples}
	}

	batch := &Batch{
		States:     make([]float64, b.batchSize*b.featureSize),
		Actions:    make([]int, b.batchSize),
		Rewards:    make([]float64, b.batchSize),
		Discounts:  make([]float64, b.batchSize),
		NextStates: make([]float64, b.batchSize*b.featureSize),
		Size:       b.batchSize,
	}

	for i := 0; i < b.batchSize; i++ {
		index := b.rng.Intn(b.size)

		batchStart := i * b.featureSize
		cacheStart := index * b.featureSize
		copy(batch.States[batchStart:batchStart+b.featureSize],
			b.stateCache[cacheStart:cacheStart+b.featureSize])
		copy(batch.NextStates[batchStart:batchStart+b.featureSize],
			b.nextStateCache[cacheStart:cacheStart+b.featureSize])

		batch.Actions[i] = b.actionCache[index]
		batch.Rewards[i] = b.rewardCache[index]
		batch.Discounts[i] = b.discountCache[index]
	}

	return batch, nil
}

// oldest returns the cache index of the oldest surviving transition.
// Used by tests to verify FIFO eviction.
func (b *Buffer) oldest() int {
	if b.size < b.maxCapacity {
		return 0
	}
	return b.insert
}
