package replay

import (
	"fmt"
	"math"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// Transition is one step of agent-environment interaction. Mask is
// 1 - terminal, so bootstrapped targets are cut off at episode ends by
// multiplying the next-state value with Mask.
type Transition struct {
	State     []float64
	Action    []float64
	Reward    float64
	NextState []float64
	Mask      float64
}

// NewTransition packages a single environment step into a Transition.
func NewTransition(state, action []float64, reward float64,
	nextState []float64, done bool) Transition {
	mask := 1.0
	if done {
		mask = 0.0
	}
	return Transition{
		State:     state,
		Action:    action,
		Reward:    reward,
		NextState: nextState,
		Mask:      mask,
	}
}

// Batch is an immutable snapshot of sampled transitions. Each field is
// stored flat in row-major order and deep-copied out of the memory, so
// a batch stays valid however the memory is mutated afterwards.
type Batch struct {
	States     []float64
	Actions    []float64
	Rewards    []float64
	NextStates []float64
	Masks      []float64

	batchSize int
	stateDim  int
	actionDim int
}

// Size returns the number of transitions in the batch.
func (b Batch) Size() int {
	return b.batchSize
}

// StateDim returns the per-transition state dimension.
func (b Batch) StateDim() int {
	return b.stateDim
}

// ActionDim returns the per-transition action dimension.
func (b Batch) ActionDim() int {
	return b.actionDim
}

// StateTensor returns the batch states as a (batch, stateDim) tensor.
func (b Batch) StateTensor() *tensor.Dense {
	return tensor.New(
		tensor.WithShape(b.batchSize, b.stateDim),
		tensor.WithBacking(b.States),
	)
}

// NextStateTensor returns the batch next states as a (batch, stateDim)
// tensor.
func (b Batch) NextStateTensor() *tensor.Dense {
	return tensor.New(
		tensor.WithShape(b.batchSize, b.stateDim),
		tensor.WithBacking(b.NextStates),
	)
}

// ActionTensor returns the batch actions as a (batch, actionDim)
// tensor.
func (b Batch) ActionTensor() *tensor.Dense {
	return tensor.New(
		tensor.WithShape(b.batchSize, b.actionDim),
		tensor.WithBacking(b.Actions),
	)
}

// StateMat returns the batch states as a (batch, stateDim) gonum
// matrix.
func (b Batch) StateMat() *mat.Dense {
	return mat.NewDense(b.batchSize, b.stateDim, b.States)
}

// RewardVec returns the batch rewards as a gonum vector.
func (b Batch) RewardVec() *mat.VecDense {
	return mat.NewVecDense(b.batchSize, b.Rewards)
}

// MaskVec returns the batch masks as a gonum vector.
func (b Batch) MaskVec() *mat.VecDense {
	return mat.NewVecDense(b.batchSize, b.Masks)
}

// Config describes a replay Memory.
type Config struct {
	Capacity  int     `json:"capacity"`
	StateDim  int     `json:"state_dim"`
	ActionDim int     `json:"action_dim"`
	Combined  bool    `json:"combined"`
	Backend   Backend `json:"backend"`
	Seed      uint64  `json:"seed"`
}

// Validate returns an error describing any invalid configuration
// setting. Invalid flag combinations are rejected here, before a
// Memory ever exists.
func (c Config) Validate() error {
	if c.Capacity < 1 {
		return fmt.Errorf("validate: capacity must be >= 1, got %v",
			c.Capacity)
	}
	if c.Combined && c.Capacity < 2 {
		return fmt.Errorf("validate: combined sampling requires "+
			"capacity >= 2, got %v", c.Capacity)
	}
	if c.StateDim < 1 {
		return fmt.Errorf("validate: state dim must be >= 1, got %v",
			c.StateDim)
	}
	if c.ActionDim < 1 {
		return fmt.Errorf("validate: action dim must be >= 1, got %v",
			c.ActionDim)
	}
	if c.Backend != Gonum && c.Backend != Tensor {
		return fmt.Errorf("validate: unknown backend %v", c.Backend)
	}
	return nil
}

// Memory composes five lock-stepped RingBuffers into a transition
// store. Push and Sample are serialized on an internal mutex so that a
// parallel rollout/learner split needs no external locking; within one
// goroutine the memory behaves as a plain sequential container.
//
// Sampling is uniform with replacement. With Combined sampling enabled
// (combined experience replay), the most recently pushed transition is
// force-included as exactly one batch member and the remaining members
// are drawn from the older transitions, guaranteeing the freshest
// experience is trained on at least once.
type Memory struct {
	mu sync.Mutex

	state     *RingBuffer
	action    *RingBuffer
	reward    *RingBuffer
	nextState *RingBuffer
	mask      *RingBuffer

	combined bool
	rng      *rand.Rand
}

// New creates and returns a new replay Memory described by config.
func New(config Config) (*Memory, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	state, err := NewRingBuffer(config.Capacity, config.StateDim,
		config.Backend)
	if err != nil {
		return nil, fmt.Errorf("new: could not create state buffer: %v", err)
	}
	action, err := NewRingBuffer(config.Capacity, config.ActionDim,
		config.Backend)
	if err != nil {
		return nil, fmt.Errorf("new: could not create action buffer: %v", err)
	}
	reward, err := NewRingBuffer(config.Capacity, 1, config.Backend)
	if err != nil {
		return nil, fmt.Errorf("new: could not create reward buffer: %v", err)
	}
	nextState, err := NewRingBuffer(config.Capacity, config.StateDim,
		config.Backend)
	if err != nil {
		return nil, fmt.Errorf("new: could not create next state buffer: %v",
			err)
	}
	mask, err := NewRingBuffer(config.Capacity, 1, config.Backend)
	if err != nil {
		return nil, fmt.Errorf("new: could not create mask buffer: %v", err)
	}

	return &Memory{
		state:     state,
		action:    action,
		reward:    reward,
		nextState: nextState,
		mask:      mask,
		combined:  config.Combined,
		rng:       rand.New(rand.NewSource(config.Seed)),
	}, nil
}

// Push appends one transition across all five field buffers. The push
// is atomic: every field is validated before any buffer is touched, so
// a failed push leaves the memory unchanged.
func (m *Memory) Push(t Transition) error {
	if len(t.State) != m.state.Dim() {
		return fmt.Errorf("push: invalid state size \n\twant(%v)"+
			"\n\thave(%v)", m.state.Dim(), len(t.State))
	}
	if len(t.NextState) != m.nextState.Dim() {
		return fmt.Errorf("push: invalid next state size \n\twant(%v)"+
			"\n\thave(%v)", m.nextState.Dim(), len(t.NextState))
	}
	if len(t.Action) != m.action.Dim() {
		return fmt.Errorf("push: invalid action size \n\twant(%v)"+
			"\n\thave(%v)", m.action.Dim(), len(t.Action))
	}
	if t.Mask != 0.0 && t.Mask != 1.0 {
		return fmt.Errorf("push: mask must be exactly 0 or 1, got %v", t.Mask)
	}
	if math.IsNaN(t.Reward) || math.IsInf(t.Reward, 0) {
		return fmt.Errorf("push: reward must be finite, got %v", t.Reward)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Dimensions were validated above, and the five buffers share one
	// capacity, so none of these can fail and the lock-step invariant
	// holds.
	m.state.Add(t.State)
	m.action.Add(t.Action)
	m.reward.Add([]float64{t.Reward})
	m.nextState.Add(t.NextState)
	m.mask.Add([]float64{t.Mask})
	return nil
}

// Sample draws a batch of batchSize transitions uniformly at random
// with replacement. With combined sampling, the newest transition is
// one guaranteed batch member and the remaining batchSize-1 members
// are drawn from the older transitions, which requires at least two
// stored transitions.
func (m *Memory) Sample(batchSize int) (Batch, error) {
	if batchSize < 1 {
		return Batch{}, fmt.Errorf("sample: batch size must be >= 1, got %v",
			batchSize)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	size := m.state.Size()
	if size == 0 {
		return Batch{}, &MemoryError{Op: "sample", Err: errEmptyMemory}
	}
	if m.combined && size < 2 {
		return Batch{}, &MemoryError{Op: "sample", Err: errInsufficientSamples}
	}

	indices := make([]int, batchSize)
	if m.combined {
		for i := 0; i < batchSize-1; i++ {
			indices[i] = m.rng.Intn(size - 1)
		}
		indices[batchSize-1] = size - 1
	} else {
		for i := range indices {
			indices[i] = m.rng.Intn(size)
		}
	}

	return m.gather(indices, batchSize)
}

// gather assembles a deep-copied batch at the given logical indices.
// Callers must hold the mutex.
func (m *Memory) gather(indices []int, batchSize int) (Batch, error) {
	states, err := m.state.Sample(indices)
	if err != nil {
		return Batch{}, err
	}
	actions, err := m.action.Sample(indices)
	if err != nil {
		return Batch{}, err
	}
	rewards, err := m.reward.Sample(indices)
	if err != nil {
		return Batch{}, err
	}
	nextStates, err := m.nextState.Sample(indices)
	if err != nil {
		return Batch{}, err
	}
	masks, err := m.mask.Sample(indices)
	if err != nil {
		return Batch{}, err
	}

	return Batch{
		States:     states,
		Actions:    actions,
		Rewards:    rewards,
		NextStates: nextStates,
		Masks:      masks,
		batchSize:  batchSize,
		stateDim:   m.state.Dim(),
		actionDim:  m.action.Dim(),
	}, nil
}

// Size returns the number of stored transitions. All five field
// buffers always report the same size.
func (m *Memory) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Size()
}

// Capacity returns the maximum number of stored transitions.
func (m *Memory) Capacity() int {
	return m.state.Capacity()
}

// Reset clears all five field buffers.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Reset()
	m.action.Reset()
	m.reward.Reset()
	m.nextState.Reset()
	m.mask.Reset()
}
