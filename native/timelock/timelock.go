package timelock

import (
	"encoding/hex"
	"errors"
	"sync"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"reservecore/core/events"
	"reservecore/crypto"
)

var (
	// ErrNotAdmin indicates the caller is not the timelock administrator.
	ErrNotAdmin = errors.New("timelock: caller is not the admin")
	// ErrDelayNotMet indicates the requested eta lands inside the delay window.
	ErrDelayNotMet = errors.New("timelock: eta must satisfy the delay")
	// ErrNotQueued indicates the operation was never queued or was cancelled.
	ErrNotQueued = errors.New("timelock: operation not queued")
	// ErrTooEarly indicates the eta has not been reached yet.
	ErrTooEarly = errors.New("timelock: eta not reached")
	// ErrStale indicates the grace window after the eta elapsed.
	ErrStale = errors.New("timelock: operation is stale")
	// ErrUnknownTarget indicates no dispatcher is registered for the target.
	ErrUnknownTarget = errors.New("timelock: no dispatcher for target")
)

// gracePeriod is the window after the eta during which a queued operation
// remains executable.
const gracePeriod = 14 * 24 * time.Hour

// Operation is one queued administrative call: a dispatcher target, a method
// name the dispatcher understands, an opaque payload, and the earliest
// execution time.
type Operation struct {
	Target  string
	Method  string
	Payload []byte
	ETA     uint64
}

// ID returns the operation's content hash, which doubles as its queue key.
func (op Operation) ID() [32]byte {
	data := make([]byte, 0, len(op.Target)+len(op.Method)+len(op.Payload)+8)
	data = append(data, op.Target...)
	data = append(data, 0)
	data = append(data, op.Method...)
	data = append(data, 0)
	data = append(data, op.Payload...)
	var eta [8]byte
	for i := 0; i < 8; i++ {
		eta[i] = byte(op.ETA >> (56 - 8*i))
	}
	data = append(data, eta[:]...)
	var id [32]byte
	copy(id[:], ethcrypto.Keccak256(data))
	return id
}

// Dispatcher applies a queued operation when its delay has elapsed.
type Dispatcher func(method string, payload []byte) error

// Storage abstracts the subset of state manager functionality required by the
// queue bookkeeping.
type Storage interface {
	KVPut(key []byte, value interface{}) error
	KVGet(key []byte, out interface{}) (bool, error)
	KVDelete(key []byte) error
}

// Timelock delays administrative operations behind a mandatory queue-then-wait
// window. The admin account queues, cancels, and executes; execution applies
// the operation through the dispatcher registered for its target, exactly
// once.
type Timelock struct {
	mu          sync.Mutex
	store       Storage
	admin       crypto.Address
	delay       time.Duration
	dispatchers map[string]Dispatcher
	emitter     events.Emitter
	nowFn       func() time.Time
}

// New constructs a timelock with the given admin identity and delay.
func New(store Storage, admin crypto.Address, delay time.Duration) *Timelock {
	return &Timelock{
		store:       store,
		admin:       admin,
		delay:       delay,
		dispatchers: make(map[string]Dispatcher),
		emitter:     events.NoopEmitter{},
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

// SetEmitter configures the event emitter. Nil resets to a no-op.
func (t *Timelock) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		t.emitter = events.NoopEmitter{}
		return
	}
	t.emitter = emitter
}

// SetNowFunc overrides the clock, primarily for deterministic testing.
func (t *Timelock) SetNowFunc(now func() time.Time) {
	if now != nil {
		t.nowFn = now
	}
}

// RegisterDispatcher binds a target name to the function that applies its
// operations.
func (t *Timelock) RegisterDispatcher(target string, dispatch Dispatcher) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dispatchers[target] = dispatch
}

// Admin returns the administrator identity.
func (t *Timelock) Admin() crypto.Address { return t.admin }

// Delay returns the mandatory wait between queue and execution.
func (t *Timelock) Delay() time.Duration { return t.delay }

func queueKey(id [32]byte) []byte {
	return []byte("timelock/queued/" + hex.EncodeToString(id[:]))
}

func (t *Timelock) requireAdmin(caller crypto.Address) error {
	if !t.admin.Equal(caller) {
		return ErrNotAdmin
	}
	return nil
}

// Queue schedules the operation. The eta must sit at or beyond now + delay.
func (t *Timelock) Queue(caller crypto.Address, op Operation) ([32]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var id [32]byte
	if err := t.requireAdmin(caller); err != nil {
		return id, err
	}
	earliest := uint64(t.nowFn().Add(t.delay).Unix())
	if op.ETA < earliest {
		return id, ErrDelayNotMet
	}
	if _, ok := t.dispatchers[op.Target]; !ok {
		return id, ErrUnknownTarget
	}
	id = op.ID()
	if err := t.store.KVPut(queueKey(id), &op); err != nil {
		return id, err
	}
	t.emitter.Emit(events.Attributed{Type: events.TypeTimelockQueued, Attributes: map[string]string{
		"id":     hex.EncodeToString(id[:]),
		"target": op.Target,
		"method": op.Method,
	}})
	return id, nil
}

// Queued reports whether the operation currently sits in the queue.
func (t *Timelock) Queued(op Operation) (bool, error) {
	stored := &Operation{}
	return t.store.KVGet(queueKey(op.ID()), stored)
}

// Cancel removes a queued operation before it executes.
func (t *Timelock) Cancel(caller crypto.Address, op Operation) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireAdmin(caller); err != nil {
		return err
	}
	id := op.ID()
	stored := &Operation{}
	ok, err := t.store.KVGet(queueKey(id), stored)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotQueued
	}
	if err := t.store.KVDelete(queueKey(id)); err != nil {
		return err
	}
	t.emitter.Emit(events.Attributed{Type: events.TypeTimelockCancelled, Attributes: map[string]string{
		"id": hex.EncodeToString(id[:]),
	}})
	return nil
}

// Execute applies a queued operation once its eta has passed and before the
// grace window closes. The queue entry is consumed before the dispatcher runs
// so a dispatcher failure cannot be replayed without re-queueing.
func (t *Timelock) Execute(caller crypto.Address, op Operation) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireAdmin(caller); err != nil {
		return err
	}
	id := op.ID()
	stored := &Operation{}
	ok, err := t.store.KVGet(queueKey(id), stored)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotQueued
	}
	now := uint64(t.nowFn().Unix())
	if now < stored.ETA {
		return ErrTooEarly
	}
	if now > stored.ETA+uint64(gracePeriod/time.Second) {
		return ErrStale
	}
	dispatch, ok := t.dispatchers[stored.Target]
	if !ok {
		return ErrUnknownTarget
	}
	if err := t.store.KVDelete(queueKey(id)); err != nil {
		return err
	}
	if err := dispatch(stored.Method, stored.Payload); err != nil {
		return err
	}
	t.emitter.Emit(events.Attributed{Type: events.TypeTimelockExecuted, Attributes: map[string]string{
		"id":     hex.EncodeToString(id[:]),
		"target": stored.Target,
		"method": stored.Method,
	}})
	return nil
}
