package core

import "fmt"

// ExecKind selects which of the three invocation contexts (SPEC_FULL
// §4.1.1) a guest call runs under.
type ExecKind uint8

const (
	ExecTrade ExecKind = iota
	ExecCall
	ExecView
)

// TenantStore is the per-tenant key-value view a guest module reads and
// writes through the storage_* host functions. Writes are buffered in
// `pending` until the invocation completes successfully and are flushed by
// the caller (engine.go), matching SPEC_FULL §4.1.3 step 7.
type TenantStore struct {
	dexID   string
	backing map[string][]byte // committed state, shared across invocations
	pending map[string][]byte // this invocation's writes
	removed map[string]bool
}

// NewTenantStore wraps a tenant's committed KV map for one invocation.
func NewTenantStore(dexID string, backing map[string][]byte) *TenantStore {
	return &TenantStore{
		dexID:   dexID,
		backing: backing,
		pending: make(map[string][]byte),
		removed: make(map[string]bool),
	}
}

// view reads pending-then-backing, honoring a pending removal.
func (t *TenantStore) view(key string) ([]byte, bool) {
	if t.removed[key] {
		return nil, false
	}
	if v, ok := t.pending[key]; ok {
		return v, true
	}
	v, ok := t.backing[key]
	return v, ok
}

func (t *TenantStore) write(key string, val []byte) (old []byte, hadOld bool) {
	old, hadOld = t.view(key)
	delete(t.removed, key)
	t.pending[key] = val
	return old, hadOld
}

func (t *TenantStore) remove(key string) (old []byte, hadOld bool) {
	old, hadOld = t.view(key)
	delete(t.pending, key)
	t.removed[key] = true
	return old, hadOld
}

// BytesUsage sums len(key)+len(value) across the store's committed view as
// it would look after applying pending writes — the figure storage_usage
// synthesizes against.
func (t *TenantStore) BytesUsage() int64 {
	merged := make(map[string][]byte, len(t.backing)+len(t.pending))
	for k, v := range t.backing {
		merged[k] = v
	}
	for k := range t.removed {
		delete(merged, k)
	}
	for k, v := range t.pending {
		merged[k] = v
	}
	var total int64
	for k, v := range merged {
		total += int64(len(k) + len(v))
	}
	return total
}

// Flush commits every pending write/removal into the backing map.
func (t *TenantStore) Flush() {
	for k := range t.removed {
		delete(t.backing, k)
	}
	for k, v := range t.pending {
		t.backing[k] = v
	}
	t.pending = make(map[string][]byte)
	t.removed = make(map[string]bool)
}

// vmContext is the live object the wasmer import functions close over; one
// instance is constructed per guest invocation and discarded afterward.
type vmContext struct {
	kind ExecKind

	mem []byte // guest linear memory, set once instantiated

	input  []byte
	output []byte

	registers map[uint64][]byte

	predecessor    string
	hasPredecessor bool

	dexID string
	store *TenantStore

	storageUsageBefore int64

	blockIndex     uint64
	blockTimestamp uint64
	epochHeight    uint64
	prepaidGas     uint64
	usedGas        uint64
	randomSeed     [32]byte

	events []string // EVENT_JSON payloads surfaced as tenant events
	logs   []string

	panicked bool
	panicMsg string
}

func newVMContext(kind ExecKind, dexID string, store *TenantStore, input []byte, predecessor string, hasPredecessor bool) *vmContext {
	return &vmContext{
		kind:               kind,
		input:              input,
		registers:          make(map[uint64][]byte),
		predecessor:        predecessor,
		hasPredecessor:     hasPredecessor,
		dexID:              dexID,
		store:              store,
		storageUsageBefore: store.BytesUsage(),
	}
}

// readMem copies len bytes from guest memory at ptr.
func (c *vmContext) readMem(ptr, ln uint64) []byte {
	out := make([]byte, ln)
	copy(out, c.mem[ptr:ptr+ln])
	return out
}

// writeMem copies data into guest memory at ptr.
func (c *vmContext) writeMem(ptr uint64, data []byte) {
	copy(c.mem[ptr:], data)
}

// setRegister stores bytes under a register id, NEAR-ABI style.
func (c *vmContext) setRegister(id uint64, data []byte) {
	c.registers[id] = data
}

func (c *vmContext) getRegister(id uint64) ([]byte, bool) {
	v, ok := c.registers[id]
	return v, ok
}

// guestPanic records the abort and panics the Go goroutine so the
// surrounding Engine.callGuest can recover it and fail the whole entry call,
// matching SPEC_FULL §4.6's "guest panic propagates" semantics.
func (c *vmContext) guestPanic(msg string) {
	c.panicked = true
	c.panicMsg = fmt.Sprintf("[%s] %s", c.dexID, msg)
	panic(guestPanicSignal{msg: c.panicMsg})
}

// guestPanicSignal is the value recover() observes for a guest abort, kept
// distinct from ordinary Go runtime panics so callGuest can tell them apart.
type guestPanicSignal struct{ msg string }
