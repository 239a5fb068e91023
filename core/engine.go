package core

// Engine ties the ledger, host runtime, storage-balance pools and
// withdrawal gateway together into the entry surface described in
// SPEC_FULL §6. One Engine instance models the whole single-threaded
// contract address; every entry call serializes through its mutex, the
// way a single-writer ledger append path would.

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/wasmerio/wasmer-go/wasmer"
)

type Engine struct {
	mu sync.Mutex

	Ledger      *Ledger
	Code        *DexCodeStore
	UserStorage *StorageBalances
	DexStorage  *StorageBalances
	Withdrawals *WithdrawalGateway
	Events      *EventEmitter
	Log         *logrus.Logger

	tenantKV map[string]map[string][]byte
	wasm     *wasmer.Engine

	BlockIndex     uint64
	BlockTimestamp uint64
	EpochHeight    uint64
	rng            *rand.Rand
}

// NewEngine constructs an Engine from its collaborators. byteCost governs
// both storage-balance pools.
func NewEngine(log *logrus.Logger, byteCost Amount, transferer TokenTransferer) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	ledger, _ := NewLedger(LedgerConfig{Logger: log})
	events := NewEventEmitter(log)
	e := &Engine{
		Ledger:      ledger,
		Code:        NewDexCodeStore(),
		UserStorage: NewStorageBalances(byteCost),
		DexStorage:  NewStorageBalances(byteCost),
		Events:      events,
		Log:         log,
		tenantKV:    make(map[string]map[string][]byte),
		wasm:        wasmer.NewEngine(),
		rng:         rand.New(rand.NewSource(1)),
	}
	e.Withdrawals = NewWithdrawalGateway(ledger, transferer, events, log)
	return e
}

func (e *Engine) backingStore(dexID string) map[string][]byte {
	m, ok := e.tenantKV[dexID]
	if !ok {
		m = make(map[string][]byte)
		e.tenantKV[dexID] = m
	}
	return m
}

// invocationResult carries everything an Invoke caller needs out of a
// single guest call.
type invocationResult struct {
	output []byte
	events []string
	logs   []string
}

// Invoke runs the five-to-nine step flow of SPEC_FULL §4.1.3 for one guest
// entry point. Storage is charged against the tenant itself (since all
// tenant writes are scoped to its own store and isolation
// forbids cross-tenant mutation).
func (e *Engine) Invoke(ctx context.Context, kind ExecKind, dexID DexId, export string, input []byte, predecessor string, hasPredecessor bool) (res invocationResult, err error) {
	if kind == ExecTrade && export != "swap" {
		export = "swap"
	}
	if kind == ExecCall && export == "swap" {
		return invocationResult{}, ErrForbiddenExport
	}

	code, err := e.Code.Get(dexID)
	if err != nil {
		return invocationResult{}, err
	}

	store := wasmer.NewStore(e.wasm)
	mod, err := wasmer.NewModule(store, code)
	if err != nil {
		return invocationResult{}, fmt.Errorf("instantiate module: %w", err)
	}

	backing := e.backingStore(dexID.String())
	tstore := NewTenantStore(dexID.String(), backing)

	vctx := newVMContext(kind, dexID.String(), tstore, input, predecessor, hasPredecessor)
	vctx.blockIndex = e.BlockIndex
	vctx.blockTimestamp = e.BlockTimestamp
	vctx.epochHeight = e.EpochHeight
	vctx.prepaidGas = uint64(PrepaidGas)
	e.rng.Read(vctx.randomSeed[:])

	imports := registerHost(store, vctx)
	instance, err := wasmer.NewInstance(mod, imports)
	if err != nil {
		return invocationResult{}, fmt.Errorf("link module: %w", err)
	}
	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return invocationResult{}, fmt.Errorf("wasm memory export missing: %w", err)
	}
	vctx.mem = mem.Data()

	fn, err := instance.Exports.GetFunction(export)
	if err != nil {
		return invocationResult{}, fmt.Errorf("%w: %s", ErrExportNotFound, export)
	}

	if err := e.callGuest(fn); err != nil {
		return invocationResult{}, err
	}

	if kind != ExecView {
		after := tstore.BytesUsage()
		tstore.Flush()
		if err := e.chargeTenantStorage(dexID, vctx.storageUsageBefore, after); err != nil {
			return invocationResult{}, err
		}
	}
	return invocationResult{output: vctx.output, events: vctx.events, logs: vctx.logs}, nil
}

// callGuest invokes the guest export, converting a guestPanicSignal into an
// ordinary error so the caller aborts the whole entry call without
// crashing the host process.
func (e *Engine) callGuest(fn func(...interface{}) (interface{}, error)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if sig, ok := r.(guestPanicSignal); ok {
				err = fmt.Errorf("%w: %s", ErrGuestPanic, sig.msg)
				return
			}
			panic(r)
		}
	}()
	_, err = fn()
	return err
}

// chargeTenantStorage measures the tenant store's byte delta across an
// invocation and bills (or refunds) it to the tenant's own storage
// balance, per SPEC_FULL §4.1.3 step 8. Isolation means a tenant's writes
// never touch another tenant's keys, so billing the tenant's own store
// byte count stands in for "the engine as a whole".
func (e *Engine) chargeTenantStorage(dexID DexId, before, after int64) error {
	return e.DexStorage.Charge(dexID.String(), before, after)
}
