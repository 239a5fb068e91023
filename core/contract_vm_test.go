package core

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/sirupsen/logrus"
)

// compileFixture builds a .wat test fixture into .wasm via wat2wasm,
// skipping the test outright when the tool is not installed, the right
// accommodation for an offline build environment.
func compileFixture(t *testing.T, name string) []byte {
	t.Helper()
	code, _, err := CompileWASM("testdata/"+name, t.TempDir())
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			t.Skip("wat2wasm not installed, skipping host-runtime test")
		}
		t.Fatalf("compile fixture %s: %v", name, err)
	}
	return code
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return NewEngine(log, AmountFromUint64(0), NewFakeTransferer())
}

func TestInvokeSwapReturnsEncodedResponse(t *testing.T) {
	code := compileFixture(t, "swap_basic.wat")
	e := newTestEngine(t)
	dexID := DexId{Deployer: "alice.near", ShortID: "basic"}
	if _, err := e.Code.Deploy(dexID, code); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if err := e.DexStorage.Deposit(dexID.String(), AmountFromUint64(1_000_000_000_000_000_000_000_000)); err != nil {
		t.Fatalf("seed storage balance: %v", err)
	}

	req := SwapRequest{AssetIn: NativeAsset(), AssetOut: NativeAsset(), Amount: SwapRequestAmount{Amount: AmountFromUint64(10)}}
	res, err := e.Invoke(context.Background(), ExecTrade, dexID, "swap", req.Encode(), "bob.near", true)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	resp, err := DecodeSwapResponse(res.output)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AmountIn.String() != "10" || resp.AmountOut.String() != "10" {
		t.Fatalf("unexpected swap response: in=%s out=%s", resp.AmountIn, resp.AmountOut)
	}
}

func TestInvokeForbidsSwapExportInCallContext(t *testing.T) {
	code := compileFixture(t, "swap_basic.wat")
	e := newTestEngine(t)
	dexID := DexId{Deployer: "alice.near", ShortID: "basic"}
	if _, err := e.Code.Deploy(dexID, code); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if _, err := e.Invoke(context.Background(), ExecCall, dexID, "swap", nil, "bob.near", true); !errors.Is(err, ErrForbiddenExport) {
		t.Fatalf("expected ErrForbiddenExport, got %v", err)
	}
}

func TestInvokeChargesTenantStorageForNewKeys(t *testing.T) {
	code := compileFixture(t, "dexcall_store.wat")
	e := newTestEngine(t)
	dexID := DexId{Deployer: "carol.near", ShortID: "store"}
	if _, err := e.Code.Deploy(dexID, code); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if err := e.DexStorage.Deposit(dexID.String(), AmountFromUint64(1_000_000_000_000_000_000_000_000)); err != nil {
		t.Fatalf("seed storage balance: %v", err)
	}

	if _, err := e.Invoke(context.Background(), ExecCall, dexID, "remember", nil, "carol.near", true); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	used, ok := e.DexStorage.BalanceOf(dexID.String())
	if !ok || used.Used.IsZero() {
		t.Fatalf("expected a nonzero storage charge after writing a key, got %+v", used)
	}
}

func TestInvokePropagatesGuestPanic(t *testing.T) {
	code := compileFixture(t, "panic_always.wat")
	e := newTestEngine(t)
	dexID := DexId{Deployer: "dave.near", ShortID: "boom"}
	if _, err := e.Code.Deploy(dexID, code); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if err := e.DexStorage.Deposit(dexID.String(), AmountFromUint64(1_000_000_000_000_000_000_000_000)); err != nil {
		t.Fatalf("seed storage balance: %v", err)
	}
	if _, err := e.Invoke(context.Background(), ExecTrade, dexID, "swap", nil, "dave.near", true); !errors.Is(err, ErrGuestPanic) {
		t.Fatalf("expected ErrGuestPanic, got %v", err)
	}
}
