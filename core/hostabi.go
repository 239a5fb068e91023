package core

// Host ABI exposed to guest dex modules (SPEC_FULL §4.1.2), wired through
// wasmer-go's import-object registration: one
// wasmer.NewFunction per ABI entry, all registered under the "env"
// namespace via a single ImportObject.

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"strings"
	"unicode/utf16"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/wasmerio/wasmer-go/wasmer"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // deprecated but still the standard ripemd160 implementation
	"golang.org/x/crypto/sha3"
)

const maxRegisterSentinel = ^uint64(0)

// unsupportedHostFunctions lists every host import the Rust prototype
// stubs to panic: outbound promise creation/dispatch, cross-contract
// calls, validator queries, storage iteration, and the BN/BLS curve
// operations. Tenant code can only affect the outside world through its
// return buffer; every name below traps instead.
var unsupportedHostFunctions = []string{
	"promise_create", "promise_then", "promise_and", "promise_batch_create",
	"promise_batch_then", "promise_batch_action_create_account",
	"promise_batch_action_deploy_contract", "promise_batch_action_function_call",
	"promise_batch_action_transfer", "promise_batch_action_stake",
	"promise_batch_action_add_key_with_full_access",
	"promise_batch_action_add_key_with_function_call",
	"promise_batch_action_delete_key", "promise_batch_action_delete_account",
	"promise_yield_create", "promise_yield_resume",
	"promise_results_count", "promise_result", "promise_return",
	"current_account_id", "account_balance", "account_locked_balance",
	"validator_stake", "validator_total_stake",
	"storage_iter_prefix", "storage_iter_range", "storage_iter_next",
	"alt_bn128_g1_multiexp", "alt_bn128_g1_sum", "alt_bn128_pairing_check",
	"bls12381_p1_sum", "bls12381_p2_sum", "bls12381_pairing_check",
}

// registerHost builds the ImportObject a guest invocation links against.
func registerHost(store *wasmer.Store, c *vmContext) *wasmer.ImportObject {
	imports := wasmer.NewImportObject()
	fns := make(map[string]wasmer.IntoExtern, len(unsupportedHostFunctions)+32)

	k := wasmer.ValueKind(wasmer.I64)
	i64 := wasmer.NewValueTypes(k)
	i64i64 := wasmer.NewValueTypes(k, k)
	i64x3 := wasmer.NewValueTypes(k, k, k)
	i64x5 := wasmer.NewValueTypes(k, k, k, k, k)
	i64x6 := wasmer.NewValueTypes(k, k, k, k, k, k)
	i64x7 := wasmer.NewValueTypes(k, k, k, k, k, k, k)
	none := wasmer.NewValueTypes()
	one := wasmer.NewValueTypes(k)

	fns["register_len"] = wasmer.NewFunction(store, wasmer.NewFunctionType(i64, one), func(args []wasmer.Value) ([]wasmer.Value, error) {
		id := uint64(args[0].I64())
		v, ok := c.getRegister(id)
		if !ok {
			return []wasmer.Value{wasmer.NewI64(int64(maxRegisterSentinel))}, nil
		}
		return []wasmer.Value{wasmer.NewI64(int64(len(v)))}, nil
	})

	fns["read_register"] = wasmer.NewFunction(store, wasmer.NewFunctionType(i64i64, none), func(args []wasmer.Value) ([]wasmer.Value, error) {
		id, ptr := uint64(args[0].I64()), uint64(args[1].I64())
		v, _ := c.getRegister(id)
		c.writeMem(ptr, v)
		return nil, nil
	})

	fns["write_register"] = wasmer.NewFunction(store, wasmer.NewFunctionType(i64x3, none), func(args []wasmer.Value) ([]wasmer.Value, error) {
		id, ln, ptr := uint64(args[0].I64()), uint64(args[1].I64()), uint64(args[2].I64())
		c.setRegister(id, c.readMem(ptr, ln))
		return nil, nil
	})

	fns["input"] = wasmer.NewFunction(store, wasmer.NewFunctionType(i64, none), func(args []wasmer.Value) ([]wasmer.Value, error) {
		c.setRegister(uint64(args[0].I64()), c.input)
		return nil, nil
	})

	fns["value_return"] = wasmer.NewFunction(store, wasmer.NewFunctionType(i64i64, none), func(args []wasmer.Value) ([]wasmer.Value, error) {
		ln, ptr := uint64(args[0].I64()), uint64(args[1].I64())
		c.output = c.readMem(ptr, ln)
		return nil, nil
	})

	fns["predecessor_account_id"] = wasmer.NewFunction(store, wasmer.NewFunctionType(i64, none), func(args []wasmer.Value) ([]wasmer.Value, error) {
		if !c.hasPredecessor {
			c.guestPanic("predecessor_account_id unavailable in trade context")
		}
		c.setRegister(uint64(args[0].I64()), []byte(c.predecessor))
		return nil, nil
	})

	fns["attached_deposit"] = wasmer.NewFunction(store, wasmer.NewFunctionType(i64, none), func(args []wasmer.Value) ([]wasmer.Value, error) {
		ptr := uint64(args[0].I64())
		c.writeMem(ptr, make([]byte, 16)) // always zero: deposits travel via attached_assets, never native
		return nil, nil
	})

	fns["panic"] = wasmer.NewFunction(store, wasmer.NewFunctionType(none, none), func(args []wasmer.Value) ([]wasmer.Value, error) {
		c.guestPanic("explicit panic")
		return nil, nil
	})
	fns["panic_utf8"] = wasmer.NewFunction(store, wasmer.NewFunctionType(i64i64, none), func(args []wasmer.Value) ([]wasmer.Value, error) {
		ln, ptr := uint64(args[0].I64()), uint64(args[1].I64())
		c.guestPanic(string(c.readMem(ptr, ln)))
		return nil, nil
	})

	fns["storage_write"] = wasmer.NewFunction(store, wasmer.NewFunctionType(i64x5, one), func(args []wasmer.Value) ([]wasmer.Value, error) {
		if c.kind == ExecView {
			c.guestPanic(ErrViewMutation.Error())
		}
		kLen, kPtr, vLen, vPtr, regID := uint64(args[0].I64()), uint64(args[1].I64()), uint64(args[2].I64()), uint64(args[3].I64()), uint64(args[4].I64())
		key := string(c.readMem(kPtr, kLen))
		val := c.readMem(vPtr, vLen)
		old, had := c.store.write(key, val)
		if had {
			c.setRegister(regID, old)
			return []wasmer.Value{wasmer.NewI64(1)}, nil
		}
		return []wasmer.Value{wasmer.NewI64(0)}, nil
	})

	fns["storage_read"] = wasmer.NewFunction(store, wasmer.NewFunctionType(i64x3, one), func(args []wasmer.Value) ([]wasmer.Value, error) {
		kLen, kPtr, regID := uint64(args[0].I64()), uint64(args[1].I64()), uint64(args[2].I64())
		key := string(c.readMem(kPtr, kLen))
		val, ok := c.store.view(key)
		if !ok {
			return []wasmer.Value{wasmer.NewI64(0)}, nil
		}
		c.setRegister(regID, val)
		return []wasmer.Value{wasmer.NewI64(1)}, nil
	})

	fns["storage_remove"] = wasmer.NewFunction(store, wasmer.NewFunctionType(i64x3, one), func(args []wasmer.Value) ([]wasmer.Value, error) {
		if c.kind == ExecView {
			c.guestPanic(ErrViewMutation.Error())
		}
		kLen, kPtr, regID := uint64(args[0].I64()), uint64(args[1].I64()), uint64(args[2].I64())
		key := string(c.readMem(kPtr, kLen))
		old, had := c.store.remove(key)
		if had {
			c.setRegister(regID, old)
			return []wasmer.Value{wasmer.NewI64(1)}, nil
		}
		return []wasmer.Value{wasmer.NewI64(0)}, nil
	})

	fns["storage_has_key"] = wasmer.NewFunction(store, wasmer.NewFunctionType(i64i64, one), func(args []wasmer.Value) ([]wasmer.Value, error) {
		kLen, kPtr := uint64(args[0].I64()), uint64(args[1].I64())
		_, ok := c.store.view(string(c.readMem(kPtr, kLen)))
		if ok {
			return []wasmer.Value{wasmer.NewI64(1)}, nil
		}
		return []wasmer.Value{wasmer.NewI64(0)}, nil
	})

	fns["storage_usage"] = wasmer.NewFunction(store, wasmer.NewFunctionType(none, one), func(args []wasmer.Value) ([]wasmer.Value, error) {
		delta := c.store.BytesUsage() - c.storageUsageBefore
		return []wasmer.Value{wasmer.NewI64(c.storageUsageBefore + delta)}, nil
	})

	fns["block_index"] = wasmer.NewFunction(store, wasmer.NewFunctionType(none, one), func(args []wasmer.Value) ([]wasmer.Value, error) {
		return []wasmer.Value{wasmer.NewI64(int64(c.blockIndex))}, nil
	})
	fns["block_timestamp"] = wasmer.NewFunction(store, wasmer.NewFunctionType(none, one), func(args []wasmer.Value) ([]wasmer.Value, error) {
		return []wasmer.Value{wasmer.NewI64(int64(c.blockTimestamp))}, nil
	})
	fns["epoch_height"] = wasmer.NewFunction(store, wasmer.NewFunctionType(none, one), func(args []wasmer.Value) ([]wasmer.Value, error) {
		return []wasmer.Value{wasmer.NewI64(int64(c.epochHeight))}, nil
	})
	fns["prepaid_gas"] = wasmer.NewFunction(store, wasmer.NewFunctionType(none, one), func(args []wasmer.Value) ([]wasmer.Value, error) {
		return []wasmer.Value{wasmer.NewI64(int64(c.prepaidGas))}, nil
	})
	fns["used_gas"] = wasmer.NewFunction(store, wasmer.NewFunctionType(none, one), func(args []wasmer.Value) ([]wasmer.Value, error) {
		return []wasmer.Value{wasmer.NewI64(int64(c.usedGas))}, nil
	})
	fns["random_seed"] = wasmer.NewFunction(store, wasmer.NewFunctionType(i64, none), func(args []wasmer.Value) ([]wasmer.Value, error) {
		c.setRegister(uint64(args[0].I64()), c.randomSeed[:])
		return nil, nil
	})

	hashFn := func(sum func([]byte) []byte) func(args []wasmer.Value) ([]wasmer.Value, error) {
		return func(args []wasmer.Value) ([]wasmer.Value, error) {
			ln, ptr, regID := uint64(args[0].I64()), uint64(args[1].I64()), uint64(args[2].I64())
			c.setRegister(regID, sum(c.readMem(ptr, ln)))
			return nil, nil
		}
	}
	fns["sha256"] = wasmer.NewFunction(store, wasmer.NewFunctionType(i64x3, none), hashFn(func(b []byte) []byte { h := sha256.Sum256(b); return h[:] }))
	fns["keccak256"] = wasmer.NewFunction(store, wasmer.NewFunctionType(i64x3, none), hashFn(func(b []byte) []byte { h := sha3.NewLegacyKeccak256(); h.Write(b); return h.Sum(nil) }))
	fns["keccak512"] = wasmer.NewFunction(store, wasmer.NewFunctionType(i64x3, none), hashFn(func(b []byte) []byte { h := sha3.NewLegacyKeccak512(); h.Write(b); return h.Sum(nil) }))
	fns["ripemd160"] = wasmer.NewFunction(store, wasmer.NewFunctionType(i64x3, none), hashFn(func(b []byte) []byte { h := ripemd160.New(); h.Write(b); return h.Sum(nil) }))

	fns["ecrecover"] = wasmer.NewFunction(store, wasmer.NewFunctionType(i64x7, one), func(args []wasmer.Value) ([]wasmer.Value, error) {
		hLen, hPtr := uint64(args[0].I64()), uint64(args[1].I64())
		sLen, sPtr := uint64(args[2].I64()), uint64(args[3].I64())
		v := args[4].I64()
		malleability := args[5].I64()
		regID := uint64(args[6].I64())
		if v < 0 || v >= 4 || (malleability != 0 && malleability != 1) {
			return []wasmer.Value{wasmer.NewI64(0)}, nil
		}
		hash := c.readMem(hPtr, hLen)
		sig := c.readMem(sPtr, sLen)
		full := append(append([]byte{}, sig...), byte(v))
		pub, err := crypto.Ecrecover(hash, full)
		if err != nil {
			return []wasmer.Value{wasmer.NewI64(0)}, nil
		}
		c.setRegister(regID, pub)
		return []wasmer.Value{wasmer.NewI64(1)}, nil
	})

	fns["ed25519_verify"] = wasmer.NewFunction(store, wasmer.NewFunctionType(i64x6, one), func(args []wasmer.Value) ([]wasmer.Value, error) {
		sLen, sPtr := uint64(args[0].I64()), uint64(args[1].I64())
		mLen, mPtr := uint64(args[2].I64()), uint64(args[3].I64())
		pLen, pPtr := uint64(args[4].I64()), uint64(args[5].I64())
		sig := c.readMem(sPtr, sLen)
		msg := c.readMem(mPtr, mLen)
		pk := c.readMem(pPtr, pLen)
		if len(sig) != ed25519.SignatureSize || len(pk) != ed25519.PublicKeySize {
			return []wasmer.Value{wasmer.NewI64(0)}, nil
		}
		if ed25519.Verify(pk, msg, sig) {
			return []wasmer.Value{wasmer.NewI64(1)}, nil
		}
		return []wasmer.Value{wasmer.NewI64(0)}, nil
	})

	logImpl := func(decode func([]byte) string) func(args []wasmer.Value) ([]wasmer.Value, error) {
		return func(args []wasmer.Value) ([]wasmer.Value, error) {
			ln, ptr := uint64(args[0].I64()), uint64(args[1].I64())
			raw := c.readMem(ptr, ln)
			msg := decode(raw)
			if strings.HasPrefix(msg, "EVENT_JSON:") {
				payload := strings.TrimPrefix(msg, "EVENT_JSON:")
				var probe json.RawMessage
				if json.Unmarshal([]byte(payload), &probe) == nil {
					c.events = append(c.events, payload)
					return nil, nil
				}
			}
			c.logs = append(c.logs, "["+c.dexID+"] "+msg)
			return nil, nil
		}
	}
	fns["log_utf8"] = wasmer.NewFunction(store, wasmer.NewFunctionType(i64i64, none), logImpl(func(b []byte) string { return string(b) }))
	fns["log_utf16"] = wasmer.NewFunction(store, wasmer.NewFunctionType(i64i64, none), logImpl(func(b []byte) string {
		if len(b)%2 != 0 {
			c.guestPanic("log_utf16: odd byte length")
		}
		runes := make([]uint16, len(b)/2)
		for i := range runes {
			runes[i] = binary.LittleEndian.Uint16(b[2*i:])
		}
		return string(utf16.Decode(runes))
	}))

	for _, name := range unsupportedHostFunctions {
		name := name
		fns[name] = wasmer.NewFunction(store, wasmer.NewFunctionType(i64x5, one), func(args []wasmer.Value) ([]wasmer.Value, error) {
			c.guestPanic(name + ": not implemented")
			return []wasmer.Value{wasmer.NewI64(0)}, nil
		})
	}

	imports.Register("env", fns)
	return imports
}
