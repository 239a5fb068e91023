package core

// Tenant code store for the dex engine.
//
// A deployer uploads a WASM blob keyed by (deployer_id, short_id); the
// engine hashes it for log correlation and keeps it available for later
// instantiation by the host runtime. CompileWASM is an offline wat2wasm
// wrapper, reused here to build .wat test fixtures into
// .wasm without ever invoking the Go toolchain's own build pipeline.

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// CompileWASM compiles a .wat source into .wasm via the wat2wasm binary, or
// simply reads a .wasm file verbatim. Returns the bytes and their sha256.
func CompileWASM(srcPath string, outDir string) ([]byte, [32]byte, error) {
	switch filepath.Ext(srcPath) {
	case ".wasm":
		b, err := os.ReadFile(srcPath)
		if err != nil {
			return nil, [32]byte{}, err
		}
		return b, sha256.Sum256(b), nil
	case ".wat":
		out := filepath.Join(outDir, filepath.Base(srcPath)+".wasm")
		cmd := exec.Command("wat2wasm", "-o", out, srcPath)
		if err := cmd.Run(); err != nil {
			return nil, [32]byte{}, err
		}
		b, err := os.ReadFile(out)
		if err != nil {
			return nil, [32]byte{}, err
		}
		return b, sha256.Sum256(b), nil
	default:
		return nil, [32]byte{}, errors.New("unsupported source – must be .wat or .wasm")
	}
}

// DexCodeStore holds every deployed tenant module, keyed by DexId.
type DexCodeStore struct {
	mu      sync.RWMutex
	byDexID map[string][]byte
	hashes  map[string][32]byte
}

// NewDexCodeStore constructs an empty code store.
func NewDexCodeStore() *DexCodeStore {
	return &DexCodeStore{byDexID: make(map[string][]byte), hashes: make(map[string][32]byte)}
}

// Deploy stores (or replaces) the code for id. Returns the sha256 of the
// code so callers can log a content-identity string.
func (s *DexCodeStore) Deploy(id DexId, code []byte) ([32]byte, error) {
	if len(code) == 0 {
		return [32]byte{}, errors.New("empty dex code")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h := sha256.Sum256(code)
	s.byDexID[id.String()] = code
	s.hashes[id.String()] = h
	return h, nil
}

// Get fetches code for id, or ErrCodeNotFound.
func (s *DexCodeStore) Get(id DexId) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	code, ok := s.byDexID[id.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCodeNotFound, id)
	}
	return code, nil
}

// CodeHash returns the sha256 of the deployed code for id, for diagnostics
// and event logging; the dex engine never content-addresses code through
// an external store (no IPFS/CID dependency has a home here).
func (s *DexCodeStore) CodeHash(id DexId) ([32]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hashes[id.String()]
	return h, ok
}
