// Package otc implements the intent-matching tenant described in
// SPEC_FULL §4.5: an off-chain-signed trade-intent order book settled by
// an N-way match rather than a pairwise swap. The Rust prototype's match
// handler was an unimplemented todo!("settle") stub, so the algorithm
// below is built fresh from the numbered steps in SPEC_FULL §4.5.2, using
// the prototype's state shape (balances, authorized keys, used-nonce set
// with companion GC sequences) only for field layout.
package otc

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	core "synnergy-network/core"
)

// KeyKind discriminates the two signature schemes intents may be
// authorized under.
type KeyKind uint8

const (
	KeyEd25519 KeyKind = iota
	KeySecp256k1
)

// AuthorizedKey is one user's recorded verification key.
type AuthorizedKey struct {
	Kind  KeyKind
	Bytes []byte // 32-byte ed25519 public key, or the 65-byte uncompressed secp256k1 point crypto.Ecrecover returns
}

// ExpiryKind discriminates the two ways an intent may lapse.
type ExpiryKind uint8

const (
	ExpiryBlockHeight ExpiryKind = iota
	ExpiryTimestamp
)

// Expiry names either a block height ceiling or a millisecond timestamp
// ceiling, per SPEC_FULL §4.5.2 step 3.
type Expiry struct {
	Kind  ExpiryKind
	Value uint64
}

// Validity carries an intent's optional expiry, replay-protection nonce,
// and counterparty whitelist.
type Validity struct {
	Expiry                    *Expiry
	Nonce                     *uint64
	OnlyForWhitelistedParties []string // nil/empty = unrestricted
}

// TradeIntent is one leg of a match batch.
type TradeIntent struct {
	User      string
	AssetIn   core.AssetId
	AssetOut  core.AssetId
	AmountIn  core.Amount
	AmountOut core.Amount
	Validity  Validity
}

// AuthKind discriminates how an intent's authenticity is established.
type AuthKind uint8

const (
	AuthPredecessor AuthKind = iota
	AuthSignature
)

// Authorization is attached to each intent in a match batch; Predecessor
// is only valid when the call's actual caller equals the intent's user.
type Authorization struct {
	Kind      AuthKind
	Signature []byte
}

// AuthorizedTradeIntent pairs one intent with its authorization proof.
type AuthorizedTradeIntent struct {
	Intent TradeIntent
	Auth   Authorization
}

// OutputDestination selects where a predecessor's own output leg lands.
type OutputDestination uint8

const (
	DestInternal OutputDestination = iota
	DestEngineInternal
	DestExternal
)

// MatchInput is the borsh-decoded `match` call payload.
type MatchInput struct {
	Intents           []AuthorizedTradeIntent
	OutputDestination OutputDestination
}

// WithdrawRequest mirrors core.AssetWithdrawRequest's shape for the
// engine-internal/external legs a match produces.
type WithdrawRequest = core.AssetWithdrawRequest

type balanceKey struct {
	user  string
	asset string
}

type nonceExpiry struct {
	expiry Expiry
	nonce  uint64
}

// maxGCPerCall bounds how many stale nonce entries Match reclaims per
// intent processed, per SPEC_FULL §4.5.2 step 3's "up to 10".
const maxGCPerCall = 10

// Tenant is one deployed intent-matching engine instance: its own
// balances, authorized keys, used-nonce set and storage-balance pool,
// entirely separate from the host engine's ledger (this tenant settles
// trades among ITS OWN users, and only touches the host ledger through
// the withdrawal requests a match produces).
type Tenant struct {
	mu sync.Mutex

	balances map[balanceKey]core.Amount
	keys     map[string]AuthorizedKey

	usedNonces map[string]map[uint64]bool
	blockGC    map[string][]nonceExpiry // companion sequence ordered by expiry, block-height kind
	timeGC     map[string][]nonceExpiry // companion sequence ordered by expiry, timestamp kind

	storage *core.StorageBalances
	events  *core.EventEmitter
	log     *logrus.Logger

	BlockHeight uint64
	Timestamp   uint64
}

// NewTenant constructs an empty intent-matching tenant.
func NewTenant(byteCost core.Amount, log *logrus.Logger) *Tenant {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Tenant{
		balances:   make(map[balanceKey]core.Amount),
		keys:       make(map[string]AuthorizedKey),
		usedNonces: make(map[string]map[uint64]bool),
		blockGC:    make(map[string][]nonceExpiry),
		timeGC:     make(map[string][]nonceExpiry),
		storage:    core.NewStorageBalances(byteCost),
		events:     core.NewEventEmitter(log),
		log:        log,
	}
}

func (t *Tenant) balanceOf(user string, asset core.AssetId) core.Amount {
	return t.balances[balanceKey{user, asset.String()}]
}

func (t *Tenant) credit(user string, asset core.AssetId, amt core.Amount) error {
	k := balanceKey{user, asset.String()}
	next, err := t.balances[k].CheckedAdd(amt)
	if err != nil {
		return fmt.Errorf("otc credit %s/%s: %w", user, asset, err)
	}
	t.balances[k] = next
	return nil
}

func (t *Tenant) debit(user string, asset core.AssetId, amt core.Amount) error {
	k := balanceKey{user, asset.String()}
	cur := t.balances[k]
	next, err := cur.CheckedSub(amt)
	if err != nil {
		return fmt.Errorf("otc debit %s/%s: %w", user, asset, err)
	}
	t.balances[k] = next
	return nil
}

// StorageDeposit increases user's prepaid storage total; the attached
// amount must be exactly a native-asset deposit per SPEC_FULL §4.5's
// storage_deposit entry — enforced by the caller, which only ever passes
// a native-denominated amount through.
func (t *Tenant) StorageDeposit(user string, amount core.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.storage.Deposit(user, amount)
}

// DepositAssets credits every attached asset to the caller's balance.
func (t *Tenant) DepositAssets(user string, attached map[string]core.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for assetStr, amt := range attached {
		asset, err := core.ParseAssetId(assetStr)
		if err != nil {
			return err
		}
		if err := t.credit(user, asset, amt); err != nil {
			return err
		}
	}
	return nil
}

// SetAuthorizedKey records user's verification key.
func (t *Tenant) SetAuthorizedKey(user string, key AuthorizedKey) error {
	switch key.Kind {
	case KeyEd25519:
		if len(key.Bytes) != ed25519.PublicKeySize {
			return fmt.Errorf("%w: ed25519 key must be %d bytes", core.ErrSignatureInvalid, ed25519.PublicKeySize)
		}
	case KeySecp256k1:
		if len(key.Bytes) != 65 {
			return fmt.Errorf("%w: secp256k1 key must be 65 bytes", core.ErrSignatureInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown key kind", core.ErrSignatureInvalid)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keys[user] = key
	t.events.AuthorizedKeyChanged(user, fmt.Sprintf("%x", key.Bytes))
	return nil
}

// WithdrawAssetsEntry is one line item of a withdraw_assets call.
type WithdrawAssetsEntry struct {
	Asset          core.AssetId
	Amount         *core.Amount // nil = entire balance
	To             string
	ToInnerBalance bool // true routes the request to the host ledger's balance for To instead of dispatching an external transfer
}

// WithdrawAssets debits user's balance entries and returns the withdrawal
// requests the caller (the engine) must dispatch.
func (t *Tenant) WithdrawAssets(user string, entries []WithdrawAssetsEntry) ([]WithdrawRequest, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]WithdrawRequest, 0, len(entries))
	for _, e := range entries {
		amt := t.balanceOf(user, e.Asset)
		if e.Amount != nil {
			amt = *e.Amount
		}
		if amt.IsZero() {
			continue
		}
		if err := t.debit(user, e.Asset, amt); err != nil {
			return nil, err
		}
		kind := core.WithdrawExternal
		to := e.To
		if e.ToInnerBalance {
			kind = core.WithdrawToUserBalance
			if to == "" {
				to = user
			}
		} else if to == "" {
			to = user
		}
		out = append(out, WithdrawRequest{AssetID: e.Asset, Amount: amt, Kind: kind, To: to})
	}
	return out, nil
}

// intentDigest borsh-encodes a TradeIntent and hashes it with sha256, the
// exact payload a Signature authorization must cover.
func intentDigest(in TradeIntent) [32]byte {
	var buf []byte
	appendStr := func(s string) {
		var l [4]byte
		binary.LittleEndian.PutUint32(l[:], uint32(len(s)))
		buf = append(buf, l[:]...)
		buf = append(buf, s...)
	}
	appendU128 := func(a core.Amount) {
		b := a.Bytes16()
		buf = append(buf, b[:]...)
	}
	appendStr(in.User)
	appendStr(in.AssetIn.String())
	appendStr(in.AssetOut.String())
	appendU128(in.AmountIn)
	appendU128(in.AmountOut)
	if in.Validity.Expiry != nil {
		buf = append(buf, 1, byte(in.Validity.Expiry.Kind))
		var v [8]byte
		binary.LittleEndian.PutUint64(v[:], in.Validity.Expiry.Value)
		buf = append(buf, v[:]...)
	} else {
		buf = append(buf, 0)
	}
	if in.Validity.Nonce != nil {
		buf = append(buf, 1)
		var v [8]byte
		binary.LittleEndian.PutUint64(v[:], *in.Validity.Nonce)
		buf = append(buf, v[:]...)
	} else {
		buf = append(buf, 0)
	}
	parties := append([]string(nil), in.Validity.OnlyForWhitelistedParties...)
	sort.Strings(parties)
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(parties)))
	buf = append(buf, n[:]...)
	for _, p := range parties {
		appendStr(p)
	}
	return sha256.Sum256(buf)
}

func (t *Tenant) verifyAuthorization(intent TradeIntent, auth Authorization, predecessor string) error {
	switch auth.Kind {
	case AuthPredecessor:
		if predecessor != intent.User {
			return fmt.Errorf("%w: predecessor %s does not match intent user %s", core.ErrUnauthorized, predecessor, intent.User)
		}
		return nil
	case AuthSignature:
		key, ok := t.keys[intent.User]
		if !ok {
			return fmt.Errorf("%w: no authorized key recorded for %s", core.ErrUnauthorized, intent.User)
		}
		digest := intentDigest(intent)
		switch key.Kind {
		case KeyEd25519:
			if len(auth.Signature) != ed25519.SignatureSize {
				return fmt.Errorf("%w: malformed ed25519 signature", core.ErrSignatureInvalid)
			}
			if !ed25519.Verify(key.Bytes, digest[:], auth.Signature) {
				return fmt.Errorf("%w: ed25519 verification failed for %s", core.ErrSignatureInvalid, intent.User)
			}
			return nil
		case KeySecp256k1:
			if len(auth.Signature) != 65 {
				return fmt.Errorf("%w: malformed secp256k1 signature", core.ErrSignatureInvalid)
			}
			pub, err := crypto.Ecrecover(digest[:], auth.Signature)
			if err != nil {
				return fmt.Errorf("%w: %v", core.ErrSignatureInvalid, err)
			}
			if string(pub) != string(key.Bytes) {
				return fmt.Errorf("%w: secp256k1 verification failed for %s", core.ErrSignatureInvalid, intent.User)
			}
			return nil
		default:
			return fmt.Errorf("%w: unknown key kind recorded for %s", core.ErrUnauthorized, intent.User)
		}
	default:
		return fmt.Errorf("%w: unknown authorization kind", core.ErrUnauthorized)
	}
}

func (t *Tenant) expired(e *Expiry) bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case ExpiryBlockHeight:
		return t.BlockHeight > e.Value
	case ExpiryTimestamp:
		return t.Timestamp >= e.Value
	default:
		return false
	}
}

// gcNonces reclaims up to maxGCPerCall stale entries from user's companion
// sequences, deleting the matching used-nonce entries.
func (t *Tenant) gcNonces(user string) {
	reclaimed := 0
	gc := func(seq []nonceExpiry) []nonceExpiry {
		i := 0
		for i < len(seq) && reclaimed < maxGCPerCall {
			if !t.expired(&seq[i].expiry) {
				break
			}
			if used := t.usedNonces[user]; used != nil {
				delete(used, seq[i].nonce)
			}
			i++
			reclaimed++
		}
		return seq[i:]
	}
	t.blockGC[user] = gc(t.blockGC[user])
	if reclaimed < maxGCPerCall {
		t.timeGC[user] = gc(t.timeGC[user])
	}
}

func (t *Tenant) nonceUsed(user string, nonce uint64) bool {
	used, ok := t.usedNonces[user]
	if !ok {
		return false
	}
	return used[nonce]
}

func (t *Tenant) recordNonce(user string, nonce uint64, expiry *Expiry) {
	used, ok := t.usedNonces[user]
	if !ok {
		used = make(map[uint64]bool)
		t.usedNonces[user] = used
	}
	used[nonce] = true
	if expiry == nil {
		return
	}
	ne := nonceExpiry{expiry: *expiry, nonce: nonce}
	switch expiry.Kind {
	case ExpiryBlockHeight:
		t.blockGC[user] = append(t.blockGC[user], ne)
	case ExpiryTimestamp:
		t.timeGC[user] = append(t.timeGC[user], ne)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Match is the tenant's settlement algorithm (SPEC_FULL §4.5.2). attached
// is the call's attached_assets map (asset string -> amount), empty if
// none was supplied. Returns the accumulated withdrawal requests for legs
// routed off-tenant.
func (t *Tenant) Match(in MatchInput, predecessor string, attached map[string]core.Amount) ([]WithdrawRequest, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Step 1: attached-asset check.
	if len(attached) > 0 {
		want := make(map[string]core.Amount)
		for _, ai := range in.Intents {
			if ai.Intent.User != predecessor {
				continue
			}
			k := ai.Intent.AssetIn.String()
			next, err := want[k].CheckedAdd(ai.Intent.AmountIn)
			if err != nil {
				return nil, err
			}
			want[k] = next
		}
		if len(want) != len(attached) {
			return nil, fmt.Errorf("%w: attached asset count mismatch", core.ErrAttachedMismatch)
		}
		for k, v := range want {
			got, ok := attached[k]
			if !ok || got.Cmp(v) != 0 {
				return nil, fmt.Errorf("%w: attached %s does not match intent total", core.ErrAttachedMismatch, k)
			}
		}
	}

	// Step 2: net-zero check (signed accumulator; math/big.Int has no
	// fixed-width overflow ceiling, so no separate "256-bit" type is
	// needed to rule out overflow in the net-change accumulator).
	net := make(map[string]*signedAmount)
	for _, ai := range in.Intents {
		inKey := ai.Intent.AssetIn.String()
		outKey := ai.Intent.AssetOut.String()
		if net[inKey] == nil {
			net[inKey] = newSignedAmount()
		}
		if net[outKey] == nil {
			net[outKey] = newSignedAmount()
		}
		net[inKey].add(ai.Intent.AmountIn)
		net[outKey].sub(ai.Intent.AmountOut)
	}
	for asset, n := range net {
		if !n.isZero() {
			return nil, fmt.Errorf("%w: asset %s nets to %s", core.ErrNetNotZero, asset, n.String())
		}
	}

	var withdrawals []WithdrawRequest
	for _, ai := range in.Intents {
		intent := ai.Intent

		if t.expired(intent.Validity.Expiry) {
			return nil, fmt.Errorf("%w: intent for %s", core.ErrIntentExpired, intent.User)
		}
		if len(intent.Validity.OnlyForWhitelistedParties) > 0 {
			for _, other := range distinctUsers(in.Intents) {
				if other == intent.User {
					continue
				}
				if !contains(intent.Validity.OnlyForWhitelistedParties, other) {
					return nil, fmt.Errorf("%w: %s not whitelisted by %s", core.ErrNotWhitelisted, other, intent.User)
				}
			}
		}
		if err := t.verifyAuthorization(intent, ai.Auth, predecessor); err != nil {
			return nil, err
		}

		selfFunded := intent.User == predecessor && len(attached) > 0
		if !selfFunded {
			if err := t.debit(intent.User, intent.AssetIn, intent.AmountIn); err != nil {
				return nil, err
			}
		}

		before := t.storage.BytesUsed(intent.User)
		if intent.User == predecessor && in.OutputDestination != DestInternal {
			kind := core.WithdrawToDexBalance
			if in.OutputDestination == DestEngineInternal {
				kind = core.WithdrawToUserBalance
			} else {
				kind = core.WithdrawExternal
			}
			withdrawals = append(withdrawals, WithdrawRequest{AssetID: intent.AssetOut, Amount: intent.AmountOut, Kind: kind, To: intent.User})
		} else {
			if err := t.credit(intent.User, intent.AssetOut, intent.AmountOut); err != nil {
				return nil, err
			}
		}

		t.gcNonces(intent.User)

		if intent.Validity.Nonce != nil {
			if t.nonceUsed(intent.User, *intent.Validity.Nonce) {
				return nil, fmt.Errorf("%w: user %s nonce %d", core.ErrNonceUsed, intent.User, *intent.Validity.Nonce)
			}
			t.recordNonce(intent.User, *intent.Validity.Nonce, intent.Validity.Expiry)
		}

		after := t.entryBytes(intent.User)
		if err := t.storage.Charge(intent.User, int64(before), int64(after)); err != nil {
			return nil, err
		}
	}

	t.events.Trade(in)
	return withdrawals, nil
}

// entryBytes approximates one user's balance-entry footprint for storage
// billing, the same fixed-size-estimate approach the host engine's
// RegisterAssets billing uses for balance entries it cannot size exactly
// outside a real invocation.
func (t *Tenant) entryBytes(user string) uint64 {
	count := uint64(0)
	for k := range t.balances {
		if k.user == user {
			count++
		}
	}
	return count * 40
}

func distinctUsers(intents []AuthorizedTradeIntent) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ai := range intents {
		if !seen[ai.Intent.User] {
			seen[ai.Intent.User] = true
			out = append(out, ai.Intent.User)
		}
	}
	return out
}
