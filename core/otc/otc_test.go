package otc

import (
	"crypto/ed25519"
	"errors"
	"testing"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	core "synnergy-network/core"
)

func newTestTenant(t *testing.T) *Tenant {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return NewTenant(core.AmountFromUint64(10_000_000_000_000_000_000), log)
}

func seedStorage(t *testing.T, tn *Tenant, users ...string) {
	t.Helper()
	for _, u := range users {
		if err := tn.StorageDeposit(u, core.StorageMinBound); err != nil {
			t.Fatalf("storage deposit for %s: %v", u, err)
		}
	}
}

func ed25519Signer(t *testing.T) (pub []byte, sign func(digest [32]byte) []byte) {
	t.Helper()
	p, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("ed25519 keygen: %v", err)
	}
	return p, func(digest [32]byte) []byte { return ed25519.Sign(priv, digest[:]) }
}

func secp256k1Signer(t *testing.T) (pub []byte, sign func(digest [32]byte) []byte) {
	t.Helper()
	priv, err := gethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("secp256k1 keygen: %v", err)
	}
	pub = gethcrypto.FromECDSAPub(&priv.PublicKey)
	return pub, func(digest [32]byte) []byte {
		sig, err := gethcrypto.Sign(digest[:], priv)
		if err != nil {
			t.Fatalf("secp256k1 sign: %v", err)
		}
		return sig
	}
}

// Test_S4_ThreePartyCycleSettlesInternally mirrors scenario S4: three
// intents (one predecessor-authorized, one ed25519-signed, one
// secp256k1-signed) closing a Native/FT1/FT2 loop, batched with
// OutputDestination=Internal, must settle with each user's inner balance
// moving by exactly the stated deltas and every asset netting to zero.
func Test_S4_ThreePartyCycleSettlesInternally(t *testing.T) {
	tn := newTestTenant(t)
	seedStorage(t, tn, "alice.near", "bob.near", "carol.near")

	native := core.NativeAsset()
	ft1 := core.FungibleAsset("ft1.near")
	ft2 := core.FungibleAsset("ft2.near")

	if err := tn.DepositAssets("alice.near", map[string]core.Amount{native.String(): core.AmountFromUint64(100)}); err != nil {
		t.Fatalf("seed alice: %v", err)
	}
	if err := tn.DepositAssets("bob.near", map[string]core.Amount{ft1.String(): core.AmountFromUint64(50)}); err != nil {
		t.Fatalf("seed bob: %v", err)
	}
	if err := tn.DepositAssets("carol.near", map[string]core.Amount{ft2.String(): core.AmountFromUint64(30)}); err != nil {
		t.Fatalf("seed carol: %v", err)
	}

	bobPub, bobSign := ed25519Signer(t)
	if err := tn.SetAuthorizedKey("bob.near", AuthorizedKey{Kind: KeyEd25519, Bytes: bobPub}); err != nil {
		t.Fatalf("set bob key: %v", err)
	}
	carolPub, carolSign := secp256k1Signer(t)
	if err := tn.SetAuthorizedKey("carol.near", AuthorizedKey{Kind: KeySecp256k1, Bytes: carolPub}); err != nil {
		t.Fatalf("set carol key: %v", err)
	}

	aliceIntent := TradeIntent{User: "alice.near", AssetIn: native, AssetOut: ft1, AmountIn: core.AmountFromUint64(100), AmountOut: core.AmountFromUint64(50)}
	bobIntent := TradeIntent{User: "bob.near", AssetIn: ft1, AssetOut: ft2, AmountIn: core.AmountFromUint64(50), AmountOut: core.AmountFromUint64(30)}
	carolIntent := TradeIntent{User: "carol.near", AssetIn: ft2, AssetOut: native, AmountIn: core.AmountFromUint64(30), AmountOut: core.AmountFromUint64(100)}

	bobSig := bobSign(intentDigest(bobIntent))
	carolSig := carolSign(intentDigest(carolIntent))

	in := MatchInput{
		Intents: []AuthorizedTradeIntent{
			{Intent: aliceIntent, Auth: Authorization{Kind: AuthPredecessor}},
			{Intent: bobIntent, Auth: Authorization{Kind: AuthSignature, Signature: bobSig}},
			{Intent: carolIntent, Auth: Authorization{Kind: AuthSignature, Signature: carolSig}},
		},
		OutputDestination: DestInternal,
	}

	if _, err := tn.Match(in, "alice.near", nil); err != nil {
		t.Fatalf("match: %v", err)
	}

	checks := []struct {
		user  string
		asset core.AssetId
		want  string
	}{
		{"alice.near", ft1, "50"},
		{"alice.near", native, "0"},
		{"bob.near", ft2, "30"},
		{"bob.near", ft1, "0"},
		{"carol.near", native, "100"},
		{"carol.near", ft2, "0"},
	}
	for _, c := range checks {
		if got := tn.balanceOf(c.user, c.asset); got.String() != c.want {
			t.Fatalf("%s/%s balance = %s, want %s", c.user, c.asset, got, c.want)
		}
	}
}

// Test_S4_NetNotZeroRejected confirms Match refuses a batch where an asset
// does not net to zero across all legs.
func Test_S4_NetNotZeroRejected(t *testing.T) {
	tn := newTestTenant(t)
	seedStorage(t, tn, "alice.near")
	native := core.NativeAsset()
	ft1 := core.FungibleAsset("ft1.near")
	if err := tn.DepositAssets("alice.near", map[string]core.Amount{native.String(): core.AmountFromUint64(100)}); err != nil {
		t.Fatalf("seed alice: %v", err)
	}

	intent := TradeIntent{User: "alice.near", AssetIn: native, AssetOut: ft1, AmountIn: core.AmountFromUint64(100), AmountOut: core.AmountFromUint64(50)}
	in := MatchInput{
		Intents:           []AuthorizedTradeIntent{{Intent: intent, Auth: Authorization{Kind: AuthPredecessor}}},
		OutputDestination: DestInternal,
	}
	_, err := tn.Match(in, "alice.near", nil)
	if !errors.Is(err, core.ErrNetNotZero) {
		t.Fatalf("expected ErrNetNotZero for an unmatched single leg, got %v", err)
	}
}

// Test_S5_NonceReuseWithoutExpiryRejected mirrors scenario S5's first half:
// an intent with nonce=12345 and no expiry is matched once, and a second
// intent reusing that same nonce is rejected.
func Test_S5_NonceReuseWithoutExpiryRejected(t *testing.T) {
	tn := newTestTenant(t)
	seedStorage(t, tn, "alice.near", "bob.near")
	native := core.NativeAsset()
	ft1 := core.FungibleAsset("ft1.near")
	nonce := uint64(12345)

	runSwap := func() error {
		if err := tn.DepositAssets("alice.near", map[string]core.Amount{native.String(): core.AmountFromUint64(10)}); err != nil {
			t.Fatalf("seed alice: %v", err)
		}
		if err := tn.DepositAssets("bob.near", map[string]core.Amount{ft1.String(): core.AmountFromUint64(5)}); err != nil {
			t.Fatalf("seed bob: %v", err)
		}
		aliceIntent := TradeIntent{
			User: "alice.near", AssetIn: native, AssetOut: ft1,
			AmountIn: core.AmountFromUint64(10), AmountOut: core.AmountFromUint64(5),
			Validity: Validity{Nonce: &nonce},
		}
		bobIntent := TradeIntent{User: "bob.near", AssetIn: ft1, AssetOut: native, AmountIn: core.AmountFromUint64(5), AmountOut: core.AmountFromUint64(10)}
		in := MatchInput{
			Intents: []AuthorizedTradeIntent{
				{Intent: aliceIntent, Auth: Authorization{Kind: AuthPredecessor}},
				{Intent: bobIntent, Auth: Authorization{Kind: AuthPredecessor}},
			},
			OutputDestination: DestInternal,
		}
		_, err := tn.Match(in, "alice.near", nil)
		return err
	}

	if err := runSwap(); err != nil {
		t.Fatalf("first match (fresh nonce): %v", err)
	}
	if err := runSwap(); !errors.Is(err, core.ErrNonceUsed) {
		t.Fatalf("second match (reused nonce, no expiry): expected ErrNonceUsed, got %v", err)
	}
}

// Test_S5_ExpiredNonceIsReclaimedThenReusable mirrors scenario S5's GC
// half: a nonce recorded with a block-height expiry becomes reusable once
// that height has elapsed, and is rejected again on a second reuse before
// its new expiry elapses.
func Test_S5_ExpiredNonceIsReclaimedThenReusable(t *testing.T) {
	tn := newTestTenant(t)
	seedStorage(t, tn, "dan.near", "eve.near")
	native := core.NativeAsset()
	ft1 := core.FungibleAsset("ft1.near")
	nonce := uint64(99999)

	runSwap := func(expiryHeight uint64) error {
		if err := tn.DepositAssets("dan.near", map[string]core.Amount{native.String(): core.AmountFromUint64(5)}); err != nil {
			t.Fatalf("seed dan: %v", err)
		}
		if err := tn.DepositAssets("eve.near", map[string]core.Amount{ft1.String(): core.AmountFromUint64(2)}); err != nil {
			t.Fatalf("seed eve: %v", err)
		}
		danIntent := TradeIntent{
			User: "dan.near", AssetIn: native, AssetOut: ft1,
			AmountIn: core.AmountFromUint64(5), AmountOut: core.AmountFromUint64(2),
			Validity: Validity{Nonce: &nonce, Expiry: &Expiry{Kind: ExpiryBlockHeight, Value: expiryHeight}},
		}
		eveIntent := TradeIntent{User: "eve.near", AssetIn: ft1, AssetOut: native, AmountIn: core.AmountFromUint64(2), AmountOut: core.AmountFromUint64(5)}
		in := MatchInput{
			Intents: []AuthorizedTradeIntent{
				{Intent: danIntent, Auth: Authorization{Kind: AuthPredecessor}},
				{Intent: eveIntent, Auth: Authorization{Kind: AuthPredecessor}},
			},
			OutputDestination: DestInternal,
		}
		_, err := tn.Match(in, "dan.near", nil)
		return err
	}

	tn.BlockHeight = 0
	if err := runSwap(3); err != nil { // expires once BlockHeight > 3
		t.Fatalf("first match (fresh nonce, expiry at height 3): %v", err)
	}

	tn.BlockHeight = 10 // past the height-3 expiry: the next call's gcNonces reclaims it
	if err := runSwap(100); err != nil {
		t.Fatalf("second match (nonce reclaimed by gc): %v", err)
	}

	// Still at height 10, and the nonce was just re-recorded with expiry
	// 100 (not yet elapsed), so this reuse must be rejected for real.
	if err := runSwap(100); !errors.Is(err, core.ErrNonceUsed) {
		t.Fatalf("third match (nonce reused before its new expiry): expected ErrNonceUsed, got %v", err)
	}
}

// Test_S5_ExpiredTimestampNonceReclaimed exercises the timestamp-kind
// expiry path (as opposed to block-height), confirming gcNonces also
// drains the companion time sequence.
func Test_S5_ExpiredTimestampNonceReclaimed(t *testing.T) {
	tn := newTestTenant(t)
	seedStorage(t, tn, "frank.near", "gina.near")
	native := core.NativeAsset()
	ft1 := core.FungibleAsset("ft1.near")
	nonce := uint64(7)

	runSwap := func(expiryTs uint64) error {
		if err := tn.DepositAssets("frank.near", map[string]core.Amount{native.String(): core.AmountFromUint64(1)}); err != nil {
			t.Fatalf("seed frank: %v", err)
		}
		if err := tn.DepositAssets("gina.near", map[string]core.Amount{ft1.String(): core.AmountFromUint64(1)}); err != nil {
			t.Fatalf("seed gina: %v", err)
		}
		frankIntent := TradeIntent{
			User: "frank.near", AssetIn: native, AssetOut: ft1,
			AmountIn: core.AmountFromUint64(1), AmountOut: core.AmountFromUint64(1),
			Validity: Validity{Nonce: &nonce, Expiry: &Expiry{Kind: ExpiryTimestamp, Value: expiryTs}},
		}
		ginaIntent := TradeIntent{User: "gina.near", AssetIn: ft1, AssetOut: native, AmountIn: core.AmountFromUint64(1), AmountOut: core.AmountFromUint64(1)}
		in := MatchInput{
			Intents: []AuthorizedTradeIntent{
				{Intent: frankIntent, Auth: Authorization{Kind: AuthPredecessor}},
				{Intent: ginaIntent, Auth: Authorization{Kind: AuthPredecessor}},
			},
			OutputDestination: DestInternal,
		}
		_, err := tn.Match(in, "frank.near", nil)
		return err
	}

	tn.Timestamp = 1000
	if err := runSwap(1005); err != nil { // ExpiryTimestamp is expired once Timestamp >= Value
		t.Fatalf("first match: %v", err)
	}
	tn.Timestamp = 1005
	if err := runSwap(9999); err != nil {
		t.Fatalf("second match (reclaimed by gc at the exact expiry instant): %v", err)
	}
}

// Test_IntentExpiredRejected confirms a plainly-elapsed intent is rejected
// before any balance mutation, regardless of nonce.
func Test_IntentExpiredRejected(t *testing.T) {
	tn := newTestTenant(t)
	seedStorage(t, tn, "holly.near")
	tn.BlockHeight = 50
	native := core.NativeAsset()
	ft1 := core.FungibleAsset("ft1.near")
	if err := tn.DepositAssets("holly.near", map[string]core.Amount{native.String(): core.AmountFromUint64(1)}); err != nil {
		t.Fatalf("seed holly: %v", err)
	}
	intent := TradeIntent{
		User: "holly.near", AssetIn: native, AssetOut: ft1,
		AmountIn: core.AmountFromUint64(1), AmountOut: core.AmountFromUint64(1),
		Validity: Validity{Expiry: &Expiry{Kind: ExpiryBlockHeight, Value: 1}},
	}
	// The counter-intent makes the batch net to zero, so Match reaches the
	// per-intent expiry check instead of stopping at the net-zero check.
	counter := TradeIntent{User: "iris.near", AssetIn: ft1, AssetOut: native, AmountIn: core.AmountFromUint64(1), AmountOut: core.AmountFromUint64(1)}
	in := MatchInput{
		Intents: []AuthorizedTradeIntent{
			{Intent: intent, Auth: Authorization{Kind: AuthPredecessor}},
			{Intent: counter, Auth: Authorization{Kind: AuthPredecessor}},
		},
		OutputDestination: DestInternal,
	}
	if _, err := tn.Match(in, "holly.near", nil); !errors.Is(err, core.ErrIntentExpired) {
		t.Fatalf("expected ErrIntentExpired, got %v", err)
	}
	if bal := tn.balanceOf("holly.near", native); bal.String() != "1" {
		t.Fatalf("holly native balance = %s, want 1 (untouched by a rejected intent)", bal)
	}
}

// Test_WhitelistRejectsUnlistedCounterparty confirms OnlyForWhitelistedParties
// is enforced against every other user in the same batch.
func Test_WhitelistRejectsUnlistedCounterparty(t *testing.T) {
	tn := newTestTenant(t)
	seedStorage(t, tn, "ivan.near", "jan.near")
	native := core.NativeAsset()
	ft1 := core.FungibleAsset("ft1.near")
	if err := tn.DepositAssets("ivan.near", map[string]core.Amount{native.String(): core.AmountFromUint64(1)}); err != nil {
		t.Fatalf("seed ivan: %v", err)
	}
	if err := tn.DepositAssets("jan.near", map[string]core.Amount{ft1.String(): core.AmountFromUint64(1)}); err != nil {
		t.Fatalf("seed jan: %v", err)
	}
	ivanIntent := TradeIntent{
		User: "ivan.near", AssetIn: native, AssetOut: ft1,
		AmountIn: core.AmountFromUint64(1), AmountOut: core.AmountFromUint64(1),
		Validity: Validity{OnlyForWhitelistedParties: []string{"someone-else.near"}},
	}
	janIntent := TradeIntent{User: "jan.near", AssetIn: ft1, AssetOut: native, AmountIn: core.AmountFromUint64(1), AmountOut: core.AmountFromUint64(1)}
	in := MatchInput{
		Intents: []AuthorizedTradeIntent{
			{Intent: ivanIntent, Auth: Authorization{Kind: AuthPredecessor}},
			{Intent: janIntent, Auth: Authorization{Kind: AuthPredecessor}},
		},
		OutputDestination: DestInternal,
	}
	if _, err := tn.Match(in, "ivan.near", nil); !errors.Is(err, core.ErrNotWhitelisted) {
		t.Fatalf("expected ErrNotWhitelisted, got %v", err)
	}
}

// Test_SignatureSchemesRejectWrongSigner confirms both signature schemes
// actually verify against the recorded key, not merely accept any bytes of
// the right length.
func Test_SignatureSchemesRejectWrongSigner(t *testing.T) {
	tn := newTestTenant(t)
	seedStorage(t, tn, "ivan.near", "jan.near")
	native := core.NativeAsset()
	ft1 := core.FungibleAsset("ft1.near")
	if err := tn.DepositAssets("ivan.near", map[string]core.Amount{native.String(): core.AmountFromUint64(1)}); err != nil {
		t.Fatalf("seed ivan: %v", err)
	}
	if err := tn.DepositAssets("jan.near", map[string]core.Amount{ft1.String(): core.AmountFromUint64(1)}); err != nil {
		t.Fatalf("seed jan: %v", err)
	}

	janPub, _ := ed25519Signer(t)
	if err := tn.SetAuthorizedKey("jan.near", AuthorizedKey{Kind: KeyEd25519, Bytes: janPub}); err != nil {
		t.Fatalf("set jan key: %v", err)
	}
	_, wrongSign := ed25519Signer(t) // a different key than the one on file

	ivanIntent := TradeIntent{User: "ivan.near", AssetIn: native, AssetOut: ft1, AmountIn: core.AmountFromUint64(1), AmountOut: core.AmountFromUint64(1)}
	janIntent := TradeIntent{User: "jan.near", AssetIn: ft1, AssetOut: native, AmountIn: core.AmountFromUint64(1), AmountOut: core.AmountFromUint64(1)}
	badSig := wrongSign(intentDigest(janIntent))

	in := MatchInput{
		Intents: []AuthorizedTradeIntent{
			{Intent: ivanIntent, Auth: Authorization{Kind: AuthPredecessor}},
			{Intent: janIntent, Auth: Authorization{Kind: AuthSignature, Signature: badSig}},
		},
		OutputDestination: DestInternal,
	}
	if _, err := tn.Match(in, "ivan.near", nil); !errors.Is(err, core.ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid for a signature from an unrecorded key, got %v", err)
	}

	// secp256k1: kim's recorded key differs from the one that signs, and
	// kim's intent comes first so no balance moves before verification.
	kimPub, _ := secp256k1Signer(t)
	if err := tn.SetAuthorizedKey("kim.near", AuthorizedKey{Kind: KeySecp256k1, Bytes: kimPub}); err != nil {
		t.Fatalf("set kim key: %v", err)
	}
	_, wrongSecpSign := secp256k1Signer(t)
	kimIntent := TradeIntent{User: "kim.near", AssetIn: ft1, AssetOut: native, AmountIn: core.AmountFromUint64(1), AmountOut: core.AmountFromUint64(1)}
	lenaIntent := TradeIntent{User: "lena.near", AssetIn: native, AssetOut: ft1, AmountIn: core.AmountFromUint64(1), AmountOut: core.AmountFromUint64(1)}
	secpIn := MatchInput{
		Intents: []AuthorizedTradeIntent{
			{Intent: kimIntent, Auth: Authorization{Kind: AuthSignature, Signature: wrongSecpSign(intentDigest(kimIntent))}},
			{Intent: lenaIntent, Auth: Authorization{Kind: AuthPredecessor}},
		},
		OutputDestination: DestInternal,
	}
	if _, err := tn.Match(secpIn, "lena.near", nil); !errors.Is(err, core.ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid for a secp256k1 signature from an unrecorded key, got %v", err)
	}
}
