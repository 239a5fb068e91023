package core

import (
	"fmt"
	"strings"
)

// DexId identifies a deployed tenant module: the account that deployed it
// plus a deployer-chosen short name. Two different deployers may reuse the
// same short_id without colliding.
type DexId struct {
	Deployer string
	ShortID  string
}

func (d DexId) String() string { return d.Deployer + "/" + d.ShortID }

// ParseDexId parses the "deployer/short_id" wire form produced by String.
func ParseDexId(s string) (DexId, error) {
	i := strings.IndexByte(s, '/')
	if i < 0 {
		return DexId{}, fmt.Errorf("%w: malformed dex id %q", ErrDecodeFailed, s)
	}
	return DexId{Deployer: s[:i], ShortID: s[i+1:]}, nil
}

// PrincipalKind discriminates the two kinds of ledger principal.
type PrincipalKind uint8

const (
	PrincipalUser PrincipalKind = iota
	PrincipalDex
)

// Principal is either a user account or a deployed tenant, the subject of
// every balance entry in the ledger.
type Principal struct {
	Kind    PrincipalKind
	Account string // valid when Kind == PrincipalUser
	Dex     DexId  // valid when Kind == PrincipalDex
}

// UserPrincipal constructs a Principal naming a user account.
func UserPrincipal(account string) Principal {
	return Principal{Kind: PrincipalUser, Account: account}
}

// DexPrincipal constructs a Principal naming a deployed tenant.
func DexPrincipal(id DexId) Principal {
	return Principal{Kind: PrincipalDex, Dex: id}
}

func (p Principal) String() string {
	switch p.Kind {
	case PrincipalUser:
		return "user:" + p.Account
	case PrincipalDex:
		return "dex:" + p.Dex.String()
	default:
		return "unknown-principal"
	}
}

// AssetKind discriminates the four asset families the ledger can hold.
type AssetKind uint8

const (
	AssetNative AssetKind = iota
	AssetFungible
	AssetNonFungible
	AssetMultiToken
)

// AssetId is a tagged union identifying a fungible/non-fungible/multi-token
// asset or the chain's native token. The String/ParseAssetId pair is the
// canonical wire form used both as a map key and over JSON.
type AssetId struct {
	Kind     AssetKind
	Contract string // Fungible, NonFungible, MultiToken
	TokenID  string // NonFungible, MultiToken
}

// NativeAsset is the singleton identifier for the chain's native token.
func NativeAsset() AssetId { return AssetId{Kind: AssetNative} }

// FungibleAsset identifies a fungible-token contract.
func FungibleAsset(contract string) AssetId {
	return AssetId{Kind: AssetFungible, Contract: contract}
}

// NonFungibleAsset identifies a single NFT.
func NonFungibleAsset(contract, tokenID string) AssetId {
	return AssetId{Kind: AssetNonFungible, Contract: contract, TokenID: tokenID}
}

// MultiTokenAsset identifies one token kind within a multi-token contract.
func MultiTokenAsset(contract, tokenID string) AssetId {
	return AssetId{Kind: AssetMultiToken, Contract: contract, TokenID: tokenID}
}

func (a AssetId) String() string {
	switch a.Kind {
	case AssetNative:
		return "native"
	case AssetFungible:
		return "ft:" + a.Contract
	case AssetNonFungible:
		return "nft:" + a.Contract + ":" + a.TokenID
	case AssetMultiToken:
		return "mt:" + a.Contract + ":" + a.TokenID
	default:
		return "unknown-asset"
	}
}

// ParseAssetId parses the canonical wire form ("native", "ft:acct",
// "nft:acct:token", "mt:acct:token") produced by String.
func ParseAssetId(s string) (AssetId, error) {
	if s == "native" {
		return NativeAsset(), nil
	}
	parts := strings.SplitN(s, ":", 3)
	switch {
	case len(parts) == 2 && parts[0] == "ft":
		return FungibleAsset(parts[1]), nil
	case len(parts) == 3 && parts[0] == "nft":
		return NonFungibleAsset(parts[1], parts[2]), nil
	case len(parts) == 3 && parts[0] == "mt":
		return MultiTokenAsset(parts[1], parts[2]), nil
	default:
		return AssetId{}, fmt.Errorf("%w: malformed asset id %q", ErrDecodeFailed, s)
	}
}

// balanceKey is the composite map key for a (Principal, AssetId) balance
// entry; both halves flatten to their canonical string form so the key is
// stable and hashable.
type balanceKey struct {
	principal string
	asset     string
}

func keyOf(p Principal, a AssetId) balanceKey {
	return balanceKey{principal: p.String(), asset: a.String()}
}
