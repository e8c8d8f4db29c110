package model

import (
	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
)

// TokenStandard identifies the wire/address format family an asset speaks,
// and is the closed tag the blockchain adapter switches on (spec.md §4.7,
// §9 design note "use a tagged enum of concrete adapters ... rather than
// dynamic registration").
type TokenStandard string

const (
	StandardICPNative TokenStandard = "icp_native"
	StandardERC20     TokenStandard = "erc20"
	StandardEthNative TokenStandard = "eth_native"
)

// Blockchain identifies the chain an Asset/Account address belongs to.
type Blockchain string

const (
	BlockchainICP      Blockchain = "icp"
	BlockchainEthereum Blockchain = "eth"
)

// Asset is a blockchain-scoped fungible unit (spec.md §3).
type Asset struct {
	ID        ids.ID
	Blockchain Blockchain
	Symbol    string
	Name      string
	Decimals  uint32
	Standards map[TokenStandard]struct{}
	Metadata  Metadata
}

// Validate enforces the Asset invariants from spec.md §3/§4.2.
func (a Asset) Validate() error {
	if err := validateLen("asset symbol", a.Symbol, AssetSymbolMin, AssetSymbolMax); err != nil {
		return err
	}
	if err := validateLen("asset name", a.Name, UserNameMin, UserNameMax); err != nil {
		return err
	}
	if len(a.Standards) == 0 {
		return apierr.New(apierr.Validation, "asset must declare at least one token standard")
	}
	return a.Metadata.Validate()
}

func (a Asset) HasStandard(s TokenStandard) bool {
	_, ok := a.Standards[s]
	return ok
}
