package model

import (
	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
)

// AccountAsset links an Account to one Asset it may hold a balance of.
type AccountAsset struct {
	AssetID  ids.ID
	Balance  uint64 // base units; the executing adapter owns decimals interpretation
	Decimals uint32 // fetched from the blockchain adapter at Add/EditAccount time (spec.md:174)
}

// AccountAddress is one materialized on-chain address for an account.
type AccountAddress struct {
	Address string
	Format  string // adapter-defined format tag, e.g. "icp_account_id", "eth_checksum"
}

// Account is a treasury holding (spec.md §3). Its read/configs/transfer
// permissions live in the Permission repository keyed by resource, not
// inline here; TransferPolicyID/ConfigsPolicyID are the only policy
// back-references the account itself carries.
type Account struct {
	ID               ids.ID
	Name             string
	Seed             [16]byte
	Assets           []AccountAsset
	Addresses        []AccountAddress
	Metadata         Metadata
	TransferPolicyID *ids.ID
	ConfigsPolicyID  *ids.ID
}

// ResourceID is either a wildcard or a specific entity id (spec.md §4.3).
type ResourceID struct {
	Any bool
	ID  ids.ID
}

func AnyResource() ResourceID        { return ResourceID{Any: true} }
func SpecificResource(id ids.ID) ResourceID { return ResourceID{ID: id} }

// Validate enforces the Account invariants from spec.md §3. existingAssets
// is used to check "each asset referenced must exist" without importing the
// repository package (kept as a caller-supplied existence set to avoid a
// model -> repository dependency cycle).
func (a Account) Validate(existingAssets ids.Set) error {
	if err := validateLen("account name", a.Name, UserNameMin, UserNameMax); err != nil {
		return err
	}
	if len(a.Addresses) == 0 {
		return apierr.New(apierr.Validation, "account must have at least one address")
	}
	for _, addr := range a.Addresses {
		if err := validateLen("account address", addr.Address, AddressMin, AddressMax); err != nil {
			return err
		}
	}
	for _, aa := range a.Assets {
		if existingAssets != nil && !existingAssets.Contains(aa.AssetID) {
			return apierr.Newf(apierr.Validation, "account references unknown asset %s", aa.AssetID)
		}
	}
	return a.Metadata.Validate()
}

// BalanceOf returns the account's balance for the given asset, or 0/false
// if the account does not hold that asset.
func (a Account) BalanceOf(assetID ids.ID) (uint64, bool) {
	for _, aa := range a.Assets {
		if aa.AssetID == assetID {
			return aa.Balance, true
		}
	}
	return 0, false
}

// Debit deducts amount from the account's balance of assetID in place,
// returning an error if the account does not hold that asset or the
// balance would go negative (spec.md §8 S1: a completed transfer leaves
// the source account's balance reduced by amount+fee).
func (a *Account) Debit(assetID ids.ID, amount uint64) error {
	for i := range a.Assets {
		if a.Assets[i].AssetID != assetID {
			continue
		}
		if a.Assets[i].Balance < amount {
			return apierr.Newf(apierr.Validation, "insufficient balance: have %d, need %d", a.Assets[i].Balance, amount)
		}
		a.Assets[i].Balance -= amount
		return nil
	}
	return apierr.Newf(apierr.Validation, "account %s does not hold asset %s", a.ID, assetID)
}

// Credit adds amount to the account's balance of assetID in place,
// creating the AccountAsset entry if the account does not already hold it.
func (a *Account) Credit(assetID ids.ID, amount uint64) {
	for i := range a.Assets {
		if a.Assets[i].AssetID == assetID {
			a.Assets[i].Balance += amount
			return
		}
	}
	a.Assets = append(a.Assets, AccountAsset{AssetID: assetID, Balance: amount})
}
