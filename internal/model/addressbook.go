package model

import "orbit-station/internal/ids"

// AddressBookEntry is a named counterparty address (spec.md §3).
type AddressBookEntry struct {
	ID            ids.ID
	AddressOwner  string
	Address       string
	AddressFormat string
	Blockchain    Blockchain
	Labels        []string
	Metadata      Metadata
}

// Validate enforces the AddressBookEntry invariants from spec.md §3/§4.2.
func (e AddressBookEntry) Validate() error {
	if err := validateLen("address book address", e.Address, AddressMin, AddressMax); err != nil {
		return err
	}
	if err := validateLen("address owner", e.AddressOwner, UserNameMin, UserNameMax); err != nil {
		return err
	}
	return e.Metadata.Validate()
}
