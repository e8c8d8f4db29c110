package repository

import (
	"github.com/sirupsen/logrus"

	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/stablekv"
)

type blockchainAddressKey struct {
	Blockchain model.Blockchain
	Address    string
}

// AddressBook is the C1 repository for model.AddressBookEntry (spec.md
// §4.1: unique AddressBookBlockchainAddress(blockchain, address) -> EntryId).
type AddressBook struct {
	primary      *stablekv.Store[ids.ID, model.AddressBookEntry]
	byBlockchain *stablekv.UniqueIndex[blockchainAddressKey]
}

func OpenAddressBook(dir string, log *logrus.Entry) (*AddressBook, error) {
	primary, err := stablekv.Open[ids.ID, model.AddressBookEntry](dir, "address_book", log)
	if err != nil {
		return nil, err
	}
	byBlockchain, err := stablekv.OpenUniqueIndex[blockchainAddressKey](dir, "address_book_by_chain_addr", log)
	if err != nil {
		return nil, err
	}
	return &AddressBook{primary: primary, byBlockchain: byBlockchain}, nil
}

func (r *AddressBook) key(e model.AddressBookEntry) blockchainAddressKey {
	return blockchainAddressKey{Blockchain: e.Blockchain, Address: e.Address}
}

func (r *AddressBook) addIndexes(e model.AddressBookEntry) error {
	if err := r.byBlockchain.Insert(r.key(e), e.ID); err != nil {
		return apierr.Newf(apierr.Duplicate, "address already present in address book for this blockchain: %v", err)
	}
	return nil
}

func (r *AddressBook) removeIndexes(e model.AddressBookEntry) error {
	return r.byBlockchain.Remove(r.key(e))
}

func (r *AddressBook) Insert(e model.AddressBookEntry) error {
	var old *model.AddressBookEntry
	if existing, ok := r.primary.Get(e.ID); ok {
		old = &existing
	}
	if err := SaveIndexes(e, old, r.addIndexes, r.removeIndexes); err != nil {
		return err
	}
	_, _, err := r.primary.Insert(e.ID, e)
	return err
}

func (r *AddressBook) Get(id ids.ID) (model.AddressBookEntry, bool) { return r.primary.Get(id) }

// FindByAddress backs the AllowListed/AllowListedByMetadata policy rules
// (spec.md §4.4): "approved iff the transfer's destination address appears
// in the address book for the same blockchain".
func (r *AddressBook) FindByAddress(blockchain model.Blockchain, address string) (model.AddressBookEntry, bool) {
	id, ok := r.byBlockchain.Lookup(blockchainAddressKey{Blockchain: blockchain, Address: address})
	if !ok {
		return model.AddressBookEntry{}, false
	}
	return r.primary.Get(id)
}

func (r *AddressBook) List() []model.AddressBookEntry { return r.primary.List() }

func (r *AddressBook) Remove(id ids.ID) error {
	e, ok := r.primary.Get(id)
	if !ok {
		return apierr.NotFoundf("address book entry", id.String())
	}
	if err := r.removeIndexes(e); err != nil {
		return err
	}
	_, _, err := r.primary.Remove(id)
	return err
}

func (r *AddressBook) Rebuild() error {
	for _, e := range r.primary.List() {
		if err := r.removeIndexes(e); err != nil {
			return err
		}
		if err := r.addIndexes(e); err != nil {
			return err
		}
	}
	return nil
}
