package executor

import (
	"context"

	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/repository"
)

type addAddressBookEntryExecutor struct {
	repos *repository.Repos
}

func (x *addAddressBookEntryExecutor) Authorize(model.Operation) (string, string, *ids.ID) {
	return "AddressBookEntry", "Create", nil
}

func (x *addAddressBookEntryExecutor) Validate(op model.Operation) error {
	in := op.AddAddressBookEntry
	if in == nil {
		return apierr.New(apierr.Validation, "add address book entry operation missing payload")
	}
	if _, exists := x.repos.AddressBook.FindByAddress(in.Blockchain, in.Address); exists {
		return apierr.Newf(apierr.Duplicate, "address %q already registered for blockchain %s", in.Address, in.Blockchain)
	}
	return model.AddressBookEntry{
		AddressOwner: in.AddressOwner,
		Address:      in.Address,
		Metadata:     in.Metadata,
	}.Validate()
}

func (x *addAddressBookEntryExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	in := req.Operation.AddAddressBookEntry
	e := model.AddressBookEntry{
		ID:            ids.New(),
		AddressOwner:  in.AddressOwner,
		Address:       in.Address,
		AddressFormat: in.AddressFormat,
		Blockchain:    in.Blockchain,
		Labels:        in.Labels,
		Metadata:      in.Metadata,
	}
	if err := x.repos.AddressBook.Insert(e); err != nil {
		return nil, err
	}
	return map[string]string{"address_book_entry_id": e.ID.String()}, nil
}

type editAddressBookEntryExecutor struct {
	repos *repository.Repos
}

func (x *editAddressBookEntryExecutor) Authorize(op model.Operation) (string, string, *ids.ID) {
	return "AddressBookEntry", "Update", idOrNil(op.Resource())
}

func (x *editAddressBookEntryExecutor) Validate(op model.Operation) error {
	in := op.EditAddressBookEntry
	if in == nil {
		return apierr.New(apierr.Validation, "edit address book entry operation missing payload")
	}
	if _, ok := x.repos.AddressBook.Get(in.EntryID); !ok {
		return apierr.NotFoundf("address book entry", in.EntryID.String())
	}
	return in.Metadata.Validate()
}

func (x *editAddressBookEntryExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	in := req.Operation.EditAddressBookEntry
	e, ok := x.repos.AddressBook.Get(in.EntryID)
	if !ok {
		return nil, apierr.NotFoundf("address book entry", in.EntryID.String())
	}
	if in.Labels != nil {
		e.Labels = in.Labels
	}
	if in.Metadata != nil {
		e.Metadata = in.Metadata
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return nil, x.repos.AddressBook.Insert(e)
}

type removeAddressBookEntryExecutor struct {
	repos *repository.Repos
}

func (x *removeAddressBookEntryExecutor) Authorize(op model.Operation) (string, string, *ids.ID) {
	return "AddressBookEntry", "Delete", idOrNil(op.Resource())
}

func (x *removeAddressBookEntryExecutor) Validate(op model.Operation) error {
	in := op.RemoveAddressBookEntry
	if in == nil {
		return apierr.New(apierr.Validation, "remove address book entry operation missing payload")
	}
	if _, ok := x.repos.AddressBook.Get(in.ID); !ok {
		return apierr.NotFoundf("address book entry", in.ID.String())
	}
	return nil
}

func (x *removeAddressBookEntryExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	return nil, x.repos.AddressBook.Remove(req.Operation.RemoveAddressBookEntry.ID)
}
