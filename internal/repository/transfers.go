package repository

import (
	"github.com/sirupsen/logrus"

	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/stablekv"
)

// Transfers is the C1 repository for model.Transfer (spec.md §3: "Exactly
// one Transfer per executed transfer request"), indexed by request id so
// the engine/executor can enforce that invariant (spec.md §8 invariant 5).
type Transfers struct {
	primary   *stablekv.Store[ids.ID, model.Transfer]
	byRequest *stablekv.UniqueIndex[ids.ID]
}

func OpenTransfers(dir string, log *logrus.Entry) (*Transfers, error) {
	primary, err := stablekv.Open[ids.ID, model.Transfer](dir, "transfers", log)
	if err != nil {
		return nil, err
	}
	byRequest, err := stablekv.OpenUniqueIndex[ids.ID](dir, "transfers_by_request", log)
	if err != nil {
		return nil, err
	}
	return &Transfers{primary: primary, byRequest: byRequest}, nil
}

func (r *Transfers) Insert(t model.Transfer) error {
	if err := r.byRequest.Insert(t.RequestID, t.ID); err != nil {
		return apierr.Newf(apierr.Duplicate, "a transfer already exists for this request: %v", err)
	}
	_, _, err := r.primary.Insert(t.ID, t)
	return err
}

// Update overwrites an existing transfer's record (e.g. status
// transitions) without re-touching the request-id index, which never
// changes after creation.
func (r *Transfers) Update(t model.Transfer) error {
	_, _, err := r.primary.Insert(t.ID, t)
	return err
}

func (r *Transfers) Get(id ids.ID) (model.Transfer, bool) { return r.primary.Get(id) }

func (r *Transfers) GetByRequest(requestID ids.ID) (model.Transfer, bool) {
	id, ok := r.byRequest.Lookup(requestID)
	if !ok {
		return model.Transfer{}, false
	}
	return r.primary.Get(id)
}

func (r *Transfers) List() []model.Transfer { return r.primary.List() }

func (r *Transfers) Rebuild() error {
	for _, t := range r.primary.List() {
		if err := r.byRequest.Insert(t.RequestID, t.ID); err != nil {
			return err
		}
	}
	return nil
}
