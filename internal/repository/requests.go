package repository

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/stablekv"
)

// requestResourceKey is the RequestResource(resource -> request_id) index
// key from spec.md §4.1, used for authorization filtering.
type requestResourceKey struct {
	Kind model.RequestSpecifierKind
	ID   ids.ID
}

// Requests is the C1 repository for model.Request, maintaining:
//   - RequestSortKey(timestamp, id): created-time ordering for list/sort
//   - RequestExpiration(timestamp, id): the sweeper's range-scan source
//   - RequestResource(resource -> request_id): authorization filtering
func zeroPadTS(ns int64) string { return fmt.Sprintf("%020d", ns) }

type Requests struct {
	primary      *stablekv.Store[ids.ID, model.Request]
	byCreated    *stablekv.RangeIndex[int64]
	byExpiration *stablekv.RangeIndex[int64]
	byResource   *stablekv.NonUniqueIndex[requestResourceKey]
}

func OpenRequests(dir string, log *logrus.Entry) (*Requests, error) {
	primary, err := stablekv.Open[ids.ID, model.Request](dir, "requests", log)
	if err != nil {
		return nil, err
	}
	byCreated, err := stablekv.OpenRangeIndex[int64](dir, "requests_by_created", log, zeroPadTS, func(a, b int64) bool { return a < b })
	if err != nil {
		return nil, err
	}
	byExpiration, err := stablekv.OpenRangeIndex[int64](dir, "requests_by_expiration", log, zeroPadTS, func(a, b int64) bool { return a < b })
	if err != nil {
		return nil, err
	}
	byResource, err := stablekv.OpenNonUniqueIndex[requestResourceKey](dir, "requests_by_resource", log)
	if err != nil {
		return nil, err
	}
	return &Requests{primary: primary, byCreated: byCreated, byExpiration: byExpiration, byResource: byResource}, nil
}

func (r *Requests) addIndexes(req model.Request) error {
	if err := r.byCreated.Insert(req.CreatedTimestamp.UnixNano(), req.ID); err != nil {
		return err
	}
	// Only requests not yet decided need to appear in the expiration sweep
	// index; terminal/scheduled requests are pruned from it.
	if req.Status.Kind == model.StatusCreated {
		if err := r.byExpiration.Insert(req.ExpirationDt.UnixNano(), req.ID); err != nil {
			return err
		}
	}
	if res := req.Operation.Resource(); !res.IsNil() {
		if err := r.byResource.Insert(requestResourceKey{Kind: req.Operation.Kind, ID: res}, req.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Requests) removeIndexes(req model.Request) error {
	if err := r.byCreated.Remove(req.CreatedTimestamp.UnixNano(), req.ID); err != nil {
		return err
	}
	if req.Status.Kind == model.StatusCreated {
		if err := r.byExpiration.Remove(req.ExpirationDt.UnixNano(), req.ID); err != nil {
			return err
		}
	}
	if res := req.Operation.Resource(); !res.IsNil() {
		if err := r.byResource.Remove(requestResourceKey{Kind: req.Operation.Kind, ID: res}, req.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Requests) Insert(req model.Request) error {
	var old *model.Request
	if existing, ok := r.primary.Get(req.ID); ok {
		old = &existing
	}
	if err := SaveIndexes(req, old, r.addIndexes, r.removeIndexes); err != nil {
		return err
	}
	_, _, err := r.primary.Insert(req.ID, req)
	return err
}

func (r *Requests) Get(id ids.ID) (model.Request, bool) { return r.primary.Get(id) }
func (r *Requests) List() []model.Request                { return r.primary.List() }

// ListDueForExpiration implements spec.md §9's "range scan on the
// RequestExpiration index to process only due requests" for the sweeper.
func (r *Requests) ListDueForExpiration(asOfNs int64) []model.Request {
	out := make([]model.Request, 0)
	for _, e := range r.byExpiration.ScanUpTo(asOfNs) {
		if req, ok := r.primary.Get(e.ID); ok {
			out = append(out, req)
		}
	}
	return out
}

// ListByCreatedOrder returns every request in ascending created-timestamp
// order, backing list_requests' CreatedAt sort (spec.md §6).
func (r *Requests) ListByCreatedOrder() []model.Request {
	out := make([]model.Request, 0, r.primary.Len())
	for _, e := range r.byCreated.ScanAll() {
		if req, ok := r.primary.Get(e.ID); ok {
			out = append(out, req)
		}
	}
	return out
}

// ListApprovedForColdStartRescheduling backs spec.md §4.5's cold-start timer
// reconciliation ("reschedules based on a range scan ... for requests in
// Approved").
func (r *Requests) ListApprovedForColdStartRescheduling() []model.Request {
	out := make([]model.Request, 0)
	for _, req := range r.primary.List() {
		if req.Status.Kind == model.StatusApproved {
			out = append(out, req)
		}
	}
	return out
}

// ListProcessing backs the crash-recovery sweep (spec.md §4.5 / §8 S5):
// requests found Processing at cold start are moved to Failed("interrupted").
func (r *Requests) ListProcessing() []model.Request {
	out := make([]model.Request, 0)
	for _, req := range r.primary.List() {
		if req.Status.Kind == model.StatusProcessing {
			out = append(out, req)
		}
	}
	return out
}

func (r *Requests) Rebuild() error {
	for _, req := range r.primary.List() {
		if err := r.removeIndexes(req); err != nil {
			return err
		}
		if err := r.addIndexes(req); err != nil {
			return err
		}
	}
	return nil
}
