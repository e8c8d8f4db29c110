package repository

import (
	"github.com/sirupsen/logrus"

	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/stablekv"
)

// policyResourceKey is the PolicyResource(resource -> policy_id) index key
// from spec.md §4.1. ResourceID is ids.Nil for the wildcard (Any) entry.
type policyResourceKey struct {
	Kind       model.RequestSpecifierKind
	ResourceID ids.ID
}

// RequestPolicies is the C1 repository for model.RequestPolicy, with the
// PolicyResource index expanding ResourceIds::Ids(list) into one entry per
// id, as spec.md §4.1 requires.
type RequestPolicies struct {
	primary    *stablekv.Store[ids.ID, model.RequestPolicy]
	byResource *stablekv.NonUniqueIndex[policyResourceKey]
}

func OpenRequestPolicies(dir string, log *logrus.Entry) (*RequestPolicies, error) {
	primary, err := stablekv.Open[ids.ID, model.RequestPolicy](dir, "request_policies", log)
	if err != nil {
		return nil, err
	}
	byResource, err := stablekv.OpenNonUniqueIndex[policyResourceKey](dir, "request_policies_by_resource", log)
	if err != nil {
		return nil, err
	}
	return &RequestPolicies{primary: primary, byResource: byResource}, nil
}

func (r *RequestPolicies) resourceKeys(p model.RequestPolicy) []policyResourceKey {
	if p.Specifier.Resources.Kind == model.ResourceIDsAny {
		return []policyResourceKey{{Kind: p.Specifier.Kind, ResourceID: ids.Nil}}
	}
	keys := make([]policyResourceKey, 0, len(p.Specifier.Resources.Ids))
	for _, id := range p.Specifier.Resources.Ids {
		keys = append(keys, policyResourceKey{Kind: p.Specifier.Kind, ResourceID: id})
	}
	return keys
}

func (r *RequestPolicies) addIndexes(p model.RequestPolicy) error {
	for _, k := range r.resourceKeys(p) {
		if err := r.byResource.Insert(k, p.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *RequestPolicies) removeIndexes(p model.RequestPolicy) error {
	for _, k := range r.resourceKeys(p) {
		if err := r.byResource.Remove(k, p.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *RequestPolicies) Insert(p model.RequestPolicy) error {
	var old *model.RequestPolicy
	if existing, ok := r.primary.Get(p.ID); ok {
		old = &existing
	}
	if err := SaveIndexes(p, old, r.addIndexes, r.removeIndexes); err != nil {
		return err
	}
	_, _, err := r.primary.Insert(p.ID, p)
	return err
}

func (r *RequestPolicies) Get(id ids.ID) (model.RequestPolicy, bool) { return r.primary.Get(id) }
func (r *RequestPolicies) Exists(id ids.ID) bool                     { return r.primary.Exists(id) }
func (r *RequestPolicies) List() []model.RequestPolicy               { return r.primary.List() }

// FindMatching implements the policy-selection scan from spec.md §4.4: both
// the exact-resource and the wildcard index entries are consulted, so the
// caller can apply the "exact beats wildcard" specificity rule itself.
func (r *RequestPolicies) FindMatching(kind model.RequestSpecifierKind, resource ids.ID) (exact, wildcard []model.RequestPolicy) {
	for _, id := range r.byResource.Lookup(policyResourceKey{Kind: kind, ResourceID: resource}) {
		if p, ok := r.primary.Get(id); ok {
			exact = append(exact, p)
		}
	}
	for _, id := range r.byResource.Lookup(policyResourceKey{Kind: kind, ResourceID: ids.Nil}) {
		if p, ok := r.primary.Get(id); ok {
			wildcard = append(wildcard, p)
		}
	}
	return exact, wildcard
}

// ReferencesNamedRule reports whether any stored policy's rule tree
// references ruleID, used to enforce "deleting a referenced NamedRule is
// rejected if any live policy references it" (spec.md §3).
func (r *RequestPolicies) ReferencesNamedRule(ruleID ids.ID) bool {
	for _, p := range r.primary.List() {
		found := false
		_ = p.Rule.WalkExported(func(n model.RuleTree) error {
			if n.Kind == model.RuleNamedRule && n.NamedRuleID == ruleID {
				found = true
			}
			return nil
		})
		if found {
			return true
		}
	}
	return false
}

func (r *RequestPolicies) Remove(id ids.ID) error {
	p, ok := r.primary.Get(id)
	if !ok {
		return apierr.NotFoundf("request policy", id.String())
	}
	if err := r.removeIndexes(p); err != nil {
		return err
	}
	_, _, err := r.primary.Remove(id)
	return err
}

func (r *RequestPolicies) Rebuild() error {
	for _, p := range r.primary.List() {
		if err := r.removeIndexes(p); err != nil {
			return err
		}
		if err := r.addIndexes(p); err != nil {
			return err
		}
	}
	return nil
}
