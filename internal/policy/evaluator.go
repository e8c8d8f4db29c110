// Package policy implements the C4 recursive policy-rule evaluator from
// spec.md §4.4: walking a RuleTree against a Request's current approvals
// and the live model state to produce {Approved, Rejected, Pending}.
package policy

import (
	"fmt"
	"math"

	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/repository"
)

// Result is the three-valued outcome of evaluating a rule or policy.
type Result string

const (
	Approved Result = "Approved"
	Rejected Result = "Rejected"
	Pending  Result = "Pending"
)

// TrailEntry is one node's outcome in a structured evaluation trail
// (SPEC_FULL.md §2: "evaluator additionally returns a structured
// EvaluationTrail ... consumed by list_requests(with_evaluation_results)").
type TrailEntry struct {
	Kind     model.RuleKind
	Result   Result
	Detail   string
	Children []TrailEntry
}

// Evaluator holds read access to every repository the rule language can
// reference: users (for UserSpecifier resolution), the address book and
// assets (for AllowListed*), named rules (for NamedRule substitution), and
// request policies (for policy selection).
type Evaluator struct {
	users       *repository.Users
	addressBook *repository.AddressBook
	assets      *repository.Assets
	namedRules  *repository.NamedRules
	policies    *repository.RequestPolicies
}

func New(users *repository.Users, addressBook *repository.AddressBook, assets *repository.Assets, namedRules *repository.NamedRules, policies *repository.RequestPolicies) *Evaluator {
	return &Evaluator{users: users, addressBook: addressBook, assets: assets, namedRules: namedRules, policies: policies}
}

// eligibleUsers resolves a UserSpecifier to a concrete set of user ids
// against the current user repository (spec.md §4.4).
func (e *Evaluator) eligibleUsers(spec model.UserSpecifier) ids.Set {
	switch spec.Kind {
	case model.UserSpecAny:
		set := make(ids.Set)
		for _, u := range e.users.List() {
			set.Add(u.ID)
		}
		return set
	case model.UserSpecGroup:
		groups := ids.NewSet(spec.Groups...)
		set := make(ids.Set)
		for _, u := range e.users.List() {
			for g := range u.Groups {
				if groups.Contains(g) {
					set.Add(u.ID)
					break
				}
			}
		}
		return set
	case model.UserSpecID:
		return ids.NewSet(spec.Users...)
	default:
		return make(ids.Set)
	}
}

// countVotes returns the number of Approved and Rejected approvals on req
// cast by members of the eligible set E.
func countVotes(req model.Request, e ids.Set) (approved, rejected int) {
	for _, a := range req.Approvals {
		if !e.Contains(a.ApproverID) {
			continue
		}
		switch a.Decision {
		case model.DecisionApproved:
			approved++
		case model.DecisionRejected:
			rejected++
		}
	}
	return approved, rejected
}

// Evaluate runs the policy-selection + rule-evaluation pipeline for req
// (spec.md §4.4 "Policy selection"): find matching RequestPolicy records
// for the request's operation, combine with implicit And when more than
// one matches, and evaluate the resulting rule tree.
func (e *Evaluator) Evaluate(req model.Request) (Result, TrailEntry, error) {
	kind := req.Operation.Kind
	resource := req.Operation.Resource()

	exact, wildcard := e.policies.FindMatching(kind, resource)
	matched := exact
	if len(matched) == 0 {
		matched = wildcard
	}
	if len(matched) == 0 {
		return Rejected, TrailEntry{Kind: "", Result: Rejected, Detail: "no matching policy (fail closed)"}, nil
	}

	if len(matched) == 1 {
		return e.evalNode(matched[0].Rule, req, map[ids.ID]bool{})
	}

	children := make([]TrailEntry, 0, len(matched))
	result := Approved
	anyPending := false
	for _, p := range matched {
		res, trail, err := e.evalNode(p.Rule, req, map[ids.ID]bool{})
		if err != nil {
			return Pending, TrailEntry{}, err
		}
		children = append(children, trail)
		switch res {
		case Rejected:
			result = Rejected
		case Pending:
			if result != Rejected {
				anyPending = true
			}
		}
	}
	if result != Rejected && anyPending {
		result = Pending
	}
	return result, TrailEntry{Kind: model.RuleAnd, Result: result, Detail: "implicit And over multiple matching policies", Children: children}, nil
}

// evalNode evaluates a single RuleTree node, recursing into its children
// and following NamedRule references. visited carries the set of NamedRule
// ids already entered on this path, for the defensive runtime cycle
// fallback described in spec.md §4.4 (cycles are rejected at save time;
// this is a belt-and-suspenders guard against a bad stored graph).
func (e *Evaluator) evalNode(rule model.RuleTree, req model.Request, visited map[ids.ID]bool) (Result, TrailEntry, error) {
	switch rule.Kind {
	case model.RuleAutoApproved:
		return Approved, TrailEntry{Kind: rule.Kind, Result: Approved}, nil

	case model.RuleQuorum:
		eligible := e.eligibleUsers(rule.Specifier)
		a, r := countVotes(req, eligible)
		res := resolveThreshold(len(eligible), a, r, rule.N)
		detail := fmt.Sprintf("quorum: %d approved / need %d (eligible=%d, rejected=%d)", a, rule.N, len(eligible), r)
		return res, TrailEntry{Kind: rule.Kind, Result: res, Detail: detail}, nil

	case model.RuleQuorumPercentage:
		eligible := e.eligibleUsers(rule.Specifier)
		n := int(math.Ceil(float64(len(eligible)) * float64(rule.Percent) / 100.0))
		a, r := countVotes(req, eligible)
		res := resolveThreshold(len(eligible), a, r, n)
		detail := fmt.Sprintf("quorum %d%%: %d approved / need %d of %d eligible (rejected=%d)", rule.Percent, a, n, len(eligible), r)
		return res, TrailEntry{Kind: rule.Kind, Result: res, Detail: detail}, nil

	case model.RuleAllowListed:
		res, detail := e.evalAllowListed(req, nil)
		return res, TrailEntry{Kind: rule.Kind, Result: res, Detail: detail}, nil

	case model.RuleAllowListedByMetadata:
		item := rule.Metadata
		res, detail := e.evalAllowListed(req, &item)
		return res, TrailEntry{Kind: rule.Kind, Result: res, Detail: detail}, nil

	case model.RuleAnd:
		return e.evalAnd(rule, req, visited)

	case model.RuleOr:
		return e.evalOr(rule, req, visited)

	case model.RuleNot:
		if len(rule.Children) != 1 {
			return Rejected, TrailEntry{Kind: rule.Kind, Result: Rejected, Detail: "malformed Not node"}, nil
		}
		childRes, childTrail, err := e.evalNode(rule.Children[0], req, visited)
		if err != nil {
			return Pending, TrailEntry{}, err
		}
		res := childRes
		switch childRes {
		case Approved:
			res = Rejected
		case Rejected:
			res = Approved
		}
		return res, TrailEntry{Kind: rule.Kind, Result: res, Children: []TrailEntry{childTrail}}, nil

	case model.RuleNamedRule:
		if visited[rule.NamedRuleID] {
			return Rejected, TrailEntry{Kind: rule.Kind, Result: Rejected, Detail: "cycle detected at runtime (defensive fallback)"}, nil
		}
		nr, ok := e.namedRules.Get(rule.NamedRuleID)
		if !ok {
			return Rejected, TrailEntry{Kind: rule.Kind, Result: Rejected, Detail: "referenced named rule not found"}, nil
		}
		nextVisited := make(map[ids.ID]bool, len(visited)+1)
		for k := range visited {
			nextVisited[k] = true
		}
		nextVisited[rule.NamedRuleID] = true
		res, trail, err := e.evalNode(nr.Rule, req, nextVisited)
		if err != nil {
			return Pending, TrailEntry{}, err
		}
		return res, TrailEntry{Kind: rule.Kind, Result: res, Detail: "named rule " + nr.Name, Children: []TrailEntry{trail}}, nil

	default:
		return Rejected, TrailEntry{Kind: rule.Kind, Result: Rejected, Detail: "unknown rule kind"}, nil
	}
}

// EligibleApprovers returns the union of every eligible-approver set named
// by the request's selected policy tree(s), used by the engine to decide
// whether the proposer gets an implicit approval vote on creation (spec.md
// §4.5 "if the proposer is an eligible approver under the selected
// policy, attach their implicit Approved vote") and to authorize incoming
// approval votes.
func (e *Evaluator) EligibleApprovers(req model.Request) ids.Set {
	kind := req.Operation.Kind
	resource := req.Operation.Resource()
	exact, wildcard := e.policies.FindMatching(kind, resource)
	matched := exact
	if len(matched) == 0 {
		matched = wildcard
	}
	set := make(ids.Set)
	for _, p := range matched {
		e.collectEligible(p.Rule, set, map[ids.ID]bool{})
	}
	return set
}

func (e *Evaluator) collectEligible(rule model.RuleTree, set ids.Set, visited map[ids.ID]bool) {
	switch rule.Kind {
	case model.RuleQuorum, model.RuleQuorumPercentage:
		for id := range e.eligibleUsers(rule.Specifier) {
			set.Add(id)
		}
	case model.RuleAnd, model.RuleOr, model.RuleNot:
		for _, c := range rule.Children {
			e.collectEligible(c, set, visited)
		}
	case model.RuleNamedRule:
		if visited[rule.NamedRuleID] {
			return
		}
		nr, ok := e.namedRules.Get(rule.NamedRuleID)
		if !ok {
			return
		}
		next := make(map[ids.ID]bool, len(visited)+1)
		for k := range visited {
			next[k] = true
		}
		next[rule.NamedRuleID] = true
		e.collectEligible(nr.Rule, set, next)
	}
}

// resolveThreshold applies the Quorum/QuorumPercentage decision rule
// common to both rule kinds (spec.md §4.4): Approved once a reaches n;
// Rejected once the remaining eligible pool (|E|-r) can no longer reach n;
// Pending otherwise.
func resolveThreshold(eligibleCount, approved, rejected, n int) Result {
	if approved >= n {
		return Approved
	}
	if eligibleCount-rejected < n {
		return Rejected
	}
	return Pending
}

// evalAllowListed implements spec.md §4.4's AllowListed/AllowListedByMetadata
// rule: approved iff the transfer's destination address is present in the
// address book for the same blockchain (and, for the metadata variant,
// carries the matching key/value pair).
func (e *Evaluator) evalAllowListed(req model.Request, metadataFilter *model.MetadataItem) (Result, string) {
	if req.Operation.Kind != model.SpecifierTransfer || req.Operation.Transfer == nil {
		return Rejected, "AllowListed is only meaningful for Transfer requests"
	}
	transfer := req.Operation.Transfer
	asset, ok := e.assets.Get(transfer.FromAsset)
	if !ok {
		return Rejected, "transfer asset not found"
	}
	entry, found := e.addressBook.FindByAddress(asset.Blockchain, transfer.ToAddress)
	if !found {
		return Rejected, fmt.Sprintf("destination address %s not in address book for %s", transfer.ToAddress, asset.Blockchain)
	}
	if metadataFilter != nil {
		if entry.Metadata[metadataFilter.Key] != metadataFilter.Value {
			return Rejected, fmt.Sprintf("address book entry missing metadata %s=%s", metadataFilter.Key, metadataFilter.Value)
		}
	}
	return Approved, fmt.Sprintf("destination address %s allow-listed", transfer.ToAddress)
}

func (e *Evaluator) evalAnd(rule model.RuleTree, req model.Request, visited map[ids.ID]bool) (Result, TrailEntry, error) {
	children := make([]TrailEntry, 0, len(rule.Children))
	result := Approved
	anyPending := false
	for _, c := range rule.Children {
		res, trail, err := e.evalNode(c, req, visited)
		if err != nil {
			return Pending, TrailEntry{}, err
		}
		children = append(children, trail)
		switch res {
		case Rejected:
			result = Rejected
		case Pending:
			anyPending = true
		}
	}
	if result != Rejected && anyPending {
		result = Pending
	}
	return result, TrailEntry{Kind: rule.Kind, Result: result, Children: children}, nil
}

func (e *Evaluator) evalOr(rule model.RuleTree, req model.Request, visited map[ids.ID]bool) (Result, TrailEntry, error) {
	children := make([]TrailEntry, 0, len(rule.Children))
	result := Rejected
	anyPending := false
	for _, c := range rule.Children {
		res, trail, err := e.evalNode(c, req, visited)
		if err != nil {
			return Pending, TrailEntry{}, err
		}
		children = append(children, trail)
		switch res {
		case Approved:
			result = Approved
		case Pending:
			anyPending = true
		}
	}
	if result != Approved && anyPending {
		result = Pending
	}
	return result, TrailEntry{Kind: rule.Kind, Result: result, Children: children}, nil
}
