package executor

import (
	"context"

	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/policy"
	"orbit-station/internal/repository"
)

// resolveNamedRule adapts the NamedRules repository to the resolver
// signature policy.ValidateRuleGraph and RuleTree.Validate need.
func resolveNamedRule(repos *repository.Repos) func(ids.ID) (model.RuleTree, bool) {
	return func(id ids.ID) (model.RuleTree, bool) {
		n, ok := repos.NamedRules.Get(id)
		if !ok {
			return model.RuleTree{}, false
		}
		return n.Rule, true
	}
}

type addRequestPolicyExecutor struct {
	repos *repository.Repos
}

func (x *addRequestPolicyExecutor) Authorize(model.Operation) (string, string, *ids.ID) {
	return "RequestPolicy", "Create", nil
}

func (x *addRequestPolicyExecutor) Validate(op model.Operation) error {
	in := op.AddRequestPolicy
	if in == nil {
		return apierr.New(apierr.Validation, "add request policy operation missing payload")
	}
	p := model.RequestPolicy{Specifier: in.Specifier, Rule: in.Rule}
	resolve := resolveNamedRule(x.repos)
	if err := p.Validate(resolve); err != nil {
		return err
	}
	return policy.ValidateRuleGraph(resolve, in.Rule)
}

func (x *addRequestPolicyExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	in := req.Operation.AddRequestPolicy
	p := model.RequestPolicy{ID: ids.New(), Specifier: in.Specifier, Rule: in.Rule}
	if err := x.repos.RequestPolicies.Insert(p); err != nil {
		return nil, err
	}
	return map[string]string{"request_policy_id": p.ID.String()}, nil
}

type editRequestPolicyExecutor struct {
	repos *repository.Repos
}

func (x *editRequestPolicyExecutor) Authorize(op model.Operation) (string, string, *ids.ID) {
	return "RequestPolicy", "Update", idOrNil(op.Resource())
}

func (x *editRequestPolicyExecutor) Validate(op model.Operation) error {
	in := op.EditRequestPolicy
	if in == nil {
		return apierr.New(apierr.Validation, "edit request policy operation missing payload")
	}
	existing, ok := x.repos.RequestPolicies.Get(in.PolicyID)
	if !ok {
		return apierr.NotFoundf("request policy", in.PolicyID.String())
	}
	if in.Specifier != nil {
		existing.Specifier = *in.Specifier
	}
	if in.Rule != nil {
		existing.Rule = *in.Rule
	}
	resolve := resolveNamedRule(x.repos)
	if err := existing.Validate(resolve); err != nil {
		return err
	}
	return policy.ValidateRuleGraph(resolve, existing.Rule)
}

func (x *editRequestPolicyExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	in := req.Operation.EditRequestPolicy
	existing, ok := x.repos.RequestPolicies.Get(in.PolicyID)
	if !ok {
		return nil, apierr.NotFoundf("request policy", in.PolicyID.String())
	}
	if in.Specifier != nil {
		existing.Specifier = *in.Specifier
	}
	if in.Rule != nil {
		existing.Rule = *in.Rule
	}
	return nil, x.repos.RequestPolicies.Insert(existing)
}

type removeRequestPolicyExecutor struct {
	repos *repository.Repos
}

func (x *removeRequestPolicyExecutor) Authorize(op model.Operation) (string, string, *ids.ID) {
	return "RequestPolicy", "Delete", idOrNil(op.Resource())
}

func (x *removeRequestPolicyExecutor) Validate(op model.Operation) error {
	in := op.RemoveRequestPolicy
	if in == nil {
		return apierr.New(apierr.Validation, "remove request policy operation missing payload")
	}
	if !x.repos.RequestPolicies.Exists(in.ID) {
		return apierr.NotFoundf("request policy", in.ID.String())
	}
	return nil
}

func (x *removeRequestPolicyExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	return nil, x.repos.RequestPolicies.Remove(req.Operation.RemoveRequestPolicy.ID)
}

type addNamedRuleExecutor struct {
	repos *repository.Repos
}

func (x *addNamedRuleExecutor) Authorize(model.Operation) (string, string, *ids.ID) {
	return "NamedRule", "Create", nil
}

func (x *addNamedRuleExecutor) Validate(op model.Operation) error {
	in := op.AddNamedRule
	if in == nil {
		return apierr.New(apierr.Validation, "add named rule operation missing payload")
	}
	n := model.NamedRule{Name: in.Name, Description: in.Description, Rule: in.Rule}
	if err := n.Validate(); err != nil {
		return err
	}
	return policy.ValidateRuleGraph(resolveNamedRule(x.repos), in.Rule)
}

func (x *addNamedRuleExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	in := req.Operation.AddNamedRule
	n := model.NamedRule{ID: ids.New(), Name: in.Name, Description: in.Description, Rule: in.Rule}
	if err := x.repos.NamedRules.Insert(n); err != nil {
		return nil, err
	}
	return map[string]string{"named_rule_id": n.ID.String()}, nil
}

type editNamedRuleExecutor struct {
	repos *repository.Repos
}

func (x *editNamedRuleExecutor) Authorize(op model.Operation) (string, string, *ids.ID) {
	return "NamedRule", "Update", idOrNil(op.Resource())
}

func (x *editNamedRuleExecutor) Validate(op model.Operation) error {
	in := op.EditNamedRule
	if in == nil {
		return apierr.New(apierr.Validation, "edit named rule operation missing payload")
	}
	existing, ok := x.repos.NamedRules.Get(in.RuleID)
	if !ok {
		return apierr.NotFoundf("named rule", in.RuleID.String())
	}
	if in.Name != nil {
		existing.Name = *in.Name
	}
	if in.Description != nil {
		existing.Description = *in.Description
	}
	if in.Rule != nil {
		existing.Rule = *in.Rule
	}
	if err := existing.Validate(); err != nil {
		return err
	}
	stored := resolveNamedRule(x.repos)
	resolve := func(id ids.ID) (model.RuleTree, bool) {
		if id == existing.ID {
			return existing.Rule, true
		}
		return stored(id)
	}
	return policy.ValidateRuleGraph(resolve, existing.Rule)
}

func (x *editNamedRuleExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	in := req.Operation.EditNamedRule
	existing, ok := x.repos.NamedRules.Get(in.RuleID)
	if !ok {
		return nil, apierr.NotFoundf("named rule", in.RuleID.String())
	}
	if in.Name != nil {
		existing.Name = *in.Name
	}
	if in.Description != nil {
		existing.Description = *in.Description
	}
	if in.Rule != nil {
		existing.Rule = *in.Rule
	}
	return nil, x.repos.NamedRules.Insert(existing)
}

type removeNamedRuleExecutor struct {
	repos *repository.Repos
}

func (x *removeNamedRuleExecutor) Authorize(op model.Operation) (string, string, *ids.ID) {
	return "NamedRule", "Delete", idOrNil(op.Resource())
}

func (x *removeNamedRuleExecutor) Validate(op model.Operation) error {
	in := op.RemoveNamedRule
	if in == nil {
		return apierr.New(apierr.Validation, "remove named rule operation missing payload")
	}
	if !x.repos.NamedRules.Exists(in.ID) {
		return apierr.NotFoundf("named rule", in.ID.String())
	}
	if x.repos.RequestPolicies.ReferencesNamedRule(in.ID) {
		return apierr.New(apierr.Validation, "named rule is still referenced by a request policy")
	}
	return nil
}

func (x *removeNamedRuleExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	return nil, x.repos.NamedRules.Remove(req.Operation.RemoveNamedRule.ID)
}
