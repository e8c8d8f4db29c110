package policy

import (
	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
)

// ValidateRuleGraph implements spec.md §4.4's save-time cycle check: "the
// directed graph of NamedRule references must be acyclic ... reject cycles
// at save time" (§3, §4.4, §8 invariant 6b). resolveNamedRule looks up a
// NamedRule's rule tree by id — it must see the graph as it will exist
// after the in-flight save, so callers validating an edit pass a resolver
// that returns the new tree for the rule being edited.
func ValidateRuleGraph(resolveNamedRule func(ids.ID) (model.RuleTree, bool), root model.RuleTree) error {
	return validateGraphNode(resolveNamedRule, root, map[ids.ID]bool{})
}

func validateGraphNode(resolve func(ids.ID) (model.RuleTree, bool), node model.RuleTree, visited map[ids.ID]bool) error {
	if node.Kind == model.RuleNamedRule {
		if visited[node.NamedRuleID] {
			return apierr.Newf(apierr.Validation, "cyclic named rule reference detected at %s", node.NamedRuleID)
		}
		tree, ok := resolve(node.NamedRuleID)
		if !ok {
			return apierr.Newf(apierr.Validation, "referenced named rule %s does not exist", node.NamedRuleID)
		}
		next := make(map[ids.ID]bool, len(visited)+1)
		for k := range visited {
			next[k] = true
		}
		next[node.NamedRuleID] = true
		return validateGraphNode(resolve, tree, next)
	}
	for _, c := range node.Children {
		if err := validateGraphNode(resolve, c, visited); err != nil {
			return err
		}
	}
	return nil
}
