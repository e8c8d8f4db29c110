package engine

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/permission"
	"orbit-station/internal/policy"
	"orbit-station/internal/repository"
)

// syncScheduler runs scheduled callbacks immediately and synchronously, so
// tests can assert post-timer state without racing a goroutine.
type syncScheduler struct{ fired []func() }

func (s *syncScheduler) Schedule(_ time.Time, fn func()) { s.fired = append(s.fired, fn); fn() }

// stubExecutor is a minimal Executor used to drive the state machine
// without depending on the concrete C6 executors.
type stubExecutor struct {
	resource, action string
	resourceIDFn     func(model.Operation) *ids.ID
	validateErr      error
	executeErr       error
	executed         int
}

func (x *stubExecutor) Authorize(op model.Operation) (string, string, *ids.ID) {
	var rid *ids.ID
	if x.resourceIDFn != nil {
		rid = x.resourceIDFn(op)
	}
	return x.resource, x.action, rid
}
func (x *stubExecutor) Validate(model.Operation) error { return x.validateErr }
func (x *stubExecutor) Execute(context.Context, model.Request) (map[string]string, error) {
	x.executed++
	return nil, x.executeErr
}

type testEnv struct {
	repos     *repository.Repos
	perm      *permission.Engine
	eval      *policy.Evaluator
	engine    *Engine
	scheduler *syncScheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	log := logrus.NewEntry(logrus.New())
	repos, err := repository.Open(dir, log)
	if err != nil {
		t.Fatalf("open repos: %v", err)
	}
	perm := permission.New(repos.Users, repos.Permissions)
	eval := policy.New(repos.Users, repos.AddressBook, repos.Assets, repos.NamedRules, repos.RequestPolicies)
	sched := &syncScheduler{}
	eng := New(repos, perm, eval, sched, 7*24*time.Hour, log)
	return &testEnv{repos: repos, perm: perm, eval: eval, engine: eng, scheduler: sched}
}

func allowEditAccountPublicCreate(t *testing.T, env *testEnv, accountID ids.ID) {
	t.Helper()
	if err := env.repos.Permissions.Insert(model.Permission{
		Resource: model.ResourceAction{Resource: "Account", Action: "Edit", ResourceID: model.SpecificResource(accountID)},
		Allow:    model.Allow{Scope: model.ScopePublic},
	}); err != nil {
		t.Fatalf("insert create permission: %v", err)
	}
	if err := env.repos.Permissions.Insert(model.Permission{
		Resource: model.ResourceAction{Resource: "Request", Action: "Approve", ResourceID: model.AnyResource()},
		Allow:    model.Allow{Scope: model.ScopePublic},
	}); err != nil {
		t.Fatalf("insert approve permission: %v", err)
	}
	if err := env.repos.Permissions.Insert(model.Permission{
		Resource: model.ResourceAction{Resource: "Request", Action: "Cancel", ResourceID: model.AnyResource()},
		Allow:    model.Allow{Scope: model.ScopePublic},
	}); err != nil {
		t.Fatalf("insert cancel permission: %v", err)
	}
}

func TestCreateRequestAutoApprovesEligibleProposer(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	u := model.User{ID: ids.New(), Identities: []ids.Principal{"proposer"}, Status: model.UserActive}
	if err := env.repos.Users.Insert(u); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	accountID := ids.New()
	allowEditAccountPublicCreate(t, env, accountID)

	if err := env.repos.RequestPolicies.Insert(model.RequestPolicy{
		ID:        ids.New(),
		Specifier: model.RequestSpecifier{Kind: model.SpecifierEditAccount, Resources: model.SpecificResourceIDs(accountID)},
		Rule:      model.Quorum(model.IDUsers(u.ID), 1),
	}); err != nil {
		t.Fatalf("insert policy: %v", err)
	}

	exec := &stubExecutor{resource: "Account", action: "Edit", resourceIDFn: func(op model.Operation) *ids.ID { id := op.EditAccount.AccountID; return &id }}
	env.engine.RegisterExecutor(model.SpecifierEditAccount, exec)

	op := model.Operation{Kind: model.SpecifierEditAccount, EditAccount: &model.EditAccountOperation{AccountID: accountID}}
	req, err := env.engine.CreateRequest("proposer", op, "title", "", model.ExecutionPlan{Kind: model.ExecuteImmediate}, now)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	if req.Status.Kind != model.StatusCompleted {
		t.Fatalf("expected immediate completion via auto-approval+timer, got %s", req.Status.Kind)
	}
	if exec.executed != 1 {
		t.Fatalf("expected executor to run exactly once, got %d", exec.executed)
	}

	stored, ok := env.repos.Requests.Get(req.ID)
	if !ok || stored.Status.Kind != model.StatusCompleted {
		t.Fatalf("expected stored request to be Completed, got %+v (ok=%v)", stored.Status, ok)
	}
}

func TestCreateRequestPendingWithoutEnoughApprovals(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()

	u1 := model.User{ID: ids.New(), Identities: []ids.Principal{"u1"}, Status: model.UserActive}
	u2 := model.User{ID: ids.New(), Identities: []ids.Principal{"u2"}, Status: model.UserActive}
	if err := env.repos.Users.Insert(u1); err != nil {
		t.Fatalf("insert u1: %v", err)
	}
	if err := env.repos.Users.Insert(u2); err != nil {
		t.Fatalf("insert u2: %v", err)
	}
	accountID := ids.New()
	allowEditAccountPublicCreate(t, env, accountID)
	if err := env.repos.RequestPolicies.Insert(model.RequestPolicy{
		ID:        ids.New(),
		Specifier: model.RequestSpecifier{Kind: model.SpecifierEditAccount, Resources: model.SpecificResourceIDs(accountID)},
		Rule:      model.Quorum(model.IDUsers(u1.ID, u2.ID), 2),
	}); err != nil {
		t.Fatalf("insert policy: %v", err)
	}
	exec := &stubExecutor{resource: "Account", action: "Edit", resourceIDFn: func(op model.Operation) *ids.ID { id := op.EditAccount.AccountID; return &id }}
	env.engine.RegisterExecutor(model.SpecifierEditAccount, exec)

	op := model.Operation{Kind: model.SpecifierEditAccount, EditAccount: &model.EditAccountOperation{AccountID: accountID}}
	req, err := env.engine.CreateRequest("u1", op, "title", "", model.ExecutionPlan{Kind: model.ExecuteImmediate}, now)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if req.Status.Kind != model.StatusCreated {
		t.Fatalf("expected Created (pending 2nd approval), got %s", req.Status.Kind)
	}

	updated, err := env.engine.SubmitApproval("u2", req.ID, model.DecisionApproved, "", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("submit approval: %v", err)
	}
	if updated.Status.Kind != model.StatusCompleted {
		t.Fatalf("expected Completed after 2nd approval, got %s", updated.Status.Kind)
	}
	if exec.executed != 1 {
		t.Fatalf("expected executor to run exactly once, got %d", exec.executed)
	}
}

func TestSubmitApprovalIdempotentReplacesVote(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	u1 := model.User{ID: ids.New(), Identities: []ids.Principal{"u1"}, Status: model.UserActive}
	u2 := model.User{ID: ids.New(), Identities: []ids.Principal{"u2"}, Status: model.UserActive}
	if err := env.repos.Users.Insert(u1); err != nil {
		t.Fatalf("insert u1: %v", err)
	}
	if err := env.repos.Users.Insert(u2); err != nil {
		t.Fatalf("insert u2: %v", err)
	}
	// A third eligible approver keeps the quorum reachable after u2's first
	// rejection (3 eligible - 1 rejection >= 2), so the request is still
	// open when u2 replaces the vote.
	u3 := model.User{ID: ids.New(), Identities: []ids.Principal{"u3"}, Status: model.UserActive}
	if err := env.repos.Users.Insert(u3); err != nil {
		t.Fatalf("insert u3: %v", err)
	}
	accountID := ids.New()
	allowEditAccountPublicCreate(t, env, accountID)
	if err := env.repos.RequestPolicies.Insert(model.RequestPolicy{
		ID:        ids.New(),
		Specifier: model.RequestSpecifier{Kind: model.SpecifierEditAccount, Resources: model.SpecificResourceIDs(accountID)},
		Rule:      model.Quorum(model.IDUsers(u1.ID, u2.ID, u3.ID), 2),
	}); err != nil {
		t.Fatalf("insert policy: %v", err)
	}
	exec := &stubExecutor{resource: "Account", action: "Edit", resourceIDFn: func(op model.Operation) *ids.ID { id := op.EditAccount.AccountID; return &id }}
	env.engine.RegisterExecutor(model.SpecifierEditAccount, exec)

	op := model.Operation{Kind: model.SpecifierEditAccount, EditAccount: &model.EditAccountOperation{AccountID: accountID}}
	req, err := env.engine.CreateRequest("u1", op, "title", "", model.ExecutionPlan{Kind: model.ExecuteImmediate}, now)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	if _, err := env.engine.SubmitApproval("u2", req.ID, model.DecisionRejected, "first", now); err != nil {
		t.Fatalf("submit first approval: %v", err)
	}
	updated, err := env.engine.SubmitApproval("u2", req.ID, model.DecisionApproved, "changed my mind", now)
	if err != nil {
		t.Fatalf("submit replacement approval: %v", err)
	}
	count := 0
	for _, a := range updated.Approvals {
		if a.ApproverID == u2.ID {
			count++
			if a.StatusReason != "changed my mind" {
				t.Fatalf("expected latest reason to win, got %q", a.StatusReason)
			}
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one approval from u2, got %d", count)
	}
}

func TestCancelOnlyLegalWhileCreated(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	u1 := model.User{ID: ids.New(), Identities: []ids.Principal{"u1"}, Status: model.UserActive}
	u2 := model.User{ID: ids.New(), Identities: []ids.Principal{"u2"}, Status: model.UserActive}
	if err := env.repos.Users.Insert(u1); err != nil {
		t.Fatalf("insert u1: %v", err)
	}
	if err := env.repos.Users.Insert(u2); err != nil {
		t.Fatalf("insert u2: %v", err)
	}
	accountID := ids.New()
	allowEditAccountPublicCreate(t, env, accountID)
	if err := env.repos.RequestPolicies.Insert(model.RequestPolicy{
		ID:        ids.New(),
		Specifier: model.RequestSpecifier{Kind: model.SpecifierEditAccount, Resources: model.SpecificResourceIDs(accountID)},
		Rule:      model.Quorum(model.IDUsers(u1.ID, u2.ID), 2), // u1's auto-approval alone leaves it Pending/Created
	}); err != nil {
		t.Fatalf("insert policy: %v", err)
	}
	exec := &stubExecutor{resource: "Account", action: "Edit", resourceIDFn: func(op model.Operation) *ids.ID { id := op.EditAccount.AccountID; return &id }}
	env.engine.RegisterExecutor(model.SpecifierEditAccount, exec)

	op := model.Operation{Kind: model.SpecifierEditAccount, EditAccount: &model.EditAccountOperation{AccountID: accountID}}
	req, err := env.engine.CreateRequest("u1", op, "title", "", model.ExecutionPlan{Kind: model.ExecuteImmediate}, now)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if req.Status.Kind != model.StatusCreated {
		t.Fatalf("expected Created, got %s", req.Status.Kind)
	}

	cancelled, err := env.engine.Cancel("u1", req.ID, "changed my mind", now)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status.Kind != model.StatusCancelled {
		t.Fatalf("expected Cancelled, got %s", cancelled.Status.Kind)
	}

	if _, err := env.engine.Cancel("u1", req.ID, "again", now); apierr.CodeOf(err) != apierr.RequestAlreadyDecided {
		t.Fatalf("expected RequestAlreadyDecided cancelling a terminal request, got %v", err)
	}
}

func TestReconcileFailsInterruptedProcessingRequests(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	req := model.Request{
		ID:                        ids.New(),
		Title:                     "stuck",
		Status:                    model.RequestStatus{Kind: model.StatusProcessing},
		Operation:                 model.Operation{Kind: model.SpecifierEditAccount, EditAccount: &model.EditAccountOperation{AccountID: ids.New()}},
		CreatedTimestamp:          now.Add(-time.Hour),
		LastModificationTimestamp: now.Add(-time.Hour),
		ExpirationDt:              now.Add(time.Hour),
	}
	if err := env.repos.Requests.Insert(req); err != nil {
		t.Fatalf("insert request: %v", err)
	}

	if err := env.engine.Reconcile(now); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	stored, ok := env.repos.Requests.Get(req.ID)
	if !ok {
		t.Fatalf("request disappeared")
	}
	if stored.Status.Kind != model.StatusFailed || stored.Status.Reason != "interrupted" {
		t.Fatalf("expected Failed(interrupted), got %+v", stored.Status)
	}
}

func TestSweepExpiresDueCreatedRequests(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	req := model.Request{
		ID:                        ids.New(),
		Title:                     "stale",
		Status:                    model.RequestStatus{Kind: model.StatusCreated},
		Operation:                 model.Operation{Kind: model.SpecifierEditAccount, EditAccount: &model.EditAccountOperation{AccountID: ids.New()}},
		CreatedTimestamp:          now.Add(-48 * time.Hour),
		LastModificationTimestamp: now.Add(-48 * time.Hour),
		ExpirationDt:              now.Add(-time.Hour),
	}
	if err := env.repos.Requests.Insert(req); err != nil {
		t.Fatalf("insert request: %v", err)
	}

	n, err := env.engine.Sweep(now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept request, got %d", n)
	}
	stored, ok := env.repos.Requests.Get(req.ID)
	if !ok || stored.Status.Kind != model.StatusFailed || stored.Status.Reason != "expired" {
		t.Fatalf("expected Failed(expired), got %+v (ok=%v)", stored.Status, ok)
	}
}
