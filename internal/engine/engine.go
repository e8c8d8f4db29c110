// Package engine implements the C5 request lifecycle state machine from
// spec.md §4.5: request creation, approval intake, scheduled execution,
// expiration sweeping, and cold-start reconciliation.
package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/permission"
	"orbit-station/internal/policy"
	"orbit-station/internal/repository"
)

// Engine drives Request through the lifecycle in spec.md §4.5. It holds no
// mutable state beyond what the repositories already persist — every
// method re-derives its decision from stable state, matching §9's "no
// in-memory cyclic ownership" / "global mutable state" design notes.
type Engine struct {
	repos     *repository.Repos
	perm      *permission.Engine
	eval      *policy.Evaluator
	scheduler Scheduler
	executors map[model.OperationKind]Executor
	expiry    time.Duration
	log       *logrus.Entry
}

func New(repos *repository.Repos, perm *permission.Engine, eval *policy.Evaluator, scheduler Scheduler, defaultExpiry time.Duration, log *logrus.Entry) *Engine {
	return &Engine{
		repos:     repos,
		perm:      perm,
		eval:      eval,
		scheduler: scheduler,
		executors: make(map[model.OperationKind]Executor),
		expiry:    defaultExpiry,
		log:       log.WithField("component", "engine"),
	}
}

// RegisterExecutor wires the C6 executor for one operation kind. Called
// once per kind at startup before any request traffic is accepted.
func (e *Engine) RegisterExecutor(kind model.OperationKind, x Executor) {
	e.executors[kind] = x
}

func (e *Engine) authorize(caller ids.Principal, resource, action string, resourceID *ids.ID) error {
	if resourceID == nil {
		return e.perm.RequireWildcard(caller, resource, action)
	}
	return e.perm.Require(caller, resource, action, resourceID)
}

// CreateRequest implements spec.md §4.5's "create" transition: authorize,
// validate, persist as Created, attach the proposer's implicit approval if
// eligible, then run evaluation.
func (e *Engine) CreateRequest(caller ids.Principal, op model.Operation, title, summary string, plan model.ExecutionPlan, now time.Time) (model.Request, error) {
	x, ok := e.executors[op.Kind]
	if !ok {
		return model.Request{}, apierr.Newf(apierr.Validation, "no executor registered for operation kind %s", op.Kind)
	}

	resource, action, resourceID := x.Authorize(op)
	if err := e.authorize(caller, resource, action, resourceID); err != nil {
		return model.Request{}, err
	}

	if err := x.Validate(op); err != nil {
		return model.Request{}, err
	}

	proposer, ok := e.repos.Users.GetByIdentity(caller)
	if !ok {
		return model.Request{}, apierr.New(apierr.Unauthorized, "caller does not resolve to a known user")
	}

	req := model.Request{
		ID:                        ids.New(),
		Title:                     title,
		Summary:                   summary,
		RequestedBy:               proposer.ID,
		Status:                    model.RequestStatus{Kind: model.StatusCreated},
		Operation:                 op,
		ExpirationDt:              now.Add(e.expiry),
		ExecutionPlan:             plan,
		CreatedTimestamp:          now,
		LastModificationTimestamp: now,
	}
	if err := req.Validate(); err != nil {
		return model.Request{}, err
	}

	if eligible := e.eval.EligibleApprovers(req); eligible.Contains(proposer.ID) {
		req = req.WithApproval(model.Approval{ApproverID: proposer.ID, Decision: model.DecisionApproved, DecidedAt: now})
	}

	if err := e.repos.Requests.Insert(req); err != nil {
		return model.Request{}, err
	}

	return e.runEvaluation(req, now)
}

// SubmitApproval implements spec.md §4.5's "approval intake" transition.
func (e *Engine) SubmitApproval(caller ids.Principal, requestID ids.ID, decision model.ApprovalDecision, reason string, now time.Time) (model.Request, error) {
	req, ok := e.repos.Requests.Get(requestID)
	if !ok {
		return model.Request{}, apierr.NotFoundf("request", requestID.String())
	}

	if expired, req2, err := e.expireIfDue(req, now); err != nil {
		return model.Request{}, err
	} else if expired {
		return model.Request{}, apierr.New(apierr.RequestExpired, "request has expired")
	} else {
		req = req2
	}

	if req.Status.Terminal() {
		return model.Request{}, apierr.New(apierr.RequestAlreadyDecided, "request has already reached a terminal state")
	}

	if err := e.authorize(caller, "Request", "Approve", &requestID); err != nil {
		return model.Request{}, err
	}

	approver, ok := e.repos.Users.GetByIdentity(caller)
	if !ok {
		return model.Request{}, apierr.New(apierr.Unauthorized, "caller does not resolve to a known user")
	}
	eligible := e.eval.EligibleApprovers(req)
	if !eligible.Contains(approver.ID) {
		return model.Request{}, apierr.New(apierr.Forbidden, "caller is not an eligible approver for this request")
	}

	req = req.WithApproval(model.Approval{ApproverID: approver.ID, Decision: decision, StatusReason: reason, DecidedAt: now})
	req.LastModificationTimestamp = now
	if err := e.repos.Requests.Insert(req); err != nil {
		return model.Request{}, err
	}

	return e.runEvaluation(req, now)
}

// Cancel implements spec.md §4.5's "cancel" transition: only legal while
// Created.
func (e *Engine) Cancel(caller ids.Principal, requestID ids.ID, reason string, now time.Time) (model.Request, error) {
	req, ok := e.repos.Requests.Get(requestID)
	if !ok {
		return model.Request{}, apierr.NotFoundf("request", requestID.String())
	}
	if req.Status.Kind != model.StatusCreated {
		return model.Request{}, apierr.New(apierr.RequestAlreadyDecided, "request can only be cancelled while Created")
	}
	if err := e.authorize(caller, "Request", "Cancel", &requestID); err != nil {
		return model.Request{}, err
	}
	req.Status = model.RequestStatus{Kind: model.StatusCancelled, Reason: reason}
	req.LastModificationTimestamp = now
	if err := e.repos.Requests.Insert(req); err != nil {
		return model.Request{}, err
	}
	return req, nil
}

// runEvaluation implements spec.md §4.5's "evaluation" transition.
func (e *Engine) runEvaluation(req model.Request, now time.Time) (model.Request, error) {
	if req.Status.Kind != model.StatusCreated {
		// Already past Created (e.g. a stale re-evaluation call); no-op per
		// the idempotence rule in spec.md §4.5.
		return req, nil
	}

	result, _, err := e.eval.Evaluate(req)
	if err != nil {
		return model.Request{}, err
	}

	switch result {
	case policy.Approved:
		scheduledAt := now
		if req.ExecutionPlan.Kind == model.ExecuteScheduled {
			scheduledAt = req.ExecutionPlan.At
		}
		req.Status = model.RequestStatus{Kind: model.StatusApproved, ScheduledAt: scheduledAt}
		req.LastModificationTimestamp = now
		if err := e.repos.Requests.Insert(req); err != nil {
			return model.Request{}, err
		}
		e.scheduleTimer(req.ID, scheduledAt)
		// Re-read: a synchronous-by-construction Scheduler (e.g. an
		// immediate-fire test double, or a real scheduler whose delay
		// already elapsed) may have already driven the request through
		// Processing to Completed/Failed before this call returns.
		if fresh, ok := e.repos.Requests.Get(req.ID); ok {
			return fresh, nil
		}
		return req, nil

	case policy.Rejected:
		req.Status = model.RequestStatus{Kind: model.StatusRejected}
		req.LastModificationTimestamp = now
		if err := e.repos.Requests.Insert(req); err != nil {
			return model.Request{}, err
		}
		return req, nil

	default: // Pending
		return req, nil
	}
}

func (e *Engine) scheduleTimer(requestID ids.ID, at time.Time) {
	e.scheduler.Schedule(at, func() {
		if err := e.FireTimer(context.Background(), requestID, time.Now()); err != nil {
			e.log.WithError(err).WithField("request_id", requestID.String()).Error("timer fire failed")
		}
	})
}

// FireTimer implements spec.md §4.5's "timer fires at scheduled_at"
// transition plus "executor returns Ok/Err", guarded by the persisted
// Processing marker so a retry never double-executes (§4.5 idempotence,
// §5 "persist a Processing marker before awaiting").
func (e *Engine) FireTimer(ctx context.Context, requestID ids.ID, now time.Time) error {
	req, ok := e.repos.Requests.Get(requestID)
	if !ok {
		return apierr.NotFoundf("request", requestID.String())
	}
	if req.Status.Kind != model.StatusApproved {
		// Already Processing/terminal/cancelled: no-op (idempotent retry).
		return nil
	}

	req.Status = model.RequestStatus{Kind: model.StatusProcessing}
	req.LastModificationTimestamp = now
	if err := e.repos.Requests.Insert(req); err != nil {
		return err
	}

	x, ok := e.executors[req.Operation.Kind]
	if !ok {
		return e.failRequest(req, "no executor registered for operation kind "+string(req.Operation.Kind), now)
	}

	if _, err := x.Execute(ctx, req); err != nil {
		return e.failRequest(req, err.Error(), now)
	}

	req.Status = model.RequestStatus{Kind: model.StatusCompleted, CompletedAt: now}
	req.LastModificationTimestamp = now
	return e.repos.Requests.Insert(req)
}

func (e *Engine) failRequest(req model.Request, reason string, now time.Time) error {
	req.Status = model.RequestStatus{Kind: model.StatusFailed, Reason: reason}
	req.LastModificationTimestamp = now
	return e.repos.Requests.Insert(req)
}

// expireIfDue lazily applies spec.md §4.5's expiration sweep to a single
// request read on the synchronous path (approval/cancel), so a caller
// never observes a stale Created request past its expiration even if the
// background sweeper hasn't run yet.
func (e *Engine) expireIfDue(req model.Request, now time.Time) (expired bool, updated model.Request, err error) {
	if req.Status.Kind != model.StatusCreated || !now.After(req.ExpirationDt) {
		return false, req, nil
	}
	req.Status = model.RequestStatus{Kind: model.StatusFailed, Reason: "expired"}
	req.LastModificationTimestamp = now
	if err := e.repos.Requests.Insert(req); err != nil {
		return false, model.Request{}, err
	}
	return true, req, nil
}

// Sweep implements the background expiration sweeper (spec.md §4.5, §9:
// "a range scan on the RequestExpiration index to process only due
// requests, not a full list").
func (e *Engine) Sweep(now time.Time) (int, error) {
	due := e.repos.Requests.ListDueForExpiration(now.UnixNano())
	count := 0
	for _, req := range due {
		if req.Status.Kind != model.StatusCreated {
			continue
		}
		if expired, _, err := e.expireIfDue(req, now); err != nil {
			return count, err
		} else if expired {
			count++
		}
	}
	return count, nil
}

// Reconcile implements spec.md §4.5's cold-start reconciliation: requests
// found Processing are moved to Failed("interrupted") (§8 scenario S5),
// and Approved requests are rescheduled from their stored ScheduledAt.
func (e *Engine) Reconcile(now time.Time) error {
	for _, req := range e.repos.Requests.ListProcessing() {
		if err := e.failRequest(req, "interrupted", now); err != nil {
			return err
		}
	}
	for _, req := range e.repos.Requests.ListApprovedForColdStartRescheduling() {
		e.scheduleTimer(req.ID, req.Status.ScheduledAt)
	}
	if _, err := e.Sweep(now); err != nil {
		return err
	}
	return nil
}
