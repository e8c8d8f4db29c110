package model

import (
	"time"

	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
)

// RequestStatusKind tags the Request lifecycle state (spec.md §4.5).
type RequestStatusKind string

const (
	StatusCreated    RequestStatusKind = "Created"
	StatusApproved   RequestStatusKind = "Approved"
	StatusScheduled  RequestStatusKind = "Scheduled"
	StatusProcessing RequestStatusKind = "Processing"
	StatusCompleted  RequestStatusKind = "Completed"
	StatusFailed     RequestStatusKind = "Failed"
	StatusRejected   RequestStatusKind = "Rejected"
	StatusCancelled  RequestStatusKind = "Cancelled"
)

// RequestStatus carries the payload a handful of states need (spec.md
// §4.5: Scheduled(t), Failed(reason), Cancelled(reason?)).
type RequestStatus struct {
	Kind        RequestStatusKind
	ScheduledAt time.Time
	Reason      string
	CompletedAt time.Time
}

// terminal reports whether the status can never transition further (spec.md
// §8 invariant 3: "Completed and Rejected are terminal").
func (s RequestStatus) Terminal() bool {
	switch s.Kind {
	case StatusCompleted, StatusRejected, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ApprovalDecision is the caller's vote on a Request (spec.md §3).
type ApprovalDecision string

const (
	DecisionApproved ApprovalDecision = "Approved"
	DecisionRejected ApprovalDecision = "Rejected"
)

// Approval is one user's vote (spec.md §3).
type Approval struct {
	ApproverID   ids.ID
	Decision     ApprovalDecision
	StatusReason string
	DecidedAt    time.Time
}

// ExecutionPlanKind tags when an approved request executes (spec.md §3).
type ExecutionPlanKind string

const (
	ExecuteImmediate ExecutionPlanKind = "Immediate"
	ExecuteScheduled ExecutionPlanKind = "Scheduled"
)

// ExecutionPlan says when an approved request should run.
type ExecutionPlan struct {
	Kind RequestExecutionKind
	At   time.Time // meaningful only when Kind == ExecuteScheduled
}

// RequestExecutionKind is an alias kept distinct from ExecutionPlanKind's
// package-level constants to avoid a naming collision while reading clearly
// at call sites (ExecutionPlan{Kind: ExecuteImmediate}).
type RequestExecutionKind = ExecutionPlanKind

// Request is a proposed mutation to the station model, subject to approval
// (spec.md §3).
type Request struct {
	ID                        ids.ID
	Title                     string
	Summary                   string
	RequestedBy               ids.ID
	Status                    RequestStatus
	Operation                 Operation
	Approvals                 []Approval
	ExpirationDt              time.Time
	ExecutionPlan             ExecutionPlan
	CreatedTimestamp          time.Time
	LastModificationTimestamp time.Time
}

// Validate enforces the Request-level invariants independent of repository
// state (title bounds, summary length).
func (r Request) Validate() error {
	if err := validateLen("request title", r.Title, UserNameMin, UserNameMax); err != nil {
		return err
	}
	if len(r.Summary) > MetadataValueMax*4 {
		return apierr.New(apierr.Validation, "request summary too long")
	}
	return nil
}

// ApprovalByUser returns the user's current vote, if any.
func (r Request) ApprovalByUser(userID ids.ID) (Approval, bool) {
	for _, a := range r.Approvals {
		if a.ApproverID == userID {
			return a, true
		}
	}
	return Approval{}, false
}

// WithApproval returns a copy of r with userID's vote set/replaced
// (idempotent per spec.md §8: "submitting the same approval decision twice
// ... leaves exactly one approval from that user with the latest reason").
func (r Request) WithApproval(a Approval) Request {
	out := r
	out.Approvals = make([]Approval, 0, len(r.Approvals)+1)
	replaced := false
	for _, existing := range r.Approvals {
		if existing.ApproverID == a.ApproverID {
			out.Approvals = append(out.Approvals, a)
			replaced = true
			continue
		}
		out.Approvals = append(out.Approvals, existing)
	}
	if !replaced {
		out.Approvals = append(out.Approvals, a)
	}
	return out
}
