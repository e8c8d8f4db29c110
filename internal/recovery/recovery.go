// Package recovery implements the C8 disaster-recovery committee from
// spec.md §4.8: the upgrader sibling service's quorum-gated facility for
// coercing a station back to a known-good state when the station itself is
// unresponsive. Grounded on original_source/core/upgrader's recovery state
// machine; the committee/quorum shape mirrors spec.md §4.4's
// Quorum(UserSpecifier, n) evaluation the same way C4 counts eligible
// votes, but against a fixed committee instead of a RuleTree.
package recovery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
)

// OpKind tags the disaster-recovery operation variant (spec.md §6
// upgrader wire interface).
type OpKind string

const (
	OpInstallCode OpKind = "InstallCode"
	OpSnapshot    OpKind = "Snapshot"
	OpRestore     OpKind = "Restore"
	OpPrune       OpKind = "Prune"
	OpStart       OpKind = "Start"
)

// InstallMode mirrors model.ExternalCanisterInstallMode without importing
// the station's model package — the upgrader is a sibling service, not a
// station-internal component (spec.md §1: "the companion upgrader").
type InstallMode string

const (
	InstallModeInstall   InstallMode = "install"
	InstallModeReinstall InstallMode = "reinstall"
	InstallModeUpgrade   InstallMode = "upgrade"
)

// PruneTarget is the Prune op's sub-variant (spec.md §6: "Prune{Snapshot(id)|ChunkStore|State}").
type PruneTarget struct {
	Kind       string // "Snapshot", "ChunkStore", "State"
	SnapshotID string // meaningful only when Kind == "Snapshot"
}

// Op is the disaster-recovery operation a quorum of committee members must
// agree on byte-for-byte (by content hash) before it executes.
type Op struct {
	Kind OpKind

	// OpInstallCode
	ModuleHash string // hex-encoded hash of the wasm module bytes
	ArgHash    string // hex-encoded hash of the install argument bytes
	Mode       InstallMode

	// OpSnapshot
	ReplaceSnapshotID string // optional; empty means "take a new snapshot"
	Force             bool

	// OpRestore
	RestoreSnapshotID string

	// OpPrune
	Prune PruneTarget
}

// ContentHash is the dedup/quorum key: distinct committee members must
// submit requests whose Op hashes identically for a quorum to form (spec.md
// §4.8: "if quorum distinct committee members submit requests with the
// same content hash ... the committee enters InProgress").
func (op Op) ContentHash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%t|%s|%s|%s", op.Kind, op.ModuleHash, op.ArgHash, op.Mode,
		op.ReplaceSnapshotID, op.Force, op.RestoreSnapshotID, op.Prune.Kind, op.Prune.SnapshotID)
	return hex.EncodeToString(h.Sum(nil))
}

// Committee is the fixed set of principals permitted to submit recovery
// requests and the count of matching submissions required to act.
type Committee struct {
	Users  []ids.Principal
	Quorum int
}

func (c Committee) isMember(p ids.Principal) bool {
	for _, u := range c.Users {
		if u == p {
			return true
		}
	}
	return false
}

// StatusKind is the committee's recovery_status (spec.md §4.8).
type StatusKind string

const (
	StatusIdle       StatusKind = "Idle"
	StatusInProgress StatusKind = "InProgress"
)

// Result records the outcome of the most recently executed recovery op.
type Result struct {
	Success   bool
	Reason    string
	Op        Op
	Timestamp time.Time
}

// Submission is one committee member's vote for an Op.
type Submission struct {
	Member      ids.Principal
	Op          Op
	SubmittedAt time.Time
}

// LogEntryType tags the structured log entries the committee emits
// (spec.md §4.8: "every submission, start, and outcome produces a
// structured LogEntry with typed entry_type and JSON payload").
type LogEntryType string

const (
	LogSubmitted LogEntryType = "recovery_submitted"
	LogStarted   LogEntryType = "recovery_started"
	LogCompleted LogEntryType = "recovery_completed"
	LogExpired   LogEntryType = "recovery_expired"
)

// LogEntry is one structured audit record.
type LogEntry struct {
	EntryType LogEntryType
	Timestamp time.Time
	Payload   map[string]string
}

// Host is the operation-execution capability the committee drives once a
// quorum forms (spec.md §4.6's canister-management facility, reused here
// since the upgrader targets the same host platform as C6's
// ChangeExternalCanister executor).
type Host interface {
	InstallCode(ctx context.Context, moduleHash, argHash string, mode InstallMode) error
	Snapshot(ctx context.Context, replace string, force bool) (snapshotID string, err error)
	Restore(ctx context.Context, snapshotID string) error
	Prune(ctx context.Context, target PruneTarget) error
	Start(ctx context.Context) error
}

// Committee state plus its quorum-matching recovery_requests, managed by
// the upgrader process (spec.md §4.8). Not persisted through C1's stablekv
// layer: the upgrader is explicitly the fallback for when the station's own
// stable memory cannot be trusted, so it keeps its own small in-process
// state rather than depending on the station's storage stack.
type Controller struct {
	committee Committee
	host      Host
	expiry    time.Duration
	log       *logrus.Entry

	status       StatusKind
	inProgressOp Op
	startedAt    time.Time
	requests     map[ids.Principal]Submission
	lastResult   *Result
	logs         []LogEntry
}

// New builds a Controller bound to committee and host, with expiry bounding
// how long an InProgress recovery may run before being force-cleared
// (spec.md §4.8: "if InProgress persists past an expiration window without
// completion it is cleared with an Expired log entry").
func New(committee Committee, host Host, expiry time.Duration, log *logrus.Entry) *Controller {
	return &Controller{
		committee: committee,
		host:      host,
		expiry:    expiry,
		log:       log.WithField("component", "recovery"),
		status:    StatusIdle,
		requests:  make(map[ids.Principal]Submission),
	}
}

// SetCommittee replaces the committee wholesale (wire method
// set_disaster_recovery_committee, spec.md §6). Pending requests from
// members no longer on the committee are dropped.
func (c *Controller) SetCommittee(committee Committee) {
	c.committee = committee
	for p := range c.requests {
		if !committee.isMember(p) {
			delete(c.requests, p)
		}
	}
}

// IsCommitteeMember implements the is_committee_member(p) wire query.
func (c *Controller) IsCommitteeMember(p ids.Principal) bool {
	return c.committee.isMember(p)
}

// GetState implements the get_disaster_recovery_state wire query.
type State struct {
	Status     StatusKind
	InProgress Op
	LastResult *Result
}

func (c *Controller) GetState() State {
	return State{Status: c.status, InProgress: c.inProgressOp, LastResult: c.lastResult}
}

// Sweep runs the expiration check independent of a submission call, for a
// periodic background loop that must clear a stuck InProgress recovery
// even if no further request_disaster_recovery calls arrive (spec.md
// §4.8).
func (c *Controller) Sweep(now time.Time) {
	c.expireIfDue(now)
}

// GetLogs implements the get_logs wire query.
func (c *Controller) GetLogs() []LogEntry {
	out := make([]LogEntry, len(c.logs))
	copy(out, c.logs)
	return out
}

func (c *Controller) appendLog(entryType LogEntryType, now time.Time, payload map[string]string) {
	c.logs = append(c.logs, LogEntry{EntryType: entryType, Timestamp: now, Payload: payload})
}

// RequestDisasterRecovery implements the request_disaster_recovery(op) wire
// call and the quorum-formation rule from spec.md §4.8: only committee
// members may submit; once `quorum` distinct members agree on the same
// content hash, recovery starts synchronously.
func (c *Controller) RequestDisasterRecovery(ctx context.Context, caller ids.Principal, op Op, now time.Time) error {
	c.expireIfDue(now)

	if !c.committee.isMember(caller) {
		return apierr.New(apierr.Forbidden, "caller is not a disaster-recovery committee member")
	}
	if c.status == StatusInProgress {
		return apierr.New(apierr.Duplicate, "a recovery is already in progress")
	}

	c.requests[caller] = Submission{Member: caller, Op: op, SubmittedAt: now}
	c.appendLog(LogSubmitted, now, map[string]string{
		"member":      caller.String(),
		"content_hash": op.ContentHash(),
	})

	hash := op.ContentHash()
	matching := 0
	for _, sub := range c.requests {
		if sub.Op.ContentHash() == hash {
			matching++
		}
	}
	if matching < c.committee.Quorum {
		return nil
	}

	return c.start(ctx, op, now)
}

func (c *Controller) start(ctx context.Context, op Op, now time.Time) error {
	c.status = StatusInProgress
	c.inProgressOp = op
	c.startedAt = now
	c.appendLog(LogStarted, now, map[string]string{"content_hash": op.ContentHash()})

	err := c.execute(ctx, op)

	result := Result{Success: err == nil, Op: op, Timestamp: now}
	payload := map[string]string{"content_hash": op.ContentHash(), "success": boolString(err == nil)}
	if err != nil {
		result.Reason = err.Error()
		payload["reason"] = err.Error()
	}
	c.lastResult = &result
	c.appendLog(LogCompleted, now, payload)

	c.status = StatusIdle
	c.requests = make(map[ids.Principal]Submission)
	return err
}

func (c *Controller) execute(ctx context.Context, op Op) error {
	switch op.Kind {
	case OpInstallCode:
		return c.host.InstallCode(ctx, op.ModuleHash, op.ArgHash, op.Mode)
	case OpSnapshot:
		_, err := c.host.Snapshot(ctx, op.ReplaceSnapshotID, op.Force)
		return err
	case OpRestore:
		return c.host.Restore(ctx, op.RestoreSnapshotID)
	case OpPrune:
		return c.host.Prune(ctx, op.Prune)
	case OpStart:
		return c.host.Start(ctx)
	default:
		return apierr.Newf(apierr.Validation, "unknown disaster-recovery op kind %q", op.Kind)
	}
}

// expireIfDue clears a stuck InProgress recovery past its expiration window
// (spec.md §4.8), logging an Expired entry and discarding the stale
// requests so a fresh quorum can form.
func (c *Controller) expireIfDue(now time.Time) {
	if c.status != StatusInProgress {
		return
	}
	if now.Sub(c.startedAt) < c.expiry {
		return
	}
	c.appendLog(LogExpired, now, map[string]string{"content_hash": c.inProgressOp.ContentHash()})
	c.status = StatusIdle
	c.inProgressOp = Op{}
	c.requests = make(map[ids.Principal]Submission)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
