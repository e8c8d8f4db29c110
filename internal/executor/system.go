package executor

import (
	"context"

	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/repository"
)

// UpgraderHost is the host collaborator SystemUpgrade delegates to: the
// disaster-recovery-capable upgrader sibling service (spec.md §4.6:
// "delegate to the disaster-recovery-capable upgrader (§4.8) which
// performs stop -> install -> start on the target and notifies the station
// on failure"). Kept as its own narrow interface rather than reusing
// CanisterHost because the upgrade target is named by role ("station" or
// "upgrader"), not by canister id.
type UpgraderHost interface {
	Stop(ctx context.Context, target string) error
	Install(ctx context.Context, target string, module []byte, extraChunks *model.ModuleExtraChunks, arg []byte, mode model.ExternalCanisterInstallMode) error
	Start(ctx context.Context, target string) error
}

type systemUpgradeExecutor struct {
	host UpgraderHost
}

func (x *systemUpgradeExecutor) Authorize(model.Operation) (string, string, *ids.ID) {
	return "System", "Upgrade", nil
}

func (x *systemUpgradeExecutor) Validate(op model.Operation) error {
	in := op.SystemUpgrade
	if in == nil {
		return apierr.New(apierr.Validation, "system upgrade operation missing payload")
	}
	if in.Target != "station" && in.Target != "upgrader" {
		return apierr.Newf(apierr.Validation, "system upgrade target must be \"station\" or \"upgrader\", got %q", in.Target)
	}
	if len(in.Module) == 0 {
		return apierr.New(apierr.Validation, "system upgrade module bytes must not be empty")
	}
	switch in.Mode {
	case model.InstallModeInstall, model.InstallModeReinstall, model.InstallModeUpgrade:
	default:
		return apierr.Newf(apierr.Validation, "unknown install mode %q", in.Mode)
	}
	return nil
}

// Execute implements the stop -> install -> start sequence from spec.md
// §4.6. A failure at any step surfaces as the request's Failed(reason) —
// the engine, not this executor, is responsible for turning the returned
// error into that terminal state (spec.md §7: "executors convert adapter
// errors into Failed(reason) on the request and return Ok to the engine").
func (x *systemUpgradeExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	in := req.Operation.SystemUpgrade
	if err := x.host.Stop(ctx, in.Target); err != nil {
		return nil, err
	}
	if err := x.host.Install(ctx, in.Target, in.Module, in.ExtraChunks, in.Arg, in.Mode); err != nil {
		return nil, err
	}
	if err := x.host.Start(ctx, in.Target); err != nil {
		return nil, err
	}
	return map[string]string{"target": in.Target, "mode": string(in.Mode)}, nil
}

type manageSystemInfoExecutor struct {
	repos *repository.SystemInfo
}

func (x *manageSystemInfoExecutor) Authorize(model.Operation) (string, string, *ids.ID) {
	return "System", "ManageSystemInfo", nil
}

func (x *manageSystemInfoExecutor) Validate(op model.Operation) error {
	in := op.ManageSystemInfo
	if in == nil {
		return apierr.New(apierr.Validation, "manage system info operation missing payload")
	}
	if in.DisplayName == nil && in.UpgraderPrincipal == nil {
		return apierr.New(apierr.Validation, "manage system info operation must change at least one field")
	}
	if in.DisplayName != nil {
		if err := validateLenInline("system display name", *in.DisplayName, model.UserNameMin, model.UserNameMax); err != nil {
			return err
		}
	}
	return nil
}

func (x *manageSystemInfoExecutor) Execute(_ context.Context, req model.Request) (map[string]string, error) {
	in := req.Operation.ManageSystemInfo
	info := x.repos.Get()
	if in.DisplayName != nil {
		info.DisplayName = *in.DisplayName
	}
	if in.UpgraderPrincipal != nil {
		info.UpgraderPrincipal = *in.UpgraderPrincipal
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	if err := x.repos.Set(info); err != nil {
		return nil, err
	}
	return map[string]string{"display_name": info.DisplayName}, nil
}
