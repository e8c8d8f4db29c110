package executor

import (
	"context"

	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
)

// CanisterHost is the host platform's canister-management facility
// (spec.md §4.6: "drive the host's canister-management facility"). The
// station never manages canister lifecycle itself — it only records the
// request and delegates to whatever implements this on the deployment
// platform, mirroring how C7's Adapter keeps blockchain I/O behind a narrow
// interface instead of embedding a client library in the executor.
type CanisterHost interface {
	Create(ctx context.Context, name string) (canisterID ids.ID, err error)
	ClearChunkStore(ctx context.Context, canisterID ids.ID) error
	UploadChunk(ctx context.Context, canisterID ids.ID, chunk []byte) (chunkHash string, err error)
	InstallCode(ctx context.Context, canisterID ids.ID, module, arg []byte, mode model.ExternalCanisterInstallMode) error
	// InstallChunkedCode finishes the chunked install path: chunkAssetIDs
	// names, in order, the asset-store entries the host must fetch and
	// re-upload as the remaining chunks after the base module (already
	// uploaded via UploadChunk) — spec.md §176.
	InstallChunkedCode(ctx context.Context, canisterID ids.ID, baseModuleHash string, chunkAssetIDs []ids.ID, arg []byte, mode model.ExternalCanisterInstallMode) error
	Configure(ctx context.Context, canisterID ids.ID, metadata model.Metadata) error
	Call(ctx context.Context, canisterID ids.ID, method string, arg []byte) ([]byte, error)
}

// installModule implements spec.md §176's chunked-vs-single-shot install
// branch, shared by ChangeExternalCanister and SystemUpgrade.
func installModule(ctx context.Context, host CanisterHost, canisterID ids.ID, module []byte, extraChunks *model.ModuleExtraChunks, arg []byte, mode model.ExternalCanisterInstallMode) error {
	if extraChunks == nil {
		return host.InstallCode(ctx, canisterID, module, arg, mode)
	}
	if err := host.ClearChunkStore(ctx, canisterID); err != nil {
		return err
	}
	baseHash, err := host.UploadChunk(ctx, canisterID, module)
	if err != nil {
		return err
	}
	return host.InstallChunkedCode(ctx, canisterID, baseHash, extraChunks.ChunkAssetIDs, arg, mode)
}

type changeExternalCanisterExecutor struct {
	host CanisterHost
}

func (x *changeExternalCanisterExecutor) Authorize(op model.Operation) (string, string, *ids.ID) {
	return "ExternalCanister", "Change", idOrNil(op.Resource())
}

func (x *changeExternalCanisterExecutor) Validate(op model.Operation) error {
	in := op.ChangeExternalCanister
	if in == nil {
		return apierr.New(apierr.Validation, "change external canister operation missing payload")
	}
	if len(in.Module) == 0 {
		return apierr.New(apierr.Validation, "module bytes must not be empty")
	}
	switch in.Mode {
	case model.InstallModeInstall, model.InstallModeReinstall, model.InstallModeUpgrade:
	default:
		return apierr.Newf(apierr.Validation, "unknown install mode %q", in.Mode)
	}
	return nil
}

func (x *changeExternalCanisterExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	in := req.Operation.ChangeExternalCanister
	if err := installModule(ctx, x.host, in.CanisterID, in.Module, in.ExtraChunks, in.Arg, in.Mode); err != nil {
		return nil, err
	}
	return map[string]string{"canister_id": in.CanisterID.String()}, nil
}

type createExternalCanisterExecutor struct {
	host CanisterHost
}

func (x *createExternalCanisterExecutor) Authorize(model.Operation) (string, string, *ids.ID) {
	return "ExternalCanister", "Create", nil
}

func (x *createExternalCanisterExecutor) Validate(op model.Operation) error {
	if op.CreateExternalCanister == nil {
		return apierr.New(apierr.Validation, "create external canister operation missing payload")
	}
	return validateLenInline("external canister name", op.CreateExternalCanister.Name, model.UserNameMin, model.UserNameMax)
}

func (x *createExternalCanisterExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	canisterID, err := x.host.Create(ctx, req.Operation.CreateExternalCanister.Name)
	if err != nil {
		return nil, err
	}
	return map[string]string{"canister_id": canisterID.String()}, nil
}

type configureExternalCanisterExecutor struct {
	host CanisterHost
}

func (x *configureExternalCanisterExecutor) Authorize(op model.Operation) (string, string, *ids.ID) {
	return "ExternalCanister", "Configure", idOrNil(op.Resource())
}

func (x *configureExternalCanisterExecutor) Validate(op model.Operation) error {
	in := op.ConfigureExternalCanister
	if in == nil {
		return apierr.New(apierr.Validation, "configure external canister operation missing payload")
	}
	return in.Metadata.Validate()
}

func (x *configureExternalCanisterExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	in := req.Operation.ConfigureExternalCanister
	return nil, x.host.Configure(ctx, in.CanisterID, in.Metadata)
}

type callExternalCanisterExecutor struct {
	host CanisterHost
}

func (x *callExternalCanisterExecutor) Authorize(op model.Operation) (string, string, *ids.ID) {
	return "ExternalCanister", "Call", idOrNil(op.Resource())
}

func (x *callExternalCanisterExecutor) Validate(op model.Operation) error {
	in := op.CallExternalCanister
	if in == nil {
		return apierr.New(apierr.Validation, "call external canister operation missing payload")
	}
	return validateLenInline("external canister method", in.Method, 1, model.UserNameMax)
}

func (x *callExternalCanisterExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	in := req.Operation.CallExternalCanister
	reply, err := x.host.Call(ctx, in.CanisterID, in.Method, in.Arg)
	if err != nil {
		return nil, err
	}
	return map[string]string{"reply_len": itoa(len(reply))}, nil
}
