package executor

import (
	"context"

	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/repository"
)

type addPermissionExecutor struct {
	repos *repository.Repos
}

func (x *addPermissionExecutor) Authorize(model.Operation) (string, string, *ids.ID) {
	return "Permission", "Update", nil
}

func (x *addPermissionExecutor) Validate(op model.Operation) error {
	if op.AddPermission == nil {
		return apierr.New(apierr.Validation, "add permission operation missing payload")
	}
	return validateAllowGroups(op.AddPermission.Allow, x.repos)
}

func (x *addPermissionExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	in := req.Operation.AddPermission
	p := model.Permission{Resource: in.Resource, Allow: in.Allow}
	return nil, x.repos.Permissions.Insert(p)
}

type editPermissionExecutor struct {
	repos *repository.Repos
}

func (x *editPermissionExecutor) Authorize(model.Operation) (string, string, *ids.ID) {
	return "Permission", "Update", nil
}

func (x *editPermissionExecutor) Validate(op model.Operation) error {
	if op.EditPermission == nil {
		return apierr.New(apierr.Validation, "edit permission operation missing payload")
	}
	return validateAllowGroups(op.EditPermission.Allow, x.repos)
}

func (x *editPermissionExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	in := req.Operation.EditPermission
	p := model.Permission{Resource: in.Resource, Allow: in.Allow}
	return nil, x.repos.Permissions.Insert(p)
}

func validateAllowGroups(allow model.Allow, repos *repository.Repos) error {
	switch allow.Scope {
	case model.ScopePublic, model.ScopeAuthenticated, model.ScopeRestricted:
	default:
		return apierr.Newf(apierr.Validation, "unknown permission scope %q", allow.Scope)
	}
	for g := range allow.UserGroups {
		if !repos.UserGroups.Exists(g) {
			return apierr.NotFoundf("user group", g.String())
		}
	}
	for u := range allow.Users {
		if !repos.Users.Exists(u) {
			return apierr.NotFoundf("user", u.String())
		}
	}
	return nil
}
