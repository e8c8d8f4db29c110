package executor

import (
	"context"

	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/repository"
)

type addUserGroupExecutor struct {
	repos *repository.Repos
}

func (x *addUserGroupExecutor) Authorize(model.Operation) (string, string, *ids.ID) {
	return "UserGroup", "Create", nil
}

func (x *addUserGroupExecutor) Validate(op model.Operation) error {
	if op.AddUserGroup == nil {
		return apierr.New(apierr.Validation, "add user group operation missing payload")
	}
	return model.UserGroup{Name: op.AddUserGroup.Name}.Validate()
}

func (x *addUserGroupExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	g := model.UserGroup{ID: ids.New(), Name: req.Operation.AddUserGroup.Name}
	if err := x.repos.UserGroups.Insert(g); err != nil {
		return nil, err
	}
	return map[string]string{"user_group_id": g.ID.String()}, nil
}

type editUserGroupExecutor struct {
	repos *repository.Repos
}

func (x *editUserGroupExecutor) Authorize(op model.Operation) (string, string, *ids.ID) {
	return "UserGroup", "Update", idOrNil(op.Resource())
}

func (x *editUserGroupExecutor) Validate(op model.Operation) error {
	in := op.EditUserGroup
	if in == nil {
		return apierr.New(apierr.Validation, "edit user group operation missing payload")
	}
	if !x.repos.UserGroups.Exists(in.GroupID) {
		return apierr.NotFoundf("user group", in.GroupID.String())
	}
	return model.UserGroup{Name: in.Name}.Validate()
}

func (x *editUserGroupExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	in := req.Operation.EditUserGroup
	g, ok := x.repos.UserGroups.Get(in.GroupID)
	if !ok {
		return nil, apierr.NotFoundf("user group", in.GroupID.String())
	}
	g.Name = in.Name
	if err := x.repos.UserGroups.Insert(g); err != nil {
		return nil, err
	}
	return nil, nil
}

type removeUserGroupExecutor struct {
	repos *repository.Repos
}

func (x *removeUserGroupExecutor) Authorize(op model.Operation) (string, string, *ids.ID) {
	return "UserGroup", "Delete", idOrNil(op.Resource())
}

func (x *removeUserGroupExecutor) Validate(op model.Operation) error {
	in := op.RemoveUserGroup
	if in == nil {
		return apierr.New(apierr.Validation, "remove user group operation missing payload")
	}
	if in.ID == model.AdminGroupID || in.ID == model.OperatorGroupID {
		return apierr.New(apierr.Validation, "the well-known Admin/Operator groups cannot be removed")
	}
	if !x.repos.UserGroups.Exists(in.ID) {
		return apierr.NotFoundf("user group", in.ID.String())
	}
	return nil
}

func (x *removeUserGroupExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	return nil, x.repos.UserGroups.Remove(req.Operation.RemoveUserGroup.ID)
}
