package executor

import (
	"context"

	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/repository"
)

type addUserExecutor struct {
	repos *repository.Repos
}

func (x *addUserExecutor) Authorize(model.Operation) (string, string, *ids.ID) { return "User", "Create", nil }

func (x *addUserExecutor) Validate(op model.Operation) error {
	in := op.AddUser
	if in == nil {
		return apierr.New(apierr.Validation, "add user operation missing payload")
	}
	for _, p := range in.Identities {
		if u, ok := x.repos.Users.GetByIdentity(p); ok {
			return apierr.Newf(apierr.Duplicate, "identity already belongs to user %s", u.ID)
		}
	}
	for _, g := range in.Groups {
		if !x.repos.UserGroups.Exists(g) {
			return apierr.NotFoundf("user group", g.String())
		}
	}
	return model.User{Identities: in.Identities, Groups: ids.NewSet(in.Groups...), Status: in.Status, Name: in.Name}.Validate()
}

func (x *addUserExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	in := req.Operation.AddUser
	u := model.User{
		ID:         ids.New(),
		Identities: in.Identities,
		Groups:     ids.NewSet(in.Groups...),
		Status:     in.Status,
		Name:       in.Name,
	}
	if err := x.repos.Users.Insert(u); err != nil {
		return nil, err
	}
	return map[string]string{"user_id": u.ID.String()}, nil
}

type editUserExecutor struct {
	repos *repository.Repos
}

func (x *editUserExecutor) Authorize(op model.Operation) (string, string, *ids.ID) {
	return "User", "Update", idOrNil(op.Resource())
}

func (x *editUserExecutor) Validate(op model.Operation) error {
	in := op.EditUser
	if in == nil {
		return apierr.New(apierr.Validation, "edit user operation missing payload")
	}
	if !x.repos.Users.Exists(in.UserID) {
		return apierr.NotFoundf("user", in.UserID.String())
	}
	for _, p := range in.Identities {
		if u, ok := x.repos.Users.GetByIdentity(p); ok && u.ID != in.UserID {
			return apierr.Newf(apierr.Duplicate, "identity already belongs to user %s", u.ID)
		}
	}
	for _, g := range in.Groups {
		if !x.repos.UserGroups.Exists(g) {
			return apierr.NotFoundf("user group", g.String())
		}
	}
	return nil
}

func (x *editUserExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	in := req.Operation.EditUser
	u, ok := x.repos.Users.Get(in.UserID)
	if !ok {
		return nil, apierr.NotFoundf("user", in.UserID.String())
	}
	wasActiveAdmin := u.IsAdmin() && u.Status == model.UserActive

	if in.Identities != nil {
		u.Identities = in.Identities
	}
	if in.Groups != nil {
		u.Groups = ids.NewSet(in.Groups...)
	}
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Status != nil {
		u.Status = *in.Status
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	stillActiveAdmin := u.IsAdmin() && u.Status == model.UserActive
	if wasActiveAdmin && !stillActiveAdmin && x.repos.Users.CountActiveAdmins() <= 1 {
		return nil, apierr.New(apierr.Validation, "cannot leave the station with zero active admins")
	}
	if err := x.repos.Users.Insert(u); err != nil {
		return nil, err
	}
	return nil, nil
}
