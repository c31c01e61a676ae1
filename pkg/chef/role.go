package chef

import "context"

// Role groups run list entries and attributes
type Role struct {
	*Entity
}

func newRole(e *Entity) *Role { return &Role{Entity: e} }

// Description returns the role description
func (r *Role) Description(ctx context.Context) (string, error) {
	return field[string](ctx, r.Entity, "description")
}

// RunList returns the role's default run list
func (r *Role) RunList(ctx context.Context) ([]string, error) {
	return field[[]string](ctx, r.Entity, "run_list")
}

// EnvRunLists returns the per environment run lists
func (r *Role) EnvRunLists(ctx context.Context) (map[string][]string, error) {
	return field[map[string][]string](ctx, r.Entity, "env_run_lists")
}
