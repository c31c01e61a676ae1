package chef

import "context"

// Environment pins cookbook versions and carries attributes
type Environment struct {
	*Entity
}

func newEnvironment(e *Entity) *Environment { return &Environment{Entity: e} }

func (env *Environment) Description(ctx context.Context) (string, error) {
	return field[string](ctx, env.Entity, "description")
}

func (env *Environment) SetDescription(ctx context.Context, v string) error {
	return env.Save(ctx, map[string]any{"description": v})
}

func (env *Environment) DefaultAttributes(ctx context.Context) (map[string]any, error) {
	return field[map[string]any](ctx, env.Entity, "default_attributes")
}

func (env *Environment) SetDefaultAttributes(ctx context.Context, v map[string]any) error {
	return env.Save(ctx, map[string]any{"default_attributes": v})
}

func (env *Environment) OverrideAttributes(ctx context.Context) (map[string]any, error) {
	return field[map[string]any](ctx, env.Entity, "override_attributes")
}

func (env *Environment) SetOverrideAttributes(ctx context.Context, v map[string]any) error {
	return env.Save(ctx, map[string]any{"override_attributes": v})
}

// CookbookVersions returns the version constraint per cookbook
func (env *Environment) CookbookVersions(ctx context.Context) (map[string]string, error) {
	return field[map[string]string](ctx, env.Entity, "cookbook_versions")
}

func (env *Environment) SetCookbookVersions(ctx context.Context, v map[string]string) error {
	versions := make(map[string]any, len(v))
	for k, c := range v {
		versions[k] = c
	}
	return env.Save(ctx, map[string]any{"cookbook_versions": versions})
}
