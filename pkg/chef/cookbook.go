package chef

import "context"

// Cookbook is a named cookbook with all of its uploaded versions. The
// server wraps its document in an object keyed by the cookbook name; the
// cookbook shape policy unwraps it.
type Cookbook struct {
	*Entity
}

func newCookbook(e *Entity) *Cookbook { return &Cookbook{Entity: e} }

// CookbookVersionRef points at one uploaded version
type CookbookVersionRef struct {
	URL     string `json:"url"`
	Version string `json:"version"`
}

// Versions lists the uploaded versions, newest first as the server returns them
func (c *Cookbook) Versions(ctx context.Context) ([]CookbookVersionRef, error) {
	return field[[]CookbookVersionRef](ctx, c.Entity, "versions")
}

// Version returns one version's manifest. Use "_latest" for the newest.
func (c *Cookbook) Version(version string) *Entity {
	return c.chef.newEntity(KindCookbookVersion, c.name, version, "")
}
