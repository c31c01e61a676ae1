package chef

import "context"

// Node is a managed machine
type Node struct {
	*Entity
}

func newNode(e *Entity) *Node { return &Node{Entity: e} }

// ChefEnvironment returns the environment the node belongs to
func (n *Node) ChefEnvironment(ctx context.Context) (string, error) {
	return field[string](ctx, n.Entity, "chef_environment")
}

// SetChefEnvironment moves the node to env
func (n *Node) SetChefEnvironment(ctx context.Context, env string) error {
	return n.Save(ctx, map[string]any{"chef_environment": env})
}

// RunList returns the node run list
func (n *Node) RunList(ctx context.Context) ([]string, error) {
	return field[[]string](ctx, n.Entity, "run_list")
}

// SetRunList replaces the node run list
func (n *Node) SetRunList(ctx context.Context, runList []string) error {
	items := make([]any, len(runList))
	for i, r := range runList {
		items[i] = r
	}
	return n.Save(ctx, map[string]any{"run_list": items})
}

// Attributes returns one precedence level: automatic, default, normal or override
func (n *Node) Attributes(ctx context.Context, level string) (map[string]any, error) {
	return field[map[string]any](ctx, n.Entity, level)
}

// SetAttributes replaces one precedence level
func (n *Node) SetAttributes(ctx context.Context, level string, attrs map[string]any) error {
	return n.Save(ctx, map[string]any{level: attrs})
}

// IPAddress returns the address ohai reported for the node
func (n *Node) IPAddress(ctx context.Context) (string, error) {
	automatic, err := n.Attributes(ctx, "automatic")
	if err != nil {
		return "", err
	}
	ip, _ := automatic["ipaddress"].(string)
	return ip, nil
}
