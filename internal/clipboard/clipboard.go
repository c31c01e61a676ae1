package clipboard

import (
	"context"
	"fmt"

	"github.com/gopasspw/clipboard"
)

// Copy copies a data bag value to the system clipboard.
// WritePassword marks the content as sensitive on platforms that support it.
func Copy(ctx context.Context, text string) error {
	if !IsAvailable() {
		return fmt.Errorf("clipboard is not available on this system")
	}
	if err := clipboard.WritePassword(ctx, []byte(text)); err != nil {
		return fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	return nil
}

// IsAvailable checks if clipboard functionality is available
func IsAvailable() bool {
	return !clipboard.IsUnsupported()
}
