package pausealarm

import (
	"fmt"
	"time"
)

// FormatPause renders d as whole milliseconds ("250ms"), or as seconds with
// one decimal ("1.5s") once it exceeds a second.
func FormatPause(d time.Duration) string {
	if d > time.Second {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	return fmt.Sprintf("%dms", d.Milliseconds())
}
