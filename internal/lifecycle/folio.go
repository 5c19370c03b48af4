package lifecycle

import "fmt"

const DefaultFolioWidth = 6

// FormatFolio renders counter n under prefix, e.g. VTA-000042. Counters wider
// than width are printed in full so folios stay unique.
func FormatFolio(prefix string, n int64, width int) string {
	if width <= 0 {
		width = DefaultFolioWidth
	}
	return fmt.Sprintf("%s-%0*d", prefix, width, n)
}
