// Package assemble builds the model-ready context block from ranked chunks.
package assemble

import (
	"fmt"
	"strings"

	"github.com/amagilabs/kasane/internal/models"
)

// Separator visually delimits chunks in the assembled context.
const Separator = "\n\n---\n\n"

// Context concatenates chunks in rank order, each under a provenance header
// "[Document {n}: {source}]". No size cap is enforced here: callers with a
// token budget truncate the chunk list before assembly, keeping this pure.
func Context(chunks []*models.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	for i, ch := range chunks {
		if i > 0 {
			b.WriteString(Separator)
		}
		fmt.Fprintf(&b, "[Document %d: %s]\n%s", i+1, ch.Source(), ch.Content)
	}
	return b.String()
}
