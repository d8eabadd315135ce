// Package cli formats retrieval results for terminal output.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/amagilabs/kasane/internal/models"
	"github.com/amagilabs/kasane/pkg/utils"
)

// OutputFormat selects how retrieval results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one result per line.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat maps a flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch s {
	case "", "text":
		return OutputText, nil
	case "compact":
		return OutputCompact, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// WriteRetrievalResults writes the response to w in the given format.
func WriteRetrievalResults(w io.Writer, resp *models.RetrievalResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case OutputCompact:
		for i, ch := range resp.Chunks {
			fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\n", i+1, ch.Score, ch.Source(), utils.Truncate(ch.Content, 120))
		}
		return nil
	default:
		writeText(w, resp)
		return nil
	}
}

func writeText(w io.Writer, resp *models.RetrievalResponse) {
	fmt.Fprintf(w, "\nRetrieved %d of %d chunks in %dms\n\n",
		len(resp.Chunks), resp.TotalChunks, resp.RetrievalTimeMs)
	for i, ch := range resp.Chunks {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | Source: %s\n", i+1, ch.Score, ch.Source())
		fmt.Fprintf(w, "ID: %s\n", ch.ID)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(ch.Content, 300))
	}
}

// WriteStats writes store statistics to w.
func WriteStats(w io.Writer, stats models.StoreStats, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	fmt.Fprintf(w, "chunks:              %d\n", stats.TotalChunks)
	fmt.Fprintf(w, "with_embeddings:     %d\n", stats.WithEmbeddings)
	fmt.Fprintf(w, "avg_content_length:  %.1f\n", stats.AvgContentLength)
	return nil
}
