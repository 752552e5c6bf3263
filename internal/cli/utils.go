// Package cli provides output formatting and argument parsing for the vecshard CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/hyperjump/vecshard/internal/models"
	"github.com/hyperjump/vecshard/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (supported: text, json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results for project %s in %dms\n\n", response.Total, response.ProjectID, response.QueryTime)
	for i, hit := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", i+1, hit.Score)
		fmt.Fprintf(w, "ID: %s\n", hit.EntryID)
		fmt.Fprintf(w, "Fingerprint: %s\n", hit.Fingerprint)
		if len(hit.Metadata) > 0 {
			fmt.Fprintf(w, "Metadata: %s\n", utils.Truncate(formatMetadata(hit.Metadata), 200))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// formatMetadata renders metadata as sorted key=value pairs.
func formatMetadata(m map[string]interface{}) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, m[k])
	}
	return strings.Join(parts, " ")
}

// WriteShardStats writes per-shard statistics as a table or JSON.
func WriteShardStats(w io.Writer, stats []models.ShardStats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SHARD\tENTRIES\tPROJECTS\tAVG VECTOR LEN")
	total := 0
	for _, s := range stats {
		total += s.EntryCount
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f\n", s.ShardID, s.EntryCount, s.ProjectCount, s.AvgVectorLen)
	}
	fmt.Fprintf(tw, "total\t%d\t\t\n", total)
	return tw.Flush()
}

// WriteRebalanceResult writes the outcome of a rebalance.
func WriteRebalanceResult(w io.Writer, moved int, durationMS int64, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]int64{"moved": int64(moved), "duration_ms": durationMS})
	}
	_, err := fmt.Fprintf(w, "Moved %d entries in %dms\n", moved, durationMS)
	return err
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// ParseVector parses a comma-separated list of floats such as "0.1,0.2,-0.3".
// Surrounding brackets and whitespace are ignored.
func ParseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty vector")
	}
	fields := strings.Split(s, ",")
	vec := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return nil, fmt.Errorf("vector component %d: %w", i, err)
		}
		vec[i] = float32(v)
	}
	return vec, nil
}
