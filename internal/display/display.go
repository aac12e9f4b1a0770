// Package display renders decoded identifiers for the CLI, either as
// labelled colored text or as JSON for piping into other tools.
package display

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/megalab/megaid/internal/timespec"
	"github.com/megalab/megaid/pkg/megaid"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatText, "":
		return OutputFormatText, nil
	case OutputFormatJSON:
		return OutputFormatJSON, nil
	}
	return "", fmt.Errorf("unknown format: %s", s)
}

var (
	labelID      = color.New(color.FgCyan)
	labelCreated = color.New(color.FgBlue)
	labelUpdated = color.New(color.FgYellow)
	labelSalt    = color.New(color.FgMagenta)
	labelData    = color.New(color.FgGreen)
	labelMutable = color.New(color.FgYellow)
	valueColor   = color.New(color.FgWhite)
	validColor   = color.New(color.FgGreen)
	invalidColor = color.New(color.FgRed, color.Bold)
	headingColor = color.New(color.Bold)
)

// SnowflakeInfo is the analysis of a bare snowflake.
type SnowflakeInfo struct {
	Snowflake   uint64 `json:"snowflake"`
	BitSize     int    `json:"bit_size"`
	TimestampMs int64  `json:"timestamp_ms"`
	Timestamp   string `json:"timestamp"`
	Salt        uint64 `json:"random_bits"`
}

// NewSnowflakeInfo builds the analysis of id from its decoded fields.
func NewSnowflakeInfo(id uint64, bits int, timestampMs int64, salt uint64) SnowflakeInfo {
	return SnowflakeInfo{
		Snowflake:   id,
		BitSize:     bits,
		TimestampMs: timestampMs,
		Timestamp:   timespec.FormatMillis(timestampMs),
		Salt:        salt,
	}
}

// WriteSnowflake renders a bare snowflake analysis.
func WriteSnowflake(w io.Writer, info SnowflakeInfo, format OutputFormat) error {
	if format == OutputFormatJSON {
		return writeJSON(w, info)
	}

	heading(w, "Snowflake ID Analysis:")
	field(w, labelData, "Snowflake ID:", fmt.Sprint(info.Snowflake))
	field(w, labelCreated, "Timestamp:", info.Timestamp)
	field(w, labelSalt, "Random Bits:", fmt.Sprint(info.Salt))
	return nil
}

// WriteView renders the merged view of a verified compound ID.
func WriteView(w io.Writer, view *megaid.MetadataView, format OutputFormat) error {
	if format == OutputFormatJSON {
		return writeJSON(w, view)
	}

	immutable, err := json.MarshalIndent(view.ImmutableData, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format immutable data: %w", err)
	}
	mutable, err := json.MarshalIndent(view.MutableData, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format mutable data: %w", err)
	}

	heading(w, "Decoded Compound ID Data:")
	field(w, labelID, "MEGAID:", fmt.Sprint(view.Megaid))
	field(w, labelCreated, "Created At:", timespec.FormatMillis(view.DateCreated))
	field(w, labelUpdated, "Last Updated:", timespec.FormatMillis(view.DateUpdated))
	field(w, labelSalt, "Random Bits:", fmt.Sprint(view.Salt))
	field(w, labelData, "Immutable Data:", string(immutable))
	field(w, labelMutable, "Mutable Data:", string(mutable))
	return nil
}

// BlockStatus is the outcome of verifying one block on its own.
type BlockStatus struct {
	Block megaid.Block `json:"block"`
	Valid bool         `json:"valid"`
	Error string       `json:"error,omitempty"`
}

// NewBlockStatus builds a status from a verification error (nil = valid).
func NewBlockStatus(block megaid.Block, err error) BlockStatus {
	s := BlockStatus{Block: block, Valid: err == nil}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// WriteVerification renders per-block verification results.
func WriteVerification(w io.Writer, snowflake uint64, statuses []BlockStatus, format OutputFormat) error {
	if format == OutputFormatJSON {
		return writeJSON(w, struct {
			Snowflake uint64        `json:"snowflake"`
			Blocks    []BlockStatus `json:"blocks"`
		}{snowflake, statuses})
	}

	heading(w, "Compound ID Verification:")
	field(w, labelID, "MEGAID:", fmt.Sprint(snowflake))
	for _, s := range statuses {
		fmt.Fprintln(w)
		if s.Valid {
			validColor.Fprintf(w, "✓ %s block valid\n", s.Block)
			continue
		}
		invalidColor.Fprintf(w, "✗ %s block invalid\n", s.Block)
		valueColor.Fprintf(w, "  %s\n", s.Error)
	}
	return nil
}

func heading(w io.Writer, title string) {
	fmt.Fprintln(w)
	headingColor.Fprintln(w, title)
	fmt.Fprintln(w, "----------------------")
}

func field(w io.Writer, label *color.Color, name, value string) {
	fmt.Fprintln(w)
	label.Fprintln(w, name)
	valueColor.Fprintln(w, value)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}
