package commands

import (
	"github.com/spf13/cobra"

	"github.com/megalab/megaid/internal/metadata"
	"github.com/megalab/megaid/internal/printer"
	"github.com/megalab/megaid/internal/timespec"
)

func newCreateUTCCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create-utc [YAML_FILE]",
		Short: "Create a new ID using the current UTC time",
		Long: `Create a new compound ID stamped with the current UTC time.

The immutable block records created_at and the mutable block records
last_updated. An optional YAML file may add entries under immutable_data
and mutable_data; they are merged over the timestamps.

Examples:
  megaid create-utc
  megaid create-utc order.yml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stamp := timespec.FormatISO(now())
			immutable := map[string]any{"created_at": stamp}
			mutable := map[string]any{"last_updated": stamp}

			if len(args) == 1 {
				doc, err := metadata.LoadDocument(args[0])
				if err != nil {
					return printer.ErrorWithContext(
						"invalid metadata file",
						err.Error(),
						map[string]string{"File": args[0]},
						[]string{"The file must be a YAML mapping with optional immutable_data and mutable_data keys"},
					)
				}
				immutable = metadata.Merge(immutable, doc.ImmutableData)
				mutable = metadata.Merge(mutable, doc.MutableData)
			}

			id, err := mint(cmd, opts, immutable, mutable)
			if err != nil {
				return err
			}
			printer.Success("New UTC-based ID: %s\n", id)
			return nil
		},
	}
}

func newCreateCustomCmd(opts *rootOptions) *cobra.Command {
	var timestamp string

	cmd := &cobra.Command{
		Use:   "create-custom",
		Short: "Create a new ID with a custom creation timestamp",
		Long: `Create a new compound ID whose immutable created_at is a given UTC time.

The snowflake still encodes the current time; only the recorded metadata
uses the custom timestamp.

Examples:
  megaid create-custom --timestamp 2024-01-31:09:30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := timespec.ParseCustom(timestamp)
			if err != nil {
				return printer.Error(
					"invalid timestamp",
					err.Error(),
					[]string{"Example: --timestamp 2024-01-31:09:30"},
				)
			}

			id, err := mint(cmd, opts,
				map[string]any{"created_at": timespec.FormatISO(ts)},
				map[string]any{"last_updated": timespec.FormatISO(now())},
			)
			if err != nil {
				return err
			}
			printer.Success("New custom time-based ID: %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&timestamp, "timestamp", "t", "", "Creation time in format YYYY-MM-DD:HH:MM (UTC)")
	_ = cmd.MarkFlagRequired("timestamp")
	return cmd
}

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		immutableFile string
		mutableFile   string
		sets          []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new ID from metadata files",
		Long: `Create a new compound ID from explicit metadata.

--immutable and --mutable take YAML or JSON files holding a single mapping.
--set adds key=value entries to the mutable block; values are parsed as
YAML scalars, so count=3 is a number and enabled=true a boolean.

When no immutable data is given the configured default metadata is used.

Examples:
  megaid create --immutable owner.yml --set status=draft
  megaid create --bits 52`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var immutable, mutable map[string]any
			var err error

			if immutableFile != "" {
				if immutable, err = metadata.LoadMap(immutableFile); err != nil {
					return printer.ErrorWithContext("invalid immutable metadata", err.Error(),
						map[string]string{"File": immutableFile}, nil)
				}
			}
			if mutableFile != "" {
				if mutable, err = metadata.LoadMap(mutableFile); err != nil {
					return printer.ErrorWithContext("invalid mutable metadata", err.Error(),
						map[string]string{"File": mutableFile}, nil)
				}
			}

			assigned, err := metadata.ParseAssignments(sets)
			if err != nil {
				return printer.Error("invalid --set value", err.Error(), []string{"Use --set key=value"})
			}
			if len(assigned) > 0 {
				mutable = metadata.Merge(mutable, assigned)
			}

			id, err := mint(cmd, opts, immutable, mutable)
			if err != nil {
				return err
			}
			printer.Success("New ID: %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&immutableFile, "immutable", "", "YAML/JSON file with immutable data")
	cmd.Flags().StringVar(&mutableFile, "mutable", "", "YAML/JSON file with mutable data")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Mutable entry as key=value (repeatable)")
	return cmd
}

func mint(cmd *cobra.Command, opts *rootOptions, immutable, mutable map[string]any) (string, error) {
	engine, err := opts.newEngine(cmd)
	if err != nil {
		return "", err
	}
	id, err := engine.Create(immutable, mutable)
	if err != nil {
		return "", printer.Error("failed to create ID", err.Error(), nil)
	}
	return id, nil
}
