package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/megalab/megaid/internal/metadata"
	"github.com/megalab/megaid/internal/printer"
	"github.com/megalab/megaid/pkg/megaid"
)

func newUpdateCmd(opts *rootOptions) *cobra.Command {
	var (
		patchFile string
		sets      []string
	)

	cmd := &cobra.Command{
		Use:   "update COMPOUND_ID",
		Short: "Update the mutable block of a compound ID",
		Long: `Patch the mutable block of a compound ID and print the new ID.

Only the shared key is needed. The snowflake and the immutable block are
carried over unchanged; the patch is merged over the existing mutable data
one level deep and date_updated is set to the current time.

--file takes a YAML or JSON mapping; --set entries are applied after it.

Examples:
  megaid update "$ID" --set status=shipped
  megaid update "$ID" --file patch.yml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates := map[string]any{}
			if patchFile != "" {
				patch, err := metadata.LoadMap(patchFile)
				if err != nil {
					return printer.ErrorWithContext("invalid patch file", err.Error(),
						map[string]string{"File": patchFile}, nil)
				}
				updates = metadata.Merge(updates, patch)
			}
			assigned, err := metadata.ParseAssignments(sets)
			if err != nil {
				return printer.Error("invalid --set value", err.Error(), []string{"Use --set key=value"})
			}
			updates = metadata.Merge(updates, assigned)

			engine, err := opts.newEngine(cmd)
			if err != nil {
				return err
			}

			id, err := engine.Update(args[0], updates)
			if err != nil {
				return idError("failed to update ID", err)
			}
			printer.Success("Updated ID: %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&patchFile, "file", "f", "", "YAML/JSON file with the mutable patch")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Mutable entry as key=value (repeatable)")
	return cmd
}

// idError reports a failure to parse or verify a compound ID with a hint
// matching its kind.
func idError(title string, err error) error {
	var suggestions []string
	switch {
	case errors.Is(err, megaid.ErrMalformedID):
		suggestions = []string{"A compound ID has the form <snowflake>:<immutable>:<mutable>"}
	case megaid.IsTampered(err):
		suggestions = []string{
			"The ID was modified or signed with different keys",
			"Check MEGAID_ADMIN_KEY and MEGAID_SHARED_KEY match the keys that issued it",
		}
	case errors.Is(err, megaid.ErrTokenExpired):
		suggestions = []string{"The signed block has expired"}
	}
	return printer.Error(title, err.Error(), suggestions)
}
