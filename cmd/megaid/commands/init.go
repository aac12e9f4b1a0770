package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/megalab/megaid/internal/git"
	"github.com/megalab/megaid/internal/printer"
	"github.com/megalab/megaid/internal/scaffold"
)

func newInitCmd() *cobra.Command {
	var (
		dir   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize MEGAID configuration in a directory",
		Long: `Initialize a directory with a default megaid.yml.

Creates:
  • megaid.yml - Bit size, default metadata and key source
  • .gitignore entry for .env, where generated keys are stored

Use --force to replace an existing megaid.yml.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if err := scaffold.CheckExisting(dir); err != nil {
					return printer.Error("already initialized", err.Error(), nil)
				}
			}

			printer.Step("Writing %s\n", filepath.Join(dir, scaffold.ConfigFile))
			written, err := scaffold.Initialize(dir, force)
			if err != nil {
				return printer.ErrorWithContext(
					"initialization failed",
					err.Error(),
					map[string]string{"Directory": dir},
					[]string{"Check the directory exists and is writable"},
				)
			}

			scaffold.PrintSuccess(written)

			checker := git.NewChecker(dir)
			if tracked, err := checker.IsTracked(".env"); err == nil && tracked {
				root, _ := checker.GetGitRoot()
				printer.Warning(".env is already tracked by the Git repository at %s; keys stored there will be committed\n", root)
				printer.Warning("Run 'git rm --cached .env' to stop tracking it\n")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory to initialize")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing megaid.yml")
	return cmd
}
