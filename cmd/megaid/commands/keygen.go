package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/megalab/megaid/internal/keystore"
	"github.com/megalab/megaid/internal/printer"
	"github.com/megalab/megaid/pkg/megaid"
)

func newKeygenCmd(opts *rootOptions) *cobra.Command {
	var (
		adminSecret string
		save        bool
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an admin/shared key pair",
		Long: `Generate a key pair and print it as environment assignments.

By default both keys are 32 random bytes. --admin-secret derives both keys
from a secret instead; anyone who knows the secret can recompute them, so
use it for reproducible test fixtures only.

--save writes the pair to the configured key store (.env file or Redis)
instead of printing it. Existing keys are never overwritten.

Examples:
  megaid keygen >> .env
  megaid keygen --save
  megaid keygen --admin-secret fixture-secret`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var keys megaid.Keys
			if cmd.Flags().Changed("admin-secret") {
				if adminSecret == "" {
					return printer.Error("invalid admin secret", "--admin-secret cannot be empty", nil)
				}
				keys = megaid.DeriveKeys(adminSecret)
				printer.Warning("deterministic keys derived from a secret; use for testing only\n")
			} else {
				var err error
				if keys, err = megaid.GenerateKeys(); err != nil {
					return printer.Error("failed to generate keys", err.Error(), nil)
				}
			}

			if !save {
				printer.Printf("%s=%s\n", keystore.AdminKeyVar, keys.Admin)
				printer.Printf("%s=%s\n", keystore.SharedKeyVar, keys.Shared)
				return nil
			}

			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			store, release, err := openStore(cfg)
			if err != nil {
				return printer.Error("failed to open key store", err.Error(), nil)
			}
			defer release()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			printer.Step("Saving key pair to %s\n", store.Describe())
			if err := store.Save(ctx, keys); err != nil {
				if errors.Is(err, keystore.ErrKeysExist) {
					return printer.ErrorWithContext(
						"keys already exist",
						"The key store already holds a key pair and it will not be overwritten.",
						map[string]string{"Key store": store.Describe()},
						[]string{"Remove the existing keys first if you really mean to rotate them"},
					)
				}
				return printer.Error("failed to save keys", err.Error(), nil)
			}

			printer.Success("Saved key pair to %s\n", store.Describe())
			return nil
		},
	}

	cmd.Flags().StringVar(&adminSecret, "admin-secret", "", "Derive keys deterministically from this secret (testing only)")
	cmd.Flags().BoolVar(&save, "save", false, "Store the pair in the configured key store instead of printing it")
	return cmd
}
