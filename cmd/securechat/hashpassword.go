package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/securechat/securechat/internal/crypto"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Hash a password with the configured KDF parameters",
	Long: `Hash-password prompts for a password and prints the salted hash
record, suitable for seeding accounts or verifying KDF settings.`,
	RunE: runHashPassword,
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	password, err := promptPassword("Password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}

	provider := crypto.NewProviderWithParams(cfg.Crypto.KeyBits, cfg.Crypto.KDFIterations)

	record, err := provider.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"iterations": cfg.Crypto.KDFIterations,
			"record":     record,
		})
		return nil
	}

	fmt.Println(record)
	return nil
}
