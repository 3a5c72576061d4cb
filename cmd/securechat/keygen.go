package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/securechat/securechat/internal/crypto"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an RSA key pair",
	Long: `Keygen writes a PEM-encoded key pair of the configured size to
<out>.pem (private) and <out>.pub.pem (public).`,
	Example: `  securechat keygen --out ./alice
  securechat keygen --out /tmp/test-key --json`,
	RunE: runKeygen,
}

var keygenOut string

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().StringVarP(&keygenOut, "out", "o", "",
		"Output path prefix (required)")
	_ = keygenCmd.MarkFlagRequired("out")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	provider := crypto.NewProviderWithParams(cfg.Crypto.KeyBits, cfg.Crypto.KDFIterations)

	pair, err := provider.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generate key pair: %w", err)
	}

	privPath := keygenOut + ".pem"
	pubPath := keygenOut + ".pub.pem"

	if dir := filepath.Dir(privPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	// Private key is readable by the owner only.
	if err := os.WriteFile(privPath, pair.PrivateKey, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(pubPath, pair.PublicKey, 0o644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"key_bits":    cfg.Crypto.KeyBits,
			"private_key": privPath,
			"public_key":  pubPath,
		})
		return nil
	}

	printSuccess("Wrote %d-bit key pair: %s, %s", cfg.Crypto.KeyBits, privPath, pubPath)
	return nil
}
