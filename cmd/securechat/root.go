package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/securechat/securechat/internal/config"
	"github.com/securechat/securechat/internal/events"
)

var rootCmd = &cobra.Command{
	Use:   "securechat",
	Short: "End-to-end encrypted messaging server",
	Long: `SecureChat stores messages encrypted to the recipient's RSA key.
The server never persists plaintext; messages are decrypted per request
with the recipient's private key.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger, err = events.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
}

var (
	cfg        *config.Config
	logger     *events.Logger
	configPath string
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Config file path (default: securechat.yaml, env SECURECHAT_*)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Machine-readable JSON output")
}
