/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/paperboy/internal/googleauth"
)

// authCmd runs the interactive OAuth flow and caches the token.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize mailbox and tracker access",
	Long: `Auth runs the Google OAuth flow for the Gmail and Tasks scopes and
stores the resulting token next to the credentials file. Run it once
before the first "paperboy run".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if err := googleauth.Authenticate(cmd.Context(), cfg.Mailbox.CredentialsFile, cfg.Mailbox.TokenFile); err != nil {
			return fmt.Errorf("authorization failed: %w", err)
		}
		fmt.Println("Authorization complete. Token saved to", cfg.Mailbox.TokenFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
}
