package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/api"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a signed learner token for the API",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		email, _ := cmd.Flags().GetString("email")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if userID == "" {
			return errors.New("--user is required")
		}

		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		tokens, err := api.NewTokens(e.cfg.Auth.JWTSecret, e.cfg.Auth.Issuer)
		if err != nil {
			return fmt.Errorf("auth: %w (set LEARNPATH_JWT_SECRET)", err)
		}
		tok, err := tokens.Issue(userID, email, ttl)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("user", "", "Learner ID (token subject)")
	tokenCmd.Flags().String("email", "", "Learner email for completion mail")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
}
