package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/quiz-engine/internal/config"
	"github.com/yourusername/quiz-engine/pkg/auth"
)

// newTokenCmd выпускает токен для локальной отладки и администрирования.
// В проде токены выдает внешний сервис аутентификации с тем же секретом.
func newTokenCmd(configPath *string) *cobra.Command {
	var (
		userID uint
		role   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer)
			if err != nil {
				return err
			}
			token, err := jwtService.GenerateToken(userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().UintVar(&userID, "user", 0, "user id")
	cmd.Flags().StringVar(&role, "role", "", "role (\""+auth.RoleAdmin+"\" for administrators)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
