package cmd

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/a2a-relay/pkg/auth"
)

var (
	tokenTTLFlag   time.Duration
	tokenScopeFlag []string

	tokenCmd = &cobra.Command{
		Use:   "token <subject>",
		Short: "Mint a bearer token for the RPC endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := auth.NewService(
				viper.GetString("server.auth.secret"),
				auth.WithIssuer(viper.GetString("server.auth.issuer")),
				auth.WithTTL(tokenTTLFlag),
			)

			if err != nil {
				return err
			}

			var extra jwt.MapClaims

			if len(tokenScopeFlag) > 0 {
				extra = jwt.MapClaims{"scope": tokenScopeFlag}
			}

			token, expiresAt, err := svc.GenerateToken(args[0], extra)

			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintln(cmd.ErrOrStderr(), "expires", expiresAt.Format(time.RFC3339))

			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().DurationVar(&tokenTTLFlag, "ttl", 24*time.Hour, "Token lifetime")
	tokenCmd.Flags().StringSliceVar(&tokenScopeFlag, "scope", nil, "Scopes to embed in the token")
}
