package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dfashion/dfashion-api/internal/auth"
	"github.com/dfashion/dfashion-api/internal/rbac"
)

type tokenOptions struct {
	secret  string
	issuer  string
	ttl     time.Duration
	subject string
	email   string
	role    string
}

func buildTokenCommand(root *rootOptions) *cobra.Command {
	tokenCommand := &cobra.Command{
		Use:   "token",
		Short: "Mint access tokens for testing and support",
	}

	opts := &tokenOptions{}
	issue := &cobra.Command{
		Use:     "issue",
		Example: "dfashionctl token issue --sub 42 --role moderator --ttl 15m",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := root.loadPolicy()
			if err != nil {
				return err
			}
			if opts.subject == "" {
				return errors.New("--sub is required")
			}
			authn, err := auth.NewAuthenticator(opts.secret, policy.Hierarchy,
				auth.WithIssuer(opts.issuer),
				auth.WithTTL(opts.ttl),
			)
			if err != nil {
				return err
			}
			token, expiresAt, err := authn.Issue(auth.IssueParams{
				Subject: opts.subject,
				Email:   opts.email,
				Role:    rbac.Role(opts.role),
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "dfashion"
	}
	issue.Flags().StringVar(&opts.secret, "secret", os.Getenv("JWT_SECRET"), "HS256 signing secret (defaults to $JWT_SECRET)")
	issue.Flags().StringVar(&opts.issuer, "issuer", issuer, "Issuer claim")
	issue.Flags().DurationVar(&opts.ttl, "ttl", time.Hour, "Token lifetime")
	issue.Flags().StringVar(&opts.subject, "sub", "", "Subject (user id)")
	issue.Flags().StringVar(&opts.email, "email", "", "Email claim")
	issue.Flags().StringVar(&opts.role, "role", string(rbac.RoleCustomer), "Role claim")

	tokenCommand.AddCommand(issue)
	return tokenCommand
}
