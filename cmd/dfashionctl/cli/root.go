// Package cli implements dfashionctl, the operator tool for the access
// control policy, tokens and the audit job queue.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dfashion/dfashion-api/internal/rbac"
)

type rootOptions struct {
	policyFile string
}

// NewRootCommand assembles the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:                   "dfashionctl",
		Short:                 "Operate the DFashion access control layer",
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
	}
	root.PersistentFlags().StringVarP(&opts.policyFile, "policy", "p", os.Getenv("RBAC_POLICY_FILE"), "Policy YAML file. Defaults to the built-in policy.")

	root.AddCommand(buildPolicyCommand(opts))
	root.AddCommand(buildCanCommand(opts))
	root.AddCommand(buildTokenCommand(opts))
	root.AddCommand(buildJobsCommand())
	return root
}

func (o *rootOptions) loadPolicy() (*rbac.Policy, error) {
	if o.policyFile != "" {
		return rbac.LoadPolicyFile(o.policyFile)
	}
	return rbac.DefaultPolicy()
}
