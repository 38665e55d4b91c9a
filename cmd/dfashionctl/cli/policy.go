package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/dfashion/dfashion-api/internal/rbac"
)

func buildPolicyCommand(opts *rootOptions) *cobra.Command {
	policyCommand := &cobra.Command{
		Use:   "policy",
		Short: "Inspect and validate role policies",
	}

	var role string
	show := &cobra.Command{
		Use:     "show",
		Example: "dfashionctl policy show --role moderator",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := opts.loadPolicy()
			if err != nil {
				return err
			}
			out, err := renderPolicy(policy, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	show.Flags().StringVarP(&role, "role", "r", "", "Only show grants for this role")

	check := &cobra.Command{
		Use:     "check <file>",
		Example: "dfashionctl policy check deploy/policy.yaml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := rbac.LoadPolicyFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "policy ok: %d roles, top role %s\n",
				len(policy.Hierarchy.Roles()), policy.Hierarchy.Roles()[0])
			return nil
		},
	}

	policyCommand.AddCommand(show, check)
	return policyCommand
}

func renderPolicy(policy *rbac.Policy, only string) (string, error) {
	roles := policy.Hierarchy.Roles()
	if only != "" {
		if !policy.Hierarchy.Known(only) {
			return "", fmt.Errorf("unknown role %q", only)
		}
		roles = []rbac.Role{rbac.Role(only)}
	}

	t := table.NewWriter()
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, AutoMerge: true, VAlign: text.VAlignMiddle},
		{Number: 2, AutoMerge: true, VAlign: text.VAlignMiddle, Align: text.AlignRight},
	})
	t.AppendHeader(table.Row{"Role", "Rank", "Resource", "Actions"})
	for _, role := range roles {
		grants := policy.Grants(string(role))
		resources := make([]string, 0, len(grants))
		for resource := range grants {
			resources = append(resources, resource)
		}
		slices.Sort(resources)
		if len(resources) == 0 {
			t.AppendRow(table.Row{role, policy.RankOf(string(role)), "-", "-"})
		}
		for _, resource := range resources {
			t.AppendRow(table.Row{role, policy.RankOf(string(role)), resource, strings.Join(grants[resource], ", ")})
		}
		t.AppendSeparator()
	}
	return t.Render(), nil
}

func buildCanCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "can <role> <resource> <action>",
		Short:   "Check a single permission against the policy",
		Example: "dfashionctl can seller products delete",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := opts.loadPolicy()
			if err != nil {
				return err
			}
			role, resource, action := args[0], args[1], args[2]
			if !policy.Hierarchy.Known(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			if policy.HasPermission(role, resource, action) {
				fmt.Fprintf(cmd.OutOrStdout(), "ALLOW %s %s:%s\n", role, resource, action)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "DENY %s %s:%s\n", role, resource, action)
			return errDenied
		},
	}
}
