package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewTenantCommand constructs the `tenant` command group and subcommands.
func NewTenantCommand(baseURL BaseURLFunc) *cobra.Command {
	tenantCmd := &cobra.Command{Use: "tenant", Short: "Tenant operations"}
	tenantCmd.AddCommand(
		newTenantCreateCommand(baseURL),
		newTenantListCommand(baseURL),
		newTenantCheckpointCommand(baseURL),
	)
	return tenantCmd
}

// newTenantCreateCommand constructs the `tenant create` subcommand.
func newTenantCreateCommand(baseURL BaseURLFunc) *cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			if err := postJSON(baseURL()+"/v1/tenants/create", map[string]string{"tenant": name}, nil); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	createCmd.Flags().String("name", "default", "Tenant name")
	return createCmd
}

// newTenantListCommand constructs the `tenant list` subcommand.
func newTenantListCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out struct {
				Tenants []struct {
					Name        string `json:"name"`
					CreatedAtMs int64  `json:"createdAtMs"`
				} `json:"tenants"`
			}
			if err := getJSON(baseURL()+"/v1/tenants", &out); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

// newTenantCheckpointCommand constructs the `tenant checkpoint` subcommand.
func newTenantCheckpointCommand(baseURL BaseURLFunc) *cobra.Command {
	cpCmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Persist the tenant's state snapshot now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			if err := postJSON(baseURL()+"/v1/checkpoint", map[string]string{"tenant": name}, nil); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	cpCmd.Flags().String("name", "", "Tenant name (empty = default)")
	return cpCmd
}
