package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewCallCommand constructs the `call` command: one RPC against the store.
func NewCallCommand(baseURL BaseURLFunc) *cobra.Command {
	callCmd := &cobra.Command{
		Use:   "call",
		Short: "Invoke a store method (create, get, update, delete, list, search, setSchema, configureEvents)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			method, _ := cmd.Flags().GetString("method")
			paramsJSON, _ := cmd.Flags().GetString("params")
			user, _ := cmd.Flags().GetString("user")

			if method == "" {
				return fmt.Errorf("method is required")
			}
			params := map[string]any{}
			if paramsJSON != "" {
				if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
					return fmt.Errorf("invalid --params: %w", err)
				}
			}
			if user != "" {
				ctxObj, _ := params["ctx"].(map[string]any)
				if ctxObj == nil {
					ctxObj = map[string]any{}
				}
				ctxObj["userId"] = user
				params["ctx"] = ctxObj
			}

			envelope := map[string]any{"tenant": tenant, "method": method, "params": params}
			var result map[string]any
			if err := postJSON(baseURL()+"/v1/rpc", envelope, &result); err != nil {
				return err
			}
			if errObj, ok := result["error"].(map[string]any); ok {
				return fmt.Errorf("%v", errObj["message"])
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	callCmd.Flags().StringP("tenant", "t", "", "Tenant (empty = default)")
	callCmd.Flags().StringP("method", "m", "", "Method name")
	callCmd.Flags().StringP("params", "p", "", "Params as JSON object")
	callCmd.Flags().String("user", "", "User id recorded on mutations")
	return callCmd
}
