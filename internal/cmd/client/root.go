package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the Keel client.
// It registers the call, tenant, events, queue and archive command groups.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "keel",
		Short: "Keel client commands",
	}
	root.AddCommand(NewCallCommand(baseURL))
	root.AddCommand(NewTenantCommand(baseURL))
	root.AddCommand(NewEventsCommand(baseURL))
	root.AddCommand(NewQueueCommand(baseURL))
	root.AddCommand(NewArchiveCommand(baseURL))
	return root
}
