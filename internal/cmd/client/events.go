package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// NewEventsCommand constructs the `events` command group and subcommands.
func NewEventsCommand(baseURL BaseURLFunc) *cobra.Command {
	eventsCmd := &cobra.Command{Use: "events", Short: "Change event operations"}
	eventsCmd.AddCommand(
		newEventsListCommand(baseURL),
		newEventsTailCommand(baseURL),
	)
	return eventsCmd
}

// newEventsListCommand constructs the `events list` subcommand.
func newEventsListCommand(baseURL BaseURLFunc) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Read buffered change events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			since, _ := cmd.Flags().GetUint64("since")
			limit, _ := cmd.Flags().GetInt("limit")
			model, _ := cmd.Flags().GetString("model")

			q := url.Values{}
			q.Set("tenant", tenant)
			if since > 0 {
				q.Set("since", fmt.Sprintf("%d", since))
			}
			if limit > 0 {
				q.Set("limit", fmt.Sprintf("%d", limit))
			}
			if model != "" {
				q.Set("model", model)
			}
			var out map[string]any
			if err := getJSON(baseURL()+"/v1/events?"+q.Encode(), &out); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	listCmd.Flags().StringP("tenant", "t", "", "Tenant (empty = default)")
	listCmd.Flags().Uint64("since", 0, "Return events with sequence greater than this")
	listCmd.Flags().Int("limit", 0, "Max events to return (0 = all buffered)")
	listCmd.Flags().String("model", "", "Only events for this model")
	return listCmd
}

// newEventsTailCommand constructs the `events tail` subcommand. It follows
// the server-sent event stream until cancelled or --limit is reached.
func newEventsTailCommand(baseURL BaseURLFunc) *cobra.Command {
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow live change events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			model, _ := cmd.Flags().GetString("model")
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")

			q := url.Values{}
			q.Set("tenant", tenant)
			if model != "" {
				q.Set("model", model)
			}
			if filter != "" {
				q.Set("filter", filter)
			}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, baseURL()+"/v1/events/tail?"+q.Encode(), nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("http error: %s", resp.Status)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			r := bufio.NewReader(resp.Body)
			count := 0
			for {
				line, err := r.ReadString('\n')
				if err != nil {
					if cmd.Context().Err() != nil {
						return nil
					}
					return err
				}
				line = strings.TrimSpace(line)
				if !strings.HasPrefix(line, "data: ") {
					continue
				}
				var ev any
				if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev) != nil {
					continue
				}
				_ = enc.Encode(ev)
				count++
				if limit > 0 && count >= limit {
					return nil
				}
			}
		},
	}
	tailCmd.Flags().StringP("tenant", "t", "", "Tenant (empty = default)")
	tailCmd.Flags().String("model", "", "Only events for this model")
	tailCmd.Flags().String("filter", "", "CEL filter (server-side)")
	tailCmd.Flags().Int("limit", 0, "Stop after N events (0 = infinite)")
	return tailCmd
}
