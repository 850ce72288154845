package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewQueueCommand constructs the `queue` command group and subcommands.
func NewQueueCommand(baseURL BaseURLFunc) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Durable queue operations (lease and complete sink-fed messages)",
	}
	queueCmd.AddCommand(
		newQueueLeaseCommand(baseURL),
		newQueueCompleteCommand(baseURL),
	)
	return queueCmd
}

// newQueueLeaseCommand constructs the `queue lease` subcommand.
func newQueueLeaseCommand(baseURL BaseURLFunc) *cobra.Command {
	leaseCmd := &cobra.Command{
		Use:   "lease",
		Short: "Lease pending messages for a consumer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			queue, _ := cmd.Flags().GetString("queue")
			consumer, _ := cmd.Flags().GetString("consumer")
			max, _ := cmd.Flags().GetInt("max")
			leaseMs, _ := cmd.Flags().GetInt64("lease-ms")

			if queue == "" || consumer == "" {
				return fmt.Errorf("queue and consumer are required")
			}
			body := map[string]any{
				"tenant":   tenant,
				"queue":    queue,
				"consumer": consumer,
				"max":      max,
				"leaseMs":  leaseMs,
			}
			var out struct {
				Messages []struct {
					Seq           uint64 `json:"seq"`
					TsMs          int64  `json:"tsMs"`
					Payload       []byte `json:"payload"`
					DeliveryCount int    `json:"deliveryCount"`
				} `json:"messages"`
			}
			if err := postJSON(baseURL()+"/v1/queue/lease", body, &out); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, m := range out.Messages {
				dm := decodedPayload(m.Payload)
				dm["seq"] = m.Seq
				dm["tsMs"] = m.TsMs
				dm["deliveryCount"] = m.DeliveryCount
				_ = enc.Encode(dm)
			}
			return nil
		},
	}
	leaseCmd.Flags().StringP("tenant", "t", "", "Tenant (empty = default)")
	leaseCmd.Flags().String("queue", "", "Queue name")
	leaseCmd.Flags().String("consumer", "", "Consumer id")
	leaseCmd.Flags().Int("max", 10, "Max messages to lease")
	leaseCmd.Flags().Int64("lease-ms", 30000, "Lease duration in ms")
	return leaseCmd
}

// newQueueCompleteCommand constructs the `queue complete` subcommand.
func newQueueCompleteCommand(baseURL BaseURLFunc) *cobra.Command {
	completeCmd := &cobra.Command{
		Use:   "complete",
		Short: "Complete leased messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			queue, _ := cmd.Flags().GetString("queue")
			consumer, _ := cmd.Flags().GetString("consumer")
			seqs, _ := cmd.Flags().GetUint64Slice("seq")

			if queue == "" || consumer == "" {
				return fmt.Errorf("queue and consumer are required")
			}
			if len(seqs) == 0 {
				return fmt.Errorf("at least one --seq is required")
			}
			body := map[string]any{
				"tenant":   tenant,
				"queue":    queue,
				"consumer": consumer,
				"seqs":     seqs,
			}
			var out struct {
				Completed int `json:"completed"`
			}
			if err := postJSON(baseURL()+"/v1/queue/complete", body, &out); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "completed:", out.Completed)
			return nil
		},
	}
	completeCmd.Flags().StringP("tenant", "t", "", "Tenant (empty = default)")
	completeCmd.Flags().String("queue", "", "Queue name")
	completeCmd.Flags().String("consumer", "", "Consumer id")
	completeCmd.Flags().Uint64Slice("seq", nil, "Message sequence to complete (repeat)")
	return completeCmd
}
