package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewExecuteCmd создаёт команду синхронного запуска workflow.
func NewExecuteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var startNode string
	var input string

	cmd := &cobra.Command{
		Use:   "execute ID",
		Short: "Execute a workflow and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			seed, err := parseJSONFlag("input", input)
			if err != nil {
				return err
			}

			rec, err := client.Execute(args[0], ExecuteRequest{StartNodeID: startNode, Input: seed})
			if err != nil {
				return err
			}

			return printExecution(out, rec)
		},
	}

	cmd.Flags().StringVar(&startNode, "start-node", "", "Node to start from (default: all triggers)")
	cmd.Flags().StringVar(&input, "input", "", "Seed input as JSON")

	return cmd
}

// NewCancelCmd создаёт команду отмены активного run.
func NewCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel the active run of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			cancelled, err := client.Cancel(args[0])
			if err != nil {
				return err
			}

			if cancelled {
				out.Success(fmt.Sprintf("Run cancelled: %s", args[0]))
			} else {
				out.Success(fmt.Sprintf("No active run: %s", args[0]))
			}
			return nil
		},
	}
}

// NewTriggerCmd создаёт команду отправки webhook.
func NewTriggerCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var payload string

	cmd := &cobra.Command{
		Use:   "trigger ID",
		Short: "Send a webhook to a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if payload != "" && !json.Valid([]byte(payload)) {
				return fmt.Errorf("invalid value for --payload: must be JSON")
			}

			runID, err := client.Trigger(args[0], json.RawMessage(payload))
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run started: %s", runID))
			out.Print([]string{"RUN_ID"}, [][]string{{runID}}, map[string]string{"run_id": runID})
			return nil
		},
	}

	cmd.Flags().StringVar(&payload, "payload", "", "Webhook payload as JSON")

	return cmd
}

// parseJSONFlag декодирует значение флага. Пустое значение — nil.
func parseJSONFlag(name, value string) (any, error) {
	if value == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(value), &v); err != nil {
		return nil, fmt.Errorf("invalid value for --%s: %w", name, err)
	}
	return v, nil
}
