package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/flowgraph/internal/domain"
)

// NewExecutionCmd создаёт группу команд для просмотра runs.
func NewExecutionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execution",
		Short: "Inspect executions",
	}

	cmd.AddCommand(
		newExecutionListCmd(clientFn, outputFn),
		newExecutionShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newExecutionListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var workflowID string
	var limit int
	var active bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List executions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var records []ExecutionSummary
			var err error
			if active {
				records, err = client.ListActiveExecutions()
			} else {
				records, err = client.ListExecutions(ListExecutionsOpts{WorkflowID: workflowID, Limit: limit})
			}
			if err != nil {
				return err
			}

			headers := []string{"RUN_ID", "WORKFLOW", "STATUS", "NODES", "DURATION", "STARTED", "ERROR"}
			rows := make([][]string, len(records))
			for i, r := range records {
				rows[i] = []string{
					r.RunID, r.WorkflowID, r.Status, strconv.Itoa(r.Nodes),
					formatDuration(r.DurationMs), r.StartedAt, r.Error,
				}
			}

			out.Print(headers, rows, records)
			return nil
		},
	}

	cmd.Flags().StringVar(&workflowID, "workflow", "", "Filter by workflow ID")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max number of executions")
	cmd.Flags().BoolVar(&active, "active", false, "Show only running executions")

	return cmd
}

func newExecutionShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show execution log and outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			rec, err := client.GetExecution(args[0])
			if err != nil {
				return err
			}

			// Завершённый с ошибкой run — не ошибка команды show
			printExecution(out, rec)
			return nil
		},
	}
}

// printExecution выводит журнал run.
// Возвращает ErrRunFailed, если run не завершился успешно.
func printExecution(out *Output, rec *ExecutionResponse) error {
	if out.jsonMode {
		out.JSON(rec)
	} else {
		headers := []string{"TIME", "LEVEL", "NODE", "MESSAGE"}
		rows := make([][]string, len(rec.Logs))
		for i, entry := range rec.Logs {
			rows[i] = []string{
				entry.Timestamp.Format(time.TimeOnly), string(entry.Level), entry.NodeID, entry.Message,
			}
		}
		out.Table(headers, rows)
	}

	out.Success(fmt.Sprintf("Run %s: %s (%s, %d nodes)",
		rec.RunID, rec.Status, formatDuration(rec.DurationMs), len(rec.NodeOutputs)))

	if rec.Status != domain.ExecutionCompleted {
		if rec.Error != "" {
			return fmt.Errorf("%w: %s: %s", ErrRunFailed, rec.Status, rec.Error)
		}
		return fmt.Errorf("%w: %s", ErrRunFailed, rec.Status)
	}
	return nil
}

func formatDuration(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}
