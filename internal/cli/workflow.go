package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/flowgraph/internal/engine"
)

// NewWorkflowCmd создаёт группу команд для управления workflows.
func NewWorkflowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Manage workflows",
	}

	cmd.AddCommand(
		newWorkflowListCmd(clientFn, outputFn),
		newWorkflowShowCmd(clientFn, outputFn),
		newWorkflowCreateCmd(clientFn, outputFn),
		newWorkflowDeleteCmd(clientFn, outputFn),
		newWorkflowValidateCmd(clientFn, outputFn),
	)

	return cmd
}

func newWorkflowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			workflows, err := client.ListWorkflows()
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "ACTIVE", "NODES", "EDGES", "UPDATED"}
			rows := make([][]string, len(workflows))
			for i, wf := range workflows {
				rows[i] = []string{
					wf.ID, wf.Name, strconv.FormatBool(wf.IsActive),
					strconv.Itoa(wf.Nodes), strconv.Itoa(wf.Edges), wf.UpdatedAt,
				}
			}

			out.Print(headers, rows, workflows)
			return nil
		},
	}
}

func newWorkflowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show workflow nodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			wf, err := client.GetWorkflow(args[0])
			if err != nil {
				return err
			}

			headers := []string{"NODE", "KIND", "LABEL", "LAST_ERROR"}
			rows := make([][]string, len(wf.Nodes))
			for i, node := range wf.Nodes {
				rows[i] = []string{node.ID, node.Kind().String(), node.Label, node.LastError}
			}

			out.Print(headers, rows, wf)
			return nil
		},
	}
}

func newWorkflowCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "create FILE",
		Short: "Create a workflow from a JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}

			wf, err := engine.ParseWorkflow(data)
			if err != nil {
				return err
			}

			created, err := client.CreateWorkflow(wf)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Workflow created: %s", created.ID))
			out.Print(
				[]string{"ID", "NAME", "ACTIVE", "NODES", "EDGES"},
				[][]string{{
					created.ID, created.Name, strconv.FormatBool(created.IsActive),
					strconv.Itoa(len(created.Nodes)), strconv.Itoa(len(created.Edges)),
				}},
				created,
			)
			return nil
		},
	}
}

func newWorkflowDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteWorkflow(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Workflow deleted: %s", args[0]))
			return nil
		},
	}
}

func newWorkflowValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate ID",
		Short: "Validate a stored workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			resp, err := client.ValidateWorkflow(args[0])
			if err != nil {
				return err
			}

			return printValidation(out, resp)
		},
	}
}

// printValidation выводит ошибки валидации. Невалидный workflow — ошибка команды.
func printValidation(out *Output, resp *ValidationResponse) error {
	if resp.Valid {
		if out.jsonMode {
			out.JSON(resp)
		}
		out.Success("Workflow is valid")
		return nil
	}

	headers := []string{"NODE", "FIELD", "MESSAGE"}
	rows := make([][]string, len(resp.Errors))
	for i, issue := range resp.Errors {
		rows[i] = []string{issue.NodeID, issue.Field, issue.Message}
	}
	out.Print(headers, rows, resp)

	return fmt.Errorf("%w: %d error(s)", ErrInvalidWorkflow, len(resp.Errors))
}
