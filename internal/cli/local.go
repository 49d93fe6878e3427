package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"

	"github.com/spf13/cobra"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/engine"
	"github.com/shaiso/flowgraph/internal/mail"
	"github.com/shaiso/flowgraph/internal/steps"
	"github.com/shaiso/flowgraph/internal/telemetry"
)

// localFrom — адрес отправителя для писем при локальном запуске.
const localFrom = "flowgraph@localhost"

// NewLocalCmd создаёт группу команд, которые работают с файлом без API.
func NewLocalCmd(outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "local",
		Short: "Run or validate a workflow file without the API server",
	}

	cmd.AddCommand(
		newLocalRunCmd(outputFn),
		newLocalValidateCmd(outputFn),
	)

	return cmd
}

func newLocalRunCmd(outputFn func() *Output) *cobra.Command {
	var startNode string
	var input string
	var envPrefix string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Execute a workflow file in-process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			wf, err := readWorkflowFile(args[0])
			if err != nil {
				return err
			}

			seed, err := parseJSONFlag("input", input)
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if verbose {
				level = telemetry.LogLevel()
			}
			logger := slog.New(slog.NewTextHandler(out.errW, &slog.HandlerOptions{Level: level}))

			eng := newLocalEngine(logger, envPrefix)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			rec, err := eng.Run(ctx, wf, engine.RunOptions{StartNodeID: startNode, Input: seed})
			if err != nil {
				return err
			}

			return printExecution(out, &ExecutionResponse{
				ExecutionRecord: *rec,
				DurationMs:      rec.Duration().Milliseconds(),
			})
		},
	}

	cmd.Flags().StringVar(&startNode, "start-node", "", "Node to start from (default: all triggers)")
	cmd.Flags().StringVar(&input, "input", "", "Seed input as JSON")
	cmd.Flags().StringVar(&envPrefix, "env-prefix", "FLOWGRAPH_VAR_", "Env vars with this prefix are exposed as .Env")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print the execution log to stderr")

	return cmd
}

func newLocalValidateCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a workflow file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			wf, err := readWorkflowFile(args[0])
			if err != nil {
				return err
			}

			errs := engine.ValidateWorkflow(wf, steps.DefaultRegistry(steps.Options{Logger: discardLogger()}))
			return printValidation(out, validationFromErrors(errs))
		},
	}
}

// NewStepsCmd создаёт команду со списком поддерживаемых шагов.
func NewStepsCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List supported step kinds",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			defs := steps.DefaultRegistry(steps.Options{Logger: discardLogger()}).Definitions()
			sort.Slice(defs, func(i, j int) bool {
				return defs[i].Kind.String() < defs[j].Kind.String()
			})

			list := make([]StepResponse, len(defs))
			rows := make([][]string, len(defs))
			for i, def := range defs {
				list[i] = StepResponse{
					Kind:          def.Kind.String(),
					Description:   def.Description,
					Branching:     def.Branching,
					DefaultConfig: def.DefaultConfig(),
				}
				branching := ""
				if def.Branching {
					branching = "yes"
				}
				rows[i] = []string{list[i].Kind, branching, def.Description}
			}

			out.Print([]string{"KIND", "BRANCHING", "DESCRIPTION"}, rows, list)
			return nil
		},
	}
}

// newLocalEngine собирает движок для запуска в процессе CLI.
// Письма пишутся в лог, шаг database недоступен.
func newLocalEngine(logger *slog.Logger, envPrefix string) *engine.Engine {
	registry := steps.DefaultRegistry(steps.Options{
		Logger: logger,
		Mailer: mail.NewLogSender(logger, localFrom),
	})

	return engine.New(engine.Config{
		Registry: registry,
		Logger:   logger,
		Env:      engine.EnvFromProcess(envPrefix),
	})
}

func readWorkflowFile(path string) (*domain.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return engine.ParseWorkflow(data)
}

// validationFromErrors повторяет формат ответа POST /workflows/{id}/validate.
func validationFromErrors(errs []error) *ValidationResponse {
	resp := &ValidationResponse{Valid: len(errs) == 0, Errors: make([]ValidationIssue, 0, len(errs))}
	for _, err := range errs {
		issue := ValidationIssue{Message: err.Error()}
		var vErr *engine.ValidationError
		if errors.As(err, &vErr) {
			issue.NodeID = vErr.NodeID
			issue.Field = vErr.Field
			issue.Message = vErr.Message
		}
		resp.Errors = append(resp.Errors, issue)
	}
	return resp
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
