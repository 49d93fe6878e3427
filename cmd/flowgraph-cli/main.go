// flowgraph CLI — инструмент командной строки для управления
// workflows и runs через HTTP API и для локального запуска workflow.
//
// Использование:
//
//	flowgraph [--api-url URL] [--json] <command> [subcommand] [flags]
//
// Команды:
//
//	workflow   Управление workflows
//	execute    Синхронный запуск workflow
//	cancel     Отмена активного run
//	trigger    Отправка webhook
//	execution  Просмотр runs
//	local      Запуск и проверка файла без API
//	steps      Поддерживаемые шаги
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/flowgraph/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "flowgraph",
		Short:         "flowgraph CLI — workflow execution engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := os.Getenv("FLOWGRAPH_API_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewWorkflowCmd(clientFn, outputFn),
		cli.NewExecuteCmd(clientFn, outputFn),
		cli.NewCancelCmd(clientFn, outputFn),
		cli.NewTriggerCmd(clientFn, outputFn),
		cli.NewExecutionCmd(clientFn, outputFn),
		cli.NewLocalCmd(outputFn),
		cli.NewStepsCmd(outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
