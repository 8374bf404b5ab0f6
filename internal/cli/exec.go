package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/dsl"
	"github.com/shaiso/Conductor/internal/engine"
	"github.com/shaiso/Conductor/internal/graph"
	"github.com/shaiso/Conductor/internal/store"
	"github.com/shaiso/Conductor/internal/tasks"
)

// NewExecCmd создаёт команду локального выполнения flow.
//
// exec не требует сервера: flow парсится из файла, выполняется
// in-process со встроенным реестром задач, результаты пишутся
// в хранилище в памяти и выводятся на экран.
func NewExecCmd(outputFn func() *Output) *cobra.Command {
	var parallel bool
	var workers int
	var taskTimeout time.Duration
	var failFast bool
	var inputs []string
	var inputFile string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "exec FILE",
		Short: "Execute a flow from a DSL file locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read flow file: %w", err)
			}

			def, err := dsl.Parse(string(source))
			if err != nil {
				return err
			}

			registry := tasks.Builtin()
			dag, err := graph.Build(def, registry)
			if err != nil {
				return err
			}

			input, err := collectInput(inputFile, inputs)
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			eng := engine.New(engine.Config{
				Registry: registry,
				Recorder: store.NewMemory(),
				Logger:   logger,
			})

			mode := engine.ModeSequential
			if parallel {
				mode = engine.ModeParallel
			}

			run, err := eng.Run(cmd.Context(), dag, input, engine.Options{
				Mode:        mode,
				Workers:     workers,
				TaskTimeout: taskTimeout,
				FailFast:    failFast,
			})
			if err != nil {
				return err
			}

			printRunSummary(out, run)

			if run.Status == domain.RunStatusFailed {
				return fmt.Errorf("run failed: %s", run.Error)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&parallel, "parallel", false, "Execute independent tasks concurrently")
	cmd.Flags().IntVar(&workers, "workers", 0, "Worker pool size for --parallel (default: CPU count, max 4)")
	cmd.Flags().DurationVar(&taskTimeout, "timeout", 0, "Per-task timeout (e.g. 30s); 0 disables")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop dispatching new tasks after the first failure")
	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Input values as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&inputFile, "input-file", "", "YAML or JSON file with flow input")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Log task transitions to stderr")

	return cmd
}

// collectInput собирает вход flow: файл сначала, затем поверх него
// значения из --input.
func collectInput(inputFile string, inputs []string) (map[string]any, error) {
	input := make(map[string]any)

	if inputFile != "" {
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		// YAML — надмножество JSON, один разбор покрывает оба формата
		if err := yaml.Unmarshal(data, &input); err != nil {
			return nil, fmt.Errorf("failed to parse input file: %w", err)
		}
	}

	if len(inputs) > 0 {
		flags, err := parseInputFlags(inputs)
		if err != nil {
			return nil, err
		}
		for k, v := range flags {
			input[k] = v
		}
	}

	return input, nil
}

// printRunSummary выводит таблицу задач и итоговый результат run.
func printRunSummary(out *Output, run *domain.FlowRun) {
	headers := []string{"TASK", "STATUS", "DURATION", "ERROR"}
	rows := make([][]string, len(run.Tasks))
	for i, t := range run.Tasks {
		duration := ""
		if d := t.Duration(); d > 0 {
			duration = d.Round(time.Millisecond).String()
		}
		rows[i] = []string{t.Name, string(t.Status), duration, t.Error}
	}

	out.Print(headers, rows, run)

	if !out.jsonMode && len(run.Result) > 0 {
		out.Success("")
		out.Success("Result:")
		out.JSON(run.Result)
	}

	out.Success(fmt.Sprintf("Run %s: %s (%s)", run.ID, run.Status, run.Duration().Round(time.Millisecond)))
}
