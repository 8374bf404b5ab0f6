package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для управления runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunStartCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
		newRunTasksCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var flow string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(ListRunsOpts{
				Flow:   flow,
				Status: status,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "FLOW", "STATUS", "STALE", "CREATED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				stale := ""
				if r.Stale {
					stale = "yes"
				}
				rows[i] = []string{r.ID, r.FlowName, r.Status, stale, r.CreatedAt}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&flow, "flow", "", "Filter by flow name")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, COMPLETED, FAILED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRunStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var inputs []string

	cmd := &cobra.Command{
		Use:   "start FLOW_ID",
		Short: "Queue a new run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := CreateRunRequest{}
			if len(inputs) > 0 {
				input, err := parseInputFlags(inputs)
				if err != nil {
					return err
				}
				req.Input = input
			}

			queued, err := client.CreateRun(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run queued: %s", queued.RunID))
			out.Print(
				[]string{"RUN_ID", "FLOW", "STATUS"},
				[][]string{{queued.RunID, queued.FlowName, queued.Status}},
				queued,
			)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Input values as KEY=VALUE (repeatable)")

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "FLOW", "STATUS", "ERROR", "CREATED"},
				[][]string{{run.ID, run.FlowName, run.Status, run.Error, run.CreatedAt}},
				run,
			)
			return nil
		},
	}
}

func newRunTasksCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks RUN_ID",
		Short: "List tasks in a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tasks, err := client.ListRunTasks(args[0])
			if err != nil {
				return err
			}

			headers := []string{"NAME", "STATUS", "ERROR"}
			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = []string{t.Name, t.Status, t.Error}
			}

			out.Print(headers, rows, tasks)
			return nil
		},
	}
}

// parseInputFlags разбирает повторяемые флаги --input KEY=VALUE.
func parseInputFlags(inputs []string) (map[string]any, error) {
	result := make(map[string]any, len(inputs))
	for _, kv := range inputs {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid input format %q, expected KEY=VALUE", kv)
		}
		result[parts[0]] = parts[1]
	}
	return result, nil
}
