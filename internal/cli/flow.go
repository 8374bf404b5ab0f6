package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewFlowCmd создаёт группу команд для управления flows.
func NewFlowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Manage flows",
	}

	cmd.AddCommand(
		newFlowListCmd(clientFn, outputFn),
		newFlowRegisterCmd(clientFn, outputFn),
		newFlowShowCmd(clientFn, outputFn),
		newFlowUpdateCmd(clientFn, outputFn),
	)

	return cmd
}

func newFlowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all flows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flows, err := client.ListFlows()
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "ACTIVE", "CREATED"}
			rows := make([][]string, len(flows))
			for i, f := range flows {
				rows[i] = []string{f.ID, f.Name, strconv.FormatBool(f.IsActive), f.CreatedAt}
			}

			out.Print(headers, rows, flows)
			return nil
		},
	}
}

func newFlowRegisterCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "register FILE",
		Short: "Register a flow from a DSL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read flow file: %w", err)
			}

			flow, err := client.CreateFlow(CreateFlowRequest{
				Source:      string(source),
				Description: description,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow registered: %s (%s)", flow.Name, flow.ID))
			out.Print(
				[]string{"ID", "NAME", "TASKS", "ACTIVE", "CREATED"},
				[][]string{{flow.ID, flow.Name, strings.Join(flow.Tasks, ","), strconv.FormatBool(flow.IsActive), flow.CreatedAt}},
				flow,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Flow description (overrides the one in the DSL)")

	return cmd
}

func newFlowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var showSource bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show flow details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flow, err := client.GetFlow(args[0])
			if err != nil {
				return err
			}

			if showSource {
				out.Raw(flow.Source)
				return nil
			}

			out.Print(
				[]string{"ID", "NAME", "TASKS", "ACTIVE", "CREATED"},
				[][]string{{flow.ID, flow.Name, strings.Join(flow.Tasks, ","), strconv.FormatBool(flow.IsActive), flow.CreatedAt}},
				flow,
			)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSource, "source", false, "Print the flow DSL source instead of metadata")

	return cmd
}

func newFlowUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var description string
	var active string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update flow metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateFlowRequest{}
			if cmd.Flags().Changed("description") {
				req.Description = &description
			}
			if cmd.Flags().Changed("active") {
				b, err := strconv.ParseBool(active)
				if err != nil {
					return fmt.Errorf("invalid value for --active: %s", active)
				}
				req.IsActive = &b
			}

			flow, err := client.UpdateFlow(args[0], req)
			if err != nil {
				return err
			}

			out.Success("Flow updated")
			out.Print(
				[]string{"ID", "NAME", "ACTIVE", "CREATED"},
				[][]string{{flow.ID, flow.Name, strconv.FormatBool(flow.IsActive), flow.CreatedAt}},
				flow,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&active, "active", "", "Set active status (true/false)")

	return cmd
}

// NewTasksCmd создаёт команду списка задач реестра.
func NewTasksCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List tasks available in the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tasks, err := client.ListRegistryTasks()
			if err != nil {
				return err
			}

			headers := []string{"NAME", "DESCRIPTION"}
			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = []string{t.Name, t.Description}
			}

			out.Print(headers, rows, tasks)
			return nil
		},
	}
}
