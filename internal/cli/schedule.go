package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewScheduleCmd создаёт группу команд для управления schedules.
func NewScheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage schedules",
	}

	cmd.AddCommand(
		newScheduleListCmd(clientFn, outputFn),
		newScheduleCreateCmd(clientFn, outputFn),
		newScheduleShowCmd(clientFn, outputFn),
		newScheduleUpdateCmd(clientFn, outputFn),
		newScheduleDeleteCmd(clientFn, outputFn),
		newScheduleEnableCmd(clientFn, outputFn),
		newScheduleDisableCmd(clientFn, outputFn),
		newScheduleApplyCmd(clientFn, outputFn),
	)

	return cmd
}

func scheduleRow(s *ScheduleResponse) []string {
	expr := s.CronExpr
	if expr == "" && s.IntervalSec > 0 {
		expr = fmt.Sprintf("every %ds", s.IntervalSec)
	}
	return []string{s.ID, s.FlowID, s.Name, expr, strconv.FormatBool(s.Enabled), s.NextDueAt}
}

var scheduleHeaders = []string{"ID", "FLOW_ID", "NAME", "SCHEDULE", "ENABLED", "NEXT_DUE"}

func newScheduleListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedules, err := client.ListSchedules()
			if err != nil {
				return err
			}

			rows := make([][]string, len(schedules))
			for i := range schedules {
				rows[i] = scheduleRow(&schedules[i])
			}

			out.Print(scheduleHeaders, rows, schedules)
			return nil
		},
	}
}

func newScheduleCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var cronExpr string
	var intervalSec int
	var timezone string
	var enabled bool
	var inputs []string

	cmd := &cobra.Command{
		Use:   "create FLOW_ID",
		Short: "Create a schedule for a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := CreateScheduleRequest{
				Name:        name,
				CronExpr:    cronExpr,
				IntervalSec: intervalSec,
				Timezone:    timezone,
				Enabled:     enabled,
			}

			if len(inputs) > 0 {
				input, err := parseInputFlags(inputs)
				if err != nil {
					return err
				}
				req.Input = input
			}

			schedule, err := client.CreateSchedule(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule created: %s", schedule.ID))
			out.Print(scheduleHeaders, [][]string{scheduleRow(schedule)}, schedule)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Schedule name")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression (e.g. \"0 9 * * *\")")
	cmd.Flags().IntVar(&intervalSec, "interval", 0, "Interval in seconds")
	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "Timezone for cron evaluation")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "Enable the schedule immediately")
	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Input values as KEY=VALUE (repeatable)")

	return cmd
}

func newScheduleShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show schedule details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedule, err := client.GetSchedule(args[0])
			if err != nil {
				return err
			}

			out.Print(scheduleHeaders, [][]string{scheduleRow(schedule)}, schedule)
			return nil
		},
	}
}

func newScheduleUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var cronExpr string
	var intervalSec int
	var timezone string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateScheduleRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("cron") {
				req.CronExpr = &cronExpr
			}
			if cmd.Flags().Changed("interval") {
				req.IntervalSec = &intervalSec
			}
			if cmd.Flags().Changed("timezone") {
				req.Timezone = &timezone
			}

			schedule, err := client.UpdateSchedule(args[0], req)
			if err != nil {
				return err
			}

			out.Success("Schedule updated")
			out.Print(scheduleHeaders, [][]string{scheduleRow(schedule)}, schedule)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New schedule name")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "New cron expression")
	cmd.Flags().IntVar(&intervalSec, "interval", 0, "New interval in seconds")
	cmd.Flags().StringVar(&timezone, "timezone", "", "New timezone")

	return cmd
}

func newScheduleDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteSchedule(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule deleted: %s", args[0]))
			return nil
		},
	}
}

func newScheduleEnableCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "enable ID",
		Short: "Enable a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedule, err := client.EnableSchedule(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule enabled: %s", schedule.ID))
			return nil
		},
	}
}

// scheduleSpec — одна запись файла для schedule apply.
type scheduleSpec struct {
	Flow        string         `yaml:"flow"`
	Name        string         `yaml:"name"`
	Cron        string         `yaml:"cron"`
	IntervalSec int            `yaml:"interval"`
	Timezone    string         `yaml:"timezone"`
	Enabled     *bool          `yaml:"enabled"`
	Input       map[string]any `yaml:"input"`
}

// scheduleFile — формат файла для schedule apply.
type scheduleFile struct {
	Schedules []scheduleSpec `yaml:"schedules"`
}

func newScheduleApplyCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create schedules in bulk from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read schedule file: %w", err)
			}

			var sf scheduleFile
			if err := yaml.Unmarshal(data, &sf); err != nil {
				return fmt.Errorf("failed to parse schedule file: %w", err)
			}
			if len(sf.Schedules) == 0 {
				return fmt.Errorf("schedule file %s contains no schedules", file)
			}

			// Flows адресуются в файле по имени, API — по ID
			flows, err := client.ListFlows()
			if err != nil {
				return err
			}
			flowIDs := make(map[string]string, len(flows))
			for _, f := range flows {
				flowIDs[f.Name] = f.ID
			}

			rows := make([][]string, 0, len(sf.Schedules))
			for i, spec := range sf.Schedules {
				if spec.Flow == "" {
					return fmt.Errorf("schedule %d: flow name is required", i+1)
				}
				flowID, ok := flowIDs[spec.Flow]
				if !ok {
					return fmt.Errorf("schedule %d: flow %q is not registered", i+1, spec.Flow)
				}

				enabled := true
				if spec.Enabled != nil {
					enabled = *spec.Enabled
				}

				schedule, err := client.CreateSchedule(flowID, CreateScheduleRequest{
					Name:        spec.Name,
					CronExpr:    spec.Cron,
					IntervalSec: spec.IntervalSec,
					Timezone:    spec.Timezone,
					Enabled:     enabled,
					Input:       spec.Input,
				})
				if err != nil {
					return fmt.Errorf("schedule %d (%s): %w", i+1, spec.Flow, err)
				}
				rows = append(rows, scheduleRow(schedule))
			}

			out.Success(fmt.Sprintf("Applied %d schedule(s)", len(rows)))
			out.Table(scheduleHeaders, rows)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with schedules (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newScheduleDisableCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "disable ID",
		Short: "Disable a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedule, err := client.DisableSchedule(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule disabled: %s", schedule.ID))
			return nil
		},
	}
}
