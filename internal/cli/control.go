package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewControlCmds создаёт команды управления сервером:
// status, pause, resume, stop, history, show, stats, cache, node-types.
func NewControlCmds(d Deps) []*cobra.Command {
	return []*cobra.Command{
		newStatusCmd(d),
		newControlCmd(d, "pause", "Pause the running workflow at the next level boundary", (*Client).Pause),
		newControlCmd(d, "resume", "Resume a paused workflow", (*Client).Resume),
		newControlCmd(d, "stop", "Stop the running workflow at the next level boundary", (*Client).Stop),
		newHistoryCmd(d),
		newShowCmd(d),
		newStatsCmd(d),
		newCacheCmd(d),
		newNodeTypesCmd(d),
	}
}

func newStatusCmd(d Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show controller status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := d.Client().Status()
			if err != nil {
				return err
			}

			d.Output().Print(
				[]string{"RUNNING", "PAUSED", "RUNNING_NODES", "ACTIVE_EXECUTIONS"},
				[][]string{{
					strconv.FormatBool(status.IsRunning),
					strconv.FormatBool(status.IsPaused),
					joinOrDash(status.RunningNodeIDs),
					joinOrDash(status.ActiveExecutions),
				}},
				status,
			)
			return nil
		},
	}
}

func newControlCmd(d Deps, use, short string, action func(*Client) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := action(d.Client())
			if err != nil {
				return err
			}
			d.Output().Infof("Workflow %s", status)
			return nil
		},
	}
}

func newHistoryCmd(d Deps) *cobra.Command {
	var opts ListExecutionsOpts

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent executions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			execs, err := d.Client().ListExecutions(opts)
			if err != nil {
				return err
			}

			headers := []string{"ID", "WORKFLOW", "STATUS", "NODES", "DURATION", "STARTED"}
			rows := make([][]string, len(execs))
			for i, e := range execs {
				rows[i] = []string{
					e.ID.String(),
					e.WorkflowName,
					string(e.Status),
					fmt.Sprintf("%d/%d", e.Metadata.CompletedNodes, e.Metadata.TotalNodes),
					(time.Duration(e.DurationMs) * time.Millisecond).String(),
					e.StartTime.Format(time.RFC3339),
				}
			}

			d.Output().Print(headers, rows, execs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (completed, failed, stopped)")
	cmd.Flags().StringVar(&opts.Workflow, "workflow", "", "Filter by workflow name")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Number of results to skip")
	cmd.Flags().BoolVar(&opts.Archive, "archive", false, "Read from the Postgres archive instead of in-memory history")

	return cmd
}

func newShowCmd(d Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show execution details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := d.Client().GetExecution(args[0])
			if err != nil {
				return err
			}
			printExecution(d.Output(), exec)
			return nil
		},
	}
}

func newStatsCmd(d Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show execution statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := d.Client().Stats()
			if err != nil {
				return err
			}

			d.Output().Print(
				[]string{"TOTAL", "COMPLETED", "FAILED", "STOPPED", "SUCCESS_RATE", "AVG_DURATION", "AVG_NODES"},
				[][]string{{
					strconv.Itoa(stats.Total),
					strconv.Itoa(stats.Completed),
					strconv.Itoa(stats.Failed),
					strconv.Itoa(stats.Stopped),
					fmt.Sprintf("%.1f%%", stats.SuccessRate*100),
					stats.AverageDuration.String(),
					fmt.Sprintf("%.1f", stats.AverageNodesPerRun),
				}},
				stats,
			)
			return nil
		},
	}
}

func newCacheCmd(d Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the node result cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Clear cached node results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := d.Client().ClearCache(); err != nil {
				return err
			}
			d.Output().Infof("Cache cleared")
			return nil
		},
	})

	return cmd
}

func newNodeTypesCmd(d Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "node-types",
		Short: "List node types registered on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := d.Client().NodeTypes()
			if err != nil {
				return err
			}

			rows := make([][]string, len(types.Types))
			for i, t := range types.Types {
				rows[i] = []string{t}
			}
			out := d.Output()
			out.Print([]string{"TYPE"}, rows, types)
			if types.Remote && !out.jsonMode {
				out.Infof("Unknown types are forwarded to the remote execution API")
			}
			return nil
		},
	}
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}
