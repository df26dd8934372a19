package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Nodeflow/internal/api"
	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/engine"
	"github.com/shaiso/Nodeflow/internal/executor"
	"github.com/shaiso/Nodeflow/internal/trigger"
)

const scheduleStopTimeout = 30 * time.Second

// NewScheduleCmd создаёт группу команд запуска по расписанию.
func NewScheduleCmd(d Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run workflows on a cron schedule",
	}

	cmd.AddCommand(
		newScheduleRunCmd(d),
		newScheduleNextCmd(d),
	)

	return cmd
}

func newScheduleRunCmd(d Deps) *cobra.Command {
	var expr string
	var timezone string
	var name string
	var inputs []string
	var remote bool

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Execute a workflow file on a schedule until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := d.Output()

			spec, err := engine.LoadFile(args[0])
			if err != nil {
				return err
			}
			in, err := parseInputs(inputs)
			if err != nil {
				return err
			}
			cfg, err := d.Config()
			if err != nil {
				return err
			}

			var exec trigger.Executor
			if remote {
				exec = &remoteExecutor{client: d.Client()}
			} else {
				ctrl, closeFn, err := newLocalController(ctx, cfg, nil)
				if err != nil {
					return err
				}
				defer closeFn()
				exec = ctrl
			}

			t := trigger.New(trigger.Config{
				Executor: exec,
				OnRun: func(name string, e *domain.Execution, err error) {
					switch {
					case errors.Is(err, engine.ErrAlreadyRunning):
						out.Infof("[%s] skipped: previous execution still running", name)
					case e == nil:
						out.Errorf("[%s] %v", name, err)
					default:
						out.Line("%s\t%s\t%s\t%s", time.Now().Format(time.RFC3339), name, e.ID, e.CurrentStatus())
					}
				},
				Logger: cliLogger(cfg),
			})

			id, err := t.Add(trigger.Schedule{
				Name:     name,
				Expr:     expr,
				Timezone: timezone,
				Workflow: spec,
				Inputs:   in,
			})
			if err != nil {
				return err
			}

			t.Start()
			for _, e := range t.Entries() {
				if e.ID == id {
					out.Infof("Scheduled %q (%s), next run at %s", e.Name, e.Expr, e.Next.Format(time.RFC3339))
				}
			}

			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), scheduleStopTimeout)
			defer cancel()
			return t.Stop(stopCtx)
		},
	}

	cmd.Flags().StringVar(&expr, "cron", "", "Cron expression or descriptor, e.g. \"*/5 * * * *\" or \"@every 30s\"")
	cmd.Flags().StringVar(&timezone, "tz", "", "Timezone for the cron expression (default UTC)")
	cmd.Flags().StringVar(&name, "name", "", "Schedule name (default: workflow name)")
	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Initial inputs as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&remote, "remote", false, "Submit runs to the server instead of executing in-process")
	_ = cmd.MarkFlagRequired("cron")

	return cmd
}

func newScheduleNextCmd(d Deps) *cobra.Command {
	var timezone string
	var count int

	cmd := &cobra.Command{
		Use:   "next EXPR",
		Short: "Print the next run times for a cron expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			times, err := nextRuns(args[0], timezone, time.Now(), count)
			if err != nil {
				return err
			}

			rows := make([][]string, len(times))
			for i, t := range times {
				rows[i] = []string{strconv.Itoa(i + 1), t.Format(time.RFC3339)}
			}
			d.Output().Print([]string{"#", "TIME (UTC)"}, rows, times)
			return nil
		},
	}

	cmd.Flags().StringVar(&timezone, "tz", "", "Timezone for the cron expression (default UTC)")
	cmd.Flags().IntVar(&count, "count", 5, "Number of run times to print")

	return cmd
}

func nextRuns(expr, timezone string, from time.Time, count int) ([]time.Time, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive")
	}

	out := make([]time.Time, 0, count)
	for i := 0; i < count; i++ {
		next, err := trigger.NextRun(expr, timezone, from)
		if err != nil {
			return nil, err
		}
		out = append(out, next)
		from = next
	}
	return out, nil
}

// remoteExecutor запускает workflow на сервере через API.
type remoteExecutor struct {
	client *Client
}

func (r *remoteExecutor) Execute(_ context.Context, spec *domain.WorkflowSpec, opts executor.ExecuteOptions) (*domain.Execution, error) {
	exec, err := r.client.Execute(api.ExecuteRequest{
		Workflow:    spec,
		StartNodeID: opts.StartNodeID,
		Inputs:      opts.Inputs,
	})

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
		return nil, fmt.Errorf("%w: %s", engine.ErrAlreadyRunning, apiErr.Message)
	}
	return exec, err
}
