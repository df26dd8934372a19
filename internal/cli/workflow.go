package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Nodeflow/internal/api"
	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/engine"
	"github.com/shaiso/Nodeflow/internal/executor"
)

// ErrExecutionNotCompleted — run завершился не успешно.
type ErrExecutionNotCompleted struct {
	ID     string
	Status domain.ExecutionStatus
	Reason string
}

func (e *ErrExecutionNotCompleted) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("execution %s %s", e.ID, e.Status)
	}
	return fmt.Sprintf("execution %s %s: %s", e.ID, e.Status, e.Reason)
}

// NewRunCmd создаёт команду запуска workflow из файла.
func NewRunCmd(d Deps) *cobra.Command {
	var inputs []string
	var startNode string
	var remote bool

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Execute a workflow file (JSON or HCL)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := d.Output()

			spec, err := engine.LoadFile(args[0])
			if err != nil {
				return err
			}
			in, err := parseInputs(inputs)
			if err != nil {
				return err
			}

			var exec *domain.Execution
			if remote {
				exec, err = d.Client().Execute(api.ExecuteRequest{
					Workflow:    spec,
					StartNodeID: startNode,
					Inputs:      in,
				})
			} else {
				exec, err = runLocal(cmd, d, spec, executor.ExecuteOptions{
					StartNodeID: startNode,
					Inputs:      in,
				})
			}
			if exec == nil {
				return err
			}

			printExecution(out, exec)
			if exec.Status != domain.ExecutionStatusCompleted {
				return &ErrExecutionNotCompleted{ID: exec.ID.String(), Status: exec.Status, Reason: exec.Error}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Initial inputs as KEY=VALUE, VALUE may be JSON (repeatable)")
	cmd.Flags().StringVar(&startNode, "start", "", "Run only the subgraph reachable from this node")
	cmd.Flags().BoolVar(&remote, "remote", false, "Execute on the server instead of in-process")

	return cmd
}

func runLocal(cmd *cobra.Command, d Deps, spec *domain.WorkflowSpec, opts executor.ExecuteOptions) (*domain.Execution, error) {
	cfg, err := d.Config()
	if err != nil {
		return nil, err
	}

	ctrl, closeFn, err := newLocalController(cmd.Context(), cfg, nil)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	return ctrl.Execute(cmd.Context(), spec, opts)
}

func printExecution(out *Output, exec *domain.Execution) {
	failed := make(map[string]string, len(exec.Errors))
	for _, e := range exec.Errors {
		failed[e.NodeID] = e.Message
	}

	rows := make([][]string, 0, len(exec.NodeOrder))
	for _, id := range exec.NodeOrder {
		status, result := "completed", formatValue(exec.Results[id])
		if msg, ok := failed[id]; ok {
			status = "failed"
			if _, has := exec.Results[id]; !has {
				result = msg
			}
		}
		rows = append(rows, []string{id, status, result})
	}

	out.Infof("Execution %s %s in %s (%d/%d nodes)",
		exec.ID, exec.Status, time.Duration(exec.DurationMs)*time.Millisecond,
		exec.Metadata.CompletedNodes, exec.Metadata.TotalNodes)
	if exec.Error != "" {
		out.Errorf("%s", exec.Error)
	}
	out.Print([]string{"NODE", "STATUS", "RESULT"}, rows, exec)
	if !out.jsonMode {
		out.Line("output: %s", formatValue(exec.Output))
	}
}

// NewValidateCmd создаёт команду проверки workflow без выполнения.
func NewValidateCmd(d Deps) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a workflow file and print its execution levels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := d.Output()

			var res *api.ValidateResponse
			var err error
			if remote {
				res, err = validateRemote(d, args[0])
			} else {
				res, err = validateLocal(d, args[0])
			}
			if err != nil {
				return err
			}

			if !res.Valid {
				if out.jsonMode {
					out.JSON(res)
				}
				return fmt.Errorf("invalid workflow: %s", res.Error)
			}

			rows := make([][]string, len(res.Levels))
			for i, level := range res.Levels {
				rows[i] = []string{strconv.Itoa(i), strings.Join(level, ", ")}
			}
			out.Infof("Workflow %q is valid: %d nodes, %d levels", res.Name, res.Nodes, len(res.Levels))
			out.Print([]string{"LEVEL", "NODES"}, rows, res)
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Validate against the server's node registry")

	return cmd
}

func validateLocal(d Deps, path string) (*api.ValidateResponse, error) {
	cfg, err := d.Config()
	if err != nil {
		return nil, err
	}

	spec, err := engine.LoadFile(path)
	if err != nil {
		return &api.ValidateResponse{Error: err.Error()}, nil
	}

	g, err := engine.Build(spec, engine.BuildOptions{Registry: cfg.Registry()})
	if err != nil {
		return &api.ValidateResponse{Name: spec.Name, Nodes: len(spec.Nodes), Error: err.Error()}, nil
	}

	return &api.ValidateResponse{
		Valid:  true,
		Name:   spec.Name,
		Nodes:  g.Size(),
		Levels: g.Levels(),
		Roots:  g.Roots,
		Leaves: g.Leaves,
	}, nil
}

func validateRemote(d Deps, path string) (*api.ValidateResponse, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return d.Client().Validate(body, strings.EqualFold(filepath.Ext(path), ".hcl"))
}
