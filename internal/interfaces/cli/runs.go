package cli

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/turtacn/ProcSynth/internal/app"
	"github.com/turtacn/ProcSynth/internal/domain/run"
	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProcSynth/pkg/errors"
	"github.com/turtacn/ProcSynth/pkg/types/common"
)

// NewRunsCmd groups the commands reading stored runs.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored runs",
	}
	cmd.AddCommand(newRunsListCmd(), newRunsShowCmd(), newRunsArtifactsCmd(), newRunsFetchCmd())
	return cmd
}

// withRuntime opens the online runtime for the duration of fn.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *app.Runtime) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if cliCtx.Offline {
		return errors.InvalidParam("runs are stored remotely; drop --offline")
	}
	ctx, cancel := cliCtx.operation(cmd)
	defer cancel()
	rt, err := cliCtx.runtime(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func parseRunID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.InvalidParam("malformed run id").WithDetail(s)
	}
	return id, nil
}

func needRuns(rt *app.Runtime) error {
	if rt.Runs == nil {
		return errors.New(errors.ErrCodeExternalService, "run history needs postgres enabled")
	}
	return nil
}

func needArtifacts(rt *app.Runtime) error {
	if rt.Artifacts == nil {
		return errors.New(errors.ErrCodeExternalService, "artifacts need minio enabled")
	}
	return nil
}

func newRunsListCmd() *cobra.Command {
	var (
		status string
		page   common.Pagination
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := page.Validate(); err != nil {
				return errors.InvalidParam(err.Error())
			}
			var filter *run.Status
			if status != "" {
				st := run.Status(status)
				switch st {
				case run.StatusPending, run.StatusRunning, run.StatusSucceeded, run.StatusFailed:
				default:
					return errors.InvalidParam("unknown run status").WithDetail(status)
				}
				filter = &st
			}
			return withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
				if err := needRuns(rt); err != nil {
					return err
				}
				runs, total, err := rt.Runs.List(ctx, filter, page.PageSize, page.Offset())
				if err != nil {
					return err
				}
				page.Total = total
				return PrintResult(cmd, runListView{Runs: runs, Page: page})
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only runs in this status (pending, running, succeeded, failed)")
	cmd.Flags().IntVar(&page.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&page.PageSize, "page-size", 20, "runs per page (at most 500)")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run with its outcomes and artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
				if err := needRuns(rt); err != nil {
					return err
				}
				rn, err := rt.Runs.Get(ctx, id)
				if err != nil {
					return err
				}
				outcomes, err := rt.Runs.Outcomes(ctx, id)
				if err != nil {
					return err
				}
				view := runDetailView{Run: rn, Outcomes: outcomes}
				if rt.Artifacts != nil {
					arts, err := rt.Artifacts.ListArtifacts(ctx, id.String())
					if err != nil {
						rt.Logger.Warn("listing artifacts failed", logging.RunID(id.String()), logging.Err(err))
					}
					view.Artifacts = arts
				}
				return PrintResult(cmd, view)
			})
		},
	}
}

func newRunsArtifactsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "artifacts <run-id>",
		Short: "List the stored artifacts of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
				if err := needArtifacts(rt); err != nil {
					return err
				}
				arts, err := rt.Artifacts.ListArtifacts(ctx, id.String())
				if err != nil {
					return err
				}
				return PrintResult(cmd, artifactListView(arts))
			})
		},
	}
}

func newRunsFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <run-id> <name>",
		Short: "Write a stored artifact to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
				if err := needArtifacts(rt); err != nil {
					return err
				}
				data, err := rt.Artifacts.GetArtifact(ctx, id.String(), args[1])
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}
}
