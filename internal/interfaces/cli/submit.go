package cli

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/turtacn/ProcSynth/internal/application/optimization"
	"github.com/turtacn/ProcSynth/internal/domain/run"
	"github.com/turtacn/ProcSynth/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ProcSynth/pkg/errors"
	"github.com/turtacn/ProcSynth/pkg/types/process"
)

type submitView struct {
	RunID   string `json:"run_id"`
	Mode    string `json:"mode"`
	CaseKey string `json:"case_key"`
}

func (v submitView) String() string { return v.RunID }

// NewSubmitCmd queues a run for the worker.
func NewSubmitCmd() *cobra.Command {
	var (
		f       runFlags
		mode    string
		params  []string
		primary string
		second  string
		points  int
	)
	cmd := &cobra.Command{
		Use:   "submit <case>",
		Short: "Queue a run for a worker",
		Long: "Upload the case to object storage and publish a run request. The run id is\n" +
			"printed; follow it with 'procsynth runs show'.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if cliCtx.Offline {
				return errors.InvalidParam("submit needs object storage and kafka; drop --offline")
			}
			ctx, cancel := cliCtx.operation(cmd)
			defer cancel()

			var m run.Mode
			if mode != "" {
				if m, err = run.ParseMode(mode); err != nil {
					return err
				}
			}
			opts := optimization.QueuedOptions{Objective: f.objective, Tags: f.tags, Artifacts: f.artifacts}
			if len(params) > 0 {
				if opts.Sensitivity, err = parseSweeps(params); err != nil {
					return err
				}
			}
			if second != "" {
				opts.MultiObjective = &process.MultiObjectiveRecord{Primary: primary, Secondary: second, Points: points}
			}

			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return errors.Wrapf(err, errors.CodeInvalidParam, "read case %s", path)
			}
			// Fail before uploading anything the worker could not decode.
			if _, err := process.DecodeCase(bytes.NewReader(data), process.FormatFromPath(path)); err != nil {
				return err
			}

			rt, err := cliCtx.runtime(ctx, cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()
			if rt.Artifacts == nil || rt.Producer == nil {
				return errors.New(errors.ErrCodeExternalService, "submit needs minio and kafka enabled")
			}

			id := uuid.New()
			key := id.String() + "/" + filepath.Base(path)
			if err := rt.Artifacts.PutCase(ctx, key, data); err != nil {
				return err
			}
			env, err := optimization.NewRunRequest(id, m, key, opts)
			if err != nil {
				return err
			}
			if err := rt.Producer.PublishEvent(ctx, kafka.TopicRunRequested, id.String(), env); err != nil {
				return err
			}
			cliCtx.Logger.Info("run submitted")
			return PrintResult(cmd, submitView{RunID: id.String(), Mode: string(m), CaseKey: key})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&mode, "mode", "", "run mode; default from the case")
	cmd.Flags().StringArrayVar(&params, "param", nil, "sweep as key=low:high:steps")
	cmd.Flags().StringVar(&primary, "primary", "", "primary objective of a Pareto run")
	cmd.Flags().StringVar(&second, "secondary", "", "secondary objective of a Pareto run")
	cmd.Flags().IntVar(&points, "points", 0, "number of Pareto points")
	return cmd
}
