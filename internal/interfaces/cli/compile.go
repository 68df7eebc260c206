package cli

import (
	"bytes"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/ProcSynth/internal/application/optimization"
	"github.com/turtacn/ProcSynth/internal/domain/superstructure"
	"github.com/turtacn/ProcSynth/pkg/errors"
	"github.com/turtacn/ProcSynth/pkg/types/process"
)

// NewCompileCmd exports the compiled model of a case without solving it.
func NewCompileCmd() *cobra.Command {
	var (
		format    string
		objective string
		out       string
	)
	cmd := &cobra.Command{
		Use:   "compile <case>",
		Short: "Compile a case to an LP or MPS model file",
		Long: "Compile a case to an LP or MPS model file. The model is written to stdout\n" +
			"unless --out is given, in which case a summary of its size is printed.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.operation(cmd)
			defer cancel()

			f := optimization.ExportFormat(strings.ToLower(format))
			if f != optimization.ExportLP && f != optimization.ExportMPS {
				return errors.InvalidParam("format must be lp or mps").WithDetail(format)
			}
			cs, err := process.LoadCase(args[0])
			if err != nil {
				return err
			}
			rt, err := cliCtx.runtime(ctx, cmd, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			var buf bytes.Buffer
			stats, err := rt.Service.Export(ctx, cs, superstructure.Objective(strings.ToUpper(objective)), f, &buf)
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return errors.Wrapf(err, errors.ErrCodeInternal, "write %s", out)
			}
			return PrintResult(cmd, statsView{Path: out, Format: string(f), Stats: stats})
		},
	}
	cmd.Flags().StringVar(&format, "format", "lp", "model format (lp, mps)")
	cmd.Flags().StringVar(&objective, "objective", "", "objective; default from the case")
	cmd.Flags().StringVar(&out, "out", "", "write the model to this file")
	return cmd
}
