package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yanqian/batch-summarizer/internal/bootstrap"
	apperrors "github.com/yanqian/batch-summarizer/pkg/errors"
)

const closingMessage = "Program execution has ended"

// Exit codes returned by the CLI.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type appInitializer func() (*bootstrap.App, func(), error)

// execute runs the root command and maps its outcome to an exit code. The
// closing message is printed whatever happens.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer, initApp appInitializer) (code int) {
	defer fmt.Fprintln(stdout, closingMessage)

	cmd := newRootCommand(initApp)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	code = exitCode(err)
	switch {
	case err == nil:
	case code == exitUsage:
		fmt.Fprintln(stderr, "Error :", err)
		fmt.Fprintln(stderr, cmd.UsageString())
	default:
		fmt.Fprintln(stdout, "Error :", userMessage(err))
	}
	return code
}

func newRootCommand(initApp appInitializer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarizer <input-path>",
		Short: "Summarize a dataset of articles in batches with a language model",
		Long: "Reads newline-delimited JSON (or CSV) records in fixed-size batches, " +
			"writes a cleaned copy of the title and body columns, and a second dataset " +
			"with a one-sentence summary per record.",
		Args:          usageArgs(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := initApp()
			if err != nil {
				return apperrors.Wrap(apperrors.CodeInvalidConfig, "failed to initialize", err)
			}
			defer cleanup()
			_, err = app.Run(cmd.Context(), args[0])
			return err
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return apperrors.Wrap(apperrors.CodeInvalidUsage, err.Error(), nil)
	})
	return cmd
}

func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return apperrors.Wrap(apperrors.CodeInvalidUsage, err.Error(), nil)
		}
		return nil
	}
}

// exitCode maps an error to the process status. A missing input or an
// interrupt is reported but still exits cleanly.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	switch apperrors.CodeOf(err) {
	case apperrors.CodeSourceNotFound, apperrors.CodeInterrupted:
		return exitOK
	case apperrors.CodeInvalidUsage:
		return exitUsage
	default:
		return exitFailure
	}
}

func userMessage(err error) string {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeInterrupted:
		return "KeyboardInterrupt"
	case apperrors.CodeSourceNotFound:
		return topMessage(err)
	default:
		return err.Error()
	}
}

func topMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
