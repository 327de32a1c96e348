package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// Version is stamped at build time.
var Version = "dev"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) error {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// NewRootCmd builds the command tree. All output goes to outW.
func NewRootCmd(outW io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "flowcanvas",
		Short:         "flowcanvas - a visual editor for task flows",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(outW)
	rootCmd.SetErr(outW)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError("%s", err.Error())
	})

	rootCmd.AddCommand(serveCmd(outW))
	rootCmd.AddCommand(layoutCmd(outW))
	return rootCmd
}

// Execute runs the command line in args. Usage problems are returned as
// *ExitError with code 2.
func Execute(ctx context.Context, outW io.Writer, args []string) error {
	rootCmd := NewRootCmd(outW)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	// Cobra reports argument and command mistakes as plain errors.
	if strings.HasPrefix(err.Error(), "unknown command") || strings.Contains(err.Error(), "arg(s)") {
		return usageError("%s", err.Error())
	}
	return err
}

func validateLogFlags(level, format string) error {
	switch strings.ToLower(level) {
	case "", "debug", "info", "warn", "error":
	default:
		return usageError("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}
	switch strings.ToLower(format) {
	case "", "text", "json":
	default:
		return usageError("invalid log-format: must be 'text' or 'json'")
	}
	return nil
}
