package cli

import (
	"context"
	"errors"
)

// Dispatcher is the single entry point turning an operation call into command output.
type Dispatcher struct {
	builder  *Builder
	executor *Executor
}

func NewDispatcher(builder *Builder, executor *Executor) *Dispatcher {
	return &Dispatcher{builder: builder, executor: executor}
}

// Invoke builds and runs operation, returning the command's standard output verbatim.
// Validation failures never start a process.
func (d *Dispatcher) Invoke(ctx context.Context, operation string, params map[string]any) (string, error) {
	inv, err := d.builder.Build(operation, params)
	if err != nil {
		return "", err
	}
	result, err := d.executor.Run(ctx, inv)
	if err != nil {
		var cliErr *Error
		if errors.As(err, &cliErr) && cliErr.Operation == "" {
			cliErr.Operation = operation
		}
		return "", err
	}
	return string(result.Stdout), nil
}
