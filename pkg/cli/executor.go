package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"k8s.io/klog/v2"
	"k8s.io/utils/exec"
)

const DefaultTimeout = 30 * time.Second

var tracer = otel.Tracer("osc-mcp-server/cli")

// Outcome labels a finished execution for metrics.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeFailed   Outcome = "failed"
	OutcomeTimeout  Outcome = "timeout"
	OutcomeCanceled Outcome = "canceled"
	OutcomeNotFound Outcome = "not_found"
)

// Recorder is notified after every execution attempt.
type Recorder interface {
	RecordCommand(ctx context.Context, tool Tool, outcome Outcome, duration time.Duration)
}

// Result is the captured output of a finished child process.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

type ExecutorOptions struct {
	// Timeout bounds every execution, DefaultTimeout when zero.
	Timeout time.Duration
	// Paths overrides the binary used for a tool. Tools without an entry are looked up in PATH.
	Paths map[Tool]string
	// Kubeconfig, when set, is exported to the child as KUBECONFIG.
	Kubeconfig string
	// MaxConcurrent limits the number of running children, unbounded when zero.
	MaxConcurrent int64
	Recorder      Recorder
}

// Executor runs invocations as child processes, without a shell.
type Executor struct {
	exec     exec.Interface
	timeout  time.Duration
	paths    map[Tool]string
	env      []string
	sem      *semaphore.Weighted
	recorder Recorder
}

func NewExecutor(e exec.Interface, opts ExecutorOptions) *Executor {
	executor := &Executor{
		exec:     e,
		timeout:  opts.Timeout,
		paths:    opts.Paths,
		recorder: opts.Recorder,
	}
	if executor.timeout <= 0 {
		executor.timeout = DefaultTimeout
	}
	if opts.Kubeconfig != "" {
		executor.env = append(os.Environ(), "KUBECONFIG="+opts.Kubeconfig)
	}
	if opts.MaxConcurrent > 0 {
		executor.sem = semaphore.NewWeighted(opts.MaxConcurrent)
	}
	return executor
}

// Timeout returns the per-invocation deadline.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Binary resolves the executable for tool.
func (e *Executor) Binary(tool Tool) (string, error) {
	file := string(tool)
	if p, ok := e.paths[tool]; ok && p != "" {
		file = p
	}
	path, err := e.exec.LookPath(file)
	if err != nil {
		return "", &Error{
			Code:    CodeToolNotFound,
			Message: fmt.Sprintf("%s executable not found (%s)", tool, file),
			Err:     err,
		}
	}
	return path, nil
}

// Run executes inv and returns its standard output on success. On failure the returned
// Result, when not nil, still carries whatever was captured.
func (e *Executor) Run(ctx context.Context, inv *Invocation) (*Result, error) {
	start := time.Now()
	binary, err := e.Binary(inv.Tool)
	if err != nil {
		e.record(ctx, inv.Tool, OutcomeNotFound, 0)
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if e.sem != nil {
		if err = e.sem.Acquire(runCtx, 1); err != nil {
			outcome, cliErr := e.contextError(runCtx)
			e.record(ctx, inv.Tool, outcome, time.Since(start))
			return nil, cliErr
		}
		defer e.sem.Release(1)
	}

	id := uuid.NewString()
	klog.V(3).Infof("exec [%s] %s", id, inv)
	runCtx, span := tracer.Start(runCtx, "exec "+string(inv.Tool),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cli.invocation_id", id),
			attribute.String("cli.tool", string(inv.Tool)),
			attribute.String("cli.operation", inv.Operation),
		),
	)
	defer span.End()

	var stdout, stderr bytes.Buffer
	cmd := e.exec.CommandContext(runCtx, binary, inv.Args...)
	cmd.SetStdout(&stdout)
	cmd.SetStderr(&stderr)
	if e.env != nil {
		cmd.SetEnv(e.env)
	}
	err = cmd.Run()
	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	outcome, err := e.classify(runCtx, inv, result, err)
	span.SetAttributes(attribute.String("cli.outcome", string(outcome)), attribute.Int("cli.exit_code", result.ExitCode))
	if err != nil {
		span.SetStatus(codes.Error, string(outcome))
	}
	klog.V(3).Infof("exec [%s] finished: outcome=%s exit=%d duration=%s", id, outcome, result.ExitCode, result.Duration)
	e.record(ctx, inv.Tool, outcome, result.Duration)
	return result, err
}

func (e *Executor) classify(runCtx context.Context, inv *Invocation, result *Result, err error) (Outcome, error) {
	if err == nil {
		return OutcomeOK, nil
	}
	if errors.Is(err, exec.ErrExecutableNotFound) {
		result.ExitCode = -1
		return OutcomeNotFound, &Error{
			Code:    CodeToolNotFound,
			Message: fmt.Sprintf("%s executable could not be started", inv.Tool),
			Err:     err,
		}
	}
	if runCtx.Err() != nil {
		result.ExitCode = -1
		return e.contextError(runCtx)
	}
	var exitErr exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitStatus()
	} else {
		result.ExitCode = -1
	}
	return OutcomeFailed, &Error{
		Code:     CodeExternalCommandFailed,
		Message:  fmt.Sprintf("%s exited with an error", inv),
		ExitCode: result.ExitCode,
		Stderr:   string(result.Stderr),
		Err:      err,
	}
}

func (e *Executor) contextError(runCtx context.Context) (Outcome, error) {
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return OutcomeTimeout, &Error{
			Code:    CodeExecutionTimeout,
			Message: fmt.Sprintf("command did not finish within %s", e.timeout),
			Err:     runCtx.Err(),
		}
	}
	return OutcomeCanceled, &Error{
		Code:    CodeExecutionCanceled,
		Message: "command canceled by the caller",
		Err:     runCtx.Err(),
	}
}

func (e *Executor) record(ctx context.Context, tool Tool, outcome Outcome, d time.Duration) {
	if e.recorder != nil {
		e.recorder.RecordCommand(ctx, tool, outcome, d)
	}
}
