// Package deploy runs the build pipeline of a release: an ordered, fail-fast
// sequence of management commands.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// Step is one named unit of work. Output goes to the writers of the pipeline
// running it; a nil writer discards.
type Step interface {
	Name() string
	Run(ctx context.Context, stdout, stderr io.Writer) error
}

// Executor starts a program and waits for it
type Executor interface {
	Execute(ctx context.Context, program string, args []string, stdout, stderr io.Writer) error
}

// ExecExecutor runs real processes
type ExecExecutor struct {
	Dir string
	Env []string
}

// Execute runs program with args, streaming its output
func (e ExecExecutor) Execute(ctx context.Context, program string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = e.Dir
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// CommandStep invokes an external command through an Executor
type CommandStep struct {
	StepName string
	Program  string
	Args     []string

	exec Executor
}

// NewCommandStep creates a step
func NewCommandStep(name string, executor Executor, program string, args ...string) *CommandStep {
	return &CommandStep{StepName: name, Program: program, Args: args, exec: executor}
}

func (s *CommandStep) Name() string { return s.StepName }

func (s *CommandStep) Run(ctx context.Context, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return s.exec.Execute(ctx, s.Program, s.Args, stdout, stderr)
}

// StepError reports the step that stopped the pipeline
type StepError struct {
	Step     string
	Position int // 1-based
	Code     int
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) failed with exit code %d: %v", e.Position, e.Step, e.Code, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// exitCoder is satisfied by *exec.ExitError
type exitCoder interface {
	ExitCode() int
}

func exitCodeOf(err error) int {
	var coder exitCoder
	if errors.As(err, &coder) && coder.ExitCode() > 0 {
		return coder.ExitCode()
	}
	return 1
}

// ExitCode maps a pipeline result to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var stepErr *StepError
	if errors.As(err, &stepErr) && stepErr.Code > 0 {
		return stepErr.Code
	}
	return 1
}

// Pipeline is an ordered list of steps
type Pipeline struct {
	Name  string
	Steps []Step

	Stdout io.Writer
	Stderr io.Writer
	Logger *zap.Logger
}

// Run executes the steps in order. The first failing step aborts the run and
// no later step starts; a cancelled context aborts before the next step.
func (p *Pipeline) Run(ctx context.Context) error {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	for i, step := range p.Steps {
		pos := i + 1
		if err := ctx.Err(); err != nil {
			return &StepError{Step: step.Name(), Position: pos, Code: 1, Err: err}
		}

		logger.Info("[Deploy] step started", zap.String("pipeline", p.Name), zap.Int("position", pos), zap.String("step", step.Name()))
		if err := step.Run(ctx, p.Stdout, p.Stderr); err != nil {
			stepErr := &StepError{Step: step.Name(), Position: pos, Code: exitCodeOf(err), Err: err}
			logger.Error("[Deploy] step failed", zap.String("pipeline", p.Name), zap.String("step", step.Name()), zap.Int("exit_code", stepErr.Code), zap.Error(err))
			return stepErr
		}
	}

	logger.Info("[Deploy] pipeline finished", zap.String("pipeline", p.Name), zap.Int("steps", len(p.Steps)))
	return nil
}

// StepNames lists the step names in order
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		names[i] = s.Name()
	}
	return names
}
