// Package script runs YAML flight scripts against a simulator.
//
// A script is a list of steps. A step is either a bare command string or a
// mapping:
//
//	name: square
//	pause: 500ms
//	steps:
//	  - command
//	  - takeoff
//	  - command: forward 100
//	    repeat: 4
//	  - wait: 2s
//	  - command: battery?
//	    expect: "*"
//	  - land
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// ErrUnexpectedReply is returned when a reply does not match the step's expectation.
var ErrUnexpectedReply = errors.New("unexpected reply")

// AnyReply accepts every reply.
const AnyReply = "*"

// Sender delivers a command and returns the reply.
type Sender interface {
	SendCommand(cmd string) (string, error)
}

// Step is one scripted action.
type Step struct {
	Command string        `yaml:"command"`
	Repeat  int           `yaml:"repeat"`
	Wait    time.Duration `yaml:"wait"`
	Expect  string        `yaml:"expect"`
}

// UnmarshalYAML accepts a bare command string as shorthand.
func (s *Step) UnmarshalYAML(unmarshal func(any) error) error {
	var cmd string
	if err := unmarshal(&cmd); err == nil {
		*s = Step{Command: cmd}
		return nil
	}
	type plain Step
	return unmarshal((*plain)(s))
}

// expected returns the reply the step accepts. Queries accept anything.
func (s Step) expected() string {
	if s.Expect != "" {
		return s.Expect
	}
	if strings.HasSuffix(strings.Fields(s.Command)[0], "?") {
		return AnyReply
	}
	return "ok"
}

// Script is a parsed flight script.
type Script struct {
	Name            string        `yaml:"name"`
	Pause           time.Duration `yaml:"pause"`
	ContinueOnError bool          `yaml:"continueOnError"`
	Steps           []Step        `yaml:"steps"`
}

// Parse decodes and validates a script.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.UnmarshalStrict(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if len(s.Steps) == 0 {
		return nil, errors.New("script has no steps")
	}
	for i, step := range s.Steps {
		if strings.TrimSpace(step.Command) == "" && step.Wait <= 0 {
			return nil, fmt.Errorf("step %d: needs a command or a wait", i+1)
		}
		if step.Repeat < 0 {
			return nil, fmt.Errorf("step %d: negative repeat", i+1)
		}
	}
	return &s, nil
}

// Load reads and parses a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// StepResult records one executed command.
type StepResult struct {
	Command  string        `yaml:"command"`
	Reply    string        `yaml:"reply"`
	Error    string        `yaml:"error,omitempty"`
	Duration time.Duration `yaml:"duration"`
}

// Report is the outcome of a run.
type Report struct {
	Name    string       `yaml:"name"`
	Results []StepResult `yaml:"results"`
	Failed  int          `yaml:"failed"`
}

// YAML renders the report.
func (r Report) YAML() string {
	out, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Sprintf("error: %v\n", err)
	}
	return string(out)
}

// Runner executes scripts.
type Runner struct {
	sender Sender
	logger *slog.Logger
}

// NewRunner creates a runner sending through sender.
func NewRunner(sender Sender, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{sender: sender, logger: logger}
}

// Run executes s step by step. It stops at the first failure unless the
// script continues on error, and returns early when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, s *Script) (Report, error) {
	report := Report{Name: s.Name}
	r.logger.Info("Running script", "name", s.Name, "steps", len(s.Steps))

	for i, step := range s.Steps {
		if i > 0 {
			if err := sleep(ctx, s.Pause); err != nil {
				return report, err
			}
		}
		if step.Wait > 0 {
			if err := sleep(ctx, step.Wait); err != nil {
				return report, err
			}
		}
		if strings.TrimSpace(step.Command) == "" {
			continue
		}

		for range max(step.Repeat, 1) {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			res, err := r.exec(step)
			report.Results = append(report.Results, res)
			if err == nil {
				continue
			}
			report.Failed++
			r.logger.Warn("Script step failed", "step", i+1, "command", step.Command, "error", err)
			if !s.ContinueOnError {
				return report, fmt.Errorf("step %d (%s): %w", i+1, step.Command, err)
			}
		}
	}

	r.logger.Info("Script finished", "name", s.Name, "commands", len(report.Results), "failed", report.Failed)
	return report, nil
}

func (r *Runner) exec(step Step) (StepResult, error) {
	start := time.Now()
	reply, err := r.sender.SendCommand(step.Command)
	res := StepResult{
		Command:  step.Command,
		Reply:    reply,
		Duration: time.Since(start).Round(time.Millisecond),
	}
	if err == nil {
		if want := step.expected(); want != AnyReply && reply != want {
			err = fmt.Errorf("%w: got %q, want %q", ErrUnexpectedReply, reply, want)
		}
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
