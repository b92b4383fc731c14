package guidance

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/guidance/pkg/domain"
	"github.com/aretw0/guidance/pkg/runner"
)

// Runner drives a single session from line-oriented IO.
// Plain lines are sent as free text; lines starting with '{' are decoded as
// a structured report.
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Renderer ContentRenderer
	// Sanitize cleans every line before it reaches the engine.
	// NewRunner sets it to runner.SanitizeInput.
	Sanitize func(string) (string, error)
}

// ContentRenderer transforms prompts before they are written.
// This allows TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// NewRunner creates a Runner over the given IO.
func NewRunner(in io.Reader, out io.Writer) *Runner {
	return &Runner{Input: in, Output: out, Sanitize: runner.SanitizeInput}
}

// Run starts a session of the variant and loops until it ends, the input is
// exhausted, or the user types exit. It returns the last instruction.
func (r *Runner) Run(ctx context.Context, engine *Engine, variant domain.Variant) (*domain.Instruction, error) {
	if r.Input == nil {
		return nil, fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return nil, fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	lineReader := bufio.NewReader(r.Input)

	inst, err := engine.Start(ctx, variant)
	if err != nil {
		return nil, fmt.Errorf("start error: %w", err)
	}

	for {
		r.show(inst)
		if inst.Status.Terminal() {
			return inst, nil
		}

		fmt.Fprint(r.Output, "> ")
		text, err := lineReader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && text != "") {
			if errors.Is(err, io.EOF) {
				// Graceful exit on EOF, leaving the session for the janitor.
				return inst, nil
			}
			return inst, fmt.Errorf("input error: %w", err)
		}
		line := strings.TrimSpace(text)

		if line == "exit" || line == "quit" {
			if err := engine.Cancel(ctx, inst.SessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
				return inst, err
			}
			fmt.Fprintln(r.Output, "Bye!")
			return inst, nil
		}

		in, err := r.input(line)
		if err != nil {
			fmt.Fprintf(r.Output, "invalid input: %v\n", err)
			continue
		}

		next, err := engine.Continue(ctx, inst.SessionID, in)
		if err != nil {
			return inst, fmt.Errorf("continue error: %w", err)
		}
		inst = next
	}
}

func (r *Runner) input(line string) (domain.Input, error) {
	if r.Sanitize != nil {
		clean, err := r.Sanitize(line)
		if err != nil {
			return domain.Input{}, err
		}
		line = clean
	}
	if strings.HasPrefix(line, "{") {
		var report map[string]any
		if err := json.Unmarshal([]byte(line), &report); err != nil {
			return domain.Input{}, fmt.Errorf("report is not valid JSON: %w", err)
		}
		return domain.Input{Report: report}, nil
	}
	return domain.Input{Text: line}, nil
}

func (r *Runner) show(inst *domain.Instruction) {
	for _, msg := range []string{inst.Prompt, inst.Message} {
		if msg == "" {
			continue
		}
		output := msg
		if r.Renderer != nil {
			if rendered, err := r.Renderer(msg); err == nil {
				output = rendered
			}
		}
		fmt.Fprintln(r.Output, strings.TrimSpace(output))
	}
	if inst.Prompt == "" && inst.Message == "" && inst.Guidance != "" {
		fmt.Fprintf(r.Output, "[%s] %s\n", inst.Task, inst.Guidance)
	}
}
