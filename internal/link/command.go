package link

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

const (
	// LinkPlaceholder is replaced with the link path in command arguments.
	LinkPlaceholder = "{link}"

	// TargetPlaceholder is replaced with the target path in command arguments.
	TargetPlaceholder = "{target}"
)

// CommandProvider is a [Provider] running an external command to create the
// link, such as "ln -s {target} {link}" or "cmd /c mklink /J {link} {target}".
type CommandProvider struct {
	args []string
}

// NewCommandProvider returns a pointer to a new [CommandProvider] from a
// whitespace-separated command template.
func NewCommandProvider(template string) (*CommandProvider, error) {
	return NewCommandProviderArgs(strings.Fields(template)...)
}

// NewCommandProviderArgs returns a pointer to a new [CommandProvider] from
// already separated command arguments.
func NewCommandProviderArgs(args ...string) (*CommandProvider, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("(link-cmd) %w: empty", ErrInvalidTemplate)
	}

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, LinkPlaceholder) || !strings.Contains(joined, TargetPlaceholder) {
		return nil, fmt.Errorf("(link-cmd) %w: needs %s and %s", ErrInvalidTemplate, LinkPlaceholder, TargetPlaceholder)
	}

	return &CommandProvider{args: args}, nil
}

// CreateLink runs the command with the placeholders substituted. Output lines
// are passed to onLine as they arrive and collected into the [Result].
func (p *CommandProvider) CreateLink(ctx context.Context, linkPath string, targetPath string, onLine LineFunc) (*Result, error) {
	replacer := strings.NewReplacer(LinkPlaceholder, linkPath, TargetPlaceholder, targetPath)

	args := make([]string, len(p.args))
	for i, a := range p.args {
		args[i] = replacer.Replace(a)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("(link-cmd) failed to get stdout: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("(link-cmd) failed to get stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("(link-cmd) failed to start %s: %w", args[0], err)
	}

	res := &Result{}

	var mu sync.Mutex
	var wg sync.WaitGroup

	collect := func(stream Stream, r io.Reader) {
		defer wg.Done()

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := scanner.Text()

			mu.Lock()
			if stream == Stdout {
				res.Stdout = append(res.Stdout, line)
			} else {
				res.Stderr = append(res.Stderr, line)
			}
			emit(onLine, stream, line)
			mu.Unlock()
		}
	}

	wg.Add(2) //nolint:mnd
	go collect(Stdout, stdout)
	go collect(Stderr, stderr)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("(link-cmd) %w", ctx.Err())
		}

		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("(link-cmd) failed to wait: %w", err)
		}
	}

	res.ExitCode = cmd.ProcessState.ExitCode()

	return res, nil
}
