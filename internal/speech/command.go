package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNoSynthesizer is returned when no local speech binary can be found
var ErrNoSynthesizer = errors.New("no speech synthesizer found (tried espeak-ng, espeak, say, spd-say)")

// knownSynthesizers lists the binaries we look for, each with the
// arguments that make it read the text from stdin and block until done.
var knownSynthesizers = []struct {
	bin  string
	args []string
}{
	{"espeak-ng", []string{"--stdin"}},
	{"espeak", []string{"--stdin"}},
	{"say", []string{"-f", "-"}},
	{"spd-say", []string{"-w", "-e"}},
}

// CommandEngine speaks by running a local synthesizer binary. The text is
// written to the process's stdin so it is never parsed as flags.
type CommandEngine struct {
	bin  string
	args []string
}

// NewCommandEngine builds an engine from a command line such as
// "espeak-ng --stdin". An empty command looks for a known synthesizer.
func NewCommandEngine(command string) (*CommandEngine, error) {
	fields := strings.Fields(command)
	if len(fields) > 0 {
		path, err := exec.LookPath(fields[0])
		if err != nil {
			return nil, fmt.Errorf("speech command '%s' not found: %w", fields[0], err)
		}
		return &CommandEngine{bin: path, args: fields[1:]}, nil
	}

	for _, s := range knownSynthesizers {
		if path, err := exec.LookPath(s.bin); err == nil {
			return &CommandEngine{bin: path, args: s.args}, nil
		}
	}
	return nil, ErrNoSynthesizer
}

// Name returns the synthesizer binary path
func (e *CommandEngine) Name() string {
	return e.bin
}

// Say runs the synthesizer and waits for it to exit
func (e *CommandEngine) Say(ctx context.Context, text string) error {
	cmd := exec.CommandContext(ctx, e.bin, e.args...)
	cmd.Stdin = strings.NewReader(text)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s failed: %v\nOutput: %s", e.bin, err, stderr.String())
	}
	return nil
}
