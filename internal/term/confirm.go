package term

import (
	"context"
	"errors"
	"io"

	"github.com/manifoldco/promptui"
)

// Confirmer asks yes/no questions on a terminal.
type Confirmer struct {
	stdin  io.ReadCloser
	stdout io.WriteCloser
	assume bool
	run    func(p *promptui.Prompt) (string, error)
}

// NewConfirmer creates a Confirmer reading from stdin. With assumeYes set it
// never prompts.
func NewConfirmer(stdin io.ReadCloser, stdout io.WriteCloser, assumeYes bool) *Confirmer {
	return &Confirmer{
		stdin:  stdin,
		stdout: stdout,
		assume: assumeYes,
		run:    func(p *promptui.Prompt) (string, error) { return p.Run() },
	}
}

// Confirm shows prompt and waits for y or n. Anything but an explicit yes
// declines; an interrupt is returned as an error.
func (c *Confirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	if c.assume {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p := &promptui.Prompt{
		Label:     prompt,
		IsConfirm: true,
		Stdin:     c.stdin,
		Stdout:    c.stdout,
	}
	if _, err := c.run(p); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
