package planner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"mealprep"
)

// LineReader reads one line of user input after showing prompt.
type LineReader interface {
	ReadLine(ctx context.Context, prompt string) (string, error)
}

type prompter interface {
	Prompt(label string)
}

type lineResult struct {
	text string
	err  error
}

// Console reads lines from a terminal. Reads stop waiting when ctx is
// done, and end of input counts as an interrupt.
type Console struct {
	in     io.Reader
	prompt prompter
	lines  chan lineResult
	once   sync.Once
}

func NewConsole(in io.Reader, p prompter) *Console {
	return &Console{in: in, prompt: p, lines: make(chan lineResult, 1)}
}

func (c *Console) start() {
	go func() {
		defer close(c.lines)
		sc := bufio.NewScanner(c.in)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			c.lines <- lineResult{text: sc.Text()}
		}
		err := sc.Err()
		if err == nil {
			err = io.EOF
		}
		c.lines <- lineResult{err: err}
	}()
}

func (c *Console) ReadLine(ctx context.Context, prompt string) (string, error) {
	c.once.Do(c.start)
	if c.prompt != nil {
		c.prompt.Prompt(prompt)
	}

	select {
	case <-ctx.Done():
		return "", mealprep.ErrInterrupted
	case r, ok := <-c.lines:
		if !ok || errors.Is(r.err, io.EOF) {
			return "", mealprep.ErrInterrupted
		}
		if r.err != nil {
			return "", fmt.Errorf("read input: %w", r.err)
		}
		return r.text, nil
	}
}
