package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// Continuation suspends the login flow until the operator signals that the
// manual login in the browser window is done.
type Continuation interface {
	Await(ctx context.Context, prompt string) error
}

// ContinuationFunc adapts a function to Continuation
type ContinuationFunc func(ctx context.Context, prompt string) error

func (f ContinuationFunc) Await(ctx context.Context, prompt string) error {
	return f(ctx, prompt)
}

// Immediate continues without waiting. It is used when no operator is
// attached, so the manual step degrades to a plain re-check.
type Immediate struct{}

func (Immediate) Await(ctx context.Context, prompt string) error {
	return ctx.Err()
}

// LineContinuation prints the prompt and waits for a line of input
type LineContinuation struct {
	In  io.Reader
	Out io.Writer
}

// Await returns once a line is read, the input ends or ctx is cancelled.
func (c LineContinuation) Await(ctx context.Context, prompt string) error {
	if c.Out != nil {
		fmt.Fprint(c.Out, prompt)
	}

	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(c.In).ReadString('\n')
		if err == io.EOF {
			err = nil
		}
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
