package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Loop reads one JSON command per line from in and writes one JSON
// response per line to out, strictly alternating: the next line is not
// read until the previous response has been written. It runs until the
// input is exhausted, the context is canceled, or a write fails.
type Loop struct {
	in     *bufio.Reader
	out    *json.Encoder
	sess   *Session
	logger *slog.Logger
}

// NewLoop creates a command loop over the given streams.
func NewLoop(in io.Reader, out io.Writer, sess *Session, logger *slog.Logger) *Loop {
	return &Loop{
		in:     bufio.NewReader(in),
		out:    json.NewEncoder(out),
		sess:   sess,
		logger: logger,
	}
}

// Run processes commands until end of input. A nil return means the
// input closed cleanly; any error return means the loop died and the
// caller should tear the session down.
func (l *Loop) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command loop panic: %v", r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, readErr := l.in.ReadString('\n')
		if len(line) > 0 {
			resp := l.dispatch(ctx, []byte(line))
			if encErr := l.out.Encode(resp); encErr != nil {
				return fmt.Errorf("write response: %w", encErr)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				l.logger.Info("input closed, shutting down")
				return nil
			}
			return fmt.Errorf("read command: %w", readErr)
		}
	}
}

// dispatch turns one raw input line into a response. Malformed JSON is
// answered in band and never kills the loop.
func (l *Loop) dispatch(ctx context.Context, line []byte) Response {
	req, err := DecodeRequest(line)
	if err != nil {
		l.logger.Warn("malformed command line", "error", err)
		return Response{Error: "Invalid JSON: " + err.Error()}
	}
	return l.sess.Handle(ctx, req)
}
