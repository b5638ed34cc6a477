// Package stream reads a host's text/event-stream channel and yields the
// decoded wire events. Reconnecting after a dropped stream is the
// caller's concern.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/hatcher/sessionhub/pkg/logs"
	"github.com/hatcher/sessionhub/wire"
)

// Scanner splits server-sent-event frames out of r. Only data fields
// matter here; event names, ids, retry hints, and comment lines are
// skipped because hosts put the whole typed envelope in data.
type Scanner struct {
	s *bufio.Scanner
}

func NewScanner(r io.Reader) *Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Scanner{s: s}
}

// Next returns the data payload of the next event frame. Multi-line data
// fields are joined with newlines per the SSE format. io.EOF marks the
// end of the stream.
func (sc *Scanner) Next() ([]byte, error) {
	var data [][]byte
	for sc.s.Scan() {
		line := sc.s.Text()
		if line == "" {
			if len(data) == 0 {
				continue // frame with no data field
			}
			return bytes.Join(data, []byte("\n")), nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		if field == "data" {
			data = append(data, []byte(value))
		}
	}
	if err := sc.s.Err(); err != nil {
		return nil, errors.Wrap(err, "read event stream")
	}
	if len(data) > 0 {
		return bytes.Join(data, []byte("\n")), nil
	}
	return nil, io.EOF
}

// Pump reads frames from r until EOF or ctx cancellation, decoding each
// into a typed wire event and handing it to handle. Malformed frames and
// unknown event types are logged and skipped; they never stop the pump.
func Pump(ctx context.Context, r io.Reader, handle func(event any)) error {
	sc := NewScanner(r)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		data, err := sc.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		event, err := wire.Decode(data)
		if err != nil {
			if errors.Is(err, wire.ErrUnknownType) {
				logs.Debugf("skipping unknown event: %v", err)
			} else {
				logs.Warnf("dropping malformed event: %v", err)
			}
			continue
		}
		handle(event)
	}
}
