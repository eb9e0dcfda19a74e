package eventstream

import (
	"bufio"
	"io"
	"strings"
)

// Event is one decoded server-sent event.
type Event struct {
	// Name is the event type. Events without an explicit "event:" field
	// default to "message" per the SSE format.
	Name string
	// Data is the event payload. Multiple data lines are joined with "\n".
	Data string
	// ID is the event ID, if the sender set one.
	ID string
}

// Reader incrementally decodes server-sent events from a byte stream.
// Comment lines and unknown fields are skipped. It is not safe for
// concurrent use; a single goroutine owns the stream.
type Reader struct {
	s *bufio.Scanner
}

// NewReader wraps r for SSE decoding.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Reader{s: s}
}

// Next blocks until a complete event frame has been read and returns it.
// It returns io.EOF when the stream ends cleanly and the underlying read
// error otherwise.
func (r *Reader) Next() (*Event, error) {
	var (
		name    string
		dataSet bool
		data    []string
		id      string
	)

	for r.s.Scan() {
		line := r.s.Text()

		if line == "" {
			// Frame boundary. Dispatch only if the frame carried data;
			// comment-only frames (keep-alives) are skipped.
			if dataSet {
				if name == "" {
					name = "message"
				}
				return &Event{Name: name, Data: strings.Join(data, "\n"), ID: id}, nil
			}
			name, data, id, dataSet = "", nil, "", false
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
			dataSet = true
		case "id":
			id = value
		}
	}

	if err := r.s.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
