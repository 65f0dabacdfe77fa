package sse

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Frame is one blank-line-delimited server-sent event. Data holds the
// newline-joined payload of all data: lines in arrival order.
type Frame struct {
	Event string
	Data  string
	ID    string
}

// Parser turns a line-oriented byte stream into a sequence of frames.
// It is a single-use, single-consumer pull iterator over one response body.
type Parser struct {
	r    *bufio.Reader
	done bool
}

func NewParser(r io.Reader) *Parser {
	return &Parser{r: bufio.NewReaderSize(r, 32*1024)}
}

// Next returns the next complete frame. It returns io.EOF once the underlying
// stream ends; a partial frame accumulated at that point is discarded rather
// than flushed. Any other error is a transport error and terminates the
// sequence.
func (p *Parser) Next() (*Frame, error) {
	if p == nil || p.r == nil || p.done {
		return nil, io.EOF
	}

	var frame Frame
	var dataLines []string
	dirty := false

	for {
		line, err := p.r.ReadString('\n')
		if err != nil {
			p.done = true
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, errors.Wrap(err, "sse: read stream")
		}

		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if !dirty {
				continue
			}
			frame.Data = strings.Join(dataLines, "\n")
			return &frame, nil
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, ok := strings.Cut(line, ":")
		if !ok {
			// no colon at all, lenient skip
			continue
		}
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			frame.Event = value
			dirty = true
		case "data":
			dataLines = append(dataLines, value)
			dirty = true
		case "id":
			frame.ID = value
			dirty = true
		default:
			// unrecognized field, ignored
		}
	}
}
