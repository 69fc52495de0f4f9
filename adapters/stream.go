package adapters

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// DeltaStream is a lazy, finite, forward-only sequence of non-empty text
// deltas. Next returns io.EOF once the stream is exhausted; it is not
// restartable. Abandoning a stream is just stop pulling and Close.
type DeltaStream interface {
	Next() (string, error)
	Close() error
}

// ExtractFunc pulls the delta text out of one decoded wire object. Returning
// the empty string means "nothing to yield for this object".
type ExtractFunc func(map[string]any) string

// DoneFunc reports whether a decoded wire object marks end-of-stream.
type DoneFunc func(map[string]any) bool

const maxStreamLine = 1 << 20 // lines beyond 1MiB abort the scan

func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxStreamLine)
	return sc
}

// NewSSEStream decodes Server-Sent-Events framing: only "data:" lines are
// considered, a literal [DONE] payload ends the stream, and a line that fails
// JSON parsing is skipped so one malformed chunk does not abort the stream.
func NewSSEStream(body io.ReadCloser, extract ExtractFunc) DeltaStream {
	return &sseStream{
		body:    body,
		scanner: newLineScanner(body),
		extract: extract,
	}
}

type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	extract ExtractFunc
	done    bool
}

func (s *sseStream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}

	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue // comments, event-type lines, keep-alives
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			s.done = true
			return "", io.EOF
		}

		var chunk map[string]any
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // one malformed chunk is not fatal
		}

		if delta := s.extract(chunk); delta != "" {
			return delta, nil
		}
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *sseStream) Close() error {
	s.done = true
	return s.body.Close()
}

// NewNDJSONStream decodes newline-delimited JSON: one object per non-blank
// line, stopping once done reports true. Malformed lines and empty deltas are
// skipped, not fatal.
func NewNDJSONStream(body io.ReadCloser, extract ExtractFunc, done DoneFunc) DeltaStream {
	return &ndjsonStream{
		body:    body,
		scanner: newLineScanner(body),
		extract: extract,
		doneFn:  done,
	}
}

type ndjsonStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	extract ExtractFunc
	doneFn  DoneFunc
	done    bool
}

func (s *ndjsonStream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}

	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}

		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			continue
		}

		delta := s.extract(obj)
		if s.doneFn != nil && s.doneFn(obj) {
			s.done = true
			if delta != "" {
				return delta, nil
			}
			return "", io.EOF
		}
		if delta != "" {
			return delta, nil
		}
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *ndjsonStream) Close() error {
	s.done = true
	return s.body.Close()
}

// Collect drains a stream into a single string and closes it.
func Collect(stream DeltaStream) (string, error) {
	defer stream.Close()

	var sb strings.Builder
	for {
		delta, err := stream.Next()
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(delta)
	}
}
