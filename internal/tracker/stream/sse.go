package stream

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/sebastos1/aa/internal/platform/errors"
)

const (
	defaultEventType = "message"
	maxFrameBytes    = 4 << 20
)

// Frame is one dispatched server-sent event.
type Frame struct {
	// ID is the last event ID in effect when the frame was dispatched.
	ID    string
	Event string
	Data  string
}

// frameReader parses the text/event-stream format. An event whose lines or
// accumulated data exceed limit is skipped up to the blank line ending it
// and reported by Next as a DECODE_FRAME_TOO_LARGE error; reading can
// continue after that error.
type frameReader struct {
	reader *bufio.Reader
	limit  int
	first  bool
	skipLF bool

	eventType   string
	data        strings.Builder
	hasData     bool
	oversized   bool
	lastEventID string
	retry       time.Duration
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{reader: bufio.NewReaderSize(r, 64<<10), limit: maxFrameBytes, first: true}
}

// Next returns the next dispatched frame. A partial frame at end of input
// is discarded and io.EOF returned.
func (r *frameReader) Next() (Frame, error) {
	for {
		line, tooLong, err := r.readLine()
		if err != nil {
			return Frame{}, err
		}
		if r.first {
			line = strings.TrimPrefix(line, "\ufeff")
			r.first = false
		}
		if tooLong {
			r.markOversized()
			continue
		}
		if line == "" {
			if r.oversized {
				r.reset()
				return Frame{}, apperrors.WithMetadata(apperrors.CodeDecodeFrameTooLarge,
					"event frame exceeds size limit", map[string]string{"limit": strconv.Itoa(r.limit)})
			}
			if frame, ok := r.dispatch(); ok {
				return frame, nil
			}
			continue
		}
		r.processLine(line)
	}
}

// LastEventID returns the most recent id field seen.
func (r *frameReader) LastEventID() string { return r.lastEventID }

// Retry returns the reconnection time requested by the server, or zero.
func (r *frameReader) Retry() time.Duration { return r.retry }

// readLine returns the next line without its terminator (LF, CRLF or a
// lone CR). Bytes past limit are discarded and tooLong is set. An
// unterminated final line is returned before io.EOF.
func (r *frameReader) readLine() (line string, tooLong bool, err error) {
	var buf []byte
	for {
		b, err := r.reader.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && (len(buf) > 0 || tooLong) {
				return string(buf), tooLong, nil
			}
			return "", false, err
		}
		if r.skipLF {
			r.skipLF = false
			if b == '\n' {
				continue
			}
		}
		switch b {
		case '\n':
			return string(buf), tooLong, nil
		case '\r':
			r.skipLF = true
			return string(buf), tooLong, nil
		}
		if tooLong {
			continue
		}
		if len(buf) >= r.limit {
			tooLong = true
			buf = nil
			continue
		}
		buf = append(buf, b)
	}
}

func (r *frameReader) processLine(line string) {
	if strings.HasPrefix(line, ":") {
		return
	}
	field, value, found := strings.Cut(line, ":")
	if found {
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "event":
		r.eventType = value
	case "data":
		if r.oversized {
			return
		}
		if r.data.Len()+len(value)+1 > r.limit {
			r.markOversized()
			return
		}
		r.data.WriteString(value)
		r.data.WriteByte('\n')
		r.hasData = true
	case "id":
		if !strings.ContainsRune(value, 0) {
			r.lastEventID = value
		}
	case "retry":
		if ms, err := strconv.ParseUint(value, 10, 32); err == nil {
			r.retry = time.Duration(ms) * time.Millisecond
		}
	}
}

func (r *frameReader) dispatch() (Frame, bool) {
	eventType := r.eventType
	r.eventType = ""
	if !r.hasData {
		return Frame{}, false
	}
	data := strings.TrimSuffix(r.data.String(), "\n")
	r.data.Reset()
	r.hasData = false
	if eventType == "" {
		eventType = defaultEventType
	}
	return Frame{ID: r.lastEventID, Event: eventType, Data: data}, true
}

func (r *frameReader) markOversized() {
	r.oversized = true
	r.data.Reset()
	r.hasData = false
}

func (r *frameReader) reset() {
	r.eventType = ""
	r.data.Reset()
	r.hasData = false
	r.oversized = false
}
