package commandserver

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Protocol limits.
const (
	// MaxArrayLen limits the number of elements in a request array.
	MaxArrayLen = 1024

	// MaxBulkLen limits the size of one bulk string.
	MaxBulkLen = 512 * 1024

	// MaxInlineLen limits inline command and reply lines.
	MaxInlineLen = 64 * 1024
)

var (
	ErrProtocol      = errors.New("resp: protocol error")
	ErrLimitExceeded = errors.New("resp: limit exceeded")
)

// ReadCommand reads one request. Inline commands ("PING\r\n") are
// accepted as well as arrays. An empty request yields nil args.
func ReadCommand(r *bufio.Reader) ([]string, error) {
	b, err := r.Peek(1)
	if err != nil {
		return nil, err
	}
	if b[0] == '*' {
		return readArrayCommand(r)
	}

	line, err := readLine(r, MaxInlineLen)
	if err != nil {
		return nil, err
	}
	return strings.Fields(line), nil
}

func readArrayCommand(r *bufio.Reader) ([]string, error) {
	line, err := readLine(r, 64)
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid array length", ErrProtocol)
	}
	if n <= 0 {
		return nil, nil
	}
	if n > MaxArrayLen {
		return nil, fmt.Errorf("%w: array length %d exceeds limit %d", ErrLimitExceeded, n, MaxArrayLen)
	}

	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		arg, err := readBulkString(r)
		if err != nil {
			return nil, err
		}
		out = append(out, arg)
	}
	return out, nil
}

func readBulkString(r *bufio.Reader) (string, error) {
	line, err := readLine(r, 64)
	if err != nil {
		return "", err
	}
	if len(line) < 2 || line[0] != '$' {
		return "", fmt.Errorf("%w: expected bulk string", ErrProtocol)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
	if err != nil || n < -1 {
		return "", fmt.Errorf("%w: invalid bulk length", ErrProtocol)
	}
	if n == -1 {
		return "", nil
	}
	if n > MaxBulkLen {
		return "", fmt.Errorf("%w: bulk length %d exceeds limit %d", ErrLimitExceeded, n, MaxBulkLen)
	}

	buf := make([]byte, n+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	if !bytes.HasSuffix(buf, []byte("\r\n")) {
		return "", fmt.Errorf("%w: invalid bulk terminator", ErrProtocol)
	}
	return string(buf[:n]), nil
}

func readLine(r *bufio.Reader, maxLen int) (string, error) {
	var buf []byte
	for {
		frag, err := r.ReadSlice('\n')
		buf = append(buf, frag...)
		if len(buf) > maxLen {
			return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
		}
		if err == nil {
			break
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return "", err
		}
	}

	if !bytes.HasSuffix(buf, []byte("\r\n")) {
		return "", fmt.Errorf("%w: missing CRLF", ErrProtocol)
	}
	return string(buf[:len(buf)-2]), nil
}

// WriteCommand writes args as an array of bulk strings.
func WriteCommand(w *bufio.Writer, args ...string) error {
	if _, err := w.WriteString("*" + strconv.Itoa(len(args)) + "\r\n"); err != nil {
		return err
	}
	for _, a := range args {
		if _, err := w.WriteString("$" + strconv.Itoa(len(a)) + "\r\n" + a + "\r\n"); err != nil {
			return err
		}
	}
	return nil
}

// WriteSimpleString writes a "+" reply. Line breaks in s are replaced by
// spaces.
func WriteSimpleString(w *bufio.Writer, s string) error {
	_, err := w.WriteString("+" + oneLine(s) + "\r\n")
	return err
}

// WriteError writes a "-" reply.
func WriteError(w *bufio.Writer, s string) error {
	_, err := w.WriteString("-" + oneLine(s) + "\r\n")
	return err
}

func oneLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(s)
}

// Reply is one decoded server reply line.
type Reply struct {
	OK      bool
	Payload string
}

// ReadReply reads one "+" or "-" reply. The "ERR " prefix of failures is
// stripped from the payload.
func ReadReply(r *bufio.Reader) (Reply, error) {
	line, err := readLine(r, MaxInlineLen)
	if err != nil {
		return Reply{}, err
	}
	if line == "" {
		return Reply{}, fmt.Errorf("%w: empty reply", ErrProtocol)
	}
	switch line[0] {
	case '+':
		return Reply{OK: true, Payload: line[1:]}, nil
	case '-':
		return Reply{Payload: strings.TrimPrefix(line[1:], "ERR ")}, nil
	default:
		return Reply{}, fmt.Errorf("%w: unexpected reply type %q", ErrProtocol, line[0])
	}
}
