// Package browser adapts an external browser-automation helper into the
// auth.Browser interface.
//
// The helper is any program able to drive a visible browser window (a
// Selenium or DevTools wrapper, or a shell script during development). It is
// started as a subprocess and spoken to over a line protocol on stdio:
//
//	-> NAVIGATE <url>    <- OK | ERR <message>
//	-> URL               <- OK <current url> | ERR <message>
//	-> COOKIES           <- OK <json cookie array> | ERR <message>
//	-> CLOSE             <- OK
//
// Keeping the automation tool outside the process keeps this module free of
// any browser-driver dependency and lets operators swap drivers without a
// rebuild.
package browser

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/rmoreira/hearing-sync/internal/token"
)

// ErrDriverClosed is returned for requests made after the helper exited.
var ErrDriverClosed = errors.New("browser driver closed")

// Driver runs the helper subprocess and serializes requests to it.
type Driver struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner
	closed bool
}

// Start launches the helper command. The command line is split on spaces:
// the first token is the program, the rest are arguments.
func Start(ctx context.Context, command string) (*Driver, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, errors.New("browser driver command is empty")
	}

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening driver stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening driver stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting browser driver %q: %w", parts[0], err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024) // cookie dumps can be large

	return &Driver{cmd: cmd, stdin: stdin, stdout: scanner}, nil
}

// roundTrip sends one request line and reads one response line.
func (d *Driver) roundTrip(request string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return "", ErrDriverClosed
	}
	if _, err := fmt.Fprintln(d.stdin, request); err != nil {
		return "", fmt.Errorf("writing to browser driver: %w", err)
	}
	if !d.stdout.Scan() {
		if err := d.stdout.Err(); err != nil {
			return "", fmt.Errorf("reading from browser driver: %w", err)
		}
		return "", fmt.Errorf("%w: driver ended output", ErrDriverClosed)
	}

	line := strings.TrimSpace(d.stdout.Text())
	switch {
	case line == "OK":
		return "", nil
	case strings.HasPrefix(line, "OK "):
		return strings.TrimPrefix(line, "OK "), nil
	case strings.HasPrefix(line, "ERR"):
		return "", fmt.Errorf("browser driver: %s", strings.TrimSpace(strings.TrimPrefix(line, "ERR")))
	default:
		return "", fmt.Errorf("browser driver: unexpected response %q", line)
	}
}

func (d *Driver) Navigate(url string) error {
	_, err := d.roundTrip("NAVIGATE " + url)
	return err
}

func (d *Driver) CurrentURL() (string, error) {
	return d.roundTrip("URL")
}

func (d *Driver) Cookies() ([]token.Cookie, error) {
	payload, err := d.roundTrip("COOKIES")
	if err != nil {
		return nil, err
	}
	var cookies []token.Cookie
	if err := json.Unmarshal([]byte(payload), &cookies); err != nil {
		return nil, fmt.Errorf("decoding driver cookies: %w", err)
	}
	return cookies, nil
}

// Close asks the helper to quit and waits for the subprocess to exit.
func (d *Driver) Close() error {
	_, reqErr := d.roundTrip("CLOSE")

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	_ = d.stdin.Close()
	waitErr := d.cmd.Wait()
	if reqErr != nil && !errors.Is(reqErr, ErrDriverClosed) {
		return reqErr
	}
	return waitErr
}
