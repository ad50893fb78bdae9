package browser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// fakeDriverScript emulates an automation helper: it answers the line
// protocol well enough to walk a full navigate/poll/capture cycle.
const fakeDriverScript = `#!/bin/sh
while read cmd rest; do
  case "$cmd" in
    NAVIGATE) echo "OK" ;;
    URL) echo "OK https://pje.trt2.jus.br/primeirograu/painel" ;;
    COOKIES) echo 'OK [{"name":"JSESSIONID","value":"abc123","domain":"pje.trt2.jus.br"}]' ;;
    CLOSE) echo "OK"; exit 0 ;;
    *) echo "ERR unknown command" ;;
  esac
done
`

func startFakeDriver(t *testing.T) *Driver {
	t.Helper()
	script := filepath.Join(t.TempDir(), "fake-driver.sh")
	if err := os.WriteFile(script, []byte(fakeDriverScript), 0o755); err != nil {
		t.Fatalf("writing fake driver: %v", err)
	}
	d, err := Start(context.Background(), "sh "+script)
	if err != nil {
		t.Fatalf("starting driver: %v", err)
	}
	return d
}

func TestDriver(t *testing.T) {
	d := startFakeDriver(t)
	defer d.Close()

	if err := d.Navigate("https://pje.trt2.jus.br/primeirograu/login.seam"); err != nil {
		t.Fatalf("navigate: %v", err)
	}

	url, err := d.CurrentURL()
	if err != nil {
		t.Fatalf("current url: %v", err)
	}
	if url != "https://pje.trt2.jus.br/primeirograu/painel" {
		t.Errorf("unexpected url %q", url)
	}

	cookies, err := d.Cookies()
	if err != nil {
		t.Fatalf("cookies: %v", err)
	}
	if len(cookies) != 1 || cookies[0].Name != "JSESSIONID" || cookies[0].Value != "abc123" {
		t.Errorf("unexpected cookies %+v", cookies)
	}
}

func TestDriverErrorResponse(t *testing.T) {
	d := startFakeDriver(t)
	defer d.Close()

	// The fake answers ERR for unknown commands.
	if _, err := d.roundTrip("BOGUS"); err == nil {
		t.Error("expected an error for ERR response")
	}
}

func TestDriverClose(t *testing.T) {
	d := startFakeDriver(t)

	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Requests after close fail cleanly instead of hanging.
	if _, err := d.CurrentURL(); err == nil {
		t.Error("expected an error after close")
	}
}

func TestStartValidation(t *testing.T) {
	if _, err := Start(context.Background(), "   "); err == nil {
		t.Error("expected an error for an empty command")
	}
}
