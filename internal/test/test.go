package test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// RandomPortAddress reserves a free local port and releases it for the server under test.
func RandomPortAddress() (*net.TCPAddr, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to find random port for HTTP server: %w", err)
	}
	defer func() { _ = ln.Close() }()
	return ln.Addr().(*net.TCPAddr), nil
}

// WaitForHealthz polls /healthz until the HTTP server answers 200 or five seconds pass.
func WaitForHealthz(tcpAddr *net.TCPAddr) error {
	url := fmt.Sprintf("http://%s/healthz", tcpAddr.String())
	return wait.PollUntilContextTimeout(context.Background(), 50*time.Millisecond, 5*time.Second, true,
		func(context.Context) (bool, error) {
			resp, err := http.Get(url)
			if err != nil {
				return false, nil
			}
			_ = resp.Body.Close()
			return resp.StatusCode == http.StatusOK, nil
		})
}

// WriteExecutable writes a POSIX shell script named name into dir and returns its path.
// Scripts stand in for the kubectl and oc binaries.
func WriteExecutable(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("failed to write executable %s: %v", path, err)
	}
	return path
}

// WriteEchoCLI writes a fake CLI that prints its own name followed by its arguments.
func WriteEchoCLI(t *testing.T, dir, name string) string {
	return WriteExecutable(t, dir, name, "printf '"+name+" %s\\n' \"$*\"\n")
}
