package support

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cucumber/godog"
)

// RegisterServerSteps registers steps that drive a live "labelscan serve" process.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I start the server with "([^"]*)"$`, testCtx.iStartTheServer)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I POST "([^"]*)" with body '([^']*)'$`, testCtx.iPOSTWithBody)
	sc.Step(`^I POST "([^"]*)"$`, testCtx.iPOST)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the server should eventually report "([^"]*)"$`, testCtx.theServerShouldEventuallyReport)
}

// freePort asks the kernel for an unused TCP port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer func() { _ = l.Close() }()
	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, errors.New("unexpected listener address")
	}
	return addr.Port, nil
}

// iStartTheServer launches command with --host 127.0.0.1 and a free --port
// appended and waits until /health answers.
func (testCtx *TestContext) iStartTheServer(command string) error {
	parts, err := testCtx.commandParts(command)
	if err != nil {
		return err
	}
	port, err := freePort()
	if err != nil {
		return fmt.Errorf("failed to find a free port: %w", err)
	}
	testCtx.ServerPort = port
	parts = append(parts, "--host", "127.0.0.1", "--port", strconv.Itoa(port))

	cmd := exec.Command(parts[0], parts[1:]...) //nolint:gosec // G204: test binary with controlled args
	cmd.Dir = testCtx.WorkingDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	testCtx.ServerProcess = cmd.Process

	if err := testCtx.waitForServerReady(10 * time.Second); err != nil {
		if stopErr := testCtx.StopServer(); stopErr != nil {
			return fmt.Errorf("server failed to start: %w; stop error: %w", err, stopErr)
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

func (testCtx *TestContext) baseURL() string {
	return "http://127.0.0.1:" + strconv.Itoa(testCtx.ServerPort)
}

func (testCtx *TestContext) waitForServerReady(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(testCtx.baseURL() + "/health") //nolint:noctx // readiness probe
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("no healthy response on port %d within %s", testCtx.ServerPort, timeout)
}

// StopServer sends SIGTERM to a running server and waits for it to exit.
func (testCtx *TestContext) StopServer() error {
	if testCtx.ServerProcess == nil {
		return nil
	}
	proc := testCtx.ServerProcess
	testCtx.ServerProcess = nil

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if killErr := proc.Kill(); killErr != nil {
			return fmt.Errorf("failed to kill server process: %w", killErr)
		}
	}
	_, err := proc.Wait()
	return err
}

func (testCtx *TestContext) request(method, path, body string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, testCtx.baseURL()+path, strings.NewReader(body))
	if err != nil {
		return err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(data)
	return nil
}

func (testCtx *TestContext) iGET(path string) error {
	return testCtx.request(http.MethodGet, path, "")
}

func (testCtx *TestContext) iPOST(path string) error {
	return testCtx.request(http.MethodPost, path, "")
}

func (testCtx *TestContext) iPOSTWithBody(path, body string) error {
	return testCtx.request(http.MethodPost, path, testCtx.expand(body))
}

// expand replaces {{dir}} with the scenario directory.
func (testCtx *TestContext) expand(s string) string {
	return strings.ReplaceAll(s, "{{dir}}", testCtx.WorkingDir)
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("status %d, want %d\nBody: %s", testCtx.LastHTTPStatusCode, code, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(expected string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, expected) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", expected, testCtx.LastHTTPResponse)
	}
	return nil
}

// theServerShouldEventuallyReport polls /status until its body contains expected.
func (testCtx *TestContext) theServerShouldEventuallyReport(expected string) error {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if err := testCtx.iGET("/status"); err == nil && strings.Contains(testCtx.LastHTTPResponse, expected) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("status never contained '%s'\nLast body: %s", expected, testCtx.LastHTTPResponse)
}
