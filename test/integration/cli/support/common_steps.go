package support

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// RegisterCommonSteps registers command execution and output steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON field "([^"]*)" should equal "([^"]*)"$`, testCtx.theJSONFieldShouldEqual)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSet)
}

// binary resolves the labelscan binary built by TestMain.
func (testCtx *TestContext) binary() string {
	if bin := os.Getenv("LABELSCAN_BIN"); bin != "" {
		return bin
	}
	return filepath.Join(testCtx.ProjectRoot, "bin", "labelscan")
}

// commandParts splits command and swaps a bare "labelscan" for the built binary.
func (testCtx *TestContext) commandParts(command string) ([]string, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, errors.New("empty command")
	}
	if parts[0] == "labelscan" {
		parts[0] = testCtx.binary()
	}
	return parts, nil
}

func (testCtx *TestContext) iRunCommand(command string) error {
	parts, err := testCtx.commandParts(command)
	if err != nil {
		return err
	}
	testCtx.LastCommand = command

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = testCtx.WorkingDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	start := time.Now()
	output, err := cmd.CombinedOutput()
	testCtx.LastOutput = string(output)
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(start)

	testCtx.LastExitCode = 0
	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			testCtx.LastExitCode = exitError.ExitCode()
		} else {
			testCtx.LastExitCode = -1
		}
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expected string) error {
	if !strings.Contains(testCtx.LastOutput, expected) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expected, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(unexpected string) error {
	if strings.Contains(testCtx.LastOutput, unexpected) {
		return fmt.Errorf("output contains '%s'\nActual output: %s", unexpected, testCtx.LastOutput)
	}
	return nil
}

// jsonDocument decodes the last indented JSON object of the output. Log lines
// are single-line JSON, so only a line holding a lone "{" starts a document.
func (testCtx *TestContext) jsonDocument() (map[string]any, error) {
	output := testCtx.LastOutput
	start := -1
	offset := 0
	for _, line := range strings.SplitAfter(output, "\n") {
		if strings.TrimRight(line, "\r\n") == "{" {
			start = offset
		}
		offset += len(line)
	}
	if start < 0 {
		start = strings.Index(output, "{")
	}
	if start < 0 {
		return nil, fmt.Errorf("no JSON object in output: %s", output)
	}
	var doc map[string]any
	if err := json.NewDecoder(strings.NewReader(output[start:])).Decode(&doc); err != nil {
		return nil, fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, output)
	}
	return doc, nil
}

func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	_, err := testCtx.jsonDocument()
	return err
}

func (testCtx *TestContext) theJSONFieldShouldEqual(field, expected string) error {
	doc, err := testCtx.jsonDocument()
	if err != nil {
		return err
	}
	value, ok := doc[field]
	if !ok {
		return fmt.Errorf("field %q missing from %v", field, doc)
	}
	if got := fmt.Sprint(value); got != expected {
		return fmt.Errorf("field %q = %s, want %s", field, got, expected)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	if _, err := os.Stat(testCtx.Path(name)); err != nil {
		return fmt.Errorf("expected file %s: %w", name, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(name, expected string) error {
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("file %s does not contain '%s'\nContent: %s", name, expected, data)
	}
	return nil
}

func (testCtx *TestContext) theEnvironmentVariableIsSet(name, value string) error {
	testCtx.EnvVars = append(testCtx.EnvVars, name+"="+value)
	return nil
}
