package utcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// CliTransport discovers and executes tools by shelling out to a local
// command. Streaming is unsupported: CLI output has no chunking contract.
type CliTransport struct {
	logger func(format string, args ...interface{})
}

func NewCliTransport(logger func(format string, args ...interface{})) *CliTransport {
	if logger == nil {
		logger = func(format string, args ...interface{}) {}
	}
	return &CliTransport{logger: logger}
}

func (t *CliTransport) Name() string        { return "cli" }
func (t *CliTransport) SupportsStream() bool { return false }
func (t *CliTransport) Close() error         { return nil }

func (t *CliTransport) prepareEnv(provider *CliProvider) []string {
	env := os.Environ()
	for k, v := range provider.EnvVars {
		env = append(env, k+"="+v)
	}
	return env
}

type cliFailedError struct {
	ExitCode int
	Output   string
}

func (e *cliFailedError) Error() string {
	return fmt.Sprintf("cli_failed: exit code %d: %s", e.ExitCode, e.Output)
}

func (t *CliTransport) executeCommand(ctx context.Context, cmdPath string, args []string, env []string, workDir string, stdin string) (string, string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, cmdPath, args...)
	cmd.Env = env
	if workDir != "" {
		cmd.Dir = workDir
	}
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	err := cmd.Run()
	stdout, stderr := stdoutBuf.String(), stderrBuf.String()
	retCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		retCode = exitErr.ExitCode()
	} else if err != nil {
		return stdout, stderr, retCode, err
	}
	return stdout, stderr, retCode, nil
}

func (t *CliTransport) RegisterToolProvider(ctx context.Context, prov Provider) ([]Tool, error) {
	cliProv, ok := prov.(*CliProvider)
	if !ok {
		return nil, errors.New("wrong_provider_type: CliTransport requires a CliProvider")
	}
	if cliProv.CommandName == "" {
		return nil, errors.New("cli provider missing command_name")
	}

	parts := strings.Fields(cliProv.CommandName)
	cmdPath, cmdArgs := parts[0], parts[1:]
	env := t.prepareEnv(cliProv)
	workDir := ""
	if cliProv.WorkingDir != nil {
		workDir = *cliProv.WorkingDir
	}

	stdout, stderr, code, err := t.executeCommand(ctx, cmdPath, cmdArgs, env, workDir, "")
	output := stdout
	if code != 0 {
		output = stderr
	}
	if code != 0 {
		return nil, &cliFailedError{ExitCode: code, Output: output}
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(output) == "" {
		return nil, nil
	}
	return extractManualTools(output), nil
}

func (t *CliTransport) DeregisterToolProvider(ctx context.Context, prov Provider) error {
	return nil
}

// cliFlags renders args as "--key value" pairs in lexicographic key
// order: lists repeat the flag, true is bare, false is omitted entirely.
func cliFlags(args map[string]interface{}) []string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	for _, k := range keys {
		switch v := args[k].(type) {
		case bool:
			if v {
				out = append(out, "--"+k)
			}
		case []interface{}:
			for _, item := range v {
				out = append(out, "--"+k, fmt.Sprint(item))
			}
		default:
			out = append(out, "--"+k, fmt.Sprint(v))
		}
	}
	return out
}

func (t *CliTransport) CallTool(ctx context.Context, toolName string, args map[string]interface{}, prov Provider) (interface{}, error) {
	cliProv, ok := prov.(*CliProvider)
	if !ok {
		return nil, errors.New("wrong_provider_type: CliTransport requires a CliProvider")
	}
	if cliProv.CommandName == "" {
		return nil, errors.New("cli provider missing command_name")
	}

	parts := strings.Fields(cliProv.CommandName)
	cmdPath := parts[0]
	cmdArgs := append(append([]string{}, parts[1:]...), "call", cliProv.Name, toolName)
	cmdArgs = append(cmdArgs, cliFlags(args)...)

	stdin, err := jsonMarshal(args)
	if err != nil {
		return nil, err
	}

	env := t.prepareEnv(cliProv)
	workDir := ""
	if cliProv.WorkingDir != nil {
		workDir = *cliProv.WorkingDir
	}

	stdout, stderr, code, err := t.executeCommand(ctx, cmdPath, cmdArgs, env, workDir, string(stdin))
	output := stdout
	if code != 0 {
		output = stderr
	}
	if code != 0 {
		return nil, &cliFailedError{ExitCode: code, Output: output}
	}
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return "", nil
	}
	var result interface{}
	if looksLikeJSONObject(trimmed) {
		if err := jsonUnmarshal([]byte(trimmed), &result); err == nil {
			return result, nil
		}
	}
	return trimmed, nil
}

func (t *CliTransport) CallToolStream(ctx context.Context, toolName string, args map[string]interface{}, prov Provider) (StreamResult, error) {
	return nil, errors.New("not_supported: CLI transport does not support streaming")
}

func looksLikeJSONObject(s string) bool {
	return (strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) ||
		(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"))
}

// extractManualTools parses either a full UtcpManual document from the
// command's output, or scans it line-by-line for standalone tool/manual
// JSON objects.
func extractManualTools(output string) []Tool {
	trimmed := strings.TrimSpace(output)
	if looksLikeJSONObject(trimmed) {
		var m UtcpManual
		if err := jsonUnmarshal([]byte(trimmed), &m); err == nil && len(m.Tools) > 0 {
			return m.Tools
		}
		var single Tool
		if err := jsonUnmarshal([]byte(trimmed), &single); err == nil && single.Name != "" {
			return []Tool{single}
		}
	}

	var tools []Tool
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
			continue
		}
		var probe map[string]interface{}
		if err := jsonUnmarshal([]byte(line), &probe); err != nil {
			continue
		}
		if _, ok := probe["tools"]; ok {
			var m UtcpManual
			if err := jsonUnmarshal([]byte(line), &m); err == nil {
				tools = append(tools, m.Tools...)
			}
			continue
		}
		if probe["name"] != nil {
			var single Tool
			if err := jsonUnmarshal([]byte(line), &single); err == nil {
				tools = append(tools, single)
			}
		}
	}
	return tools
}
