package call

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// CLIAdapter is the deployment-specific pseudo-provider that shells out to
// a locally authenticated CLI instead of issuing HTTP. It is optional and
// isolated: binary name and arguments are injected, never hardcoded, and
// its stdout is folded into the same Result envelope as every HTTP vendor.
//
// The invocation is synchronous and can run for minutes; callers should
// keep it off latency-sensitive request paths.
type CLIAdapter struct {
	// Binary is the executable to run, resolved through PATH unless
	// absolute.
	Binary string
	// Args precede the prompt, which is appended as the last argument.
	Args []string
	// Timeout bounds the invocation. Zero means 5 minutes.
	Timeout time.Duration

	Logger *zap.Logger
}

const defaultCLITimeout = 5 * time.Minute

// Run executes the CLI with the request prompt and wraps its stdout. Like
// Caller.Call, it never returns an error.
func (a *CLIAdapter) Run(ctx context.Context, req Request) *Result {
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if a.Binary == "" {
		return &Result{
			Status:   http.StatusNotImplemented,
			Provider: "local-cli",
			Error:    "local CLI binary is not configured",
		}
	}

	timeout := a.Timeout
	if timeout == 0 {
		timeout = defaultCLITimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := ""
	if req.Body != nil {
		if m, ok := req.Body.(map[string]any); ok {
			prompt, _ = m["prompt"].(string)
		}
	}

	args := append(append([]string{}, a.Args...), prompt)
	cmd := exec.CommandContext(ctx, a.Binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	logger.Debug("local CLI finished",
		zap.String("binary", a.Binary),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &Result{
				Status:   http.StatusRequestTimeout,
				Provider: "local-cli",
				Error:    fmt.Sprintf("local CLI timeout after %s", timeout),
			}
		}
		msg := stderr.String()
		if msg == "" {
			msg = err.Error()
		}
		return &Result{
			Status:   http.StatusBadGateway,
			Provider: "local-cli",
			Error:    fmt.Sprintf("local CLI failed: %s", msg),
		}
	}

	// Prefer structured output; fall back to wrapping raw text.
	var data map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &data); err != nil {
		data = map[string]any{"text": stdout.String()}
	}
	return &Result{Status: http.StatusOK, Provider: "local-cli", Data: data}
}
