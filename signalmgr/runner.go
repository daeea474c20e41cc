package signalmgr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// RunnerConfig carries the settings for invoking the signal-cli binary.
// It is built once at startup and never mutated.
type RunnerConfig struct {
	// BinaryPath is the signal-cli executable.
	BinaryPath string
	// Account is the registered number passed to every invocation via -a.
	Account string
	// ConfigDir, when non-empty, is passed via --config so the daemon's
	// signal-cli state lives next to the rest of its data.
	ConfigDir string

	// Per-class timeouts. Sends with attachments get the larger window
	// because signal-cli uploads before returning.
	SendTimeout       time.Duration
	AttachmentTimeout time.Duration
	ReceiveTimeout    time.Duration
	TrustTimeout      time.Duration
}

// CommandError is returned when a signal-cli invocation exits non-zero. It
// carries the captured stderr because that is where signal-cli explains
// itself.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("signal-cli %s failed (exit %d): %s",
		strings.Join(e.Args, " "), e.ExitCode, msg)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner executes signal-cli subcommands. Every call is one bounded
// subprocess; there is no long-lived daemon mode and no concurrent access
// to the signal-cli state directory.
type Runner struct {
	cfg RunnerConfig
}

// NewRunner creates a runner with the given settings, applying defaults to
// unset timeouts.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if cfg.AttachmentTimeout <= 0 {
		cfg.AttachmentTimeout = 2 * time.Minute
	}
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = 30 * time.Second
	}
	if cfg.TrustTimeout <= 0 {
		cfg.TrustTimeout = 15 * time.Second
	}
	return &Runner{cfg: cfg}
}

// baseArgs returns the account and config flags shared by every
// subcommand.
func (r *Runner) baseArgs() []string {
	args := []string{"-a", r.cfg.Account, "--output", "json"}
	if r.cfg.ConfigDir != "" {
		args = append([]string{"--config", r.cfg.ConfigDir}, args...)
	}
	return args
}

// run executes one signal-cli invocation bounded by timeout and returns
// its stdout. A non-zero exit surfaces as *CommandError with the captured
// stderr attached.
func (r *Runner) run(ctx context.Context, timeout time.Duration, subArgs ...string) ([]byte, error) {
	args := append(r.baseArgs(), subArgs...)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.cfg.BinaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Tracef("Running signal-cli %s", strings.Join(subArgs, " "))
	err := cmd.Run()
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return stdout.Bytes(), &CommandError{
			Args:     subArgs,
			ExitCode: exitCode,
			Stderr:   stderr.String(),
			Err:      err,
		}
	}
	return stdout.Bytes(), nil
}

// Send delivers a text message to one recipient. recipientArgs selects the
// addressing mode (phone number, u:uuid or username flag form).
func (r *Runner) Send(ctx context.Context, recipientArgs []string, message string, attachments []string) ([]byte, error) {
	timeout := r.cfg.SendTimeout
	args := []string{"send", "-m", message}
	args = append(args, recipientArgs...)
	if len(attachments) > 0 {
		timeout = r.cfg.AttachmentTimeout
		for _, path := range attachments {
			args = append(args, "-a", path)
		}
	}
	return r.run(ctx, timeout, args...)
}

// Receive drains queued envelopes and returns signal-cli's line-delimited
// JSON output. The CLI's own receive timeout is kept shorter than ours so
// it exits cleanly instead of being killed mid-write.
func (r *Runner) Receive(ctx context.Context) ([]byte, error) {
	cliTimeout := int(r.cfg.ReceiveTimeout.Seconds()) - 5
	if cliTimeout < 1 {
		cliTimeout = 1
	}
	return r.run(ctx, r.cfg.ReceiveTimeout, "receive", "--timeout",
		fmt.Sprintf("%d", cliTimeout))
}

// Trust marks all of a contact's known safety numbers as trusted.
func (r *Runner) Trust(ctx context.Context, number string) ([]byte, error) {
	return r.run(ctx, r.cfg.TrustTimeout, "trust", number, "-a")
}

// ListGroups returns the account's group list in JSON form.
func (r *Runner) ListGroups(ctx context.Context) ([]byte, error) {
	return r.run(ctx, r.cfg.ReceiveTimeout, "listGroups", "--detailed")
}

// Link starts device linking and returns the tsdevice URI output.
func (r *Runner) Link(ctx context.Context, deviceName string) ([]byte, error) {
	return r.run(ctx, r.cfg.AttachmentTimeout, "link", "-n", deviceName)
}
