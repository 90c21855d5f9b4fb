// Package transcribe runs the external transcription provider against one
// audio artifact. The provider is a subprocess that prints the transcript
// on stdout and reports failures with a nonzero exit and stderr text.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/murmur/internal/config"
)

// ErrorKind distinguishes how a transcription attempt failed.
type ErrorKind string

const (
	// KindTimeout means the provider exceeded the wall-clock limit and
	// was killed.
	KindTimeout ErrorKind = "timeout"
	// KindProviderFailure means the provider exited nonzero.
	KindProviderFailure ErrorKind = "provider_failure"
	// KindLaunchFailure means the provider process could not be started.
	KindLaunchFailure ErrorKind = "launch_failure"
)

// Error is a failed transcription attempt. All kinds are retryable on the
// next pipeline run: the artifact stays in the intake directory.
type Error struct {
	Kind     ErrorKind
	ExitCode int
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTimeout:
		return "transcription timed out"
	case KindProviderFailure:
		if e.Stderr != "" {
			return fmt.Sprintf("transcription provider exited %d: %s", e.ExitCode, e.Stderr)
		}
		return fmt.Sprintf("transcription provider exited %d", e.ExitCode)
	default:
		return fmt.Sprintf("failed to launch transcription provider: %v", e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Invoker runs the configured provider command with a hard timeout.
type Invoker struct {
	command string
	args    []string
	timeout time.Duration
	log     *logrus.Entry
}

// NewInvoker builds an Invoker from configuration.
func NewInvoker(cfg *config.Config, log *logrus.Entry) *Invoker {
	return &Invoker{
		command: cfg.TranscribeCommand,
		args:    cfg.TranscribeArgs,
		timeout: cfg.TranscribeTimeout(),
		log:     log,
	}
}

// Transcribe runs the provider against one artifact and returns the
// transcript text with surrounding whitespace trimmed. On timeout the
// provider process is killed, not abandoned.
func (iv *Invoker) Transcribe(ctx context.Context, artifactPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, iv.timeout)
	defer cancel()

	args := append(append([]string{}, iv.args...), artifactPath)
	cmd := exec.CommandContext(ctx, iv.command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Kill even if the provider holds its pipes open past cancellation.
	cmd.WaitDelay = 5 * time.Second

	iv.log.WithField("artifact", artifactPath).Debug("invoking transcription provider")
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		iv.log.WithField("artifact", artifactPath).
			WithField("elapsed", elapsed.Round(time.Millisecond).String()).
			Warn("transcription timed out, provider killed")
		return "", &Error{Kind: KindTimeout, Err: ctx.Err()}
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &Error{
				Kind:     KindProviderFailure,
				ExitCode: exitErr.ExitCode(),
				Stderr:   strings.TrimSpace(stderr.String()),
				Err:      err,
			}
		}
		return "", &Error{Kind: KindLaunchFailure, Err: err}
	}

	iv.log.WithField("artifact", artifactPath).
		WithField("elapsed", elapsed.Round(time.Millisecond).String()).
		Debug("transcription finished")
	return strings.TrimSpace(stdout.String()), nil
}
