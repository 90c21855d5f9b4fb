package transcribe

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/logger"
)

// shInvoker builds an Invoker that runs an inline shell script as the
// provider. The artifact path lands in $0 and is ignored by the scripts.
func shInvoker(t *testing.T, script string, timeoutSecs int) *Invoker {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("provider stub scripts require a POSIX shell")
	}
	cfg := &config.Config{
		TranscribeCommand:     "sh",
		TranscribeArgs:        []string{"-c", script},
		TranscribeTimeoutSecs: timeoutSecs,
	}
	return NewInvoker(cfg, logger.Discard().WithComponent("transcribe"))
}

func TestTranscribe_ReadsStdout(t *testing.T) {
	iv := shInvoker(t, `printf '  remember to call the dentist tomorrow\n'`, 30)

	got, err := iv.Transcribe(context.Background(), "/tmp/capture.m4a")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if got != "remember to call the dentist tomorrow" {
		t.Errorf("Transcribe() = %q, want trimmed transcript", got)
	}
}

func TestTranscribe_ProviderFailure(t *testing.T) {
	iv := shInvoker(t, `echo 'model load failed' >&2; exit 3`, 30)

	_, err := iv.Transcribe(context.Background(), "/tmp/capture.m4a")
	var tErr *Error
	if !errors.As(err, &tErr) {
		t.Fatalf("Transcribe() error = %v, want *transcribe.Error", err)
	}
	if tErr.Kind != KindProviderFailure {
		t.Errorf("Kind = %q, want provider_failure", tErr.Kind)
	}
	if tErr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", tErr.ExitCode)
	}
	if tErr.Stderr != "model load failed" {
		t.Errorf("Stderr = %q, want provider stderr", tErr.Stderr)
	}
}

func TestTranscribe_TimeoutKillsProvider(t *testing.T) {
	iv := shInvoker(t, `sleep 30`, 1)

	start := time.Now()
	_, err := iv.Transcribe(context.Background(), "/tmp/capture.m4a")
	elapsed := time.Since(start)

	var tErr *Error
	if !errors.As(err, &tErr) {
		t.Fatalf("Transcribe() error = %v, want *transcribe.Error", err)
	}
	if tErr.Kind != KindTimeout {
		t.Errorf("Kind = %q, want timeout", tErr.Kind)
	}
	// The provider must be killed, not waited out.
	if elapsed > 10*time.Second {
		t.Errorf("Transcribe() took %v, provider was not terminated on timeout", elapsed)
	}
}

func TestTranscribe_LaunchFailure(t *testing.T) {
	cfg := &config.Config{
		TranscribeCommand:     "/nonexistent/transcriber-binary",
		TranscribeTimeoutSecs: 5,
	}
	iv := NewInvoker(cfg, logger.Discard().WithComponent("transcribe"))

	_, err := iv.Transcribe(context.Background(), "/tmp/capture.m4a")
	var tErr *Error
	if !errors.As(err, &tErr) {
		t.Fatalf("Transcribe() error = %v, want *transcribe.Error", err)
	}
	if tErr.Kind != KindLaunchFailure {
		t.Errorf("Kind = %q, want launch_failure", tErr.Kind)
	}
}

func TestTranscribe_AppendsArtifactPath(t *testing.T) {
	// Echo the last argument back: the invoker must pass the artifact as
	// the final argument.
	iv := shInvoker(t, `printf '%s' "$0"`, 30)

	got, err := iv.Transcribe(context.Background(), "/tmp/capture_20260124_143022.m4a")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if got != "/tmp/capture_20260124_143022.m4a" {
		t.Errorf("provider saw %q, want the artifact path", got)
	}
}
