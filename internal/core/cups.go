package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

var ErrUnknownDestination = errors.New("destination not registered with spooler")

// Spooler is the system print queue: it accepts a job on stdin for a named
// destination, and can register a new destination.
type Spooler interface {
	Submit(ctx context.Context, dest string, options []string, body io.Reader) error
	Provision(ctx context.Context, dest Destination, driverPath string) error
}

// CUPSSpooler submits jobs with lp and registers destinations with lpadmin.
type CUPSSpooler struct {
	LpPath      string
	LpadminPath string
	Logger      *slog.Logger
}

func NewCUPSSpooler(lpPath, lpadminPath string, logger *slog.Logger) *CUPSSpooler {
	if lpPath == "" {
		lpPath = "lp"
	}
	if lpadminPath == "" {
		lpadminPath = "lpadmin"
	}
	return &CUPSSpooler{LpPath: lpPath, LpadminPath: lpadminPath, Logger: logger}
}

// Submit streams body into `lp -d <dest> <options>` without materializing
// the file. The subprocess input and the body stream fail independently: a
// broken pipe on the child's stdin is expected for some destinations and is
// logged, not returned; every other stream error propagates.
func (s *CUPSSpooler) Submit(ctx context.Context, dest string, options []string, body io.Reader) error {
	args := append([]string{"-d", dest}, options...)
	cmd := exec.CommandContext(ctx, s.LpPath, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open spooler stdin: %w", err)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return fmt.Errorf("failed to start %s: %w", s.LpPath, err)
	}

	_, copyErr := io.Copy(stdin, body)
	closeErr := stdin.Close()
	waitErr := cmd.Wait()

	if waitErr != nil {
		diag := strings.TrimSpace(stderr.String())
		if isUnknownDestination(diag) {
			return fmt.Errorf("%w: %s", ErrUnknownDestination, diag)
		}
		if diag != "" {
			return fmt.Errorf("spooler rejected job: %v: %s", waitErr, diag)
		}
		return fmt.Errorf("spooler rejected job: %w", waitErr)
	}

	if copyErr != nil {
		if !isBenignPipeClose(copyErr) {
			return fmt.Errorf("failed to stream payload to spooler: %w", copyErr)
		}
		s.Logger.Warn("spooler closed its input early", "destination", dest)
	}
	if closeErr != nil && !isBenignPipeClose(closeErr) {
		return fmt.Errorf("failed to close spooler stdin: %w", closeErr)
	}

	return nil
}

// Provision registers dest with the spooler: with a driver when one is
// configured, otherwise in IPP Everywhere auto-detect mode.
func (s *CUPSSpooler) Provision(ctx context.Context, dest Destination, driverPath string) error {
	uri := dest.Protocol + "://" + dest.Host

	// An absolute .ppd path is a driver file; anything else is a model name
	// (model URIs like drv:///... also end in .ppd).
	args := []string{"-p", dest.Name, "-E", "-v", uri}
	switch {
	case strings.HasPrefix(driverPath, "/") && strings.HasSuffix(driverPath, ".ppd"):
		args = append(args, "-P", driverPath)
	case driverPath != "":
		args = append(args, "-m", driverPath)
	default:
		args = append(args, "-m", "everywhere")
	}

	output, err := exec.CommandContext(ctx, s.LpadminPath, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to register destination %s: %v: %s",
			dest.Name, err, strings.TrimSpace(string(output)))
	}

	s.Logger.Info("registered destination", "destination", dest.Name, "uri", uri, "driver", driverPath)
	return nil
}

// isUnknownDestination decides retry eligibility from the spooler's
// diagnostic text. Fragile against locale and spooler version; kept as one
// predicate so a structured exit-code check can replace it.
func isUnknownDestination(diag string) bool {
	d := strings.ToLower(diag)
	return strings.Contains(d, "does not exist") ||
		strings.Contains(d, "unknown destination") ||
		strings.Contains(d, "unknown printer")
}

func isBenignPipeClose(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed)
}
