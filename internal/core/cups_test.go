package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUnknownDestination(t *testing.T) {
	tests := []struct {
		diag string
		want bool
	}{
		{`lp: The printer or class does not exist.`, true},
		{`lp: Error - unknown destination "office"!`, true},
		{`lpr: unknown printer office`, true},
		{`lp: Error - scheduler not responding.`, false},
		{``, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isUnknownDestination(tt.diag), "diag %q", tt.diag)
	}
}

func TestIsBenignPipeClose(t *testing.T) {
	assert.True(t, isBenignPipeClose(syscall.EPIPE))
	assert.True(t, isBenignPipeClose(fmt.Errorf("write: %w", os.ErrClosed)))
	assert.False(t, isBenignPipeClose(errors.New("disk full")))
	assert.False(t, isBenignPipeClose(nil))
}

// fakeLp writes a shell script standing in for lp, so Submit can be
// exercised end to end without a print system.
func fakeLp(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake lp scripts need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "lp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestSubmitStreamsBody(t *testing.T) {
	out := filepath.Join(t.TempDir(), "captured")
	lp := fakeLp(t, fmt.Sprintf("cat > %s\n", out))

	s := NewCUPSSpooler(lp, "", testLogger())
	err := s.Submit(context.Background(), "office", []string{"-n", "2"}, strings.NewReader("payload-bytes"))
	require.NoError(t, err)

	captured, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "payload-bytes", string(captured))
}

func TestSubmitUnknownDestination(t *testing.T) {
	lp := fakeLp(t, `echo 'lp: Error - unknown destination "office"!' >&2
exit 1
`)

	s := NewCUPSSpooler(lp, "", testLogger())
	err := s.Submit(context.Background(), "office", nil, strings.NewReader("data"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownDestination)
}

func TestSubmitOtherFailure(t *testing.T) {
	lp := fakeLp(t, `echo 'lp: Error - scheduler not responding.' >&2
exit 1
`)

	s := NewCUPSSpooler(lp, "", testLogger())
	err := s.Submit(context.Background(), "office", nil, strings.NewReader("data"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownDestination)
	assert.Contains(t, err.Error(), "scheduler not responding")
}

func TestSubmitToleratesEarlyClose(t *testing.T) {
	// The script exits without reading stdin; the resulting EPIPE on the
	// copy must not fail the submission when the process itself succeeds.
	lp := fakeLp(t, "exit 0\n")

	s := NewCUPSSpooler(lp, "", testLogger())
	err := s.Submit(context.Background(), "office", nil, strings.NewReader(strings.Repeat("x", 1<<20)))
	assert.NoError(t, err)
}

func TestProvisionArgs(t *testing.T) {
	tests := []struct {
		name       string
		driverPath string
		wantArgs   string
	}{
		{"ppd file", "/drivers/zebra.ppd", "-P /drivers/zebra.ppd"},
		{"model", "drv:///sample.drv/generic.ppd", "-m drv:///sample.drv/generic.ppd"},
		{"auto detect", "", "-m everywhere"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "args")
			lpadmin := filepath.Join(t.TempDir(), "lpadmin")
			require.NoError(t, os.WriteFile(lpadmin,
				[]byte(fmt.Sprintf("#!/bin/sh\necho \"$@\" > %s\n", out)), 0o755))

			s := NewCUPSSpooler("", lpadmin, testLogger())
			dest := Destination{Protocol: "ipp", Host: "192.168.7.101", Name: "_192_168_7_101"}
			require.NoError(t, s.Provision(context.Background(), dest, tt.driverPath))

			args, err := os.ReadFile(out)
			require.NoError(t, err)
			got := strings.TrimSpace(string(args))
			assert.Contains(t, got, "-p _192_168_7_101")
			assert.Contains(t, got, "-v ipp://192.168.7.101")
			assert.Contains(t, got, tt.wantArgs)
		})
	}
}

func TestProvisionFailure(t *testing.T) {
	lpadmin := fakeLp(t, `echo 'lpadmin: Unable to connect to server' >&2
exit 1
`)

	s := NewCUPSSpooler("", lpadmin, testLogger())
	dest := Destination{Protocol: "ipp", Host: "h", Name: "h"}
	err := s.Provision(context.Background(), dest, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unable to connect")
}
