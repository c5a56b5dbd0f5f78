package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSpooler struct {
	submitErrs    []error
	submits       int
	provisions    int
	provisionErr  error
	lastDest      string
	lastOptions   []string
	lastBody      []byte
	provisionDest Destination
	provisionPath string
}

func (f *fakeSpooler) Submit(ctx context.Context, dest string, options []string, body io.Reader) error {
	f.submits++
	f.lastDest = dest
	f.lastOptions = options
	f.lastBody, _ = io.ReadAll(body)
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		return err
	}
	return nil
}

func (f *fakeSpooler) Provision(ctx context.Context, dest Destination, driverPath string) error {
	f.provisions++
	f.provisionDest = dest
	f.provisionPath = driverPath
	return f.provisionErr
}

func payloadServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPipelineSubmitsPayload(t *testing.T) {
	srv := payloadServer(t, "pdf-bytes")
	spooler := &fakeSpooler{}
	p := NewPipeline(spooler, nil, testLogger())

	dest := Resolve("192.168.7.101")
	err := p.Run(context.Background(), srv.URL, dest, "-n 2 -o media=a4")
	require.NoError(t, err)

	assert.Equal(t, 1, spooler.submits)
	assert.Equal(t, 0, spooler.provisions)
	assert.Equal(t, "_192_168_7_101", spooler.lastDest)
	assert.Equal(t, []string{"-n", "2", "-o", "media=a4"}, spooler.lastOptions)
	assert.Equal(t, "pdf-bytes", string(spooler.lastBody))
}

func TestPipelineProvisionsUnknownDestinationOnce(t *testing.T) {
	srv := payloadServer(t, "data")
	spooler := &fakeSpooler{submitErrs: []error{ErrUnknownDestination}}
	p := NewPipeline(spooler, nil, testLogger())

	dest := Resolve("192.168.7.101")
	err := p.Run(context.Background(), srv.URL, dest, "")
	require.NoError(t, err)

	assert.Equal(t, 2, spooler.submits)
	assert.Equal(t, 1, spooler.provisions)
	assert.Equal(t, dest, spooler.provisionDest)
	assert.Empty(t, spooler.provisionPath, "default protocol provisions without a driver")
}

func TestPipelineSecondUnknownIsTerminal(t *testing.T) {
	srv := payloadServer(t, "data")
	spooler := &fakeSpooler{submitErrs: []error{ErrUnknownDestination, ErrUnknownDestination}}
	p := NewPipeline(spooler, nil, testLogger())

	err := p.Run(context.Background(), srv.URL, Resolve("192.168.7.101"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPrintFailed)

	assert.Equal(t, 2, spooler.submits)
	assert.Equal(t, 1, spooler.provisions, "provisioning must happen exactly once")
}

func TestPipelineUsesConfiguredDriver(t *testing.T) {
	srv := payloadServer(t, "data")
	spooler := &fakeSpooler{submitErrs: []error{ErrUnknownDestination}}
	table := ParseDriverTable([]string{
		"PRINTER_DRIVER_Z=socket:192.168.7.*:/drivers/zebra.ppd",
	})
	p := NewPipeline(spooler, table, testLogger())

	err := p.Run(context.Background(), srv.URL, Resolve("socket://192.168.7.101"), "")
	require.NoError(t, err)
	assert.Equal(t, "/drivers/zebra.ppd", spooler.provisionPath)
}

func TestPipelineNonDefaultProtocolWithoutDriverFails(t *testing.T) {
	srv := payloadServer(t, "data")
	spooler := &fakeSpooler{submitErrs: []error{ErrUnknownDestination}}
	p := NewPipeline(spooler, nil, testLogger())

	err := p.Run(context.Background(), srv.URL, Resolve("socket://192.168.7.101"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvisionFailed)
	assert.Equal(t, 0, spooler.provisions)
}

func TestPipelineProvisionFailure(t *testing.T) {
	srv := payloadServer(t, "data")
	spooler := &fakeSpooler{
		submitErrs:   []error{ErrUnknownDestination},
		provisionErr: errors.New("lpadmin exploded"),
	}
	p := NewPipeline(spooler, nil, testLogger())

	err := p.Run(context.Background(), srv.URL, Resolve("192.168.7.101"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvisionFailed)
	assert.Equal(t, 1, spooler.submits, "no retry after failed provisioning")
}

func TestPipelineFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	spooler := &fakeSpooler{}
	p := NewPipeline(spooler, nil, testLogger())

	err := p.Run(context.Background(), srv.URL, Resolve("192.168.7.101"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, 0, spooler.submits)
}

func TestPipelineWrapsSubmitErrors(t *testing.T) {
	srv := payloadServer(t, "data")
	spooler := &fakeSpooler{submitErrs: []error{errors.New("queue jammed")}}
	p := NewPipeline(spooler, nil, testLogger())

	err := p.Run(context.Background(), srv.URL, Resolve("192.168.7.101"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPrintFailed)
	assert.Equal(t, 0, spooler.provisions)
}
