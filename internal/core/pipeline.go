package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

var (
	ErrFetchFailed     = errors.New("payload fetch failed")
	ErrPrintFailed     = errors.New("print submission failed")
	ErrProvisionFailed = errors.New("destination provisioning failed")
)

// Pipeline streams a payload from its resolved location into the spooler.
// When the destination is unknown it performs exactly one recovery: register
// the destination and retry. Any second failure is terminal.
type Pipeline struct {
	Spooler Spooler
	Drivers DriverTable
	Client  *http.Client
	Logger  *slog.Logger
}

func NewPipeline(spooler Spooler, drivers DriverTable, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		Spooler: spooler,
		Drivers: drivers,
		Client:  http.DefaultClient,
		Logger:  logger,
	}
}

func (p *Pipeline) Run(ctx context.Context, location string, dest Destination, options string) error {
	opts := strings.Fields(options)

	err := p.attempt(ctx, location, dest.Name, opts)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUnknownDestination) {
		return err
	}

	driverPath, found := p.Drivers.FindDriver(dest.Protocol, dest.Host)
	if !found && dest.Protocol != DefaultProtocol {
		return fmt.Errorf("%w: no driver configured for protocol %s and auto-detect only handles %s",
			ErrProvisionFailed, dest.Protocol, DefaultProtocol)
	}

	p.Logger.Info("destination unknown, registering",
		"destination", dest.Name, "protocol", dest.Protocol, "host", dest.Host, "driver", driverPath)

	if perr := p.Spooler.Provision(ctx, dest, driverPath); perr != nil {
		return fmt.Errorf("%w: %v", ErrProvisionFailed, perr)
	}

	if err := p.attempt(ctx, location, dest.Name, opts); err != nil {
		if errors.Is(err, ErrUnknownDestination) {
			return fmt.Errorf("%w: destination %s still unknown after registration", ErrPrintFailed, dest.Name)
		}
		return err
	}
	return nil
}

func (p *Pipeline) attempt(ctx context.Context, location, destName string, options []string) error {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: unexpected status %s", ErrFetchFailed, resp.Status)
	}

	if err := p.Spooler.Submit(ctx, destName, options, resp.Body); err != nil {
		if errors.Is(err, ErrUnknownDestination) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPrintFailed, err)
	}
	return nil
}
