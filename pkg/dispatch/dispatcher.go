// Package dispatch orchestrates a conversion request: format validation,
// quota reservation, converter invocation, and the audit trail.
package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/pdfmill/pdfmill/pkg/alerts"
	"github.com/pdfmill/pdfmill/pkg/convert"
	"github.com/pdfmill/pdfmill/pkg/model"
	"github.com/pdfmill/pdfmill/pkg/storage"
)

// DefaultDailyLimit is the per-client conversion allowance per calendar day.
const DefaultDailyLimit = 5

// DefaultTimeout bounds a single converter invocation.
const DefaultTimeout = 30 * time.Second

// Options tune dispatcher behavior beyond its wired dependencies.
type Options struct {
	// DailyLimit is the per-client daily quota (default 5).
	DailyLimit int

	// Timeout is the wall-clock bound per conversion (default 30s).
	Timeout time.Duration

	// ValidateOutput runs pdfcpu validation on every produced artifact.
	ValidateOutput bool
}

// Dispatcher routes uploads to converters and keeps the usage ledger and
// audit trail consistent. Safe for concurrent use; requests only contend on
// the ledger's (client, day) keys.
type Dispatcher struct {
	registry  *convert.Registry
	store     storage.Store
	notifiers []alerts.Notifier
	logger    *slog.Logger
	limit     int
	timeout   time.Duration
	validate  bool
}

// NewDispatcher creates a dispatcher with the given dependencies.
func NewDispatcher(registry *convert.Registry, store storage.Store, notifiers []alerts.Notifier, logger *slog.Logger, opts Options) *Dispatcher {
	if opts.DailyLimit <= 0 {
		opts.DailyLimit = DefaultDailyLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Dispatcher{
		registry:  registry,
		store:     store,
		notifiers: notifiers,
		logger:    logger,
		limit:     opts.DailyLimit,
		timeout:   opts.Timeout,
		validate:  opts.ValidateOutput,
	}
}

// DailyLimit returns the configured per-client quota.
func (d *Dispatcher) DailyLimit() int { return d.limit }

// Convert runs one request through the conversion state machine.
//
// The quota unit is debited at reservation time, before the converter runs,
// and is not refunded when the conversion fails. Reservation and increment
// are one atomic step in the store.
func (d *Dispatcher) Convert(ctx context.Context, req model.ConversionRequest) (*model.ConversionResult, error) {
	stem, ext, ok := convert.SplitExt(req.Filename)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, req.Filename)
	}
	conv, ok := d.registry.Lookup(ext)
	if !ok {
		return nil, fmt.Errorf("%w: .%s", ErrInvalidFormat, ext)
	}

	day := model.Today()
	granted, err := d.store.ReserveUsage(ctx, req.Client, day, d.limit)
	if err != nil {
		return nil, &PersistenceError{Op: "quota reservation", Err: err}
	}
	if !granted {
		d.notifyQuotaExhausted(ctx, req.Client, day)
		return nil, fmt.Errorf("%w: client %s", ErrRateLimited, req.Client)
	}

	pdf, err := d.runConverter(ctx, conv, req.Content)
	if err != nil {
		d.logger.Warn("conversion failed",
			"client", req.Client,
			"filename", req.Filename,
			"converter", conv.Name(),
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}

	if d.validate {
		if err := api.Validate(bytes.NewReader(pdf), nil); err != nil {
			d.logger.Warn("artifact failed validation",
				"client", req.Client,
				"filename", req.Filename,
				"error", err,
			)
			return nil, fmt.Errorf("%w: artifact validation: %v", ErrConversionFailed, err)
		}
	}

	record := &model.ConversionRecord{
		Client:       req.Client,
		Filename:     req.Filename,
		SourceFormat: ext,
		TargetFormat: model.TargetFormat,
		Timestamp:    time.Now().UTC(),
	}
	// The audit trail is the only durable evidence a conversion occurred, so
	// the append must land before success is reported.
	if err := d.store.RecordConversion(ctx, record); err != nil {
		return nil, &PersistenceError{Op: "audit append", Err: err}
	}

	d.logger.Info("conversion succeeded",
		"client", req.Client,
		"filename", req.Filename,
		"source_format", ext,
		"converter", conv.Name(),
		"bytes", len(pdf),
	)

	return &model.ConversionResult{
		PDF:        pdf,
		OutputName: outputName(stem),
		Record:     record,
	}, nil
}

// Usage reports the client's consumed and remaining quota for today.
func (d *Dispatcher) Usage(ctx context.Context, client string) (used, remaining int, err error) {
	used, err = d.store.UsageCount(ctx, client, model.Today())
	if err != nil {
		return 0, 0, &PersistenceError{Op: "usage read", Err: err}
	}
	remaining = d.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return used, remaining, nil
}

// runConverter executes the converter under the configured wall-clock bound
// and turns panics into errors so a pathological input cannot take the
// process down.
func (d *Dispatcher) runConverter(ctx context.Context, conv convert.Converter, src []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type result struct {
		pdf []byte
		err error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("converter panic: %v", r)}
			}
		}()
		pdf, err := conv.Convert(ctx, src)
		done <- result{pdf: pdf, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.pdf, r.err
	}
}

func (d *Dispatcher) notifyQuotaExhausted(ctx context.Context, client, day string) {
	if len(d.notifiers) == 0 {
		return
	}
	alert := alerts.Alert{
		Client:  client,
		Day:     day,
		Limit:   d.limit,
		Message: fmt.Sprintf("client %s exhausted its daily quota of %d conversions", client, d.limit),
	}
	for _, n := range d.notifiers {
		if err := n.Send(ctx, alert); err != nil {
			d.logger.Error("send alert failed",
				"notifier", n.Name(),
				"client", client,
				"error", err,
			)
		}
	}
}

// outputName builds the suggested artifact name <stem>_<short-id>.pdf.
func outputName(stem string) string {
	return fmt.Sprintf("%s_%s.pdf", stem, uuid.New().String()[:8])
}
