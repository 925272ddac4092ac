// Package ingest bulk-loads newline-delimited JSON event documents into the
// event store.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/destel/rill"
	"github.com/zhirschtritt/eventapi/internal/domain"
)

type EventCreator interface {
	CreateEvents(ctx context.Context, events []domain.Event) (int, error)
}

type Options struct {
	BatchSize    int
	BatchTimeout time.Duration
	WorkerCount  int
	MaxLineBytes int
}

func (o *Options) defaults() {
	if o.BatchSize == 0 {
		o.BatchSize = 100
	}
	if o.BatchTimeout == 0 {
		o.BatchTimeout = 100 * time.Millisecond
	}
	if o.WorkerCount == 0 {
		o.WorkerCount = 4
	}
	if o.MaxLineBytes == 0 {
		o.MaxLineBytes = 1 << 20
	}
}

type Importer struct {
	creator EventCreator
	opts    Options
	logger  *slog.Logger
}

// Result counts documents parsed from the input and documents the store
// accepted. They differ only when Import fails part way.
type Result struct {
	Read     int
	Inserted int
}

func NewImporter(creator EventCreator, opts Options, logger *slog.Logger) *Importer {
	opts.defaults()

	return &Importer{
		creator: creator,
		opts:    opts,
		logger:  logger,
	}
}

// Import reads one JSON object per line from r and stores them in batches.
// Blank lines are skipped. The first malformed line stops the import.
func (im *Importer) Import(ctx context.Context, r io.Reader) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var read, inserted atomic.Int64

	batches := rill.Batch(im.decode(ctx, r, &read), im.opts.BatchSize, im.opts.BatchTimeout)
	defer rill.DrainNB(batches)

	err := rill.ForEach(batches, im.opts.WorkerCount, func(batch []domain.Event) error {
		n, err := im.creator.CreateEvents(ctx, batch)
		inserted.Add(int64(n))
		if err != nil {
			return err
		}

		im.logger.Debug("imported batch", "size", n, "total", inserted.Load())
		return nil
	})

	result := Result{Read: int(read.Load()), Inserted: int(inserted.Load())}
	if err != nil {
		return result, fmt.Errorf("import stopped after %d events: %w", result.Inserted, err)
	}

	return result, nil
}

func (im *Importer) decode(ctx context.Context, r io.Reader, read *atomic.Int64) <-chan rill.Try[domain.Event] {
	out := make(chan rill.Try[domain.Event])

	send := func(item rill.Try[domain.Event]) bool {
		select {
		case out <- item:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(out)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), im.opts.MaxLineBytes)

		line := 0
		for scanner.Scan() {
			line++
			text := bytes.TrimSpace(scanner.Bytes())
			if len(text) == 0 {
				continue
			}

			event, err := decodeLine(text)
			if err != nil {
				send(rill.Try[domain.Event]{Error: fmt.Errorf("%w: line %d: %w", domain.ErrInvalidRequest, line, err)})
				return
			}

			read.Add(1)
			if !send(rill.Try[domain.Event]{Value: event}) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			send(rill.Try[domain.Event]{Error: fmt.Errorf("failed to read input: %w", err)})
		}
	}()

	return out
}

func decodeLine(text []byte) (domain.Event, error) {
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()

	var event domain.Event
	if err := dec.Decode(&event); err != nil {
		return nil, err
	}
	if event == nil {
		return nil, errors.New("expected a JSON object")
	}
	if dec.More() {
		return nil, errors.New("unexpected data after JSON object")
	}

	return event, nil
}
