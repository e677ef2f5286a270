// Package cli implements LogCar's kong subcommands: serve the HTTP surface,
// or drive the record façade directly for one-off put/get/del/doctor calls.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julianstephens/go-utils/cliutil"

	"github.com/logcar/logcar/internal/backboard"
	"github.com/logcar/logcar/internal/config"
	"github.com/logcar/logcar/internal/httpapi"
	"github.com/logcar/logcar/internal/logcar/emit"
	"github.com/logcar/logcar/internal/logcar/fragment"
	"github.com/logcar/logcar/internal/logcar/record"
	"github.com/logcar/logcar/internal/logcar/search"
	"github.com/logcar/logcar/internal/logger"
)

// ErrNotImplemented is returned by a subcommand that has no runtime effect
// yet.
var ErrNotImplemented = errors.New("not yet implemented")

// buildStore loads cfg, points a backboard client and stdout sink at it,
// and wires them into a record.Store; every subcommand that touches records
// builds its store through it.
func buildStore(configPath string, lg logger.Logger) (*record.Store, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	client := backboard.New(cfg.Storage.BackboardURL, cfg.Storage.Scope(), nil, lg)
	sink := emit.NewWriterSink(os.Stdout)

	return record.New(cfg.RecordConfig(), sink, client, lg), cfg, nil
}

// ServeCmd starts the HTTP CRUD/file surface.
type ServeCmd struct {
	Config string `help:"Path to a logcar config file" short:"c"`
}

func (c *ServeCmd) Run(lg logger.Logger) error {
	store, cfg, err := buildStore(c.Config, lg)
	if err != nil {
		return err
	}

	srv := httpapi.NewServer(cfg, store, lg)

	errCh := srv.StartAsync()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server exited: %w", err)
		}
	case <-sigCh:
		lg.Info("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// PutCmd creates a new record from a JSON value on the command line.
type PutCmd struct {
	Value  string `arg:"" help:"JSON value to store (a bare string is stored as a JSON string)"`
	Key    string `help:"Per-call encryption key, overriding the process-wide key" short:"k"`
	Config string `help:"Path to a logcar config file" short:"c"`
}

func (c *PutCmd) Run(lg logger.Logger) error {
	store, _, err := buildStore(c.Config, lg)
	if err != nil {
		return err
	}

	var value any
	if err := json.Unmarshal([]byte(c.Value), &value); err != nil {
		value = c.Value
	}

	var opts []record.Option
	if c.Key != "" {
		opts = append(opts, record.WithKey(c.Key))
	}

	rec, err := store.Create(value, opts...)
	if err != nil {
		cliutil.PrintError(fmt.Sprintf("put failed: %v", err))
		return err
	}

	fmt.Println(rec.RID)
	return nil
}

// GetCmd reads a record by rid.
type GetCmd struct {
	RID    string `arg:"" help:"Record ID to fetch"`
	Key    string `help:"Per-call decryption key, overriding the process-wide key" short:"k"`
	Config string `help:"Path to a logcar config file" short:"c"`
}

func (c *GetCmd) Run(lg logger.Logger) error {
	store, _, err := buildStore(c.Config, lg)
	if err != nil {
		return err
	}

	var opts []record.Option
	if c.Key != "" {
		opts = append(opts, record.WithKey(c.Key))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rec, err := store.Read(ctx, c.RID, opts...)
	if err != nil {
		cliutil.PrintError(fmt.Sprintf("get failed: %v", err))
		return err
	}

	out, err := json.Marshal(rec.Value)
	if err != nil {
		return fmt.Errorf("encode record value: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// DelCmd tombstones a record by rid.
type DelCmd struct {
	RID    string `arg:"" help:"Record ID to delete"`
	Config string `help:"Path to a logcar config file" short:"c"`
}

func (c *DelCmd) Run(lg logger.Logger) error {
	store, _, err := buildStore(c.Config, lg)
	if err != nil {
		return err
	}
	if err := store.Delete(c.RID); err != nil {
		cliutil.PrintError(fmt.Sprintf("delete failed: %v", err))
		return err
	}
	return nil
}

// batchLine is one line of a BatchCmd input file.
type batchLine struct {
	Op    string `json:"op"`
	RID   string `json:"rid,omitempty"`
	Value any    `json:"value,omitempty"`
}

// BatchCmd runs a sequence of create/update/delete operations read from a
// newline-delimited JSON file, one op object per line, stopping at the
// first failure.
type BatchCmd struct {
	File   string `arg:"" help:"File containing newline-delimited JSON batch operations"`
	Config string `help:"Path to a logcar config file" short:"c"`
}

func (c *BatchCmd) Run(lg logger.Logger) error {
	store, _, err := buildStore(c.Config, lg)
	if err != nil {
		return err
	}

	f, err := os.Open(c.File)
	if err != nil {
		return fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()

	batch := record.NewBatch()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var bl batchLine
		if err := json.Unmarshal([]byte(line), &bl); err != nil {
			return fmt.Errorf("parse batch line %q: %w", line, err)
		}
		switch fragment.Op(bl.Op) {
		case fragment.OpCreate:
			batch.Create(bl.Value)
		case fragment.OpUpdate:
			batch.Update(bl.RID, bl.Value)
		case fragment.OpDelete:
			batch.Delete(bl.RID)
		default:
			return fmt.Errorf("unknown batch op %q", bl.Op)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read batch file: %w", err)
	}

	results, err := store.RunBatch(context.Background(), batch)
	for _, rec := range results {
		fmt.Println(rec.RID)
	}
	if err != nil {
		cliutil.PrintError(fmt.Sprintf("batch stopped after %d ops: %v", len(results), err))
		return err
	}
	return nil
}

// ListCmd runs a raw search.Spec query against the search protocol.
type ListCmd struct {
	Op     string `help:"Only include records written with this operation (create, update, delete)"`
	Filter string `help:"A literal filter clause to AND with the derived predicate"`
	Limit  int    `help:"Maximum records to return" default:"20"`
	Config string `help:"Path to a logcar config file" short:"c"`
}

func (c *ListCmd) Run(lg logger.Logger) error {
	store, _, err := buildStore(c.Config, lg)
	if err != nil {
		return err
	}

	spec := search.Spec{Predicate: search.Predicate{Op: c.Op}, Filter: c.Filter, Limit: c.Limit}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	records, err := store.List(ctx, spec)
	if err != nil {
		cliutil.PrintError(fmt.Sprintf("list failed: %v", err))
		return err
	}

	for _, rec := range records {
		out, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		fmt.Println(string(out))
	}
	return nil
}

// DoctorCmd resolves the effective configuration, validates it, and
// persists it as a snapshot an operator can inspect.
type DoctorCmd struct {
	Config     string `help:"Path to a logcar config file" short:"c"`
	SnapshotTo string `help:"Directory to write the resolved-config snapshot into" default:"."`
}

func (c *DoctorCmd) Run(lg logger.Logger) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		cliutil.PrintError(fmt.Sprintf("config invalid: %v", err))
		return err
	}

	path := config.DefaultSnapshotPath(c.SnapshotTo)
	if err := config.WriteSnapshot(cfg, path); err != nil {
		cliutil.PrintError(fmt.Sprintf("failed to write snapshot: %v", err))
		return err
	}

	fmt.Printf("configuration OK, snapshot written to %s\n", path)
	fmt.Printf("  storage scope:        %s\n", cfg.Storage.Scope())
	fmt.Printf("  max chunk length:     %d\n", cfg.Storage.MaxChunkLength)
	fmt.Printf("  max fragments/write:  %d\n", cfg.Storage.MaxFragmentsPerWrite)
	fmt.Printf("  encryption enabled:   %v\n", cfg.Storage.EncryptionEnabled)
	fmt.Printf("  server port:          %d\n", cfg.Server.Port)
	return nil
}
