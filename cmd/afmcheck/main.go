// Command afmcheck validates Greek tax numbers and optionally looks them up
// in the GSIS registry.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"taxid/internal/platform/config"
	"taxid/internal/platform/logger"
	"taxid/internal/registry"
	"taxid/internal/registry/gsis"
	"taxid/internal/registry/handler"
	"taxid/pkg/afm"
)

const (
	exitOK      = 0
	exitInvalid = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type result struct {
	Input   string                 `json:"input"`
	Compact string                 `json:"compact"`
	Valid   bool                   `json:"valid"`
	Reason  string                 `json:"reason,omitempty"`
	Record  *handler.RegistrationResponse `json:"record,omitempty"`
	Error   string                        `json:"error,omitempty"`
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("afmcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	lookup := fs.Bool("lookup", false, "Query the GSIS registry for each valid number")
	calledBy := fs.String("by", "", "AFM of the caller, required with -lookup")
	version := fs.Bool("version", false, "Print the GSIS service version and exit")
	asJSON := fs.Bool("json", false, "Print one JSON object per number")
	concurrency := fs.Int("concurrency", 4, "Parallel registry calls with -lookup")
	envFile := fs.String("env", ".env", "Optional env file with GSIS credentials")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: afmcheck [flags] [number ...]")
		fmt.Fprintln(stderr, "Numbers are read from stdin, one per line, when none are given.")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	var svc *registry.Service
	if *lookup || *version {
		var err error
		svc, err = newService(*envFile)
		if err != nil {
			fmt.Fprintln(stderr, "afmcheck:", err)
			return exitUsage
		}
	}

	if *version {
		v, err := svc.Version(ctx)
		if err != nil {
			fmt.Fprintln(stderr, "afmcheck:", err)
			return exitInvalid
		}
		fmt.Fprintln(stdout, v)
		return exitOK
	}

	if *lookup && !afm.IsValid(*calledBy) {
		fmt.Fprintln(stderr, "afmcheck: -by must be a valid AFM")
		return exitUsage
	}

	numbers := fs.Args()
	if len(numbers) == 0 {
		var err error
		if numbers, err = readLines(stdin); err != nil {
			fmt.Fprintln(stderr, "afmcheck:", err)
			return exitUsage
		}
	}

	results := make([]result, len(numbers))
	for i, raw := range numbers {
		results[i] = check(raw)
	}
	if *lookup {
		lookupAll(ctx, svc, *calledBy, results, *concurrency)
	}

	code := exitOK
	enc := json.NewEncoder(stdout)
	for _, r := range results {
		if !r.Valid || r.Error != "" {
			code = exitInvalid
		}
		var err error
		if *asJSON {
			err = enc.Encode(r)
		} else {
			_, err = fmt.Fprintln(stdout, formatLine(r))
		}
		if err != nil {
			fmt.Fprintln(stderr, "afmcheck: write output:", err)
			return exitInvalid
		}
	}
	return code
}

func check(raw string) result {
	r := result{Input: raw, Compact: afm.Compact(raw)}
	if _, err := afm.Validate(raw); err != nil {
		var verr *afm.ValidationError
		if errors.As(err, &verr) {
			r.Reason = string(verr.Kind)
		}
		return r
	}
	r.Valid = true
	return r
}

// lookupAll fills in registry records for the valid entries. Each result slot
// is written by exactly one goroutine.
func lookupAll(ctx context.Context, svc *registry.Service, calledBy string, results []result, limit int) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))
	for i := range results {
		if !results[i].Valid {
			continue
		}
		i := i
		g.Go(func() error {
			record, err := svc.Lookup(gctx, results[i].Compact, calledBy)
			if err != nil {
				results[i].Error = lookupError(err)
				return nil
			}
			results[i].Record = handler.FromRegistration(record)
			return nil
		})
	}
	_ = g.Wait()
}

func formatLine(r result) string {
	status := "valid"
	if !r.Valid {
		status = r.Reason
	}
	line := r.Compact + "\t" + status
	switch {
	case r.Error != "":
		line += "\t" + r.Error
	case r.Record != nil:
		state := "inactive"
		if r.Record.Active {
			state = "active"
		}
		line += "\t" + state + "\t" + r.Record.Name
	}
	return line
}

// lookupError prefers the registry's own code over the wrapped chain.
func lookupError(err error) string {
	var svcErr *registry.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Error()
	}
	return err.Error()
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func newService(envFile string) (*registry.Service, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	client, err := gsis.New(gsis.Config{
		Endpoint: cfg.GSIS.Endpoint,
		Username: cfg.GSIS.Username,
		Password: cfg.GSIS.Password,
	})
	if err != nil {
		return nil, err
	}
	return registry.NewService(client,
		registry.WithTimeout(cfg.GSIS.Timeout),
		registry.WithRegulatedMode(cfg.RegulatedMode),
		registry.WithLogger(quietLogger(cfg)),
	), nil
}

// quietLogger keeps stdout for results.
func quietLogger(cfg config.Server) *slog.Logger {
	level := cfg.LogLevel
	if level == "info" {
		level = "warn"
	}
	return logger.NewWithWriter(os.Stderr, cfg.Env, level)
}
