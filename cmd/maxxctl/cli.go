package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/lifemaxxing-extract/constants"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/app"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/async"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/contracts"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/ingest"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/pipeline"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/server"
)

// env carries what commands share. cfg is loaded in Before unless a test set
// it already.
type env struct {
	cfg    *common.Config
	logger *slog.Logger
	out    io.Writer
}

func newCLIApp(e *env) *cli.App {
	a := &cli.App{
		Name:  "maxxctl",
		Usage: "Run and inspect LifeMaxxing extractions",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, EnvVars: []string{"LIFEMAXXING_CONFIG"}, Usage: "TOML config file"},
		},
		Before: func(c *cli.Context) error {
			if e.cfg == nil {
				cfg, err := common.LoadConfig(c.String("config"))
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				e.cfg = cfg
			}
			// Operators run the CLI on their own files.
			e.cfg.Ingest.AllowLocal = true
			if e.logger == nil {
				e.logger = e.cfg.Log.NewLogger()
			}
			return nil
		},
		Commands: []*cli.Command{
			domainsCmd(e),
			extractCmd(e),
			batchCmd(e),
			exportCmd(e),
			otpCmd(e),
			migrateCmd(e),
			dbhealthCmd(e),
		},
	}
	a.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return a
}

func (e *env) open(ctx context.Context) (*app.App, error) {
	a, err := app.Open(ctx, e.cfg, e.logger)
	if err != nil {
		return nil, outputError(err)
	}
	return a, nil
}

func domainsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "domains",
		Usage: "List registered domains and their required fields",
		Action: func(c *cli.Context) error {
			reg := contracts.MustDefaultRegistry()
			type row struct {
				Domain   constants.Domain `json:"domain"`
				Required []string         `json:"required"`
				Tolerant bool             `json:"tolerant"`
				Kind     string           `json:"defaultRawKind"`
			}
			var rows []row
			for _, d := range reg.Domains() {
				ct, err := reg.Lookup(d)
				if err != nil {
					return outputError(err)
				}
				rows = append(rows, row{Domain: d, Required: ct.RequiredFields(), Tolerant: ct.Tolerant(), Kind: string(ct.RawKind)})
			}
			return e.outputJSON(rows)
		},
	}
}

func extractCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "Extract one structured record from a URL or local file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "domain", Aliases: []string{"d"}, Required: true, Usage: "Domain or agent name"},
			&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Required: true, Usage: "URL, data URL or file path"},
			&cli.StringFlag{Name: "kind", Usage: "text-document|image (defaults per domain)"},
			&cli.BoolFlag{Name: "persist", Usage: "Store the record"},
			&cli.StringFlag{Name: "owner", Usage: "Owner id stored with the record"},
			&cli.StringFlag{Name: "remote", Usage: "gRPC address of a running extractd"},
		},
		Action: func(c *cli.Context) error {
			domain, ok := constants.ParseDomain(c.String("domain"))
			if !ok {
				return outputError(fmt.Errorf("%w: %q", common.ErrUnknownDomain, c.String("domain")))
			}
			req := pipeline.ExtractionRequest{
				Domain:    domain,
				SourceRef: c.String("source"),
				RawKind:   constants.RawKind(c.String("kind")),
			}
			if addr := c.String("remote"); addr != "" {
				return e.extractRemote(c.Context, addr, req, c.Bool("persist"), c.String("owner"))
			}

			if err := e.cfg.Validate(); err != nil {
				return outputError(err)
			}
			a, err := e.open(c.Context)
			if err != nil {
				return err
			}
			defer a.Close()
			svc, err := a.Extraction()
			if err != nil {
				return outputError(err)
			}

			if c.Bool("persist") {
				out, err := svc.ExtractAndStore(c.Context, req, c.String("owner"))
				if err != nil && out.Result.Record == nil {
					return outputError(err)
				}
				_ = e.outputJSON(resultJSON(out.Result, out.JobID, err))
				if err != nil {
					return outputError(err)
				}
				return nil
			}
			res, err := svc.Extract(c.Context, req)
			if err != nil {
				return outputError(err)
			}
			return e.outputJSON(resultJSON(res, "", nil))
		},
	}
}

func (e *env) extractRemote(ctx context.Context, addr string, req pipeline.ExtractionRequest, persist bool, owner string) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return outputError(err)
	}
	defer conn.Close()

	in, err := structpb.NewStruct(map[string]any{
		"domain":  string(req.Domain),
		"fileUrl": req.SourceRef,
		"rawKind": string(req.RawKind),
		"persist": persist,
		"ownerId": owner,
	})
	if err != nil {
		return outputError(err)
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()
	out, err := server.NewExtractionClient(conn).Extract(ctx, in)
	if body, ok := server.OutcomeFromError(err); ok {
		m := body.AsMap()
		m["error"] = status.Convert(err).Message()
		if jerr := e.outputJSON(m); jerr != nil {
			return jerr
		}
		return cli.Exit("", 1)
	}
	if err != nil {
		return outputError(err)
	}
	return e.outputJSON(out.AsMap())
}

type resultLine struct {
	Index     int              `json:"index"`
	Domain    constants.Domain `json:"domain"`
	SourceRef string           `json:"sourceRef"`
	Record    any              `json:"record,omitempty"`
	FellBack  bool             `json:"fellBack,omitempty"`
	Cause     string           `json:"cause,omitempty"`
	JobID     string           `json:"jobId,omitempty"`
	Error     string           `json:"error,omitempty"`
	ElapsedMS int64            `json:"elapsedMs,omitempty"`
}

func resultJSON(res pipeline.Result, jobID string, err error) resultLine {
	line := resultLine{Domain: res.Domain, Record: res.Record, FellBack: res.FellBack, JobID: jobID}
	if res.Cause != nil {
		line.Cause = res.Cause.Error()
	}
	if err != nil {
		line.Error = err.Error()
	}
	return line
}

func batchCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "Extract many sources concurrently; prints one JSON line per source",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "JSON lines of {domain, sourceRef, rawKind, ownerId, persist}; - for stdin"},
			&cli.StringFlag{Name: "dir", Usage: "Directory to scan instead of --file"},
			&cli.StringFlag{Name: "domain", Aliases: []string{"d"}, Usage: "Domain for every file found with --dir"},
			&cli.BoolFlag{Name: "persist", Usage: "Store records found with --dir"},
			&cli.StringFlag{Name: "owner", Usage: "Owner id for records found with --dir"},
			&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Value: 4},
			&cli.DurationFlag{Name: "timeout", Value: 3 * time.Minute, Usage: "Per-source timeout"},
		},
		Action: func(c *cli.Context) error {
			var (
				reqs []async.Request
				err  error
			)
			switch {
			case c.String("dir") != "":
				reqs, err = e.scanDir(c)
			case c.String("file") != "":
				reqs, err = readBatchFile(c.String("file"))
			default:
				return cli.Exit("one of --file or --dir is required", 1)
			}
			if err != nil {
				return outputError(err)
			}
			if len(reqs) == 0 {
				return cli.Exit("no sources to process", 1)
			}

			if err := e.cfg.Validate(); err != nil {
				return outputError(err)
			}
			a, err := e.open(c.Context)
			if err != nil {
				return err
			}
			defer a.Close()
			svc, err := a.Extraction()
			if err != nil {
				return outputError(err)
			}

			runner := async.NewBatchRunner(svc, e.logger,
				async.WithWorkers(c.Int("workers")),
				async.WithProcessTimeout(c.Duration("timeout")),
			)
			results := runner.Run(c.Context, reqs)

			enc := json.NewEncoder(e.out)
			failed := 0
			for _, r := range results {
				line := resultJSON(r.Outcome.Result, r.Outcome.JobID, r.Err)
				line.Index = r.Index
				line.Domain = r.Request.Domain
				line.SourceRef = r.Request.SourceRef
				line.ElapsedMS = r.Elapsed.Milliseconds()
				if r.Err != nil {
					failed++
				}
				if err := enc.Encode(line); err != nil {
					return outputError(err)
				}
			}
			if failed > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d sources failed", failed, len(results)), 1)
			}
			return nil
		},
	}
}

func (e *env) scanDir(c *cli.Context) ([]async.Request, error) {
	domain, ok := constants.ParseDomain(c.String("domain"))
	if !ok {
		return nil, fmt.Errorf("%w: --domain %q", common.ErrUnknownDomain, c.String("domain"))
	}
	files, stats, err := ingest.ScanDirectory(c.String("dir"), "", true)
	if err != nil {
		return nil, err
	}
	e.logger.Info("batch.scan", "dir", c.String("dir"), "scanned", stats.Scanned, "matched", stats.Matched, "skipped", stats.Skipped)

	reqs := make([]async.Request, 0, len(files))
	for _, f := range files {
		reqs = append(reqs, async.Request{
			ExtractionRequest: pipeline.ExtractionRequest{Domain: domain, SourceRef: f.Path, RawKind: f.RawKind},
			OwnerID:           c.String("owner"),
			Persist:           c.Bool("persist"),
		})
	}
	return reqs, nil
}

func readBatchFile(path string) ([]async.Request, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return parseBatch(r)
}

// parseBatch reads JSON lines, skipping blanks and # comments. Domain aliases
// are resolved here so a typo fails before any model call.
func parseBatch(r io.Reader) ([]async.Request, error) {
	var reqs []async.Request
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var req async.Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		d, ok := constants.ParseDomain(string(req.Domain))
		if !ok {
			return nil, fmt.Errorf("line %d: %w: %q", n, common.ErrUnknownDomain, req.Domain)
		}
		if req.SourceRef == "" {
			return nil, fmt.Errorf("line %d: sourceRef is required", n)
		}
		req.Domain = d
		reqs = append(reqs, req)
	}
	return reqs, sc.Err()
}

func exportCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write stored transactions and contacts to an XLSX workbook",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "lifemaxxing.xlsx"},
			&cli.StringFlag{Name: "owner", Usage: "Only this owner's records"},
			&cli.TimestampFlag{Name: "from", Layout: time.DateOnly, Timezone: time.Local},
			&cli.TimestampFlag{Name: "to", Layout: time.DateOnly, Timezone: time.Local},
		},
		Action: func(c *cli.Context) error {
			a, err := e.open(c.Context)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := a.Export().ExportWorkbookXLSX(c.Context, c.String("owner"), c.Timestamp("from"), c.Timestamp("to"))
			if err != nil {
				return outputError(err)
			}
			if err := os.WriteFile(c.String("out"), data, 0o644); err != nil {
				return outputError(err)
			}
			return e.outputJSON(map[string]any{"out": c.String("out"), "bytes": len(data)})
		},
	}
}

func otpCmd(e *env) *cli.Command {
	flags := func(extra ...cli.Flag) []cli.Flag {
		return append([]cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "type", Value: string(constants.OTPPurposeSignup), Usage: "signup|reset"},
		}, extra...)
	}
	return &cli.Command{
		Name:  "otp",
		Usage: "Issue or verify one-time codes",
		Subcommands: []*cli.Command{
			{
				Name:  "send",
				Flags: flags(),
				Action: func(c *cli.Context) error {
					a, err := e.open(c.Context)
					if err != nil {
						return err
					}
					defer a.Close()
					row, err := a.OTP().Issue(c.Context, c.String("email"), c.String("type"))
					if err != nil {
						return outputError(err)
					}
					return e.outputJSON(map[string]any{"success": true, "expiresAt": row.ExpiresAt})
				},
			},
			{
				Name:  "verify",
				Flags: flags(&cli.StringFlag{Name: "code", Required: true}),
				Action: func(c *cli.Context) error {
					a, err := e.open(c.Context)
					if err != nil {
						return err
					}
					defer a.Close()
					if err := a.OTP().Verify(c.Context, c.String("email"), c.String("code"), c.String("type")); err != nil {
						return outputError(err)
					}
					return e.outputJSON(map[string]bool{"success": true})
				},
			},
		},
	}
}

func migrateCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create tables and indexes",
		Action: func(c *cli.Context) error {
			a, err := e.open(c.Context)
			if err != nil {
				return err
			}
			a.Close()
			return e.outputJSON(map[string]string{"status": "migrated", "driver": e.cfg.Database.Driver})
		},
	}
}

func dbhealthCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "dbhealth",
		Usage: "Ping the configured database",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "timeout", Value: 5 * time.Second},
		},
		Action: func(c *cli.Context) error {
			a, err := e.open(c.Context)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.DB.HealthCheck(c.Context, c.Duration("timeout")); err != nil {
				return outputError(err)
			}
			return e.outputJSON(map[string]string{"status": "ok"})
		},
	}
}

func (e *env) outputJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError turns err into a cli exit error. AppError already carries its
// code in Error().
func outputError(err error) error {
	return cli.Exit(err.Error(), 1)
}
