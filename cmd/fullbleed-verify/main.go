// Command fullbleed-verify runs the document compliance engine against a
// rendered document plus its upstream evidence bundle and writes both
// report envelopes. The exit code follows the verifier and rank gates so
// CI can consume it directly.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fullbleed/verify/pkg/evidence"
	"github.com/fullbleed/verify/pkg/ledger"
	"github.com/fullbleed/verify/pkg/verify"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("fullbleed-verify", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		htmlPath    = fs.String("html", "", "path to the delivered document markup")
		cssPath     = fs.String("css", "", "path to the computed stylesheet text")
		rasterPath  = fs.String("raster", "", "path to the rendered preview PNG")
		preRender   = fs.String("pre-render", "", "path to the upstream pre-render diagnostics JSON")
		mountPath   = fs.String("mount", "", "path to the mount report JSON")
		parityPath  = fs.String("parity", "", "path to the page parity report JSON")
		metricsPath = fs.String("metrics", "", "path to the run metrics JSON")
		claimsPath  = fs.String("claims", "", "path to the claims attestation JSON")

		profile     = fs.String("profile", "", "verification profile (standard, cav)")
		mode        = fs.String("mode", "", "gate mode (off, warn, error); defaults to the profile's")
		target      = fs.String("delivery-target", "", "delivery target (pdf, html)")
		configPath  = fs.String("config", "", "path to an optional run configuration YAML")
		registryDir = fs.String("registry-dir", "", "directory of canonical registry files to verify against")

		verifierOut = fs.String("out-verify", "fullbleed.a11y.verify.json", "verifier report output path")
		pmrOut      = fs.String("out-pmr", "fullbleed.pmr.json", "rank report output path")
		ledgerPath  = fs.String("ledger", "", "optional SQLite ledger to append the run summary to")
		logLevel    = fs.String("log-level", "info", "log level (debug, info, warn, error)")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := newLogger(stderr, *logLevel)

	opts := &verify.Options{
		HTMLPath:       *htmlPath,
		CSSPath:        *cssPath,
		RasterPath:     *rasterPath,
		Profile:        *profile,
		Mode:           *mode,
		DeliveryTarget: *target,
		ConfigPath:     *configPath,
		RegistryDir:    *registryDir,
	}
	if err := loadEvidence(opts, *preRender, *mountPath, *parityPath, *metricsPath, *claimsPath); err != nil {
		logger.Error("loading evidence failed", "error", err)
		return 2
	}

	engine, err := verify.New(logger)
	if err != nil {
		logger.Error("engine initialization failed", "error", err)
		return 2
	}
	res, err := engine.Run(opts)
	if err != nil {
		logger.Error("verification run failed", "error", err)
		return 2
	}

	if err := os.WriteFile(*verifierOut, res.VerifierJSON, 0o644); err != nil {
		logger.Error("writing verifier report failed", "error", err)
		return 2
	}
	if err := os.WriteFile(*pmrOut, res.PMRJSON, 0o644); err != nil {
		logger.Error("writing rank report failed", "error", err)
		return 2
	}

	if *ledgerPath != "" {
		if err := appendLedger(*ledgerPath, res); err != nil {
			logger.Warn("ledger append failed", "error", err)
		}
	}

	fmt.Fprintf(stdout, "verifier gate ok=%t, pmr gate ok=%t, score=%.2f\n",
		res.Verifier.Gate.OK, res.PMR.Gate.OK, res.PMR.Rank.Score)

	if !res.Verifier.Gate.OK || !res.PMR.Gate.OK {
		return 1
	}
	return 0
}

func loadEvidence(opts *verify.Options, preRender, mount, parity, metrics, claims string) error {
	read := func(path string) ([]byte, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", path, err)
		}
		return data, nil
	}

	if preRender != "" {
		data, err := read(preRender)
		if err != nil {
			return err
		}
		if opts.PreRender, err = evidence.ParsePreRenderReport(data); err != nil {
			return err
		}
	}
	if mount != "" {
		data, err := read(mount)
		if err != nil {
			return err
		}
		if opts.Mount, err = evidence.ParseMountReport(data); err != nil {
			return err
		}
	}
	if parity != "" {
		data, err := read(parity)
		if err != nil {
			return err
		}
		if opts.Parity, err = evidence.ParseParityReport(data); err != nil {
			return err
		}
	}
	if metrics != "" {
		data, err := read(metrics)
		if err != nil {
			return err
		}
		if opts.Metrics, err = evidence.ParseRunMetrics(data); err != nil {
			return err
		}
	}
	if claims != "" {
		data, err := read(claims)
		if err != nil {
			return err
		}
		if opts.Claims, err = evidence.ParseClaims(data); err != nil {
			return err
		}
	}
	return nil
}

func appendLedger(path string, res *verify.Result) error {
	store, err := ledger.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = store.Record(ctx, &ledger.RunSummary{
		GeneratedAt:         res.Verifier.GeneratedAt,
		Profile:             res.Verifier.Profile,
		Mode:                res.Verifier.Mode,
		VerifierGateOK:      res.Verifier.Gate.OK,
		PMRGateOK:           res.PMR.Gate.OK,
		PMRScore:            res.PMR.Rank.Score,
		FindingCount:        res.Verifier.Observability.ReportedFindingCount,
		DedupEventCount:     res.Verifier.Observability.DedupEventCount,
		ContractFingerprint: res.Verifier.Tooling.ContractFingerprint,
	})
	return err
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
