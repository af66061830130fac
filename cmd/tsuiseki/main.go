package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/tsuiseki/client"
	"github.com/ashita-ai/tsuiseki/internal/config"
	"github.com/ashita-ai/tsuiseki/tracing"
)

// version is set at build time via -ldflags.
var version = "dev"

const usage = `tsuiseki - trace tooling

Usage:
  tsuiseki validate <trace.json>   strict-decode a trace file and check span linkage
  tsuiseki show <trace.json>       print the span tree of a trace file
  tsuiseki submit <trace.json>     post a trace file to the configured trace store
  tsuiseki version                 print the build version
`

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("TSUISEKI_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal).
	_ = godotenv.Load()

	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return fmt.Errorf("missing command")
	}

	switch cmd := args[0]; cmd {
	case "validate":
		return cmdValidate(args[1:])
	case "show":
		return cmdShow(args[1:])
	case "submit":
		return cmdSubmit(ctx, logger, args[1:])
	case "version":
		fmt.Println(version)
		return nil
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func loadTraceFile(path string) (tracing.Trace, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return tracing.Trace{}, fmt.Errorf("read %s: %w", path, err)
	}
	tr, err := tracing.DecodeTrace(raw, tracing.DecodeStrict())
	if err != nil {
		return tracing.Trace{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return tr, nil
}

func cmdValidate(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("validate: expected exactly one trace file")
	}
	tr, err := loadTraceFile(args[0])
	if err != nil {
		return err
	}
	if err := tracing.ValidateSpanLinks(tr.Data.Spans); err != nil {
		return err
	}
	fmt.Printf("ok: trace %s, %d spans, state %s\n", tr.Info.TraceID, len(tr.Data.Spans), tr.Info.State)
	return nil
}

func cmdShow(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("show: expected exactly one trace file")
	}
	tr, err := loadTraceFile(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("trace %s  state=%s  request_time=%d\n", tr.Info.TraceID, tr.Info.State, tr.Info.RequestTime)

	children := make(map[string][]tracing.Span)
	var roots []tracing.Span
	for _, s := range tr.Data.Spans {
		if s.ParentID == nil {
			roots = append(roots, s)
			continue
		}
		children[*s.ParentID] = append(children[*s.ParentID], s)
	}
	for id := range children {
		byStart(children[id])
	}
	byStart(roots)
	for _, r := range roots {
		printSpan(r, children, 0)
	}
	return nil
}

func byStart(spans []tracing.Span) {
	sort.Slice(spans, func(i, j int) bool { return spans[i].StartTimeNs < spans[j].StartTimeNs })
}

func printSpan(s tracing.Span, children map[string][]tracing.Span, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	dur := "open"
	if ms := s.DurationMs(); ms != nil {
		dur = fmt.Sprintf("%dms", *ms)
	}
	fmt.Printf("%s%s [%s] %s %s (%s)\n", indent, s.SpanID, s.SpanType, s.Name, s.Status, dur)
	for _, c := range children[s.SpanID] {
		printSpan(c, children, depth+1)
	}
}

func cmdSubmit(ctx context.Context, logger *slog.Logger, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("submit: expected exactly one trace file")
	}
	tr, err := loadTraceFile(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.TraceStoreURL == "" {
		return fmt.Errorf("submit: TSUISEKI_TRACE_STORE_URL is not set")
	}

	c, err := client.NewClient(client.Config{
		BaseURL: cfg.TraceStoreURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("build client: %w", err)
	}

	info, err := c.CreateTrace(ctx, tr)
	if err != nil {
		return fmt.Errorf("submit trace: %w", err)
	}
	logger.Info("trace submitted", "trace_id", info.TraceID, "state", info.State)
	fmt.Println(info.TraceID)
	return nil
}
