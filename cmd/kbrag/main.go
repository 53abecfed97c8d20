package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"kbrag/internal/config"
	"kbrag/internal/domain"
	"kbrag/internal/logging"
	"kbrag/internal/service"
	"kbrag/internal/tui"
)

const usage = `Usage: kbrag [--config=kbrag.yaml] <command> [flags]

Commands:
  build  --folder DIR        build or replace the knowledge base
  search --q QUERY [--k N]   show the top passages for a query
  ask    --q QUERY [--stream] answer a question from the knowledge base
  status                     report whether a knowledge base exists
  tui                        interactive ask/search terminal UI
`

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./kbrag.yaml or ~/.config/kbrag/config.yaml if not provided)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if err := run(ctx, cmd, args, cfg, log, os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Error(cmd+" failed", "err", err)
		if errors.Is(err, domain.ErrStoreNotFound) {
			fmt.Fprintln(os.Stderr, "No knowledge base found. Run: kbrag build --folder <dir>")
		}
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string, cfg *config.AppConfig, log *slog.Logger, out io.Writer) error {
	switch cmd {
	case "build":
		return runBuild(ctx, args, cfg, log, out)
	case "search":
		return runSearch(ctx, args, cfg, log, out)
	case "ask":
		return runAsk(ctx, args, cfg, log, out)
	case "status":
		return runStatus(ctx, cfg, log, out)
	case "tui":
		return runTUI(ctx, cfg, log)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runBuild(ctx context.Context, args []string, cfg *config.AppConfig, log *slog.Logger, out io.Writer) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	folder := fs.String("folder", "", "Knowledge base folder to scan")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *folder == "" {
		return errors.New("build: --folder is required")
	}

	c, err := newComponents(cfg, log, true)
	if err != nil {
		return err
	}
	defer c.Close()

	builder, err := c.builder()
	if err != nil {
		return err
	}
	report, err := builder.Build(ctx, *folder)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Built knowledge base: %d documents (%d skipped), %d passages, dimension %d\n",
		report.Documents, report.Skipped, report.Passages, report.Dimension)
	fmt.Fprintf(out, "Summaries: %d generated, %d from cache\n", report.Summarized, report.CachedSummaries)
	return nil
}

func runSearch(ctx context.Context, args []string, cfg *config.AppConfig, log *slog.Logger, out io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	q := fs.String("q", "", "Query text")
	k := fs.Int("k", cfg.Retrieval.TopK, "Number of passages")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*q) == "" {
		return errors.New("search: --q is required")
	}

	c, err := newComponents(cfg, log, true)
	if err != nil {
		return err
	}
	defer c.Close()

	hits, err := c.retriever().Search(ctx, *q, *k)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintln(out, "No results.")
		return nil
	}
	fmt.Fprintln(out, service.FormatContext(hits))
	return nil
}

func runAsk(ctx context.Context, args []string, cfg *config.AppConfig, log *slog.Logger, out io.Writer) error {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	q := fs.String("q", "", "Question")
	stream := fs.Bool("stream", false, "Print the answer as it is generated")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*q) == "" {
		return errors.New("ask: --q is required")
	}

	c, err := newComponents(cfg, log, true)
	if err != nil {
		return err
	}
	defer c.Close()

	a := c.answerer(c.retriever())
	if !*stream {
		answer, err := a.Answer(ctx, *q)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, answer)
		return nil
	}
	for delta, err := range a.AnswerStream(ctx, *q) {
		if err != nil {
			fmt.Fprintln(out)
			return err
		}
		fmt.Fprint(out, delta)
	}
	fmt.Fprintln(out)
	return nil
}

func runStatus(ctx context.Context, cfg *config.AppConfig, log *slog.Logger, out io.Writer) error {
	c, err := newComponents(cfg, log, false)
	if err != nil {
		return err
	}
	defer c.Close()

	st, err := c.retriever().Status(ctx)
	if err != nil {
		return err
	}
	if !st.Ready {
		fmt.Fprintln(out, "No knowledge base found (run build first).")
		return nil
	}
	fmt.Fprintf(out, "Knowledge base ready: %d passages from %d documents, dimension %d (%s store)\n",
		st.Passages, st.Sources, st.Dimension, cfg.Store.Type)
	return nil
}

// knowledgeBase joins retrieval and answering for the TUI.
type knowledgeBase struct {
	*service.Retriever
	*service.Answerer
}

func runTUI(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) error {
	// the terminal belongs to the UI; keep only errors on stderr
	quiet := cfg.Log
	quiet.Level = "error"
	log = logging.New(quiet)

	c, err := newComponents(cfg, log, true)
	if err != nil {
		return err
	}
	defer c.Close()

	r := c.retriever()
	st, err := r.Status(ctx)
	if err != nil {
		return err
	}
	header := "No knowledge base found: run kbrag build --folder <dir> first."
	if st.Ready {
		header = fmt.Sprintf("%d passages from %d documents", st.Passages, st.Sources)
	}
	m := tui.New(ctx, knowledgeBase{Retriever: r, Answerer: c.answerer(r)}, cfg.Retrieval.TopK, header)
	_, err = tea.NewProgram(m, tea.WithContext(ctx)).Run()
	return err
}
