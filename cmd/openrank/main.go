// openrank ranks listed companies with deterministic valuation models and
// an LLM-orchestrated multi-strategy pipeline.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/seenimoa/openrank/api"
	"github.com/seenimoa/openrank/internal/config"
	"github.com/seenimoa/openrank/pkg/logger"
	"github.com/seenimoa/openrank/pkg/models"
	"github.com/seenimoa/openrank/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger
var (
	cfg *config.Config
	log zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "openrank",
	Short: "openrank: multi-strategy valuation and AI-orchestrated ranking",
	Long: `openrank ranks listed companies with eight deterministic valuation
models (Graham, dividend yield, low P/E, magic formula, discounted cash flow,
Gordon, fundamentalist 3+1, Barsi) and an AI strategy that asks an LLM to
shortlist and score companies using every model's verdict.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		log = logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
		logger.SetGlobalLogger(log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(strategiesCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("openrank %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Strategies Command ---

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the available ranking strategies",
	RunE: func(cmd *cobra.Command, args []string) error {
		factory, _, err := api.BuildFactory(cfg, log)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TYPE\tNAME")
		for _, t := range factory.Types() {
			s, err := factory.Create(t)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%s\n", t, s.Name())
		}
		return tw.Flush()
	},
}

// --- Explain Command ---

var explainCmd = &cobra.Command{
	Use:   "explain [strategy]",
	Short: "Print the methodology a strategy ranks with",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		factory, _, err := api.BuildFactory(cfg, log)
		if err != nil {
			return err
		}
		p, err := paramsFromFlags(cmd)
		if err != nil {
			return err
		}

		text, err := factory.Rational(models.StrategyType(args[0]), p)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	addParamFlags(explainCmd)
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [strategy] [ticker]",
	Short: "Run one strategy on a single company",
	Long: `Run one strategy on a single company taken from the input file.

Examples:
  openrank analyze graham WEGE3 --input companies.json
  openrank analyze dividend_yield TAEE11 --input - --min-yield 0.05 < companies.json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		factory, _, err := api.BuildFactory(cfg, log)
		if err != nil {
			return err
		}
		p, err := paramsFromFlags(cmd)
		if err != nil {
			return err
		}
		companies, err := readCompanies(cmd)
		if err != nil {
			return err
		}

		ticker := utils.NormalizeTicker(args[1])
		var company *models.CompanyData
		for i := range companies {
			if utils.NormalizeTicker(companies[i].Ticker) == ticker {
				company = &companies[i]
				break
			}
		}
		if company == nil {
			return fmt.Errorf("ticker %s not found in input", ticker)
		}

		s, err := factory.Create(models.StrategyType(args[0]))
		if err != nil {
			return err
		}
		valid := s.ValidateCompanyData(company, p)
		a := s.RunAnalysis(company, p)

		if format, _ := cmd.Flags().GetString("format"); format == "json" {
			return writeJSON(cmd.OutOrStdout(), api.AnalyzeResponse{
				Strategy: s.Type(),
				Ticker:   company.Ticker,
				Valid:    valid,
				Analysis: a,
			})
		}
		printAnalysis(cmd.OutOrStdout(), s.Name(), company, valid, a)
		return nil
	},
}

func init() {
	addParamFlags(analyzeCmd)
	addInputFlags(analyzeCmd)
}

// --- Rank Command ---

var rankCmd = &cobra.Command{
	Use:   "rank [strategy]",
	Short: "Rank the companies of the input file with a strategy",
	Long: `Rank the companies of the input file with a strategy. The input is a
JSON array of companies or an object with a "companies" array.

Examples:
  openrank rank graham --input companies.json --limit 5
  openrank rank gordon --input companies.json --params gordon.json
  openrank rank ai --input companies.json --risk conservative --technical`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		factory, _, err := api.BuildFactory(cfg, log)
		if err != nil {
			return err
		}
		p, err := paramsFromFlags(cmd)
		if err != nil {
			return err
		}
		if p.Limit <= 0 {
			p.Limit = cfg.Ranking.DefaultLimit
		}
		companies, err := readCompanies(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, cfg.API.RequestTimeout)
		defer cancel()

		t := models.StrategyType(args[0])
		start := time.Now()
		results, err := factory.Rank(ctx, t, companies, p)
		if err != nil {
			return err
		}

		switch format, _ := cmd.Flags().GetString("format"); format {
		case "json":
			return writeJSON(cmd.OutOrStdout(), api.RankingResponse{
				Strategy: t,
				Count:    len(results),
				Results:  results,
				Elapsed:  time.Since(start).Round(time.Millisecond).String(),
			})
		case "table", "":
			verbose, _ := cmd.Flags().GetBool("verbose")
			printRanking(cmd.OutOrStdout(), results, verbose)
			return nil
		default:
			return fmt.Errorf("unknown format %q (use table or json)", format)
		}
	},
}

func init() {
	addParamFlags(rankCmd)
	addInputFlags(rankCmd)
	rankCmd.Flags().BoolP("verbose", "v", false, "print each company's rationale")
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		api.Version = version
		srv, err := api.NewServer(cfg, log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		addr := net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port))
		fmt.Printf("Starting openrank API server on %s\n", addr)
		return srv.ListenAndServe(ctx, addr)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "═══════════════════════════════════════")
		fmt.Fprintln(out, "  openrank: System Status")
		fmt.Fprintln(out, "═══════════════════════════════════════")
		fmt.Fprintf(out, "  Version:       %s (%s)\n", version, commit)
		fmt.Fprintln(out)

		fmt.Fprintln(out, "  Configuration:")
		fmt.Fprintf(out, "    LLM Provider:  %s (model: %s)\n", cfg.LLM.Primary, cfg.LLM.Model)
		fmt.Fprintf(out, "    Call Timeout:  %s, %d retries\n", cfg.LLM.CallTimeout, cfg.LLM.MaxRetries)
		fmt.Fprintf(out, "    Ranking:       limit %d, %d attempts, waves of %d\n",
			cfg.Ranking.DefaultLimit, cfg.Ranking.MaxAttempts, cfg.Ranking.WaveSize)
		fmt.Fprintf(out, "    Candidates:    top %d above score %.0f\n", cfg.Ranking.MaxCandidates, cfg.Ranking.MinOverallScore)
		fmt.Fprintf(out, "    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Fprintln(out)

		fmt.Fprintln(out, "  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "not set"
			if k.IsSet {
				status = fmt.Sprintf("set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Fprintf(out, "    %-25s %s\n", k.Name+":", status)
		}

		if ping, _ := cmd.Flags().GetBool("ping"); ping {
			fmt.Fprintln(out)
			fmt.Fprintln(out, "  LLM Providers:")
			_, router, err := api.BuildFactory(cfg, zerolog.Nop())
			if err != nil {
				return err
			}
			if router == nil {
				fmt.Fprintln(out, "    none configured, AI rankings use the heuristic fallback")
			} else {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				for name, err := range router.HealthCheck(ctx) {
					status := "ok"
					if err != nil {
						status = err.Error()
					}
					fmt.Fprintf(out, "    %-25s %s\n", name+":", status)
				}
			}
		}

		fmt.Fprintln(out, "═══════════════════════════════════════")
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("ping", false, "ping every configured LLM provider")
}

// --- Flags & Input ---

func addParamFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("limit", 0, "maximum number of results (default from config)")
	f.String("risk", "", "investor profile: conservative, moderate or aggressive")
	f.String("horizon", "", "investment horizon passed to the AI strategy")
	f.String("focus", "", "investment focus passed to the AI strategy")
	f.String("size", "", "company size: all, small_caps, mid_caps or large_caps")
	f.String("asset", "", "asset type: local, bdr or both")
	f.Bool("technical", false, "reorder results by technical timing")
	f.Bool("seven-year", false, "use seven-year averages where a strategy supports them")
	f.Float64("min-yield", 0, "minimum dividend yield as a fraction")
	f.Float64("min-score", 0, "minimum overall score for the AI candidate pool")
	f.StringSlice("exclude", nil, "tickers to exclude")
	f.String("params", "", "JSON file with strategy parameters; flags override it")
}

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("input", "i", "", "companies JSON file, or - for stdin")
	cmd.Flags().StringP("format", "f", "table", "output format: table or json")
	_ = cmd.MarkFlagRequired("input")
}

// paramsFromFlags starts from the --params file, if any, and applies the
// flags that were set explicitly on top of it.
func paramsFromFlags(cmd *cobra.Command) (models.StrategyParams, error) {
	f := cmd.Flags()
	var p models.StrategyParams

	if path, _ := f.GetString("params"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return p, fmt.Errorf("reading params: %w", err)
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return p, fmt.Errorf("decoding params: %w", err)
		}
	}

	if f.Changed("limit") {
		p.Limit, _ = f.GetInt("limit")
	}
	if p.Limit < 0 {
		return p, fmt.Errorf("invalid limit %d", p.Limit)
	}
	if f.Changed("risk") {
		risk, _ := f.GetString("risk")
		p.RiskTolerance = models.RiskTolerance(strings.ToLower(risk))
	}
	switch p.RiskTolerance {
	case "", models.RiskConservative, models.RiskModerate, models.RiskAggressive:
	default:
		return p, fmt.Errorf("unknown risk profile %q", p.RiskTolerance)
	}

	if f.Changed("size") {
		size, _ := f.GetString("size")
		p.CompanySize = models.CompanySize(size)
	}
	if f.Changed("asset") {
		asset, _ := f.GetString("asset")
		p.AssetType = models.AssetType(asset)
	}
	if f.Changed("horizon") {
		p.InvestmentHorizon, _ = f.GetString("horizon")
	}
	if f.Changed("focus") {
		p.Focus, _ = f.GetString("focus")
	}
	if f.Changed("technical") {
		p.UseTechnicalAnalysis, _ = f.GetBool("technical")
	}
	if f.Changed("seven-year") {
		p.Use7YearAverages, _ = f.GetBool("seven-year")
	}
	if f.Changed("min-yield") {
		p.MinYield, _ = f.GetFloat64("min-yield")
	}
	if f.Changed("min-score") {
		p.MinOverallScore, _ = f.GetFloat64("min-score")
	}
	if f.Changed("exclude") {
		p.ExcludedTickers, _ = f.GetStringSlice("exclude")
	}
	return p, nil
}

// readCompanies reads a JSON array of companies, or an object whose
// "companies" field holds one.
func readCompanies(cmd *cobra.Command) ([]models.CompanyData, error) {
	path, _ := cmd.Flags().GetString("input")

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return decodeCompanies(data)
}

func decodeCompanies(data []byte) ([]models.CompanyData, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("input is not valid JSON")
	}
	raw := gjson.ParseBytes(data)
	if raw.IsObject() {
		raw = raw.Get("companies")
	}
	if !raw.IsArray() {
		return nil, errors.New(`input must be a JSON array of companies or an object with a "companies" array`)
	}

	var companies []models.CompanyData
	if err := json.Unmarshal([]byte(raw.Raw), &companies); err != nil {
		return nil, fmt.Errorf("decoding companies: %w", err)
	}
	if len(companies) == 0 {
		return nil, errors.New("input holds no companies")
	}
	return companies, nil
}

// --- Output ---

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRanking(w io.Writer, results []models.RankBuilderResult, verbose bool) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No company qualifies.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tTICKER\tPRICE\tFAIR VALUE\tUPSIDE\tSCORE\t")
	for i, r := range results {
		score := "-"
		if v, ok := r.KeyMetrics["score"]; ok {
			score = fmt.Sprintf("%.0f", v)
		}
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%s\t%s\t%s\t\n",
			i+1, r.Ticker, r.CurrentPrice,
			utils.FormatOptional(r.FairValue, func(v float64) string { return fmt.Sprintf("%.2f", v) }),
			utils.FormatOptional(r.Upside, utils.FormatPct),
			score,
		)
	}
	tw.Flush()

	if !verbose {
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "\n%d. %s (%s)\n%s\n", i+1, r.Ticker, r.Name, r.Rational)
	}
}

func printAnalysis(w io.Writer, name string, c *models.CompanyData, valid bool, a models.StrategyAnalysis) {
	fmt.Fprintf(w, "%s: %s (%s)\n", name, c.Ticker, c.Name)
	if !valid {
		fmt.Fprintln(w, "  warning: core data is missing, the verdict is partial")
	}
	verdict := "not eligible"
	if a.IsEligible {
		verdict = "eligible"
	}
	fmt.Fprintf(w, "  Verdict:     %s, score %.0f\n", verdict, a.Score)
	fmt.Fprintf(w, "  Price:       %.2f\n", c.CurrentPrice)
	fmt.Fprintf(w, "  Fair value:  %s\n", utils.FormatOptional(a.FairValue, func(v float64) string { return fmt.Sprintf("%.2f", v) }))
	fmt.Fprintf(w, "  Upside:      %s\n", utils.FormatOptional(a.Upside, utils.FormatPct))

	fmt.Fprintf(w, "\n  Criteria (%d/%d passed):\n", a.PassedCount(), len(a.Criteria))
	for _, cr := range a.Criteria {
		mark := "✗"
		if cr.Passed {
			mark = "✓"
		}
		fmt.Fprintf(w, "    %s %-28s %s\n", mark, cr.Label, cr.Description)
	}
	fmt.Fprintf(w, "\n%s\n", a.Reasoning)
}
