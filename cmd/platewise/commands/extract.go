package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/platewise/platewise/internal/logger"
	"github.com/platewise/platewise/internal/output"
	"github.com/platewise/platewise/pkg/fetcher"
	"github.com/platewise/platewise/pkg/pipeline"
	"github.com/platewise/platewise/pkg/recipe"
)

// extractionRecord is one URL's result in the CLI output.
type extractionRecord struct {
	URL        string           `json:"url" yaml:"url"`
	IsRecipe   bool             `json:"is_recipe" yaml:"is_recipe"`
	Confidence float64          `json:"confidence" yaml:"confidence"`
	Recipes    []*recipe.Recipe `json:"recipes,omitempty" yaml:"recipes,omitempty"`
	FetchedAt  string           `json:"fetched_at,omitempty" yaml:"fetched_at,omitempty"`
	Error      string           `json:"error,omitempty" yaml:"error,omitempty"`
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract recipes from URLs",
	Long: `Fetch web pages and extract structured recipes using an LLM.

Each page runs through a cleaning-strategy cascade and a validation
feedback loop; previously-seen pages are answered from the local result
cache without an LLM call.

Examples:
  # Single page extraction
  platewise extract -u "https://example.com/recipe"

  # Several pages, JSONL to a file
  platewise extract -u URL1 -u URL2 --format jsonl -o recipes.jsonl

  # Trust the model without validation retries
  platewise extract -u URL --validation-max-retries 0`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	flags := extractCmd.Flags()

	// URL inputs
	flags.StringSliceP("url", "u", nil, "URL(s) to extract from (can be repeated)")

	// LLM settings
	flags.StringP("provider", "p", "", "LLM provider: anthropic, openai (default anthropic)")
	flags.StringP("model", "m", "", "model name (provider-specific)")
	flags.StringP("api-key", "k", "", "API key (or use env var)")
	flags.String("base-url", "", "custom API base URL")

	// Output settings
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml")

	// Fetch settings
	flags.String("fetch-mode", "static", "fetch mode: static, dynamic")
	flags.Duration("timeout", 60*time.Second, "per-URL request deadline")

	// Pipeline settings
	flags.Bool("adaptive-cleaning", true, "retry with less restrictive cleaning on confident negatives")
	flags.Float64("confidence-threshold", 0.5, "confidence cutoff for adaptive cleaning retries")
	flags.Int("validation-max-retries", 3, "validation feedback retries (0 trusts the model)")
	flags.String("max-content-size", "100KB", "max content sent to the LLM (e.g. 100KB, 1MB, 0=unlimited)")
	flags.String("schema-version", pipeline.DefaultSchemaVersion, "schema version stamped on results")

	// Cache settings
	flags.Bool("cache", true, "use the local result cache")
	flags.String("cache-path", "platewise-cache.db", "result cache database path")

	// Bind to viper
	_ = viper.BindPFlag("provider", flags.Lookup("provider"))
	_ = viper.BindPFlag("model", flags.Lookup("model"))
	_ = viper.BindPFlag("api_key", flags.Lookup("api-key"))
	_ = viper.BindPFlag("base_url", flags.Lookup("base-url"))
}

func runExtract(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	urls, _ := cmd.Flags().GetStringSlice("url")
	if len(urls) == 0 {
		return cmd.Help()
	}

	formatStr, _ := cmd.Flags().GetString("format")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")

	maxContentSizeStr, _ := cmd.Flags().GetString("max-content-size")
	var maxContentSize int
	if strings.TrimSpace(maxContentSizeStr) != "" && maxContentSizeStr != "0" {
		bytes, err := humanize.ParseBytes(maxContentSizeStr)
		if err != nil {
			return fmt.Errorf("invalid max-content-size: %w", err)
		}
		maxContentSize = int(bytes)
	}

	f, err := buildFetcher(cmd, timeout)
	if err != nil {
		return err
	}
	defer f.Close()

	adaptive, _ := cmd.Flags().GetBool("adaptive-cleaning")
	threshold, _ := cmd.Flags().GetFloat64("confidence-threshold")
	maxRetries, _ := cmd.Flags().GetInt("validation-max-retries")
	schemaVersion, _ := cmd.Flags().GetString("schema-version")
	cacheEnabled, _ := cmd.Flags().GetBool("cache")
	cachePath, _ := cmd.Flags().GetString("cache-path")

	p, err := pipeline.New(
		pipeline.WithProvider(viper.GetString("provider")),
		pipeline.WithModel(viper.GetString("model")),
		pipeline.WithAPIKey(viper.GetString("api_key")),
		pipeline.WithBaseURL(viper.GetString("base_url")),
		pipeline.WithAdaptiveCleaning(adaptive),
		pipeline.WithConfidenceThreshold(threshold),
		pipeline.WithValidationMaxRetries(maxRetries),
		pipeline.WithMaxContentSize(maxContentSize),
		pipeline.WithSchemaVersion(schemaVersion),
		pipeline.WithCacheEnabled(cacheEnabled),
		pipeline.WithCachePath(cachePath),
	)
	if err != nil {
		return err
	}
	defer p.Close()

	out := os.Stdout
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		out = file
	}
	writer := output.NewWriter(out, format)

	var failed int
	for _, url := range urls {
		record := extractOne(ctx, f, p, url, timeout)
		if record.Error != "" {
			failed++
			logInfo("✗ %s: %s", url, record.Error)
		} else {
			logInfo("✓ %s: %d recipe(s)", url, len(record.Recipes))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	if err := writer.Flush(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d URLs failed", failed, len(urls))
	}
	return nil
}

// extractOne fetches one page and runs it through the pipeline, bounded by
// the per-URL deadline.
func extractOne(ctx context.Context, f fetcher.Fetcher, p *pipeline.Pipeline, url string, timeout time.Duration) extractionRecord {
	record := extractionRecord{URL: url}

	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	content, err := f.Fetch(reqCtx, url, fetcher.Options{Timeout: timeout})
	if err != nil {
		record.Error = fmt.Sprintf("fetch failed: %v", err)
		return record
	}
	record.FetchedAt = content.FetchedAt.UTC().Format(time.RFC3339)

	resp, err := p.Run(reqCtx, content.HTML, url)
	if err != nil {
		record.Error = err.Error()
		return record
	}

	record.IsRecipe = resp.IsRecipe
	record.Confidence = resp.Confidence
	record.Recipes = resp.Recipes
	return record
}

// buildFetcher creates the fetcher selected by --fetch-mode.
func buildFetcher(cmd *cobra.Command, timeout time.Duration) (fetcher.Fetcher, error) {
	mode, _ := cmd.Flags().GetString("fetch-mode")
	switch mode {
	case "dynamic":
		return fetcher.NewDynamic(fetcher.DynamicConfig{Timeout: timeout})
	case "static", "":
		return fetcher.NewStatic(fetcher.StaticConfig{Timeout: timeout}), nil
	default:
		return nil, fmt.Errorf("unknown fetch mode: %s (use 'static' or 'dynamic')", mode)
	}
}
