// docquery ingests local documents or a crawled site and answers questions
// about them interactively.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/docquery/docquery/internal/app"
	"github.com/docquery/docquery/internal/models"
	"github.com/docquery/docquery/pkg/config"
	"github.com/docquery/docquery/pkg/logging"
	"github.com/docquery/docquery/pkg/pipeline"
	"github.com/docquery/docquery/pkg/scraper"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to config file")
		dir        = flag.String("dir", "", "Directory of .txt/.md/.pdf files to ingest")
		crawl      = flag.String("crawl", "", "Base URL to crawl and ingest")
		maxDepth   = flag.Int("max-depth", 3, "Maximum crawl depth")
		k          = flag.Int("k", 0, "Number of chunks to retrieve (overrides config)")
		threshold  = flag.Float64("threshold", -1, "Similarity threshold (overrides config)")
	)
	flag.Parse()

	_ = godotenv.Load()

	if err := run(*configPath, *dir, *crawl, *maxDepth, *k, *threshold); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func run(configPath, dir, crawl string, maxDepth, k int, threshold float64) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if k > 0 {
		cfg.Retrieval.K = k
	}
	if threshold >= 0 {
		cfg.Retrieval.ScoreThreshold = threshold
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("  - %s", e.Error())
		}
		return fmt.Errorf("invalid configuration")
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()
	pipe, vstore, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer vstore.Close()

	if dir != "" {
		if err := ingestDirectory(ctx, pipe, dir); err != nil {
			return err
		}
	}
	if crawl != "" {
		if err := crawlAndIngest(ctx, pipe, crawl, maxDepth, logger); err != nil {
			return err
		}
	}

	return questionLoop(ctx, pipe, cfg.Retrieval.ScoreThreshold)
}

func ingestDirectory(ctx context.Context, pipe *pipeline.Pipeline, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".txt", ".md", ".pdf":
			names = append(names, entry.Name())
		}
	}

	if len(names) == 0 {
		color.Yellow("No ingestible files found in %s", dir)
		return nil
	}

	bar := newProgressBar(len(names), "Reading documents...")
	files := make([]models.File, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		files = append(files, models.File{Name: name, Data: data})
		bar.Add(1)
	}
	bar.Finish()

	summary, err := pipe.Ingest(ctx, files)
	if err != nil {
		return err
	}
	color.Green("\nIngested %d chunks (~%d tokens, dim %d) from %d files",
		summary.InsertedChunks, summary.TotalTokensApprox, summary.VectorDim, len(files))
	return nil
}

func crawlAndIngest(ctx context.Context, pipe *pipeline.Pipeline, baseURL string, maxDepth int, logger *zap.Logger) error {
	var scraped int32
	bar := newSpinner("Crawling " + baseURL + "...")

	s, err := scraper.NewWithConfig(scraper.Config{
		BaseURL:  baseURL,
		MaxDepth: maxDepth,
		OnProgress: func(string) {
			n := atomic.AddInt32(&scraped, 1)
			bar.Describe(color.CyanString("Crawling... (%d pages)", n))
			bar.Add(1)
		},
	}, logger)
	if err != nil {
		return err
	}

	files, err := s.Scrape(ctx, baseURL)
	bar.Finish()
	if err != nil {
		return err
	}
	color.Green("\nScraped %d pages", len(files))

	if len(files) == 0 {
		return nil
	}

	summary, err := pipe.Ingest(ctx, files)
	if err != nil {
		return err
	}
	color.Green("Ingested %d chunks from crawl", summary.InsertedChunks)
	return nil
}

func questionLoop(ctx context.Context, pipe *pipeline.Pipeline, threshold float64) error {
	color.Cyan("\nAsk questions about your documents (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	prompt := color.New(color.FgGreen).PrintfFunc()

	for {
		prompt("\nQuestion: ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.EqualFold(question, "exit") {
			break
		}

		req := models.QueryRequest{Question: question, Filter: promptFilter(scanner)}

		spinner := newSpinner("Retrieving context...")
		resp, err := pipe.Query(ctx, req)
		spinner.Finish()
		fmt.Print("\r")

		if err != nil {
			color.Red("Query failed: %v", err)
			continue
		}

		printResponse(resp, threshold)
	}
	return scanner.Err()
}

// promptFilter asks for optional source/page constraints, mirroring the
// request filter the HTTP API accepts.
func promptFilter(scanner *bufio.Scanner) *models.QueryFilter {
	prompt := color.New(color.FgYellow).PrintfFunc()

	prompt("Apply source/page filters? [y/N]: ")
	if !scanner.Scan() || !strings.EqualFold(strings.TrimSpace(scanner.Text()), "y") {
		return nil
	}

	filter := &models.QueryFilter{}

	prompt("Filter by source (filename) [Enter to skip]: ")
	if scanner.Scan() {
		filter.Source = strings.TrimSpace(scanner.Text())
	}
	prompt("Minimum page number [Enter to skip]: ")
	if scanner.Scan() {
		filter.MinPage = parsePage(scanner.Text())
	}
	prompt("Maximum page number [Enter to skip]: ")
	if scanner.Scan() {
		filter.MaxPage = parsePage(scanner.Text())
	}

	if filter.Source == "" && filter.MinPage == 0 && filter.MaxPage == 0 {
		return nil
	}
	return filter
}

func parsePage(input string) int {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 {
		return 0
	}
	return n
}

func printResponse(resp models.QueryResponse, threshold float64) {
	color.Cyan("\n================= ANSWER =================")
	fmt.Println(resp.Answer)

	color.Cyan("\n================= SOURCES =================")
	for i, src := range resp.Sources {
		pageInfo := "N/A"
		if src.PageNumber > 0 {
			pageInfo = fmt.Sprintf("Page %d", src.PageNumber)
		}
		color.Yellow("\nSource %d - %s (%s, Chunk ID: %s, Date: %s) - Similarity: %.4f",
			i+1, src.Source, pageInfo, src.ChunkID, src.DateAdded, src.Similarity)
		fmt.Println(src.Snippet)
	}

	fmt.Printf("\nSimilarity threshold: %v\n", threshold)
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionShowCount(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func newSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
