// Command archive runs one merge pass and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/segmentio/encoding/json"

	"FinCapture/internal/di"
	"FinCapture/internal/domain/models"
	"FinCapture/internal/usecase"
	"FinCapture/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "config file path")
	category := flag.String("category", "", "category to merge; all when empty")
	symbols := flag.String("symbols", "", "comma separated symbols; every captured symbol when empty")
	flag.Parse()

	if err := run(*configPath, *category, *symbols); err != nil {
		log.Printf("archive: %v", err)
		os.Exit(1)
	}
}

func run(configPath, category, symbols string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	cats := models.AllCategories
	if category != "" {
		c, err := models.ParseCategory(category)
		if err != nil {
			return err
		}
		cats = []models.Category{c}
	}

	var syms []models.Symbol
	if symbols != "" {
		if syms, err = usecase.ParseSymbols(strings.Split(symbols, ",")); err != nil {
			return err
		}
	}

	archiver, cleanup, err := di.InitializeArchiver(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	failures := 0
	for _, c := range cats {
		resp, err := archiver.RunAll(ctx, c, syms)
		if err != nil {
			return err
		}
		failures += resp.Failures
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d symbol merges failed", failures)
	}
	return nil
}
