package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/garyjia/budget-gate/internal/config"
	"github.com/garyjia/budget-gate/internal/container"
	"go.uber.org/zap"
)

// Runs the virtual auditor once against the configured database and prints
// the alerts; optionally writes the XLSX report and an AI briefing.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration")
	asOfFlag := flag.String("as-of", "", "evaluation time (RFC3339), defaults to now")
	out := flag.String("out", "", "write the XLSX report to this path")
	narrate := flag.Bool("narrate", false, "ask the configured model for a briefing")
	flag.Parse()

	asOf := time.Now()
	if *asOfFlag != "" {
		t, err := time.Parse(time.RFC3339, *asOfFlag)
		if err != nil {
			log.Fatalf("Invalid -as-of: %v", err)
		}
		asOf = t
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	containerCfg, err := cfg.ToContainerConfig()
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	c, err := container.NewContainer(containerCfg, zap.NewNop())
	if err != nil {
		log.Fatalf("Failed to create container: %v", err)
	}
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer func() { _ = c.Close() }()

	anomaly := c.Services().Anomaly
	alerts, err := anomaly.Detect(ctx, asOf)
	if err != nil {
		log.Fatalf("Detection failed: %v", err)
	}

	fmt.Printf("=== Virtual auditor as of %s ===\n", asOf.Format(time.RFC3339))
	if len(alerts) == 0 {
		fmt.Println("No alerts.")
	}
	for a := range alerts.Each() {
		fmt.Printf("[%-6s] %-9s %s: %s\n", a.Severity, a.Category, a.Title, a.Description)
	}

	if *narrate {
		briefing, err := anomaly.Narrate(ctx, alerts)
		switch {
		case err != nil:
			fmt.Printf("\nBriefing unavailable: %v\n", err)
		case briefing != "":
			fmt.Printf("\n%s\n", briefing)
		}
	}

	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("Failed to create %s: %v", *out, err)
		}
		if err := anomaly.ExportReport(ctx, asOf, f); err != nil {
			_ = f.Close()
			log.Fatalf("Failed to write report: %v", err)
		}
		if err := f.Close(); err != nil {
			log.Fatalf("Failed to close %s: %v", *out, err)
		}
		fmt.Printf("\nReport written to %s\n", *out)
	}
}
