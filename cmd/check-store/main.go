// Package main is a diagnostic tool for store connectivity. It loads the
// server configuration, opens the configured backend, and prints resource
// counts. The binary exits non-zero on any failure so it can gate
// deployments on a reachable store.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/resourcehub/resourcehub/internal/config"
	"github.com/resourcehub/resourcehub/internal/db/models"
	"github.com/resourcehub/resourcehub/internal/resources"
	"github.com/resourcehub/resourcehub/internal/store"
)

const checkTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	driver, err := store.Open(ctx, &cfg.Store)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer driver.Close()

	if err := check(ctx, cfg.Store.Backend, resources.NewService(driver), os.Stdout); err != nil {
		log.Fatalf("Store check failed: %v", err)
	}
}

func check(ctx context.Context, backend string, svc *resources.Service, out io.Writer) error {
	fmt.Fprintf(out, "=== STORE (%s) ===\n", backend)

	total, err := svc.Count(ctx, nil)
	if err != nil {
		return fmt.Errorf("count resources: %w", err)
	}
	active, err := svc.Count(ctx, store.Where(store.Eq(models.ColIsActive, true)))
	if err != nil {
		return fmt.Errorf("count active resources: %w", err)
	}

	fmt.Fprintf(out, "Resources: %d\n", total)
	fmt.Fprintf(out, "Active:    %d\n", active)
	fmt.Fprintf(out, "Pending:   %d\n", total-active)

	latest, err := svc.GetAll(ctx, store.QueryOptions{OrderBy: models.ColCreatedAt, Descending: true, Limit: 5})
	if err != nil {
		return fmt.Errorf("list resources: %w", err)
	}
	if len(latest) == 0 {
		fmt.Fprintln(out, "No resources found!")
		return nil
	}

	fmt.Fprintln(out, "\n=== LATEST ===")
	for _, r := range latest {
		status := "active"
		if r.Pending() {
			status = "pending"
		}
		fmt.Fprintf(out, "%s  %-7s  %s (%s)\n", r.CreatedAt.Format(time.RFC3339), status, r.Name, r.URL)
	}
	return nil
}
