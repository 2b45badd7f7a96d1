package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/resourcehub/resourcehub/internal/db/models"
	"github.com/resourcehub/resourcehub/internal/store"
)

// Resources is the subset of resources.Service the importer needs.
type Resources interface {
	Create(ctx context.Context, item models.NewResource) (models.Resource, error)
	DeleteAll(ctx context.Context) ([]models.Resource, error)
	FindByURL(ctx context.Context, url string) (models.Resource, error)
	FindByIDOrURL(ctx context.Context, id, url string) (models.Resource, error)
}

// Options control an import run.
type Options struct {
	// Clear empties the table before importing. A failed clear aborts the run.
	Clear bool
	// SkipDuplicates skips records whose url already exists.
	SkipDuplicates bool
	// MatchID also treats a record as a duplicate when its id exists.
	MatchID bool
}

// Summary counts the outcome of an import run.
type Summary struct {
	Imported int
	Skipped  int
	Errors   int
	Total    int
}

// Importer inserts records through Resources and reports progress to Out.
type Importer struct {
	Resources Resources
	Out       io.Writer
}

// New creates an importer writing progress to out.
func New(resources Resources, out io.Writer) *Importer {
	if out == nil {
		out = io.Discard
	}
	return &Importer{Resources: resources, Out: out}
}

// Run imports records. Only a failed clear is returned as an error; per
// record failures are counted in the summary.
func (im *Importer) Run(ctx context.Context, records []Record, opts Options) (Summary, error) {
	sum := Summary{Total: len(records)}

	if opts.Clear {
		fmt.Fprintln(im.Out, "Clearing existing resources...")
		removed, err := im.Resources.DeleteAll(ctx)
		if err != nil {
			return sum, fmt.Errorf("failed to clear resources: %w", err)
		}
		fmt.Fprintf(im.Out, "Removed %d resources\n", len(removed))
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		if opts.SkipDuplicates {
			dup, err := im.exists(ctx, rec, opts.MatchID)
			if err != nil {
				slog.Warn("duplicate lookup failed", "name", rec.Name, "url", rec.URL, "error", err)
				fmt.Fprintf(im.Out, "Error checking %q: %v\n", rec.Name, err)
				sum.Errors++
				continue
			}
			if dup {
				fmt.Fprintf(im.Out, "Skipping duplicate: %s\n", rec.Name)
				sum.Skipped++
				continue
			}
		}

		if _, err := im.Resources.Create(ctx, rec.NewResource()); err != nil {
			slog.Warn("resource import failed", "name", rec.Name, "error", err)
			fmt.Fprintf(im.Out, "Error importing %q: %v\n", rec.Name, err)
			sum.Errors++
			continue
		}
		fmt.Fprintf(im.Out, "Imported: %s\n", rec.Name)
		sum.Imported++
	}

	im.printSummary(sum)
	return sum, nil
}

// exists looks for a row with the record's url, or its id when matchID is
// set and the id is a valid UUID.
func (im *Importer) exists(ctx context.Context, rec Record, matchID bool) (bool, error) {
	var err error
	if _, perr := uuid.Parse(rec.ID); matchID && perr == nil {
		_, err = im.Resources.FindByIDOrURL(ctx, rec.ID, rec.URL)
	} else {
		_, err = im.Resources.FindByURL(ctx, rec.URL)
	}
	switch {
	case err == nil:
		return true, nil
	case store.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

func (im *Importer) printSummary(sum Summary) {
	fmt.Fprintln(im.Out)
	fmt.Fprintln(im.Out, "Import summary:")
	fmt.Fprintf(im.Out, "  Imported: %d\n", sum.Imported)
	fmt.Fprintf(im.Out, "  Skipped:  %d\n", sum.Skipped)
	fmt.Fprintf(im.Out, "  Errors:   %d\n", sum.Errors)
	fmt.Fprintf(im.Out, "  Total:    %d\n", sum.Total)
}
