// Package main is the bulk import tool for learning resources. It reads a
// JSON export (an array of resources) and inserts every record into the
// configured store, optionally clearing the table first.
//
//	import-resources [file|uri] [--clear] [--allow-duplicates] [--match-id]
//	                 [--sha256 digest] [--backup uri [--force]]
//
// The export can be a local path or an s3://, gs:// or azblob:// URI; object
// store credentials come from the storage section of the config. --backup
// writes the current table to a location before anything is changed and
// refuses to replace an existing object unless --force is given.
//
// The store is selected by the same configuration as the server
// (PUBLIC_SUPABASE_URL and PUBLIC_SUPABASE_ANON_KEY for the default backend).
// Admin settings are not required.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/resourcehub/resourcehub/internal/config"
	"github.com/resourcehub/resourcehub/internal/importer"
	"github.com/resourcehub/resourcehub/internal/resources"
	"github.com/resourcehub/resourcehub/internal/storage"
	_ "github.com/resourcehub/resourcehub/internal/storage/azure"
	_ "github.com/resourcehub/resourcehub/internal/storage/gcs"
	_ "github.com/resourcehub/resourcehub/internal/storage/local"
	_ "github.com/resourcehub/resourcehub/internal/storage/s3"
	"github.com/resourcehub/resourcehub/internal/store"
	"github.com/resourcehub/resourcehub/internal/telemetry"
)

const defaultFile = "learning-resources.json"

// Options are the command-line flags.
type Options struct {
	ConfigPath      string
	Clear           bool
	AllowDuplicates bool
	MatchID         bool
	SHA256          string
	Backup          string
	Force           bool
}

func (o *Options) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&o.ConfigPath, "config", "c", "", "path to the config file (defaults to CONFIG_PATH or ./config.yaml)")
	flagSet.BoolVar(&o.Clear, "clear", false, "delete every existing resource before importing")
	flagSet.BoolVar(&o.AllowDuplicates, "allow-duplicates", false, "import records even when their url already exists")
	flagSet.BoolVar(&o.MatchID, "match-id", false, "also treat a record as a duplicate when its id exists")
	flagSet.StringVar(&o.SHA256, "sha256", "", "refuse the export unless its sha256 matches (digest or sha256sum line)")
	flagSet.StringVar(&o.Backup, "backup", "", "write the current table to this path or URI before importing")
	flagSet.BoolVar(&o.Force, "force", false, "let --backup replace an existing object")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newCommand(out io.Writer) *cobra.Command {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:   "import-resources [file|uri]",
		Short: "Import learning resources from a JSON file",
		Example: `  import-resources
  import-resources learning-resources.json
  import-resources resources.json --clear
  import-resources --clear --allow-duplicates
  import-resources s3://exports/resources.json --sha256 "$(cat resources.json.sha256)"
  import-resources gs://exports/resources.json --clear --backup gs://exports/backup.json`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			file := defaultFile
			if len(args) > 0 {
				file = args[0]
			}
			return run(cmd.Context(), opts, file, out)
		},
	}
	cmd.SetOut(out)
	opts.AddFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, opts *Options, file string, out io.Writer) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	src, key, err := storage.Open(file, &cfg.Storage)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Reading %s\n", file)
	records, digest, err := importer.Load(ctx, src, key, opts.SHA256)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Found %d resources (sha256 %s)\n\n", len(records), digest)

	driver, err := store.Open(ctx, &cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer driver.Close()

	svc := resources.NewService(driver)
	if opts.Backup != "" {
		dst, dstKey, err := storage.Open(opts.Backup, &cfg.Storage)
		if err != nil {
			return fmt.Errorf("invalid backup location: %w", err)
		}
		res, n, err := importer.Snapshot(ctx, svc, dst, dstKey, opts.Force)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Backed up %d resources to %s (sha256 %s)\n\n", n, opts.Backup, res.Checksum)
	}

	im := importer.New(svc, out)
	sum, err := im.Run(ctx, records, importer.Options{
		Clear:          opts.Clear,
		SkipDuplicates: !opts.AllowDuplicates,
		MatchID:        opts.MatchID,
	})
	if err != nil {
		return err
	}
	if sum.Imported > 0 {
		fmt.Fprintln(out, "Import completed.")
	}
	return nil
}
