package cmd

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/inovacc/pagewright/internal/site"
)

var (
	buildOutput   string
	buildSource   string
	buildTemplate string
	buildWatch    bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Generate the static site",
	Long: `Fetch the content once, splice it into the HTML template and write the
deployable site: index.html, the static assets, the admin files and a
_redirects catch-all.

With --watch the site is rebuilt whenever the template, an asset or the
stored content changes.

Examples:
  pagewright build
  pagewright build --source ./site --output ./public
  pagewright build --watch`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "Output directory (default from config, dist)")
	buildCmd.Flags().StringVarP(&buildSource, "source", "s", "", "Directory holding the template and assets")
	buildCmd.Flags().StringVarP(&buildTemplate, "template", "t", "", "Template file, relative to the source directory")
	buildCmd.Flags().BoolVarP(&buildWatch, "watch", "w", false, "Rebuild on template, asset or content changes")
}

func runBuild(cmd *cobra.Command, _ []string) error {
	ctx, stop := notifyContext(cmd.Context())
	defer stop()

	svc, tree, err := openContent(ctx, cfg)
	if err != nil {
		return err
	}

	defer func() { _ = tree.Close() }()

	gen := &site.Generator{
		Source:       svc,
		TemplatePath: cfg.Site.TemplatePath(),
		SourceDir:    cfg.Site.SourceDir,
		OutputDir:    cfg.Site.OutputDir,
		Logger:       logger,
	}

	if len(cfg.Site.Assets) > 0 {
		gen.Assets = cfg.Site.Assets
	}

	if len(cfg.Site.AdminFiles) > 0 {
		gen.AdminFiles = cfg.Site.AdminFiles
	}

	res, err := gen.Build(ctx)
	if err != nil {
		return err
	}

	printf("Built %s: %d files, %s in %s\n", res.OutputDir, res.Files, humanize.Bytes(uint64(res.Bytes)), res.Duration.Round(time.Millisecond))

	for _, w := range res.Warnings {
		printf("  warning: %s\n", w)
	}

	if !buildWatch {
		return nil
	}

	changed := make(chan struct{}, 1)

	unwatch := svc.Watch(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unwatch()

	// drop the notification for the current value
	select {
	case <-changed:
	default:
	}

	printf("Watching for changes, press Ctrl+C to stop\n")

	return gen.Watch(ctx, changed)
}
