package wbconfig

import (
	"time"

	"github.com/spf13/cobra"
)

// flagValues mirrors the CLI surface 1:1; build() turns it into a Config.
type flagValues struct {
	url        string
	all        bool
	last       bool
	first      bool
	explicit   bool
	rangeYears int
	start      string
	end        string
	limit      int
	filetype   string
	statuscode string
	noRedirect bool
	output     string
	workers    int
	retry      int
	delay      time.Duration
	keep       bool
	reset      bool
	configFile string

	// Accepted for compatibility with original_source's argument surface.
	metadata bool
	verbose  bool
	logPath  string
	progress bool
	save     bool

	metricsAddr string
}

// NewCommand builds the single `waybackup` Cobra command (no subcommands,
// matching the teacher's single-binary shape). run is invoked once flags
// (and any --config overlay) have been resolved into a Config.
func NewCommand(run func(cmd *cobra.Command, cfg Config) error) *cobra.Command {
	var f flagValues

	cmd := &cobra.Command{
		Use:   "waybackup",
		Short: "Download archived snapshots of a URL from the Wayback Machine",
		Long: "waybackup queries the Wayback Machine's CDX index for a URL,\n" +
			"deduplicates and filters the resulting snapshot list, and downloads\n" +
			"each snapshot's content to a deterministic local layout. Runs are\n" +
			"resumable: interrupting and re-invoking with the same arguments\n" +
			"picks up where the previous run left off.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := build(f)
			if err != nil {
				return err
			}
			if f.configFile != "" {
				cfg, err = overlayFile(cfg, cmd, f.configFile)
				if err != nil {
					return err
				}
			}
			return run(cmd, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.url, "url", "u", "", "origin URL (required)")
	flags.BoolVarP(&f.all, "all", "a", false, "mode = all (keep every snapshot)")
	flags.BoolVarP(&f.last, "last", "l", false, "mode = last (keep newest snapshot per URL)")
	flags.BoolVarP(&f.first, "first", "f", false, "mode = first (keep oldest snapshot per URL)")
	flags.BoolVarP(&f.explicit, "explicit", "e", false, "suppress trailing /* in the CDX query")
	flags.IntVarP(&f.rangeYears, "range", "r", 0, "years back from today")
	flags.StringVar(&f.start, "start", "", "explicit 14-digit range start")
	flags.StringVar(&f.end, "end", "", "explicit 14-digit range end")
	flags.IntVar(&f.limit, "limit", 0, "cap on CDX rows requested (0 = unbounded)")
	flags.StringVar(&f.filetype, "filetype", "", "extension filter, comma-separated")
	flags.StringVar(&f.statuscode, "statuscode", "", "status-code filter, comma-separated")
	flags.BoolVar(&f.noRedirect, "no-redirect", false, "disable redirect-following")
	flags.StringVarP(&f.output, "output", "o", "waybackup", "output directory")
	flags.IntVar(&f.workers, "workers", 1, "worker count")
	flags.IntVar(&f.retry, "retry", 0, "outer retry count")
	flags.DurationVar(&f.delay, "delay", 0, "inter-download delay")
	flags.BoolVar(&f.keep, "keep", false, "keep Index File and Persistent Store after a clean run")
	flags.BoolVar(&f.reset, "reset", false, "drop existing Job/Snapshot rows for this job before starting")
	flags.StringVar(&f.configFile, "config", "", "path to a YAML config file")

	flags.BoolVar(&f.metadata, "metadata", false, "accepted for compatibility; has no effect")
	flags.BoolVar(&f.verbose, "verbose", false, "accepted for compatibility; has no effect")
	flags.StringVar(&f.logPath, "log", "", "accepted for compatibility; has no effect")
	flags.BoolVar(&f.progress, "progress", true, "accepted for compatibility; has no effect (the progress bar shows whenever stdout is a terminal)")
	flags.BoolVar(&f.save, "save", false, "request the archive save the URL before downloading (unsupported)")
	flags.StringVar(&f.metricsAddr, "metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")

	return cmd
}
