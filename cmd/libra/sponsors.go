package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avirj/libra/internal/logging"
	"github.com/avirj/libra/internal/sponsor"
)

var (
	sponsorsRebuild bool
	sponsorsList    bool
	sponsorsCheck   string
)

var sponsorsCmd = &cobra.Command{
	Use:   "sponsors",
	Short: "Inspect the sponsorship reference set",
	Long: "Load (or rebuild) the employer reference set parsed from the\n" +
		"configured filing files and report on it.",
	RunE: runSponsors,
}

func init() {
	sponsorsCmd.Flags().BoolVar(&sponsorsRebuild, "rebuild", false, "re-parse the reference files, ignoring the cache")
	sponsorsCmd.Flags().BoolVar(&sponsorsList, "list", false, "print every employer in the set")
	sponsorsCmd.Flags().StringVar(&sponsorsCheck, "check", "", "report whether the given company matches the set")
	rootCmd.AddCommand(sponsorsCmd)
}

func runSponsors(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Stdout is the report here, keep log noise out of it.
	logger := logging.Silent()
	if debug {
		logger = setupLogger(cfg, true)
	}

	opts := sponsor.Options{
		ReferencePaths: cfg.Sponsor.ReferencePaths,
		CachePath:      cfg.Sponsor.CachePath,
		MinCases:       cfg.Sponsor.MinCases,
		Logger:         logger,
	}

	var set *sponsor.ReferenceSet
	if sponsorsRebuild {
		set, err = sponsor.Rebuild(opts)
	} else {
		set, err = sponsor.Load(opts)
	}
	if err != nil {
		return fmt.Errorf("load reference set: %w", err)
	}

	fmt.Printf("%d employers (min %d filings each, from %d files)\n",
		set.Len(), cfg.Sponsor.MinCases, len(cfg.Sponsor.ReferencePaths))

	if sponsorsCheck != "" {
		normalized := sponsor.NormalizeName(sponsorsCheck)
		switch {
		case set.HasExact(sponsorsCheck):
			fmt.Printf("%q (as %q): exact match\n", sponsorsCheck, normalized)
		case cfg.Sponsor.Fuzzy && set.MatchesApprox(sponsorsCheck, cfg.Sponsor.FuzzyThreshold):
			fmt.Printf("%q (as %q): approximate match (threshold %d)\n",
				sponsorsCheck, normalized, cfg.Sponsor.FuzzyThreshold)
		default:
			fmt.Printf("%q (as %q): no match\n", sponsorsCheck, normalized)
		}
	}

	if sponsorsList {
		for _, name := range set.Names() {
			fmt.Println(name)
		}
	}

	return nil
}
