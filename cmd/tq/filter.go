package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/taskql/internal/globalfilter"
	"github.com/steveyegge/taskql/internal/ui"
)

var filterCmd = &cobra.Command{
	Use:     "filter",
	GroupID: "filter",
	Short:   "Inspect the global filter profile",
	Long: `The global filter decides which tasks are visible to queries at all.
It is configured by a profile file (--profile-path) holding named
profiles; the active one applies to every query.`,
}

var filterCheckCmd = &cobra.Command{
	Use:   "check CONTENT...",
	Short: "Explain whether a block of text would be included",
	Long: `Evaluate a block of text (for example "- [ ] call mom #home") against
the active profile and print the decision with the rule that made it.

  tq filter check --path daily/2024-01-10.md "- [ ] water plants #home"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.ProfilePath == "" {
			return errors.New("no profile file configured (use --profile-path)")
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		path, _ := cmd.Flags().GetString("path")
		d := a.filter.ExplainContent(strings.Join(args, "\n"), path)

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(d)
		}
		ui.NewRenderer(os.Stdout, cfg.Color).Decision(d)
		return nil
	},
}

var filterValidateCmd = &cobra.Command{
	Use:   "validate [FILE]",
	Short: "Check a profile file for invalid rules",
	Long: `Load a profile file and report every invalid glob, regex, tag, regex
target, and status type. Defaults to the configured --profile-path.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.ProfilePath
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return errors.New("no profile file given")
		}

		set, err := globalfilter.LoadProfileSet(path)
		if err != nil {
			return err
		}
		if err := set.Validate(); err != nil {
			return fmt.Errorf("%s is invalid:\n%w", path, err)
		}

		active := set.Active
		if p, err := set.ActiveProfile(); err == nil {
			active = p.Name
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d profile(s) OK: %s", path, len(set.Profiles), strings.Join(set.Names(), ", "))
		if active != "" {
			fmt.Fprintf(cmd.OutOrStdout(), " (active: %s)", active)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	filterCheckCmd.Flags().String("path", "", "file path the text belongs to")
	filterCheckCmd.Flags().Bool("json", false, "print the decision as JSON")

	filterCmd.AddCommand(filterCheckCmd)
	filterCmd.AddCommand(filterValidateCmd)
	rootCmd.AddCommand(filterCmd)
}
