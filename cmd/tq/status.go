package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/taskql/internal/config"
	"github.com/steveyegge/taskql/internal/globalfilter"
)

type statusInfo struct {
	ConfigFile string `json:"config_file,omitempty"`
	Source     string `json:"source"`
	Location   string `json:"location"`
	Tasks      int    `json:"tasks"`
	Visible    int    `json:"visible"`
	Profile    string `json:"profile,omitempty"`
	CacheSize  int    `json:"cache_capacity"`
	CacheTTL   string `json:"cache_ttl"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the effective configuration and task counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		info := statusInfo{
			ConfigFile: cfg.File,
			Source:     cfg.Source,
			CacheSize:  cfg.Cache.Capacity,
			CacheTTL:   cfg.Cache.TTL.String(),
		}

		switch cfg.Source {
		case config.SourceJSONL:
			info.Location = cfg.JSONLPath
		case config.SourceSQLite:
			info.Location = cfg.DBPath
		default:
			info.Location = cfg.TasksDir
		}

		visible, err := a.source.AllTasks(ctx)
		if err != nil {
			return err
		}
		info.Visible = len(visible)
		info.Tasks = info.Visible
		if fs, ok := a.source.(globalfilter.FilteredSource); ok {
			all, err := fs.Source.AllTasks(ctx)
			if err != nil {
				return err
			}
			info.Tasks = len(all)
		}
		if a.filter != nil {
			info.Profile = a.filter.Profile().Name
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(info)
		}

		out := cmd.OutOrStdout()
		if info.ConfigFile != "" {
			fmt.Fprintf(out, "Config:  %s\n", info.ConfigFile)
		} else {
			fmt.Fprintln(out, "Config:  (defaults)")
		}
		fmt.Fprintf(out, "Source:  %s (%s)\n", info.Source, info.Location)
		fmt.Fprintf(out, "Tasks:   %d (%d visible)\n", info.Tasks, info.Visible)
		if info.Profile != "" {
			fmt.Fprintf(out, "Profile: %s (%s)\n", info.Profile, cfg.ProfilePath)
		}
		fmt.Fprintf(out, "Cache:   %d entries, ttl %s\n", info.CacheSize, info.CacheTTL)
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "print status as JSON")
	rootCmd.AddCommand(statusCmd)
}
