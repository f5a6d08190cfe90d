package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkConfigPath string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration file",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfigFrom(checkConfigPath)
		if err != nil {
			return err
		}
		fmt.Printf("config ok: agent_id=%s projects=%d\n", cfg.AgentID, len(cfg.Projects))
		for _, p := range cfg.Projects {
			fmt.Printf("  project %s -> %s\n", p.ProjectCode, p.APIURL)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkConfigPath, "config", "", "path to config file (default: ~/.remora/config.yaml)")
}
