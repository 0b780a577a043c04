package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/semshade/config"
)

func configCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect configuration files",
	}

	var user, force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default config file",
		Long: `Init writes the default configuration to [path], to semshade.yaml in the
current directory when no path is given, or to the user config file with
--user. Existing files are kept unless --force is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ProjectConfigFile
			switch {
			case len(args) == 1:
				path = args[0]
			case user:
				path = ""
			}
			written, err := config.NewLoader(a.logger).Init(path, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", written)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&user, "user", false, "Write the user config (~/.config/semshade/config.yaml)")
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Replace an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
