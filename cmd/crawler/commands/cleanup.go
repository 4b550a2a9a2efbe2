package commands

import (
	"fmt"
	"matrusp-crawler/internal/output"

	"github.com/spf13/cobra"
)

func init() {
	cleanupCmd.Flags().StringVarP(&flags.out, "out", "o", output.DefaultOut, "file name of the aggregate dataset to keep")
	rootCmd.AddCommand(cleanupCmd)
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup <destination>",
	Short: "Removes the per subject files of a destination directory, keeping the aggregate datasets.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		err := requireDir(dir)
		if err != nil {
			return err
		}
		config, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		removed, err := output.Cleanup(dir, config.Out)
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d files\n", len(removed))
		return err
	},
}
