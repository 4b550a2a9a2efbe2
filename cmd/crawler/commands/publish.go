package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"matrusp-crawler/internal/components/telemetry"
	"matrusp-crawler/internal/publish"

	"github.com/spf13/cobra"
)

func init() {
	publishCmd.Flags().StringVarP(&flags.out, "out", "o", "", "file name of the aggregate dataset")
	rootCmd.AddCommand(publishCmd)
}

var publishCmd = &cobra.Command{
	Use:   "publish <destination>",
	Short: "Uploads the aggregate datasets of a destination directory to the configured SFTP host.",
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
		return publishDir(cmd.Context(), cmd.OutOrStdout(), dir, config)
	},
}

func publishDir(ctx context.Context, stdout io.Writer, dir string, config Config) error {
	files, err := publish.Files(dir, config.Out)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("nothing to publish in '%s'", dir)
	}

	remote, closeRemote, err := publish.Dial(ctx, config.Publish)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	publisher := publish.NewPublisher(remote, config.Publish.RemoteDir, telemetry.SlogAPI{})
	written, err := publisher.Upload(ctx, files)
	err = errors.Join(err, closeRemote())
	for _, path := range written {
		fmt.Fprintf(stdout, "published %s\n", path)
	}
	return err
}
