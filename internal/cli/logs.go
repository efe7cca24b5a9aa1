package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/highclaw/webchat-channel/internal/system/logger"
)

var (
	flagLogLines  int
	flagLogFollow bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent log output",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := logger.DefaultConfig().Dir
		files, err := logger.ListLogFiles(dir)
		if err != nil {
			return fmt.Errorf("list log files: %w", err)
		}
		if len(files) == 0 {
			fmt.Printf("No log files found in %s\n", dir)
			return nil
		}

		latest := files[0].Path
		lines, err := logger.TailFile(latest, flagLogLines)
		if err != nil {
			return err
		}
		for _, line := range lines {
			fmt.Println(line)
		}

		if !flagLogFollow {
			return nil
		}

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(stop)

		done := make(chan struct{})
		go func() {
			<-stop
			close(done)
		}()
		return logger.FollowFile(latest, os.Stdout, done)
	},
}

var logsCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove expired log files",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := logger.New(logger.DefaultConfig())
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer mgr.Close()

		removed, err := mgr.Cleanup()
		if err != nil {
			return fmt.Errorf("cleanup logs: %w", err)
		}
		if removed == 0 {
			fmt.Println("No expired log files to clean.")
		} else {
			fmt.Printf("Removed %d expired log files\n", removed)
		}
		return nil
	},
}

func init() {
	logsCmd.Flags().IntVarP(&flagLogLines, "lines", "n", 100, "number of lines to show")
	logsCmd.Flags().BoolVarP(&flagLogFollow, "follow", "f", false, "keep streaming new output")
	logsCmd.AddCommand(logsCleanCmd)
}
