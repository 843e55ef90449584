package cmd

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/apex/log"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Regenerate whenever a descriptor changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		watched := make(map[string]bool)
		for _, key := range []string{"config", "imports"} {
			path, err := filepath.Abs(viper.GetString(key))
			if err != nil {
				return err
			}
			watched[path] = true
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return errors.Wrap(err, "failed to create watcher")
		}
		defer watcher.Close()
		// editors often replace files, so watch the directories
		for path := range watched {
			if err := watcher.Add(filepath.Dir(path)); err != nil {
				return errors.Wrapf(err, "failed to watch %s", filepath.Dir(path))
			}
		}

		if err := generate(false); err != nil {
			log.Error(err.Error())
		}
		for {
			select {
			case <-ctx.Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				path, _ := filepath.Abs(event.Name)
				if !watched[path] || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				log.WithField("file", event.Name).Info("descriptor changed")
				if err := generate(false); err != nil {
					log.Error(err.Error())
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				log.Errorf("watch: %v", err)
			}
		}
	},
}
