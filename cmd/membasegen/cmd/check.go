package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fail if the generated package is out of date",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := load(false)
		if err != nil {
			return err
		}
		stale, err := b.gen.Stale(b.unit, b.digest)
		if err != nil {
			return err
		}
		if len(stale) == 0 {
			fmt.Printf("%s %s\n", colorPath(b.gen.Dir), colorFresh("up to date"))
			return nil
		}
		for _, file := range stale {
			fmt.Printf("%s %s\n", colorStale("stale"), colorPath(filepath.Join(b.gen.Dir, file)))
		}
		return errors.Errorf("%d generated file(s) out of date, run membasegen generate", len(stale))
	},
}
