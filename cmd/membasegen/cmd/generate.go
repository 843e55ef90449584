package cmd

import (
	"fmt"

	"github.com/apex/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().BoolP("force", "f", false, "regenerate even if the output is up to date")
	viper.BindPFlag("generate.force", generateCmd.Flags().Lookup("force"))
}

var generateCmd = &cobra.Command{
	Use:     "generate",
	Aliases: []string{"gen"},
	Short:   "Generate the Go package for the descriptors",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return generate(viper.GetBool("generate.force"))
	},
}

func generate(force bool) error {
	b, err := load(force)
	if err != nil {
		return err
	}
	res, err := b.gen.Generate(b.unit, b.digest)
	if err != nil {
		return err
	}
	if res.Skipped {
		fmt.Printf("%s %s\n", colorPath(b.gen.Dir), colorFresh("up to date"))
		return nil
	}
	for _, path := range res.Written {
		fmt.Printf("%s %s\n", colorWrite("wrote"), colorPath(path))
	}
	for _, path := range res.Removed {
		fmt.Printf("%s %s\n", colorDrop("removed"), colorPath(path))
	}
	log.WithFields(log.Fields{
		"offsets":    len(b.unit.Offsets),
		"signatures": len(b.unit.Signatures),
		"functions":  len(b.unit.Functions),
		"digest":     b.digest,
	}).Debug("generated")
	return nil
}
