package cmd

import (
	"os"
	"strings"

	"github.com/apex/log"
	clihander "github.com/apex/log/handlers/cli"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wnxd/membase/descriptor"
)

var (
	// Verbose boolean flag for verbose logging
	Verbose bool

	colorPath  = color.New(color.Bold).SprintFunc()
	colorWrite = color.New(color.FgHiGreen).SprintFunc()
	colorDrop  = color.New(color.FgHiYellow).SprintFunc()
	colorFresh = color.New(color.Faint).SprintFunc()
	colorStale = color.New(color.FgHiRed, color.Bold).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:           "membasegen",
	Short:         "Compile offset, signature and function descriptors into Go constants",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("verbose") {
			log.SetLevel(log.DebugLevel)
		}
		if viper.IsSet("color") {
			color.NoColor = !viper.GetBool("color")
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	log.SetHandler(clihander.Default)

	rootCmd.PersistentFlags().StringP("config", "c", "config.json", "config descriptor")
	rootCmd.PersistentFlags().StringP("imports", "i", "imports.json", "imports descriptor")
	rootCmd.PersistentFlags().StringP("out", "o", "imports", "output directory of the generated package")
	rootCmd.PersistentFlags().String("package", "", "generated package name (overrides the config descriptor)")
	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "V", false, "verbose output")
	rootCmd.PersistentFlags().Bool("color", true, "colorize output")
	for _, name := range []string{"config", "imports", "out", "package", "verbose", "color"} {
		viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
	viper.SetEnvPrefix("membasegen")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}

type build struct {
	unit   *descriptor.Unit
	digest string
	gen    *descriptor.Generator
}

func load(force bool) (*build, error) {
	cfg, err := descriptor.LoadConfig(viper.New(), viper.GetString("config"))
	if err != nil {
		return nil, errors.Wrapf(err, "%s", viper.GetString("config"))
	}
	if pkg := viper.GetString("package"); pkg != "" {
		cfg.Package = pkg
	}
	imp, raw, err := descriptor.LoadImports(viper.GetString("imports"))
	if err != nil {
		return nil, errors.Wrapf(err, "%s", viper.GetString("imports"))
	}
	unit, err := descriptor.Compile(cfg, imp)
	if err != nil {
		return nil, errors.Wrap(err, "descriptor rejected")
	}
	return &build{
		unit:   unit,
		digest: descriptor.Digest(cfg, raw),
		gen:    &descriptor.Generator{Dir: viper.GetString("out"), Force: force},
	}, nil
}
