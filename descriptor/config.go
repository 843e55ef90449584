package descriptor

import (
	"bytes"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "MEMBASE"

type Config struct {
	Name                     string `mapstructure:"name" json:"name"`
	ImportOffsets            bool   `mapstructure:"import_offsets" json:"import_offsets"`
	ImportMemorySignatures   bool   `mapstructure:"import_memory_signatures" json:"import_memory_signatures"`
	ImportFunctionSignatures bool   `mapstructure:"import_function_signatures" json:"import_function_signatures"`
	Console                  bool   `mapstructure:"console" json:"console"`
	Package                  string `mapstructure:"package" json:"package"`
}

// LoadConfig reads the JSON config descriptor at path into v. Every field
// can be overridden with a MEMBASE_<FIELD> environment variable.
func LoadConfig(v *viper.Viper, path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read config descriptor")
	}
	return ParseConfig(v, raw)
}

func ParseConfig(v *viper.Viper, raw []byte) (*Config, error) {
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("name", "")
	v.SetDefault("import_offsets", false)
	v.SetDefault("import_memory_signatures", false)
	v.SetDefault("import_function_signatures", false)
	v.SetDefault("console", false)
	v.SetDefault("package", "imports")
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return nil, errors.Wrap(err, "unable to parse config descriptor")
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unable to decode config descriptor")
	}
	return &cfg, nil
}
