package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/florianilch/bsncloud/internal/config"
)

// flagKeys maps global flags to config keys. Only flags set on the command
// line override the other layers.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
}

// loadConfig loads the config file at path, the environment and flag
// overrides.
func loadConfig(path string, cmd *cli.Command, environ func() []string) (*config.Config, error) {
	overrides := make(map[string]any, len(flagKeys))
	for flag, key := range flagKeys {
		if cmd.IsSet(flag) {
			overrides[key] = cmd.String(flag)
		}
	}
	return config.Load(path, environ, overrides)
}
