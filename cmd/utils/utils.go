package utils

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/dominant-strategies/go-relay/common/constants"
	"github.com/dominant-strategies/go-relay/log"
)

// InitConfig initializes the viper config instance ensuring that environment variables
// take precedence over config file parameters.
// Environment variables should be prefixed with the application name (e.g. GO_RELAY_LOG_LEVEL).
// It panics if an error occurs while reading the config file.
func InitConfig() {
	// read in config file and merge with defaults
	log.Global.Infof("Loading config from file: %s", viper.ConfigFileUsed())
	err := viper.ReadInConfig()
	if err != nil {
		// if error is type ConfigFileNotFoundError or fs.PathError, ignore error
		if _, ok := err.(*fs.PathError); ok || errors.Is(err, viper.ConfigFileNotFoundError{}) {
			log.Global.Warnf("Config file not found: %s", viper.ConfigFileUsed())
		} else {
			log.Global.Errorf("Error reading config file: %s", err)
			// config file was found but another error was produced. Cannot continue
			panic(err)
		}
	}

	log.Global.Infof("Loading config from environment variables with prefix: '%s_'", constants.ENV_PREFIX)
	viper.SetEnvPrefix(constants.ENV_PREFIX)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// SaveConfig writes the current config parameters to the config file in use.
// An existing file is kept as a .bak copy.
func SaveConfig() error {
	configFile := viper.ConfigFileUsed()
	log.Global.Debugf("saving/updating config file: %s", configFile)
	if _, err := os.Stat(configFile); err == nil {
		if err := os.Rename(configFile, configFile+".bak"); err != nil {
			return err
		}
	} else if os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
			return err
		}
	} else {
		return err
	}
	return viper.WriteConfigAs(configFile)
}

// configValues returns the current value of every flag in the groups, typed
// like the flag's default.
func configValues(groups [][]Flag) map[string]interface{} {
	values := make(map[string]interface{})
	for _, group := range groups {
		for _, flag := range group {
			switch flag.Value.(type) {
			case bool:
				values[flag.Name] = viper.GetBool(flag.Name)
			case int:
				values[flag.Name] = viper.GetInt(flag.Name)
			case int64:
				values[flag.Name] = viper.GetInt64(flag.Name)
			case uint64:
				values[flag.Name] = viper.GetUint64(flag.Name)
			case time.Duration:
				values[flag.Name] = viper.GetDuration(flag.Name).String()
			case []string:
				values[flag.Name] = viper.GetStringSlice(flag.Name)
			default:
				values[flag.Name] = viper.GetString(flag.Name)
			}
		}
	}
	return values
}

// WriteDefaultConfigFile writes the value of every configurable flag to a new
// config file. Only the toml file type is supported.
func WriteDefaultConfigFile(configDir, fileName, fileType string) error {
	if fileType != constants.CONFIG_FILE_TYPE {
		return pkgerrors.Errorf("unsupported config file type %q", fileType)
	}
	data, err := toml.Marshal(configValues(Flags))
	if err != nil {
		return pkgerrors.Wrap(err, "encoding default config")
	}
	path := filepath.Join(configDir, fileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return pkgerrors.Wrapf(err, "writing %s", path)
	}
	return nil
}
