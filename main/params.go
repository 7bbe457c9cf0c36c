// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ava-labs/accumulatorvm/accumulatorvm"
	"github.com/ava-labs/accumulatorvm/amt"
)

const (
	versionKey       = "version"
	configFileKey    = "config-file"
	httpHostKey      = "http-host"
	httpPortKey      = "http-port"
	dbTypeKey        = "db-type"
	dbDirKey         = "db-dir"
	logLevelKey      = "log-level"
	bitWidthKey      = "bit-width"
	maxRangeCountKey = "max-range-count"

	envPrefix = "ACCUMULATORVM"

	memDBType   = "memdb"
	levelDBType = "leveldb"
)

// Params are the resolved command line, environment and config file values.
type Params struct {
	Version  bool
	HTTPHost string
	HTTPPort uint16
	DBType   string
	DBDir    string
	LogLevel string
	VM       accumulatorvm.Config
}

func buildFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(accumulatorvm.Name, flag.ContinueOnError)

	fs.Bool(versionKey, false, "If true, prints the version and quits")
	fs.String(configFileKey, "", "Path to a config file (json, yaml or toml)")
	fs.String(httpHostKey, "127.0.0.1", "Address of the HTTP server")
	fs.Uint(httpPortKey, 9650, "Port of the HTTP server")
	fs.String(dbTypeKey, levelDBType, fmt.Sprintf("Database type, one of %s or %s", levelDBType, memDBType))
	fs.String(dbDirKey, "accumulatorvm-db", "Database directory, used by leveldb")
	fs.String(logLevelKey, "info", "Log level (crit, error, warn, info, debug, trace)")
	fs.Uint(bitWidthKey, uint(amt.DefaultBitWidth), "Default bit width of new accumulators")
	fs.Uint64(maxRangeCountKey, accumulatorvm.DefaultConfig().MaxRangeCount, "Most entries a single getRange may return")

	return fs
}

// getViper returns the viper environment for the binary
func getViper(args []string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs := pflag.NewFlagSet(accumulatorvm.Name, pflag.ContinueOnError)
	fs.AddGoFlagSet(buildFlagSet())
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if configFile := v.GetString(configFileKey); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("couldn't read config file %s: %w", configFile, err)
		}
	}
	return v, nil
}

// parseParams resolves the parameters given on [args].
func parseParams(args []string) (Params, error) {
	v, err := getViper(args)
	if err != nil {
		return Params{}, err
	}

	port := v.GetUint(httpPortKey)
	if port > 1<<16-1 {
		return Params{}, fmt.Errorf("invalid %s: %d", httpPortKey, port)
	}
	bitWidth := v.GetUint(bitWidthKey)
	if bitWidth > uint(amt.MaxBitWidth) {
		return Params{}, fmt.Errorf("%w: %d", amt.ErrInvalidBitWidth, bitWidth)
	}
	dbType := v.GetString(dbTypeKey)
	if dbType != memDBType && dbType != levelDBType {
		return Params{}, fmt.Errorf("unknown %s: %q", dbTypeKey, dbType)
	}

	p := Params{
		Version:  v.GetBool(versionKey),
		HTTPHost: v.GetString(httpHostKey),
		HTTPPort: uint16(port),
		DBType:   dbType,
		DBDir:    v.GetString(dbDirKey),
		LogLevel: v.GetString(logLevelKey),
		VM: accumulatorvm.Config{
			BitWidth:      uint8(bitWidth),
			MaxRangeCount: v.GetUint64(maxRangeCountKey),
		},
	}
	return p, p.VM.Verify()
}
