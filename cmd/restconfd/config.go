// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"context"
	"flag"
	"fmt"
	"io/ioutil"
	"strings"

	"github.com/diffeo/go-restconf/backend"
	"github.com/diffeo/go-restconf/cache"
	"github.com/diffeo/go-restconf/proxy"
	"github.com/diffeo/go-restconf/restserver"
	"github.com/diffeo/go-restconf/schema"
	"github.com/diffeo/go-restconf/store"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v2"
)

// Mount attaches a remote store beneath a path at startup.
type Mount struct {
	Path string
	URL  string
}

// YangConfig says where the YANG modules come from.
type YangConfig struct {
	Files         []string
	Dirs          []string
	DefaultModule string            `mapstructure:"default_module"`
	PathPrefixes  map[string]string `mapstructure:"path_prefixes"`
}

// Options converts the configuration to schema load options.
func (y YangConfig) Options() schema.Options {
	return schema.Options{
		Files:         y.Files,
		Dirs:          y.Dirs,
		DefaultModule: y.DefaultModule,
		PathPrefixes:  y.PathPrefixes,
	}
}

// Config holds the daemon settings.  Values come from defaults, then
// the YAML file named by -config, then command-line flags.
type Config struct {
	HTTP        string
	RPC         string
	Backend     string
	Root        string
	LogLevel    string `mapstructure:"log_level"`
	LogRequests bool   `mapstructure:"log_requests"`
	CacheSize   int    `mapstructure:"cache_size"`
	Yang        YangConfig
	Mounts      []Mount
}

func defaultConfig() Config {
	return Config{
		HTTP:      ":5980",
		Backend:   "memory",
		Root:      restserver.DefaultRoot,
		LogLevel:  "info",
		CacheSize: cache.DefaultSize,
	}
}

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string {
	return strings.Join(*l, ",")
}

func (l *stringList) Set(value string) error {
	*l = append(*l, value)
	return nil
}

// Parse reads command-line arguments, and the configuration file if
// one is named, into cfg.  Flags given explicitly win over the file.
func (cfg *Config) Parse(args []string) error {
	flags := flag.NewFlagSet("restconfd", flag.ContinueOnError)
	configFile := flags.String("config", "", "global configuration YAML file")
	httpBind := flags.String("http", cfg.HTTP,
		"[ip]:port for HTTP RESTCONF interface")
	rpcBind := flags.String("rpc", cfg.RPC,
		"[ip]:port for CBOR-RPC store interface, or empty for none")
	be := backend.Backend{}
	if err := be.Set(cfg.Backend); err != nil {
		return err
	}
	flags.Var(&be, "backend", "impl[:address] of the storage backend")
	root := flags.String("root", cfg.Root, "URL path of the RESTCONF root")
	logLevel := flags.String("log-level", cfg.LogLevel, "minimum level to log")
	logRequests := flags.Bool("log-requests", cfg.LogRequests, "log all requests")
	cacheSize := flags.Int("cache-size", cfg.CacheSize,
		"number of subtree snapshots to cache for remote backends")
	var yangDirs, yangFiles stringList
	flags.Var(&yangDirs, "yang", "directory of YANG modules (repeatable)")
	flags.Var(&yangFiles, "yang-file", "YANG module file (repeatable)")
	defaultModule := flags.String("default-module", cfg.Yang.DefaultModule,
		"module for unprefixed top-level names")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *configFile != "" {
		raw, err := loadConfigYaml(*configFile)
		if err != nil {
			return err
		}
		if err := decodeConfig(raw, cfg); err != nil {
			return fmt.Errorf("%v: %v", *configFile, err)
		}
	}

	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http":
			cfg.HTTP = *httpBind
		case "rpc":
			cfg.RPC = *rpcBind
		case "backend":
			cfg.Backend = be.String()
		case "root":
			cfg.Root = *root
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-requests":
			cfg.LogRequests = *logRequests
		case "cache-size":
			cfg.CacheSize = *cacheSize
		case "yang":
			cfg.Yang.Dirs = yangDirs
		case "yang-file":
			cfg.Yang.Files = yangFiles
		case "default-module":
			cfg.Yang.DefaultModule = *defaultModule
		}
	})
	return nil
}

func loadConfigYaml(filename string) (map[string]interface{}, error) {
	var result map[string]interface{}
	var err error
	var bytes []byte
	bytes, err = ioutil.ReadFile(filename)
	if err == nil {
		err = yaml.Unmarshal(bytes, &result)
	}
	return result, err
}

// decodeConfig merges a generic YAML document into cfg.  Unknown
// keys are errors.
func decodeConfig(raw map[string]interface{}, cfg *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(stringKeys(raw))
}

// stringKeys converts the map[interface{}]interface{} values YAML
// produces for nested mappings into map[string]interface{}.
func stringKeys(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(vv))
		for k, item := range vv {
			out[fmt.Sprint(k)] = stringKeys(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(vv))
		for k, item := range vv {
			out[k] = stringKeys(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, item := range vv {
			out[i] = stringKeys(item)
		}
		return out
	default:
		return v
	}
}

// Store builds the store stack: the backend, a cache if the backend
// is remote, and proxy support on top with the configured mounts.
func (cfg *Config) Store(ctx context.Context) (store.Store, error) {
	be := backend.Backend{}
	if err := be.Set(cfg.Backend); err != nil {
		return nil, err
	}
	st, err := be.Store()
	if err != nil {
		return nil, err
	}
	if be.Remote() {
		st = cache.New(st, cfg.CacheSize)
	}
	st = proxy.New(st, proxy.DialRPC)
	for _, m := range cfg.Mounts {
		if err := st.Proxy(ctx, m.Path, m.URL); err != nil {
			return nil, fmt.Errorf("mount %v: %v", m.Path, err)
		}
	}
	return st, nil
}
