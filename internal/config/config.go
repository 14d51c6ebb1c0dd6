// Package config manages plansync configuration through a viper singleton.
// Values resolve in precedence order: explicit flags, PLANSYNC_* environment
// variables, the config file, then built-in defaults.
//
// The config file is YAML, searched in the working directory and in
// ~/.plansync/. Store credentials live under per-store sections:
//
//	grist:
//	  api_key: ...
//	  doc_id: ...
//	iobeya:
//	  url: ...
//	  token: ...
//	  board_id: ...
//	github:
//	  token: ...
//	  owner: ...
//	  repo: ...
//	  project_number: 5
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/plansync/plansync/internal/store"
)

var (
	v  *viper.Viper
	mu sync.Mutex
)

// Defaults that apply when neither file nor environment set a value.
const (
	DefaultJournalPath = "plansync.db"
	DefaultListenAddr  = ":8422"
	DefaultIteration   = 0
)

// Initialize sets up the viper singleton. Safe to call more than once;
// later calls rebuild the instance, which tests rely on for isolation.
func Initialize() error {
	mu.Lock()
	defer mu.Unlock()

	v = viper.New()
	v.SetConfigName("plansync")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.plansync")

	v.SetEnvPrefix("PLANSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("journal", DefaultJournalPath)
	v.SetDefault("listen", DefaultListenAddr)
	v.SetDefault("iteration", DefaultIteration)
	v.SetDefault("ledger", "grist")
	v.SetDefault("board", "iobeya")
	v.SetDefault("tracker", "github")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
		// No config file is fine; env vars may carry everything.
	}
	return nil
}

func instance() *viper.Viper {
	mu.Lock()
	defer mu.Unlock()
	if v == nil {
		panic("config.Initialize not called")
	}
	return v
}

// GetString returns a string config value.
func GetString(key string) string { return instance().GetString(key) }

// GetInt returns an integer config value.
func GetInt(key string) int { return instance().GetInt(key) }

// Set overrides a value, used when flags take precedence.
func Set(key string, value interface{}) { instance().Set(key, value) }

// ConfigFileUsed reports which file viper loaded, empty when none.
func ConfigFileUsed() string { return instance().ConfigFileUsed() }

// StoreConfig extracts one store's section as a store.Config. Keys the
// section does not define fall back to PLANSYNC_<STORE>_<KEY> environment
// variables inside store.Config itself.
func StoreConfig(name string) *store.Config {
	values := make(map[string]string)
	section := instance().GetStringMapString(name)
	for k, val := range section {
		values[k] = val
	}
	return store.NewConfig(name, values)
}

// JournalPath returns the run history database location.
func JournalPath() string { return GetString("journal") }

// ListenAddr returns the HTTP API bind address.
func ListenAddr() string { return GetString("listen") }

// StoreNames returns the configured store plugin for each role.
func StoreNames() (ledger, board, tracker string) {
	return GetString("ledger"), GetString("board"), GetString("tracker")
}
