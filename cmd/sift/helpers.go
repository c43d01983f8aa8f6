package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/siftledger/sift/internal/common"
	"github.com/siftledger/sift/internal/rule"
	"github.com/siftledger/sift/internal/storage"
)

// expandPath expands $HOME and ~ prefixes in configured paths.
func expandPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return strings.ReplaceAll(path, "$HOME", home)
}

// loadEngine builds the rule engine from the configured rule-set file.
func loadEngine(strict bool) (*rule.Engine, error) {
	path := viper.GetString("rules.path")
	if path == "" {
		return nil, common.NewUserError("no rule set configured; set rules.path in config or pass --rules", common.ErrMissingConfig)
	}
	return rule.Load(expandPath(path), strict)
}

// openSeenStore opens the migrated seen-transaction database.
func openSeenStore() (*storage.SeenStore, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/sift/seen.db"
	}
	return storage.NewSeenStore(expandPath(dbPath))
}
