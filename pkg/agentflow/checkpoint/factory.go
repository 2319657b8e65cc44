package checkpoint

import (
	"fmt"

	"github.com/10xHub/agentflow-cli/pkg/agentflow/config"
)

// Store-section configuration keys. A service config file carries them
// under a top-level "store" mapping:
//
//	store:
//	  driver: sqlite
//	  path: threads.db
const (
	KeyStore  = "store"
	KeyDriver = "driver"
	KeyPath   = "path"
)

// NewStoreFromConfig builds a Store from service configuration.
// Recognized drivers: "memory" (the default) and "sqlite", which
// requires a database path.
func NewStoreFromConfig(cfg config.Config) (Store, error) {
	section := config.New(cfg.Map(KeyStore))

	driver := section.String(KeyDriver, "memory")
	switch driver {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		path := section.String(KeyPath, "")
		if path == "" {
			return nil, fmt.Errorf("sqlite store: %s is required", KeyPath)
		}
		return NewSQLiteStore(path)
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}
