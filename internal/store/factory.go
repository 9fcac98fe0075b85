package store

import (
	"context"

	"github.com/rotisserie/eris"
)

// Open creates a Store for the configured driver.
func Open(ctx context.Context, driver, databaseURL string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "postgres":
		return NewPostgres(ctx, databaseURL, poolCfg)
	case "sqlite":
		if databaseURL == "" {
			databaseURL = "pricewaze.db"
		}
		return NewSQLite(databaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
