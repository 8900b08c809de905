package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

const (
	StoreDriverSQLite = "sqlite"
	StoreDriverMemory = "memory"
)

var _ IOptions = (*StoreOptions)(nil)

// StoreOptions selects the order store backend.
type StoreOptions struct {
	Driver string `json:"driver" mapstructure:"driver"`

	// DSN is the SQLite file path (or any glebarez/sqlite DSN). Ignored by the memory driver.
	DSN string `json:"dsn" mapstructure:"dsn"`

	// LogQueries enables gorm statement logging at debug level.
	LogQueries bool `json:"log-queries" mapstructure:"log-queries"`
}

func NewStoreOptions() *StoreOptions {
	return &StoreOptions{
		Driver: StoreDriverSQLite,
		DSN:    "orders.db",
	}
}

func (o *StoreOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}
	switch o.Driver {
	case StoreDriverMemory:
	case StoreDriverSQLite:
		if o.DSN == "" {
			errors = append(errors, fmt.Errorf("--store.dsn is required for the %s driver", o.Driver))
		}
	default:
		errors = append(errors, fmt.Errorf("--store.driver must be %q or %q, got %q", StoreDriverSQLite, StoreDriverMemory, o.Driver))
	}

	return errors
}

func (o *StoreOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Driver, "store.driver", o.Driver, "Order store backend (sqlite or memory).")
	fs.StringVar(&o.DSN, "store.dsn", o.DSN, "SQLite database file or DSN.")
	fs.BoolVar(&o.LogQueries, "store.log-queries", o.LogQueries, "Log every SQL statement at debug level.")
}
