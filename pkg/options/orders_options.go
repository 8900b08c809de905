package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*OrdersOptions)(nil)

// OrdersOptions configures order defaults and lifecycle policy.
type OrdersOptions struct {
	// DefaultDuration is the cooking budget given to new and requeued orders.
	DefaultDuration time.Duration `json:"default-duration" mapstructure:"default-duration"`
	// StrictTransitions rejects status changes outside NEW->COOKING->ALMOST_DONE->READY.
	StrictTransitions bool `json:"strict-transitions" mapstructure:"strict-transitions"`
	// Timezone used for the HH:MM start label and daily reports. Empty means local.
	Timezone string `json:"timezone" mapstructure:"timezone"`
}

func NewOrdersOptions() *OrdersOptions {
	return &OrdersOptions{
		DefaultDuration: 15 * time.Minute,
	}
}

func (o *OrdersOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}
	if o.DefaultDuration < time.Second {
		errors = append(errors, fmt.Errorf("--orders.default-duration must be at least 1s"))
	}
	if _, err := o.Location(); err != nil {
		errors = append(errors, fmt.Errorf("--orders.timezone: %w", err))
	}

	return errors
}

// Location resolves Timezone.
func (o *OrdersOptions) Location() (*time.Location, error) {
	if o.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(o.Timezone)
}

func (o *OrdersOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.DefaultDuration, "orders.default-duration", o.DefaultDuration, "Cooking budget of new and requeued orders.")
	fs.BoolVar(&o.StrictTransitions, "orders.strict-transitions", o.StrictTransitions, "Reject out-of-order status changes.")
	fs.StringVar(&o.Timezone, "orders.timezone", o.Timezone, "IANA timezone for start labels and reports (default local).")
}
