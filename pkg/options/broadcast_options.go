package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*BroadcastOptions)(nil)

// BroadcastOptions configures the WebSocket fan-out to kitchen stations.
type BroadcastOptions struct {
	// SendBuffer is the per-client queue depth on top of the initial replay.
	SendBuffer int `json:"send-buffer" mapstructure:"send-buffer"`
	// WriteTimeout bounds a single frame write to a client.
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	// PingInterval is how often idle connections are pinged.
	PingInterval time.Duration `json:"ping-interval" mapstructure:"ping-interval"`
	// MaxMessageSize caps inbound command frames.
	MaxMessageSize int64 `json:"max-message-size" mapstructure:"max-message-size"`
	// AllowedOrigins restricts the Origin header. Empty allows any origin.
	AllowedOrigins []string `json:"allowed-origins" mapstructure:"allowed-origins"`
}

func NewBroadcastOptions() *BroadcastOptions {
	return &BroadcastOptions{
		SendBuffer:     256,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 64 * 1024,
	}
}

func (o *BroadcastOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}
	if o.SendBuffer < 1 {
		errors = append(errors, fmt.Errorf("--broadcast.send-buffer must be at least 1"))
	}
	if o.WriteTimeout <= 0 || o.PingInterval <= 0 {
		errors = append(errors, fmt.Errorf("--broadcast.write-timeout and --broadcast.ping-interval must be positive"))
	}
	if o.MaxMessageSize <= 0 {
		errors = append(errors, fmt.Errorf("--broadcast.max-message-size must be positive"))
	}

	return errors
}

func (o *BroadcastOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.SendBuffer, "broadcast.send-buffer", o.SendBuffer, "Per-client outbound queue depth.")
	fs.DurationVar(&o.WriteTimeout, "broadcast.write-timeout", o.WriteTimeout, "Deadline of a single WebSocket write.")
	fs.DurationVar(&o.PingInterval, "broadcast.ping-interval", o.PingInterval, "Interval of keep-alive pings.")
	fs.Int64Var(&o.MaxMessageSize, "broadcast.max-message-size", o.MaxMessageSize, "Maximum inbound message size in bytes.")
	fs.StringSliceVar(&o.AllowedOrigins, "broadcast.allowed-origins", o.AllowedOrigins, "Allowed WebSocket Origin values (empty allows all).")
}
