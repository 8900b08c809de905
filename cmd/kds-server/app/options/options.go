package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/kdsgrill/kdsgrill/internal/kds"
	"github.com/kdsgrill/kdsgrill/pkg/app"
	"github.com/kdsgrill/kdsgrill/pkg/log"
	"github.com/kdsgrill/kdsgrill/pkg/options"
)

type ServerOptions struct {
	HttpOptions      *options.HttpOptions      `json:"http" mapstructure:"http"`
	StoreOptions     *options.StoreOptions     `json:"store" mapstructure:"store"`
	CaptureOptions   *options.CaptureOptions   `json:"capture" mapstructure:"capture"`
	OrdersOptions    *options.OrdersOptions    `json:"orders" mapstructure:"orders"`
	BroadcastOptions *options.BroadcastOptions `json:"broadcast" mapstructure:"broadcast"`
	MqttOptions      *options.MqttOptions      `json:"mqtt" mapstructure:"mqtt"`
	S3Options        *options.S3Options        `json:"s3" mapstructure:"s3"`
	Log              *log.Options              `json:"log" mapstructure:"log"`
}

var (
	_ app.NamedFlagSetOptions = (*ServerOptions)(nil)
	_ app.LoggerOptions       = (*ServerOptions)(nil)
)

func NewServerOptions() *ServerOptions {
	o := &ServerOptions{
		HttpOptions:      options.NewHttpOptions(),
		StoreOptions:     options.NewStoreOptions(),
		CaptureOptions:   options.NewCaptureOptions(),
		OrdersOptions:    options.NewOrdersOptions(),
		BroadcastOptions: options.NewBroadcastOptions(),
		MqttOptions:      options.NewMqttOptions(),
		S3Options:        options.NewS3Options(),
		Log:              log.NewOptions(),
	}
	o.Log.Name = "kds-server"

	return o
}

func (o *ServerOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.StoreOptions.AddFlags(fss.FlagSet("store"))
	o.CaptureOptions.AddFlags(fss.FlagSet("capture"))
	o.OrdersOptions.AddFlags(fss.FlagSet("orders"))
	o.BroadcastOptions.AddFlags(fss.FlagSet("broadcast"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *ServerOptions) Complete() error {
	return nil
}

func (o *ServerOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.StoreOptions.Validate()...)
	errs = append(errs, o.CaptureOptions.Validate()...)
	errs = append(errs, o.OrdersOptions.Validate()...)
	errs = append(errs, o.BroadcastOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.S3Options.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *ServerOptions) LogOptions() *log.Options {
	return o.Log
}

func (o *ServerOptions) Config() (*kds.Config, error) {
	return &kds.Config{
		HttpOptions:      o.HttpOptions,
		StoreOptions:     o.StoreOptions,
		CaptureOptions:   o.CaptureOptions,
		OrdersOptions:    o.OrdersOptions,
		BroadcastOptions: o.BroadcastOptions,
		MqttOptions:      o.MqttOptions,
		S3Options:        o.S3Options,
	}, nil
}
