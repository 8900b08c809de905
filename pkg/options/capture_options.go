package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*CaptureOptions)(nil)

// CaptureOptions configures the frame sources, the refresh loop and the capture triggers.
type CaptureOptions struct {
	// PrimaryURL is polled for JPEG/PNG snapshots of the ticket rail camera.
	PrimaryURL string `json:"primary-url" mapstructure:"primary-url"`
	// SecondaryURL is tried when the primary camera is unavailable.
	SecondaryURL string `json:"secondary-url" mapstructure:"secondary-url"`
	// FallbackDir holds still images replayed in a loop when no camera answers.
	FallbackDir string `json:"fallback-dir" mapstructure:"fallback-dir"`
	// FallbackImage is used for a capture when the buffer is empty.
	FallbackImage string `json:"fallback-image" mapstructure:"fallback-image"`

	OutputWidth    int     `json:"output-width" mapstructure:"output-width"`
	OutputHeight   int     `json:"output-height" mapstructure:"output-height"`
	AspectRatio    float64 `json:"aspect-ratio" mapstructure:"aspect-ratio"`
	BlackThreshold uint64  `json:"black-threshold" mapstructure:"black-threshold"`

	PollInterval  time.Duration `json:"poll-interval" mapstructure:"poll-interval"`
	RetryDelay    time.Duration `json:"retry-delay" mapstructure:"retry-delay"`
	MaxRetryDelay time.Duration `json:"max-retry-delay" mapstructure:"max-retry-delay"`
	StartupDelay  time.Duration `json:"startup-delay" mapstructure:"startup-delay"`
	SourceTimeout time.Duration `json:"source-timeout" mapstructure:"source-timeout"`

	// Interval triggers a capture periodically. Zero disables the timer.
	Interval time.Duration `json:"interval" mapstructure:"interval"`
	// OperatorConsole reads 's' (capture) and 'q' (quit) from stdin.
	OperatorConsole bool `json:"operator-console" mapstructure:"operator-console"`
	// Signal enables SIGUSR1 as a capture trigger.
	Signal bool `json:"signal" mapstructure:"signal"`
	// MaxConcurrent bounds in-flight captures; extra triggers are dropped.
	MaxConcurrent int `json:"max-concurrent" mapstructure:"max-concurrent"`
}

func NewCaptureOptions() *CaptureOptions {
	return &CaptureOptions{
		FallbackDir:    "",
		FallbackImage:  "sample_comanda_fallback.png",
		OutputWidth:    420,
		OutputHeight:   480,
		AspectRatio:    7.0 / 8.0,
		BlackThreshold: 1000,
		PollInterval:   33 * time.Millisecond,
		RetryDelay:     100 * time.Millisecond,
		MaxRetryDelay:  5 * time.Second,
		StartupDelay:   2 * time.Second,
		SourceTimeout:  3 * time.Second,
		Interval:       0,
		Signal:         true,
		MaxConcurrent:  4,
	}
}

func (o *CaptureOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}
	if o.OutputWidth <= 0 || o.OutputHeight <= 0 {
		errors = append(errors, fmt.Errorf("--capture.output-width and --capture.output-height must be positive"))
	}
	if o.AspectRatio <= 0 {
		errors = append(errors, fmt.Errorf("--capture.aspect-ratio must be positive"))
	}
	if o.PollInterval <= 0 {
		errors = append(errors, fmt.Errorf("--capture.poll-interval must be positive"))
	}
	if o.RetryDelay <= 0 || o.MaxRetryDelay < o.RetryDelay {
		errors = append(errors, fmt.Errorf("--capture.retry-delay must be positive and not exceed --capture.max-retry-delay"))
	}
	if o.Interval < 0 {
		errors = append(errors, fmt.Errorf("--capture.interval must not be negative"))
	}
	if o.MaxConcurrent < 1 {
		errors = append(errors, fmt.Errorf("--capture.max-concurrent must be at least 1"))
	}

	return errors
}

func (o *CaptureOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.PrimaryURL, "capture.primary-url", o.PrimaryURL, "Snapshot URL of the primary ticket camera.")
	fs.StringVar(&o.SecondaryURL, "capture.secondary-url", o.SecondaryURL, "Snapshot URL of the secondary ticket camera.")
	fs.StringVar(&o.FallbackDir, "capture.fallback-dir", o.FallbackDir, "Directory of images replayed when no camera is reachable.")
	fs.StringVar(&o.FallbackImage, "capture.fallback-image", o.FallbackImage, "Static image used when no live frame is buffered.")

	fs.IntVar(&o.OutputWidth, "capture.output-width", o.OutputWidth, "Width of the normalized ticket image.")
	fs.IntVar(&o.OutputHeight, "capture.output-height", o.OutputHeight, "Height of the normalized ticket image.")
	fs.Float64Var(&o.AspectRatio, "capture.aspect-ratio", o.AspectRatio, "Width/height ratio of the center crop.")
	fs.Uint64Var(&o.BlackThreshold, "capture.black-threshold", o.BlackThreshold, "Frames whose RGB sum is at or below this are discarded.")

	fs.DurationVar(&o.PollInterval, "capture.poll-interval", o.PollInterval, "Delay between frame reads.")
	fs.DurationVar(&o.RetryDelay, "capture.retry-delay", o.RetryDelay, "Initial delay after a failed frame read.")
	fs.DurationVar(&o.MaxRetryDelay, "capture.max-retry-delay", o.MaxRetryDelay, "Upper bound of the retry backoff.")
	fs.DurationVar(&o.StartupDelay, "capture.startup-delay", o.StartupDelay, "Camera warm-up delay before the first read.")
	fs.DurationVar(&o.SourceTimeout, "capture.source-timeout", o.SourceTimeout, "Timeout of a single camera snapshot request.")

	fs.DurationVar(&o.Interval, "capture.interval", o.Interval, "Capture a ticket periodically (0 disables).")
	fs.BoolVar(&o.OperatorConsole, "capture.operator-console", o.OperatorConsole, "Read s/q keystrokes from stdin.")
	fs.BoolVar(&o.Signal, "capture.signal", o.Signal, "Capture a ticket on SIGUSR1.")
	fs.IntVar(&o.MaxConcurrent, "capture.max-concurrent", o.MaxConcurrent, "Maximum captures in flight; excess triggers are dropped.")
}
