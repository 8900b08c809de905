package app

import (
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/kdsgrill/kdsgrill/pkg/log"
)

// NamedFlagSetOptions is implemented by the top-level options of a binary.
type NamedFlagSetOptions interface {
	// Flags returns the grouped flag sets shown in --help.
	Flags() cliflag.NamedFlagSets

	// Complete fills derived fields after flags and config are loaded.
	Complete() error

	// Validate reports every invalid field at once.
	Validate() error
}

// LoggerOptions is optionally implemented by options that carry log settings.
// When present, the App initializes the process logger before RunFunc.
type LoggerOptions interface {
	LogOptions() *log.Options
}
