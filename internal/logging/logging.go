// Package logging centralizes the station's structured logger construction.
// Grounded on core/wallet.go's SetWalletLogger/globalLogger convention: each
// component takes an explicit *logrus.Entry at construction time instead of
// reaching for a package-global, with New providing the shared default
// logger.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger at the given level. The component argument is
// not applied to the logger; Component tags entries per subsystem. Output
// defaults to stderr so stdout stays free for CLI output.
func New(component string, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(level)
	l.SetFormatter(&logrus.JSONFormatter{})
	return l
}

// Component returns a field-scoped entry for a subsystem, so every log line
// it emits is tagged with which component produced it.
func Component(l *logrus.Logger, name string) *logrus.Entry {
	return l.WithField("component", name)
}

// ParseLevel is a thin wrapper used by the cmd entrypoints so the logging package remains
// the single place that understands logrus's level strings.
func ParseLevel(s string) (logrus.Level, error) {
	return logrus.ParseLevel(s)
}
