package logrusconfig

import (
	"flag"
	"io"
	"strings"

	prefixed "github.com/BertoldVdb/logrus-prefixed-formatter"
	"github.com/sirupsen/logrus"
)

var loglevel *int
var logformat *string

// InitParam registers the -loglevel and -logformat flags on the default flag set.
// Call it before flag.Parse.
func InitParam() {
	InitParamFlagSet(flag.CommandLine)
}

// InitParamFlagSet registers the logging flags on fs
func InitParamFlagSet(fs *flag.FlagSet) {
	loglevel = fs.Int("loglevel", int(logrus.InfoLevel), "The loglevel to use. Valid values are from 0 to 6. Higher values output more information")
	logformat = fs.String("logformat", "text", "Log output format: text or json")
}

func newFormatter(format string) logrus.Formatter {
	if strings.EqualFold(format, "json") {
		return &logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		}
	}

	customFormatter := new(prefixed.TextFormatter)
	customFormatter.TimestampFormat = "2006-01-02 15:04:05"
	customFormatter.FullTimestamp = true
	customFormatter.PrefixPadding = 20
	customFormatter.SpacePadding = 50
	return customFormatter
}

// GetLogger returns a logger writing to stderr. When InitParam was called the
// command line flags override level.
func GetLogger(level logrus.Level) *logrus.Entry {
	logrus.ErrorKey = "$error"
	logger := logrus.New()
	if loglevel == nil {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logrus.Level(*loglevel))
	}

	format := "text"
	if logformat != nil {
		format = *logformat
	}
	logger.SetFormatter(newFormatter(format))
	return logrus.NewEntry(logger)
}

// GetPrefixedLogger returns GetLogger(level) with the prefix field set, which the
// prefixed formatter prints in front of the message.
func GetPrefixedLogger(level logrus.Level, prefix string) *logrus.Entry {
	return GetLogger(level).WithField("prefix", prefix)
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(logger)
}
