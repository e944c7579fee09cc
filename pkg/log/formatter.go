package log

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"github.com/gruntwork-io/lz-teardown/internal/errors"
)

const (
	PrettyFormatName = "pretty"
	JSONFormatName   = "json"

	defaultPrettyFormatterTimestampFormat = "15:04:05.000"
)

// AllFormats lists the names accepted by `NewFormatter`.
var AllFormats = []string{PrettyFormatName, JSONFormatName}

// NewFormatter returns the formatter registered under the given name.
func NewFormatter(name string) (logrus.Formatter, error) {
	switch strings.ToLower(name) {
	case PrettyFormatName, "":
		return NewPrettyFormatter(), nil
	case JSONFormatName:
		return NewJSONFormatter(), nil
	}

	return nil, errors.Errorf("invalid log format %q, supported formats: %s", name, strings.Join(AllFormats, ", "))
}

// NewJSONFormatter returns a logrus JSON formatter writing one object per line.
func NewJSONFormatter() *logrus.JSONFormatter {
	return &logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	}
}

// PrettyFormatter implements logrus.Formatter
var _ logrus.Formatter = new(PrettyFormatter)

type PrettyFormatter struct {
	// Timestamp format to use for display when a full timestamp is printed.
	TimestampFormat string

	// Disable the conversion of the log levels to uppercase
	DisableUppercase bool

	// DisableTimestamp allows disabling automatic timestamps in output
	DisableTimestamp bool

	// Force disabling colors. For a TTY colors are enabled by default.
	DisableColors bool

	colorScheme compiledColorScheme
}

// NewPrettyFormatter returns a new PrettyFormatter instance with default values.
func NewPrettyFormatter() *PrettyFormatter {
	return &PrettyFormatter{
		TimestampFormat: defaultPrettyFormatterTimestampFormat,
		DisableColors:   !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()),
		colorScheme:     defaultColorScheme.Compile(),
	}
}

// Format implements logrus.Formatter
func (formatter *PrettyFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	buf := entry.Buffer
	if buf == nil {
		buf = new(bytes.Buffer)
	}

	level := fmt.Sprintf("%-6s ", FromLogrusLevel(entry.Level))

	if !formatter.DisableUppercase {
		level = strings.ToUpper(level)
	}

	var (
		prefix    string
		timestamp string
		fields    = Fields(entry.Data)
	)

	if val, ok := fields[FieldKeyPrefix].(string); ok && val != "" {
		prefix = fmt.Sprintf("[%s] ", val)
	}

	if !formatter.DisableTimestamp && formatter.TimestampFormat != "" {
		timestamp = entry.Time.Format(formatter.TimestampFormat) + " "
	}

	if !formatter.DisableColors {
		level = formatter.colorScheme.LevelColorFunc(FromLogrusLevel(entry.Level))(level)
		prefix = formatter.colorScheme.ColorFunc(PrefixStyle)(prefix)
		timestamp = formatter.colorScheme.ColorFunc(TimestampStyle)(timestamp)
	}

	if _, err := fmt.Fprintf(buf, "%s%s%s%s", timestamp, level, prefix, entry.Message); err != nil {
		return nil, errors.New(err)
	}

	for _, key := range fields.Keys(FieldKeyPrefix) {
		if err := appendKeyValue(buf, key, fields[key]); err != nil {
			return nil, err
		}
	}

	if err := buf.WriteByte('\n'); err != nil {
		return nil, errors.New(err)
	}

	return buf.Bytes(), nil
}

func appendKeyValue(buf *bytes.Buffer, key string, value any) error {
	str, ok := value.(string)
	if !ok {
		if err, isErr := value.(error); isErr {
			str = err.Error()
		} else {
			str = fmt.Sprint(value)
		}
	}

	if strings.ContainsAny(str, " \t=\"") {
		str = fmt.Sprintf("%q", str)
	}

	if _, err := fmt.Fprintf(buf, " %s=%s", key, str); err != nil {
		return errors.New(err)
	}

	return nil
}
