package logger

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// ConsoleHook mirrors warnings and worse to stderr so operational problems
// show up in `docker logs` even though the full stream goes to the log file.
type ConsoleHook struct{}

func NewConsoleHook() *ConsoleHook {
	return &ConsoleHook{}
}

func (h *ConsoleHook) Fire(entry *logrus.Entry) error {
	line, err := entry.Logger.Formatter.Format(entry)
	if err != nil {
		return err
	}
	fmt.Fprint(os.Stderr, string(line))
	return nil
}

func (h *ConsoleHook) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
		logrus.WarnLevel,
	}
}
