package notifier

import (
	"log/slog"
	"strings"

	"github.com/avirj/libra/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes run summaries to the given logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each summary via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs each line of the summary. Returns nil (logging does not fail).
func (n *LogNotifier) Notify(summary string) error {
	for _, line := range strings.Split(summary, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			n.logger.Info(line)
		}
	}
	return nil
}
