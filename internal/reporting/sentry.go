package reporting

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"time"

	"github.com/devDariush/germanminer-go/internal/logging"
	"github.com/getsentry/sentry-go"
)

var uuidRx = regexp.MustCompile(`[0-9a-f]{8}-?([0-9a-f]{4}-?){3}[0-9a-f]{12}`)
var keyRx = regexp.MustCompile(`([?&]key=)[^&\s]*`)

func sanitizeError(err string) string {
	err = uuidRx.ReplaceAllString(err, "<uuid>")
	err = keyRx.ReplaceAllString(err, "${1}<key>")
	return err
}

// Report sends the error to Sentry when a hub is available. Without an
// initialized Sentry client this is a no-op, so library consumers who don't
// use Sentry pay nothing.
func Report(ctx context.Context, err error, extras ...map[string]string) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub == nil || hub.Client() == nil {
		return
	}

	if err == nil {
		err = errors.New("No error provided")
	}

	logging.FromContext(ctx).Error(
		"Reporting error to Sentry",
		slog.String("error", err.Error()),
		slog.Any("extras", extras),
	)

	hub.WithScope(func(scope *sentry.Scope) {
		for _, extra := range extras {
			if extra == nil {
				continue
			}
			for key, value := range extra {
				scope.SetExtra(key, value)
			}
		}

		scope.SetFingerprint([]string{"{{ default }}", sanitizeError(err.Error())})
		hub.CaptureException(err)
	})
}

// InitSentry configures the global Sentry client. The returned flush function
// should be deferred by the caller.
func InitSentry(sentryDSN string) (func(), error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn: sentryDSN,
	})
	if err != nil {
		return nil, err
	}

	flush := func() {
		sentry.Flush(5 * time.Second)
	}

	return flush, nil
}
