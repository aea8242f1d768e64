// Package log provides job/stream-scoped structured logging, following the
// teacher's logfmt-over-go-kit pattern with a per-ID logger cache.
package log

import (
	"net/url"
	"os"
	"strings"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/patrickmn/go-cache"
)

var loggerCache *cache.Cache
var defaultLoggerCacheExpiry = 6 * time.Hour

func init() {
	loggerCache = cache.New(defaultLoggerCacheExpiry, 10*time.Minute)
}

// AddContext permanently attaches key-values to every future log line for
// this ID (a job ID, stream ID, or session ID depending on the caller).
func AddContext(id string, keyvals ...interface{}) {
	logger := kitlog.With(getLogger(id), redactKeyvals(keyvals...)...)
	if err := loggerCache.Replace(id, logger, defaultLoggerCacheExpiry); err != nil {
		_ = logger.Log("msg", "error replacing logger in cache")
	}
}

// Log emits a structured line scoped to id (job/stream/session).
func Log(id string, message string, keyvals ...interface{}) {
	_ = kitlog.With(getLogger(id), "msg", message).Log(redactKeyvals(keyvals...)...)
}

// LogNoID logs without a scoping identifier. Use sparingly — prefer Log with
// whatever job/stream/session ID is in scope.
func LogNoID(message string, keyvals ...interface{}) {
	_ = kitlog.With(newLogger(), "msg", message).Log(redactKeyvals(keyvals...)...)
}

// LogError logs a message plus an error, scoped to id.
func LogError(id string, message string, err error, keyvals ...interface{}) {
	msgLogger := kitlog.With(getLogger(id), "msg", message)
	errLogger := kitlog.With(msgLogger, "err", err.Error())
	_ = errLogger.Log(redactKeyvals(keyvals...)...)
}

func getLogger(id string) kitlog.Logger {
	if logger, found := loggerCache.Get(id); found {
		return logger.(kitlog.Logger)
	}
	l := kitlog.With(newLogger(), "id", id)
	if err := loggerCache.Add(id, l, defaultLoggerCacheExpiry); err != nil {
		_ = l.Log("msg", "error adding logger to cache", "id", id, "err", err.Error())
	}
	return l
}

var logDestination = os.Stderr

func newLogger() kitlog.Logger {
	l := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(logDestination))
	return kitlog.With(l, "ts", kitlog.DefaultTimestampUTC)
}

// redactKeyvals strips userinfo from http(s)/s3 URL strings and from any
// url.URL or *url.URL value before it reaches a log line. Query strings are
// kept as they are.
func redactKeyvals(keyvals ...interface{}) []interface{} {
	var res []interface{}
	for i := range keyvals {
		if i%2 == 1 {
			k, v := keyvals[i-1], keyvals[i]
			res = append(res, k)
			switch s := v.(type) {
			case string:
				res = append(res, RedactURL(s))
			case url.URL:
				s.User = nil
				res = append(res, s.String())
			case *url.URL:
				if s != nil {
					c := *s
					c.User = nil
					res = append(res, c.String())
				}
			default:
				res = append(res, v)
			}
		}
	}
	return res
}

// RedactURL strips userinfo from http(s)/s3 URLs; other strings pass through.
func RedactURL(str string) string {
	lower := strings.ToLower(str)
	if !strings.HasPrefix(lower, "http") && !strings.HasPrefix(lower, "s3") {
		return str
	}
	u, err := url.Parse(str)
	if err != nil {
		return "REDACTED"
	}
	u.User = nil
	return u.String()
}
