package httplog

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type requestObserver struct {
	http.ResponseWriter

	bytes int
	code  int
}

func (s *requestObserver) WriteHeader(code int) {
	s.ResponseWriter.WriteHeader(code)
	s.code = code
}

func (s *requestObserver) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n

	if s.code == 0 {
		s.code = http.StatusOK
	}

	return n, err
}

// HTTPLog is a logging middleware for net/http servers with basic request correlation.
type HTTPLog struct {
	Logger *logrus.Entry

	// CorrelationHeader is read from the request and echoed in the response. A new
	// ID is generated when it is missing.
	CorrelationHeader string
}

type httpLogContextKey int

const (
	contextCorrelationID httpLogContextKey = 1
	contextLogger        httpLogContextKey = 2
)

// Handler wraps next with the logger
func (l *HTTPLog) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		begin := time.Now()

		id := ""
		if len(l.CorrelationHeader) > 0 {
			id = r.Header.Get(l.CorrelationHeader)
		}
		if len(id) == 0 {
			id = uuid.New().String()
		} else if len(id) > 40 {
			id = id[0:40]
		}
		if len(l.CorrelationHeader) > 0 {
			w.Header().Set(l.CorrelationHeader, id)
		}

		var log *logrus.Entry
		if l.Logger != nil {
			log = l.Logger.WithField("request", id)
		}

		ctx := context.WithValue(context.WithValue(r.Context(),
			contextCorrelationID, id),
			contextLogger, log)

		ro := requestObserver{
			ResponseWriter: w,
		}

		next.ServeHTTP(&ro, r.WithContext(ctx))

		if log != nil {
			log.WithFields(logrus.Fields{
				"remote":   r.RemoteAddr,
				"method":   r.Method,
				"uri":      r.URL.RequestURI(),
				"status":   ro.code,
				"bytes":    ro.bytes,
				"duration": time.Since(begin),
			}).Debug("Request completed")
		}
	})
}

// CorrelationIDFromRequest returns the correlation ID associated with a http.Request
func CorrelationIDFromRequest(r *http.Request) string {
	v, ok := r.Context().Value(contextCorrelationID).(string)
	if !ok {
		return "None"
	}
	return v
}

// LoggerFromRequest returns the logger of the request, tagged with its correlation
// ID. Requests that did not pass the middleware get a logger that drops everything.
func LoggerFromRequest(r *http.Request) *logrus.Entry {
	if log, ok := r.Context().Value(contextLogger).(*logrus.Entry); ok && log != nil {
		return log
	}

	discard := logrus.New()
	discard.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(discard)
}
