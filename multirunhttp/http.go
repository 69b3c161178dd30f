package multirunhttp

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/BertoldVdb/go-serialline/httplog"
	"github.com/sirupsen/logrus"
)

// MultiRunHTTP is an http.Server that can be registered as a multirun.Runnable
type MultiRunHTTP struct {
	Handler    http.Handler
	Listen     string
	LoggerHTTP *logrus.Entry

	// ShutdownTimeout bounds how long Close waits for open requests, default 5s
	ShutdownTimeout time.Duration

	mutex    sync.Mutex
	server   *http.Server
	listener net.Listener
	closed   bool
}

func (s *MultiRunHTTP) Run() error {
	listener, err := net.Listen("tcp", s.Listen)
	if err != nil {
		return err
	}

	handler := s.Handler
	if s.LoggerHTTP != nil {
		traceHTTP := httplog.HTTPLog{
			Logger:            s.LoggerHTTP,
			CorrelationHeader: "X-Request-ID",
		}
		handler = traceHTTP.Handler(handler)
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		listener.Close()
		return nil
	}
	s.server = server
	s.listener = listener
	s.mutex.Unlock()

	if s.LoggerHTTP != nil {
		s.LoggerHTTP.WithField("address", listener.Addr().String()).Info("HTTP server listening")
	}

	err = server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Addr returns the address the server listens on, or nil if it is not running
func (s *MultiRunHTTP) Addr() net.Addr {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *MultiRunHTTP) Close() error {
	s.mutex.Lock()
	s.closed = true
	server := s.server
	s.mutex.Unlock()

	if server == nil {
		return nil
	}

	timeout := s.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return server.Shutdown(ctx)
}
