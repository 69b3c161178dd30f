package main

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/BertoldVdb/go-serialline/httplog"
	"github.com/BertoldVdb/go-serialline/lineport"
)

type status struct {
	ID      string `json:"id"`
	Port    string `json:"port"`
	State   string `json:"state"`
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

// newHandler exposes a channel over HTTP:
//
//	GET  /status  state of the channel as JSON
//	GET  /line    latest unpolled line, 204 when there is none
//	POST /write   sends the request body, one write per line
func newHandler(ch *lineport.Channel) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		s := status{
			ID:      ch.ID(),
			Port:    ch.Config().PortName,
			State:   ch.State().String(),
			Running: ch.Running(),
		}
		if err := ch.Err(); err != nil {
			s.Error = err.Error()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&s)
	})

	mux.HandleFunc("GET /line", func(w http.ResponseWriter, r *http.Request) {
		line, ok := ch.PollLine()
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, line)
	})

	mux.HandleFunc("POST /write", func(w http.ResponseWriter, r *http.Request) {
		log := httplog.LoggerFromRequest(r)

		body, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		text := strings.TrimRight(string(body), "\r\n")
		for _, line := range strings.Split(text, "\n") {
			if err := ch.Write(strings.TrimRight(line, "\r")); err != nil {
				log.WithError(err).Warn("Write from HTTP failed")
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}
