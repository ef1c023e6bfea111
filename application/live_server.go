package application

import (
	"net/http"
	"net/http/httptest"

	"testbed/logging"
)

// LiveServer serves an application over a real socket for browser tests.
type LiveServer struct {
	srv *httptest.Server
}

// StartLiveServer starts serving handler on a loopback port.
func StartLiveServer(handler http.Handler) *LiveServer {
	srv := httptest.NewServer(handler)
	logging.Logger.Debug("Live server started", "url", srv.URL)
	return &LiveServer{srv: srv}
}

// URL returns the server's base URL with a trailing slash.
func (s *LiveServer) URL() string {
	return s.srv.URL + "/"
}

// Client returns an HTTP client configured for the server.
func (s *LiveServer) Client() *http.Client {
	return s.srv.Client()
}

// Close stops the server.
func (s *LiveServer) Close() {
	s.srv.Close()
}
