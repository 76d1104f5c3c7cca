// Package server exposes a gateway.Gateway over HTTP, with JSON request and
// response bodies:
//
//	POST   /data        append the body (or its "value" property) to the list under "datos"
//	GET    /data/{key}  return the JSON value under key
//	DELETE /data/{key}  remove key
//
// Every response carries permissive CORS headers, and OPTIONS requests to any
// path are answered with 200 and no body.
package server // import "github.com/nicolagi/appendgw/server"

import (
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/nicolagi/appendgw/gateway"
	log "github.com/sirupsen/logrus"
)

type Option func(*options)

type options struct {
	address string
	name    string
	gateway *gateway.Gateway
}

func WithAddress(value string) Option {
	return func(o *options) {
		o.address = value
	}
}

// WithName sets the value of the Server header of all responses.
func WithName(value string) Option {
	return func(o *options) {
		o.name = value
	}
}

// WithGateway sets the gateway requests are served by. It is required.
func WithGateway(value *gateway.Gateway) Option {
	return func(o *options) {
		o.gateway = value
	}
}

type Server struct {
	opts options
	srv  *http.Server

	mu sync.Mutex
	ln net.Listener
}

// New panics if no gateway is given with WithGateway.
func New(opts ...Option) *Server {
	s := &Server{}
	s.opts.address = ":3000"
	s.opts.name = "appendgw"
	for _, o := range opts {
		o(&s.opts)
	}
	if s.opts.gateway == nil {
		panic("server: no gateway, use WithGateway")
	}
	s.srv = &http.Server{
		Handler: s.Handler(),
	}
	return s
}

// Handler returns the routes, wrapped so that every response gets the CORS
// and Server headers.
func (s *Server) Handler() http.Handler {
	h := &handlers{gateway: s.opts.gateway}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /data", h.append)
	mux.HandleFunc("GET /data/{key}", h.fetch)
	mux.HandleFunc("DELETE /data/{key}", h.remove)
	return withHeaders(s.opts.name, mux)
}

func (s *Server) Listen() (addr string, err error) {
	ln, err := net.Listen("tcp", s.opts.address)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	addr = ln.Addr().String()
	return
}

// Serve serves requests, each in its own goroutine, on the listener opened by
// Listen. The function will return (some time after) Shutdown is called.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return errors.New("serve called before listen")
	}
	err := s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown closes the listener and all connections. Requests in flight are
// not waited for.
func (s *Server) Shutdown() error {
	err := s.srv.Close()
	// Serve may not have taken ownership of the listener yet.
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln != nil {
		if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) && err == nil {
			err = cerr
		}
	}
	log.WithField("err", err).Debug("Server closed")
	return err
}
