// Package server serves the built assets over HTTP.
//
// Files are looked up in an ordered list of base directories, first match wins, so the
// development server can serve compiled outputs from the temporary directory on top of the
// application sources.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OpsPrefix is the path prefix of the operational endpoints.
const OpsPrefix = "/_assetpipe/"

const shutdownTimeout = 5 * time.Second

var ErrNoBase = errors.New("at least one base directory is required")

// Options configures a Server.
type Options struct {
	Addr string
	// Bases are searched in order for every request.
	Bases []string
	// Listing, when set, is the directory whose listings are served, whatever the order of Bases.
	Listing string
	Logger  *slog.Logger
	// Gatherer exposes metrics on /_assetpipe/metrics when not nil.
	Gatherer prometheus.Gatherer
}

// Server is a static file server over several base directories.
type Server struct {
	opts     Options
	srv      *http.Server
	listener net.Listener
	done     chan error
}

// New creates a server. It does not listen until Start is called.
func New(opts Options) (*Server, error) {
	if len(opts.Bases) == 0 {
		return nil, ErrNoBase
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{opts: opts, done: make(chan error, 1)}
	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(OpsPrefix+"healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if s.opts.Gatherer != nil {
		mux.Handle(OpsPrefix+"metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}

	mux.Handle("/", http.FileServer(overlay(s.opts.Bases, s.opts.Listing)))

	return Chain(Recovery(s.opts.Logger), Logging(s.opts.Logger))(mux)
}

// Start listens on the configured address and serves in the background until ctx is done.
// Listening errors are returned immediately.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return errors.Wrapf(err, "unable to listen on %s", s.opts.Addr)
	}

	s.listener = ln

	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}

		s.done <- err
		close(s.done)
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := s.srv.Shutdown(shutdownCtx)
		if err != nil {
			s.opts.Logger.Error("unable to shutdown server", "error", err)
		}
	}()

	s.opts.Logger.Info("serving", "addr", ln.Addr().String(), "bases", s.opts.Bases)

	return nil
}

// Addr returns the address the server listens on, once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.opts.Addr
	}

	return s.listener.Addr().String()
}

// Wait blocks until the server stops and returns its serving error, if any.
func (s *Server) Wait() error {
	return <-s.done
}

// overlayFS opens names from the first directory that has them. Directories are opened
// from listing first when it is set.
type overlayFS struct {
	dirs    []http.Dir
	listing http.Dir
}

func overlay(bases []string, listing string) overlayFS {
	o := overlayFS{dirs: make([]http.Dir, len(bases))}
	for i, base := range bases {
		o.dirs[i] = http.Dir(filepath.Clean(base))
	}

	if listing != "" {
		o.listing = http.Dir(filepath.Clean(listing))
	}

	return o
}

func (o overlayFS) Open(name string) (http.File, error) {
	if o.listing != "" {
		f, err := o.listing.Open(name)
		if err == nil {
			info, statErr := f.Stat()
			if statErr == nil && info.IsDir() {
				return f, nil
			}

			f.Close()
		}
	}

	var firstErr error

	for _, dir := range o.dirs {
		f, err := dir.Open(name)
		if err == nil {
			return f, nil
		}

		if firstErr == nil || !errors.Is(err, os.ErrNotExist) {
			firstErr = err
		}
	}

	return nil, firstErr
}
