package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	nethttp "net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/meigma/arx"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:      "serve",
		Usage:     "serve an archive read-only over HTTP",
		ArgsUsage: "LOCATION",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "127.0.0.1:8080", Usage: "listen address"},
			&cli.StringFlag{Name: "log-file", Usage: "write request logs to a rotated `FILE` instead of stderr"},
			&cli.IntFlag{Name: "log-max-size", Value: 100, Usage: "rotate the log file after this many megabytes"},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: arx serve [--addr ADDR] LOCATION", exitUsage)
	}

	logOut := c.App.ErrWriter
	if name := c.String("log-file"); name != "" {
		rotated := &lumberjack.Logger{
			Filename:   name,
			MaxSize:    c.Int("log-max-size"),
			MaxBackups: 3,
			Compress:   true,
		}
		defer rotated.Close()
		logOut = rotated
	}
	logger := newLogger(c, logOut, slog.LevelInfo)

	a, err := openWithLogger(c, c.Args().First(), logger)
	if err != nil {
		return err
	}
	defer a.Close()
	logger.Info("archive loaded", "location", c.Args().First(), "id", a.ID(), "entries", a.Len())

	ln, err := net.Listen("tcp", c.String("addr"))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	reg := prometheus.NewRegistry()
	srv := &nethttp.Server{
		Handler:           newServer(a, reg, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving archive", "addr", ln.Addr().String(), "id", a.ID())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// serveMetrics instruments the HTTP API.
type serveMetrics struct {
	requests  *prometheus.CounterVec
	readBytes prometheus.Counter
}

func newServeMetrics(reg prometheus.Registerer) *serveMetrics {
	m := &serveMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arx",
			Subsystem: "serve",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		readBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arx",
			Subsystem: "serve",
			Name:      "content_bytes_total",
			Help:      "File content bytes written to clients.",
		}),
	}
	reg.MustRegister(m.requests, m.readBytes)
	return m
}

// server exposes one archive over HTTP.
type server struct {
	archive *arx.Archive
	router  *gin.Engine
	metrics *serveMetrics
	logger  *slog.Logger
}

func newServer(a *arx.Archive, reg *prometheus.Registry, logger *slog.Logger) *server {
	s := &server{
		archive: a,
		router:  gin.New(),
		metrics: newServeMetrics(reg),
		logger:  logger,
	}
	s.setupMiddleware()
	s.setupRoutes(reg)
	return s
}

func (s *server) Handler() nethttp.Handler {
	return s.router
}

func (s *server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	})
}

func (s *server) setupRoutes(reg *prometheus.Registry) {
	s.router.GET("/fs/*path", s.getFS)
	s.router.GET("/entries/*path", s.getEntry)
	s.router.GET("/-/info", s.getInfo)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
}

type dirListing struct {
	Path    string    `json:"path"`
	Entries []dirItem `json:"entries"`
}

type dirItem struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Mode string `json:"mode"`
	Size int64  `json:"size"`
}

// getFS serves a file's content or a directory listing, following links.
func (s *server) getFS(c *gin.Context) {
	name := arx.NormalizePath(c.Param("path"))
	if name == "" {
		name = "."
	}
	f, err := s.archive.Open(name)
	if err != nil {
		s.fail(c, err)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		s.fail(c, err)
		return
	}
	if dir, ok := f.(fs.ReadDirFile); ok && fi.IsDir() {
		entries, err := dir.ReadDir(-1)
		if err != nil {
			s.fail(c, err)
			return
		}
		listing := dirListing{Path: "/" + arx.NormalizePath(c.Param("path")), Entries: make([]dirItem, 0, len(entries))}
		for _, d := range entries {
			di, err := d.Info()
			if err != nil {
				s.fail(c, err)
				return
			}
			kind := arx.KindFile.String()
			if e, ok := di.Sys().(arx.Entry); ok {
				kind = e.Kind().String()
			}
			listing.Entries = append(listing.Entries, dirItem{
				Name: d.Name(),
				Kind: kind,
				Mode: di.Mode().String(),
				Size: di.Size(),
			})
		}
		c.JSON(nethttp.StatusOK, listing)
		return
	}

	c.DataFromReader(nethttp.StatusOK, fi.Size(), "application/octet-stream", &countingReader{r: f, n: s.metrics.readBytes},
		map[string]string{"Last-Modified": fi.ModTime().UTC().Format(nethttp.TimeFormat)})
}

// getEntry describes the entry at a path without following links.
func (s *server) getEntry(c *gin.Context) {
	e, err := s.archive.Entry(c.Param("path"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, newEntryReport(e))
}

func (s *server) getInfo(c *gin.Context) {
	c.JSON(nethttp.StatusOK, newInfoReport(s.archive))
}

func (s *server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == nethttp.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	errorResponse(c, status, err.Error())
}

// statusFor maps archive and io/fs errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, arx.ErrNotFound):
		return nethttp.StatusNotFound
	case errors.Is(err, fs.ErrClosed), errors.Is(err, arx.ErrClosed):
		return nethttp.StatusServiceUnavailable
	case errors.Is(err, fs.ErrInvalid), errors.Is(err, arx.ErrNotADirectory),
		errors.Is(err, arx.ErrNotADir), errors.Is(err, arx.ErrNotAFile),
		errors.Is(err, arx.ErrNotALink):
		return nethttp.StatusBadRequest
	default:
		return nethttp.StatusInternalServerError
	}
}

func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// countingReader adds the bytes read through it to a counter.
type countingReader struct {
	r io.Reader
	n prometheus.Counter
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n.Add(float64(n))
	return n, err
}
