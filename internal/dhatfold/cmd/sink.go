package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/pprof/driver"
	"github.com/google/pprof/profile"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yandex/dhatfold/pkg/atomicfs"
	"github.com/yandex/dhatfold/pkg/xlog"
)

////////////////////////////////////////////////////////////////////////////////

type ProfileSink interface {
	Store(ctx context.Context, profile []byte) error
}

////////////////////////////////////////////////////////////////////////////////

func MakeWriterSink(log xlog.Logger, w io.Writer) ProfileSink {
	return &WriterProfileSink{log, w}
}

func MakeFileSink(log xlog.Logger, fs afero.Fs, path string) ProfileSink {
	return &FileProfileSink{log, fs, path}
}

func MakeHTTPSink(log xlog.Logger, address string, contentType string, browser bool) ProfileSink {
	return &HTTPProfileSink{log: log, bindAddress: address, contentType: contentType, wantBrowser: browser}
}

func MakePProfSink(log xlog.Logger, address string, browser bool) ProfileSink {
	return &PProfProfileSink{&HTTPProfileSink{log: log, bindAddress: address, wantBrowser: browser}}
}

////////////////////////////////////////////////////////////////////////////////

type WriterProfileSink struct {
	log xlog.Logger
	w   io.Writer
}

func (s *WriterProfileSink) Store(ctx context.Context, profile []byte) error {
	s.log.Debug(ctx, "Writing profile to stdout", zap.Int("bytes", len(profile)))
	_, err := s.w.Write(profile)
	return err
}

////////////////////////////////////////////////////////////////////////////////

type FileProfileSink struct {
	log  xlog.Logger
	fs   afero.Fs
	path string
}

func (s *FileProfileSink) Store(ctx context.Context, profile []byte) error {
	s.log.Info(ctx, "Writing profile",
		zap.String("path", s.path),
		zap.String("size", humanize.Bytes(uint64(len(profile)))),
	)
	return atomicfs.WriteFile(s.fs, s.path, profile)
}

////////////////////////////////////////////////////////////////////////////////

type HTTPProfileSink struct {
	log               xlog.Logger
	bindAddress       string
	resolvableAddress string
	listener          net.Listener
	contentType       string
	wantBrowser       bool
}

func (s *HTTPProfileSink) openInBrowser(ctx context.Context) error {
	browserVariants := []string{"xdg-open", "open"}
	if browser, ok := os.LookupEnv("BROWSER"); ok {
		browserVariants = append([]string{browser}, browserVariants...)
	}

	var errs []error
	for _, browser := range browserVariants {
		s.log.Info(ctx, "Trying to open browser",
			zap.String("binary", browser),
			zap.String("address", s.resolvableAddress),
		)
		cmd := exec.CommandContext(ctx, browser, s.resolvableAddress)

		err := cmd.Start()
		if err != nil {
			if !errors.Is(err, exec.ErrNotFound) {
				errs = append(errs, err)
			}
			continue
		}

		err = cmd.Wait()
		if err != nil {
			s.log.Warn(ctx, "Failed to open browser", zap.Error(err))
			errs = append(errs, err)
			continue
		}
		return nil
	}

	if len(errs) > 0 {
		s.log.Warn(ctx, "Failed to open browser", zap.Error(errors.Join(errs...)))
	} else {
		s.log.Warn(ctx, "Failed to open browser: no valid browser found")
	}
	return nil
}

func (s *HTTPProfileSink) Store(ctx context.Context, profile []byte) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.log.Info(ctx, "Got request", zap.Stringer("url", r.URL))
		if s.contentType != "" {
			w.Header().Set("Content-Type", s.contentType)
		}
		_, _ = w.Write(profile)
	})
	return s.serve(ctx, mux)
}

func (s *HTTPProfileSink) listen() error {
	if s.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.bindAddress)
	if err != nil {
		return err
	}

	addr := ln.Addr().String()
	hostname, ok := getResolvableSelfHostname()
	if ok {
		addr = strings.ReplaceAll(addr, "[::]", hostname)
	}
	if !strings.HasPrefix(addr, "http") {
		addr = "http://" + addr
	}

	s.listener = ln
	s.resolvableAddress = addr
	return nil
}

// serve blocks until ctx is cancelled.
func (s *HTTPProfileSink) serve(ctx context.Context, handler http.Handler) error {
	if err := s.listen(); err != nil {
		return err
	}
	ln := s.listener

	s.log.Info(ctx, "Starting http server", zap.String("address", s.resolvableAddress))

	srv := http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		s.log.Info(ctx, "Stopping http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if s.wantBrowser {
		g.Go(func() error {
			return s.openInBrowser(ctx)
		})
	}
	return g.Wait()
}

func getResolvableSelfHostname() (string, bool) {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "", false
	}

	// Hostnames reported by the OS are not always resolvable.
	ips, err := net.LookupIP(hostname)
	if err != nil || len(ips) < 1 {
		return "", false
	}

	return hostname, true
}

////////////////////////////////////////////////////////////////////////////////

// PProfProfileSink serves the pprof web UI for a serialized pprof profile.
type PProfProfileSink struct {
	http *HTTPProfileSink
}

func (s *PProfProfileSink) Store(ctx context.Context, data []byte) error {
	mux := http.NewServeMux()

	server := func(args *driver.HTTPServerArgs) error {
		for k, v := range args.Handlers {
			mux.Handle(k, v)
		}
		return nil
	}

	options := &driver.Options{
		HTTPServer: server,
		Fetch:      &pprofProfileFetcher{data},
		UI:         &pprofUI{ctx, s.http.log.WithName("pprof")},
		Flagset:    baseFlags(),
	}

	err := driver.PProf(options)
	if err != nil {
		return fmt.Errorf("failed to start pprof web UI: %w", err)
	}

	return s.http.serve(ctx, mux)
}

type pprofProfileFetcher struct {
	profile []byte
}

func (p *pprofProfileFetcher) Fetch(src string, duration, timeout time.Duration) (*profile.Profile, string, error) {
	// An empty source keeps pprof from saving a copy under $PPROF_TMPDIR.
	res, err := profile.Parse(bytes.NewReader(p.profile))
	return res, "", err
}

////////////////////////////////////////////////////////////////////////////////

// pprofFlags feeds fixed command line options to the pprof driver.
type pprofFlags struct {
	strings map[string]string
	args    []string
}

func (pprofFlags) ExtraUsage() string { return "" }

func (pprofFlags) AddExtraUsage(eu string) {}

func (f pprofFlags) Bool(s string, d bool, c string) *bool {
	return &d
}

func (f pprofFlags) Int(s string, d int, c string) *int {
	return &d
}

func (f pprofFlags) Float64(s string, d float64, c string) *float64 {
	return &d
}

func (f pprofFlags) String(s, d, c string) *string {
	if t, ok := f.strings[s]; ok {
		return &t
	}
	return &d
}

func (f pprofFlags) StringList(s, d, c string) *[]*string {
	return &[]*string{}
}

func (f pprofFlags) Parse(func()) []string {
	return f.args
}

func baseFlags() pprofFlags {
	return pprofFlags{
		strings: map[string]string{
			"http":      "localhost:0",
			"symbolize": "None",
		},
		// The source is never fetched from the network, see pprofProfileFetcher.
		args: []string{"dhat.pb.gz"},
	}
}

////////////////////////////////////////////////////////////////////////////////

type pprofUI struct {
	ctx context.Context
	log xlog.Logger
}

// IsTerminal implements driver.UI
func (u *pprofUI) IsTerminal() bool {
	return false
}

// Print implements driver.UI
func (u *pprofUI) Print(args ...any) {
	u.log.Info(u.ctx, strings.TrimSpace(fmt.Sprint(args...)))
}

// PrintErr implements driver.UI
func (u *pprofUI) PrintErr(args ...any) {
	u.log.Error(u.ctx, strings.TrimSpace(fmt.Sprint(args...)))
}

// ReadLine implements driver.UI
func (*pprofUI) ReadLine(prompt string) (string, error) {
	return "", io.EOF
}

// SetAutoComplete implements driver.UI
func (*pprofUI) SetAutoComplete(func(string) string) {
}

// WantBrowser implements driver.UI
func (u *pprofUI) WantBrowser() bool {
	return false
}

var _ driver.UI = (*pprofUI)(nil)
