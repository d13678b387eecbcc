// Package profiler records CPU and heap profiles of a command run and
// optionally serves pprof over HTTP for long-running commands.
package profiler

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	httppprof "net/http/pprof"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/JNZader/codingrules/internal/logger"
	"github.com/JNZader/codingrules/internal/metrics"
)

// Options selects what to profile. Empty fields are disabled.
type Options struct {
	CPUFile  string
	HeapFile string
	// Addr serves /debug/pprof/ when set, e.g. "localhost:6060"
	Addr string
}

// Enabled reports whether any profiling was requested.
func (o Options) Enabled() bool {
	return o.CPUFile != "" || o.HeapFile != "" || o.Addr != ""
}

// Session is a running profile collection.
type Session struct {
	opts    Options
	cpu     *os.File
	srv     *http.Server
	addr    string
	started time.Time
	log     *logger.Logger
}

// Start begins CPU profiling and starts the pprof listener as requested.
func Start(opts Options, log *logger.Logger) (*Session, error) {
	if log == nil {
		log = logger.Default()
	}
	s := &Session{opts: opts, started: time.Now(), log: log.WithPrefix("profiler")}

	if opts.CPUFile != "" {
		f, err := os.Create(opts.CPUFile)
		if err != nil {
			return nil, fmt.Errorf("creating CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("starting CPU profile: %w", err)
		}
		s.cpu = f
	}

	if opts.Addr != "" {
		ln, err := net.Listen("tcp", opts.Addr)
		if err != nil {
			s.stopCPU()
			return nil, fmt.Errorf("pprof listener: %w", err)
		}
		s.addr = ln.Addr().String()
		s.srv = &http.Server{
			Handler:      pprofMux(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
		}
		go func() {
			if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Warn("pprof server: %v", err)
			}
		}()
		s.log.Info("serving pprof on http://%s/debug/pprof/", s.addr)
	}

	return s, nil
}

func pprofMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", httppprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", httppprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", httppprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", httppprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", httppprof.Trace)
	return mux
}

// Addr returns the pprof listener address, or "".
func (s *Session) Addr() string { return s.addr }

// Stop writes the profiles, closes the listener and records the run
// duration and memory usage into m.
func (s *Session) Stop(m *metrics.Collector) error {
	var errs []error

	if err := s.stopCPU(); err != nil {
		errs = append(errs, err)
	}

	if s.opts.HeapFile != "" {
		runtime.GC()
		if err := writeHeap(s.opts.HeapFile); err != nil {
			errs = append(errs, err)
		}
	}

	if s.srv != nil {
		if err := s.srv.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing pprof server: %w", err))
		}
	}

	if m != nil {
		elapsed := time.Since(s.started)
		mem := ReadMemStats()
		m.Timer(metrics.MetricCommandDuration).Observe(elapsed)
		m.Gauge(metrics.MetricHeapAlloc).Set(float64(mem.HeapAlloc))
		m.Gauge(metrics.MetricHeapSys).Set(float64(mem.HeapSys))
		m.Gauge(metrics.MetricGCRuns).Set(float64(mem.NumGC))
		s.log.Debug("ran %s, %s", elapsed.Round(time.Millisecond), mem)
	}

	return errors.Join(errs...)
}

func (s *Session) stopCPU() error {
	if s.cpu == nil {
		return nil
	}
	pprof.StopCPUProfile()
	err := s.cpu.Close()
	s.cpu = nil
	if err != nil {
		return fmt.Errorf("closing CPU profile: %w", err)
	}
	return nil
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating heap profile: %w", err)
	}
	defer f.Close()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("writing heap profile: %w", err)
	}
	return nil
}

// MemStats is the subset of runtime memory statistics worth reporting.
type MemStats struct {
	HeapAlloc  uint64
	HeapSys    uint64
	TotalAlloc uint64
	NumGC      uint32
}

// ReadMemStats samples the runtime.
func ReadMemStats() MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemStats{HeapAlloc: m.HeapAlloc, HeapSys: m.HeapSys, TotalAlloc: m.TotalAlloc, NumGC: m.NumGC}
}

func (m MemStats) String() string {
	return fmt.Sprintf("heap %s of %s, %s allocated, %d GC runs",
		humanize.IBytes(m.HeapAlloc), humanize.IBytes(m.HeapSys), humanize.IBytes(m.TotalAlloc), m.NumGC)
}
