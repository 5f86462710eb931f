package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/protex/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve baked maps (baking missing maps on-demand)",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().String("cache-dir", "", "Directory for cached maps (defaults to --output-dir)")
	serveCmd.Flags().String("db", "", "Also serve this texdb file under /db/")

	serveCmd.Flags().Bool("generate-missing", true, "Bake missing maps on-demand and cache them to disk")
	serveCmd.Flags().Bool("disable-cache", false, "Always rebake maps (still writes to disk)")
	serveCmd.Flags().Int("max-concurrent-bakes", runtime.NumCPU(), "Max concurrent bakes (default: number of CPUs)")
	serveCmd.Flags().Duration("bake-timeout", 2*time.Minute, "Timeout per bake")
	serveCmd.Flags().String("cache-control", "no-store", "Cache-Control header for served maps")

	serveCmd.Flags().Int("size", 512, "Map edge length in pixels")
	serveCmd.Flags().String("png-compression", "default", "PNG compression (default, speed, best, none)")
	serveCmd.Flags().Bool("watch", true, "Reload presets when the preset or config file changes")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("serve.addr", "addr")
	mustBind("serve.cache_dir", "cache-dir")
	mustBind("serve.db", "db")
	mustBind("serve.generate_missing", "generate-missing")
	mustBind("serve.disable_cache", "disable-cache")
	mustBind("serve.max_concurrent_bakes", "max-concurrent-bakes")
	mustBind("serve.bake_timeout", "bake-timeout")
	mustBind("serve.cache_control", "cache-control")
	mustBind("serve.size", "size")
	mustBind("serve.png_compression", "png-compression")
	mustBind("serve.watch", "watch")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	addr := viper.GetString("serve.addr")
	cacheDir := viper.GetString("serve.cache_dir")
	if cacheDir == "" {
		cacheDir = viper.GetString("output-dir")
	}
	generateMissing := viper.GetBool("serve.generate_missing")
	maxConc := viper.GetInt("serve.max_concurrent_bakes")

	lib, err := loadLibrary()
	if err != nil {
		return err
	}
	backend, err := noiseBackend()
	if err != nil {
		return err
	}
	src := server.NewLibrarySource(lib)

	od, err := server.NewOnDemandMaps(src, server.OnDemandMapsConfig{
		CacheDir:           cacheDir,
		PNGCompression:     viper.GetString("serve.png_compression"),
		CacheControl:       viper.GetString("serve.cache_control"),
		Backend:            backend,
		Size:               viper.GetInt("serve.size"),
		MaxConcurrentBakes: maxConc,
		BakeTimeout:        viper.GetDuration("serve.bake_timeout"),
		GenerateMissing:    generateMissing,
		DisableCache:       viper.GetBool("serve.disable_cache"),
	}, logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/status", http.StatusFound)
	})

	mux.Handle("/maps/", od.Handler())
	mux.Handle("/sample", withCORS(od.SampleHandler()))
	mux.Handle("/reseed/", od.ReseedHandler())
	mux.Handle("/status", od.StatusHandler())
	mux.Handle("/status/stream", od.StatusStreamHandler())

	if dbPath := viper.GetString("serve.db"); dbPath != "" {
		db, err := server.NewTexDBHandler(server.TexDBConfig{
			Path:         dbPath,
			CacheControl: viper.GetString("serve.cache_control"),
		}, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		mux.Handle("/db/", withCORS(db.Handler()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if viper.GetBool("serve.watch") {
		reload := func(reason string) {
			next, err := loadLibrary()
			if err != nil {
				logger.Error("Preset reload failed; keeping the current library", "reason", reason, "error", err)
				return
			}
			src.Store(next)
			logger.Info("Presets reloaded", "reason", reason, "materials", len(next.Names()))
		}

		if viper.ConfigFileUsed() != "" {
			viper.OnConfigChange(func(e fsnotify.Event) { reload("config " + e.Op.String()) })
			viper.WatchConfig()
		}
		if path := viper.GetString("presets"); path != "" {
			if err := watchFile(ctx, path, func() { reload("presets changed") }); err != nil {
				logger.Warn("Cannot watch preset file", "path", path, "error", err)
			}
		}
	}

	logger.Info("map server listening",
		"addr", addr,
		"cache_dir", cacheDir,
		"generate_missing", generateMissing,
		"max_concurrent_bakes", maxConc,
		"backend", backend,
	)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// watchFile calls onChange whenever path is written or replaced. The parent
// directory is watched so editors that save by rename are picked up.
func watchFile(ctx context.Context, path string, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
					onChange()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("File watcher error", "path", abs, "error", err)
			}
		}
	}()
	return nil
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
