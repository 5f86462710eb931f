package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/protex/internal/bake"
	"github.com/MeKo-Tech/protex/internal/pipeline"
	"github.com/MeKo-Tech/protex/internal/preset"
	"github.com/MeKo-Tech/protex/internal/surface"
	"github.com/MeKo-Tech/protex/internal/texdb"
	"github.com/MeKo-Tech/protex/internal/worker"
)

var bakeCmd = &cobra.Command{
	Use:   "bake",
	Short: "Bake material maps onto surfaces",
	Long: `Bake every selected material onto every selected surface. Maps go to
{output-dir}/{material}/{surface}_{kind}.{ext}, or into a texdb database with --db.`,
	RunE: runBake,
}

func init() {
	rootCmd.AddCommand(bakeCmd)

	bakeCmd.Flags().StringSliceP("material", "m", nil, "Materials to bake (default: every preset)")
	bakeCmd.Flags().StringSliceP("surface", "s", []string{"sphere"}, "Surfaces to bake onto (sphere, box, cylinder, torus, plane, or all)")
	bakeCmd.Flags().Int("size", 512, "Map edge length in pixels")
	bakeCmd.Flags().IntP("workers", "w", 0, "Number of parallel bakes (default: number of CPUs)")
	bakeCmd.Flags().Bool("progress", true, "Show progress bar")
	bakeCmd.Flags().Bool("allow-failures", false, "Exit successfully even if some bakes fail")
	bakeCmd.Flags().Bool("force", false, "Rebake even if maps exist")

	bakeCmd.Flags().String("format", "png", "Image format (png, tiff)")
	bakeCmd.Flags().String("compression", "default", "Compression (default, speed, best, none)")
	bakeCmd.Flags().Int("depth", 8, "Bits per channel (8, 16)")
	bakeCmd.Flags().Bool("mipmaps", false, "Also write box filtered mip levels")
	bakeCmd.Flags().Int("min-mip", 4, "Smallest mip edge length")
	bakeCmd.Flags().Bool("masks", false, "Also write paint and rust coverage masks")
	bakeCmd.Flags().Float32("soften-masks", 0, "Gaussian blur sigma for written masks")
	bakeCmd.Flags().String("db", "", "Write into this texdb file instead of output-dir")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"bake.material", "material"},
		{"bake.surface", "surface"},
		{"bake.size", "size"},
		{"bake.workers", "workers"},
		{"bake.progress", "progress"},
		{"bake.allow_failures", "allow-failures"},
		{"bake.force", "force"},
		{"bake.format", "format"},
		{"bake.compression", "compression"},
		{"bake.depth", "depth"},
		{"bake.mipmaps", "mipmaps"},
		{"bake.min_mip", "min-mip"},
		{"bake.masks", "masks"},
		{"bake.soften_masks", "soften-masks"},
		{"bake.db", "db"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, bakeCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runBake(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	lib, err := loadLibrary()
	if err != nil {
		return err
	}
	backend, err := noiseBackend()
	if err != nil {
		return err
	}

	materials, err := resolveMaterials(lib, viper.GetStringSlice("bake.material"))
	if err != nil {
		return err
	}
	surfaces, err := resolveSurfaces(viper.GetStringSlice("bake.surface"))
	if err != nil {
		return err
	}

	format, err := bake.ParseFormat(viper.GetString("bake.format"))
	if err != nil {
		return err
	}
	compression, err := bake.ParseCompression(viper.GetString("bake.compression"))
	if err != nil {
		return err
	}
	depth := bake.Depth(viper.GetInt("bake.depth"))
	if depth != bake.Depth8 && depth != bake.Depth16 {
		return fmt.Errorf("invalid depth %d: must be 8 or 16", depth)
	}

	size := viper.GetInt("bake.size")
	workers := viper.GetInt("bake.workers")
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	tasks := worker.Tasks(materials, surfaces, viper.GetBool("bake.force"))
	if workers > len(tasks) {
		workers = len(tasks)
	}

	cfg := pipeline.Config{
		Size:        size,
		Backend:     backend,
		Workers:     max(1, runtime.NumCPU()/workers),
		KeepMasks:   viper.GetBool("bake.masks"),
		SoftenMasks: float32(viper.GetFloat64("bake.soften_masks")),
		Encode:      bake.EncodeOptions{Format: format, Compression: compression},
		Depth:       depth,
		Mipmaps:     viper.GetBool("bake.mipmaps"),
		MinMip:      viper.GetInt("bake.min_mip"),
		OutputDir:   viper.GetString("output-dir"),
	}

	var db *texdb.Writer
	dbPath := viper.GetString("bake.db")
	if dbPath != "" {
		meta := texdb.NewMetadata("protex", string(format), size)
		meta.Backend = string(backend)
		meta.Description = fmt.Sprintf("%d materials on %d surfaces", len(materials), len(surfaces))

		db, err = texdb.New(dbPath, meta)
		if err != nil {
			return fmt.Errorf("failed to create texdb: %w", err)
		}
		cfg.DB = db
		logger.Info("texdb created", "path", dbPath, "run_id", meta.RunID)
	}

	gen, err := pipeline.NewGenerator(pipeline.StaticSource{Lib: lib}, cfg, logger)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return fmt.Errorf("failed to init generator: %w", err)
	}

	logger.Info("Starting bake",
		"materials", materials,
		"surfaces", surfaces,
		"size", size,
		"backend", backend,
		"workers", workers,
		"format", format,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := worker.NewProgress(len(tasks), viper.GetBool("bake.progress"))
	pool := worker.New(worker.Config{
		Workers:    workers,
		Generator:  gen,
		OnProgress: progress.Callback(),
	})

	results := pool.Run(ctx, tasks)
	progress.Done()

	var failedCount int
	for _, r := range results {
		if r.Err != nil {
			failedCount++
			logger.Error("Bake failed", "task", r.Task.String(), "error", r.Err)
			continue
		}
		logger.Debug("Bake finished", "task", r.Task.String(), "path", r.Path, "elapsed", r.Elapsed)
	}

	logger.Info(progress.Summary())

	if db != nil {
		if err := db.Close(); err != nil {
			return fmt.Errorf("failed to finalize texdb: %w", err)
		}
	}

	if failedCount > 0 {
		if viper.GetBool("bake.allow_failures") {
			logger.Warn("Some bakes failed, but continuing due to --allow-failures flag", "failed_count", failedCount)
			return nil
		}
		return fmt.Errorf("%d bakes failed", failedCount)
	}
	return nil
}

// resolveMaterials checks names against lib. No names selects every preset.
func resolveMaterials(lib *preset.Library, names []string) ([]string, error) {
	if len(names) == 0 {
		return lib.Names(), nil
	}
	for _, name := range names {
		if _, err := lib.Lookup(name); err != nil {
			return nil, err
		}
	}
	return names, nil
}

// resolveSurfaces checks surface names; "all" selects every surface.
func resolveSurfaces(names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no surface selected")
	}
	var out []string
	seen := make(map[string]bool)
	for _, name := range names {
		if name == "all" {
			return surface.Names(), nil
		}
		if _, err := surface.ByName(name); err != nil {
			return nil, err
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out, nil
}
