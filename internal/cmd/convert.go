package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/protex/internal/bake"
	"github.com/MeKo-Tech/protex/internal/texdb"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a folder of baked maps to a texdb database",
	Long: `Convert maps baked into {input-dir}/{material}/.../{surface}_{kind}[_mip{n}].{ext}
into a texdb database.`,
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().String("input-dir", "./maps", "Input directory containing baked maps")
	convertCmd.Flags().StringP("output", "o", "", "Output texdb file path (required)")
	convertCmd.Flags().String("name", "protex", "Database name")
	convertCmd.Flags().String("description", "Baked procedural material maps", "Database description")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"convert.input_dir", "input-dir"},
		{"convert.output", "output"},
		{"convert.name", "name"},
		{"convert.description", "description"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, convertCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runConvert(cmd *cobra.Command, args []string) error {
	inputDir := viper.GetString("convert.input_dir")
	outputFile := viper.GetString("convert.output")

	if logger == nil {
		initLogging()
	}

	if outputFile == "" {
		return fmt.Errorf("--output is required")
	}
	if _, err := os.Stat(inputDir); os.IsNotExist(err) {
		return fmt.Errorf("input directory does not exist: %s", inputDir)
	}

	logger.Info("Converting baked maps to texdb", "input_dir", inputDir, "output", outputFile)

	n, err := convertFolder(inputDir, outputFile, viper.GetString("convert.name"), viper.GetString("convert.description"))
	if err != nil {
		return err
	}

	logger.Info("Conversion complete", "output", outputFile, "maps", n)
	return nil
}

type mapFile struct {
	key    texdb.MapKey
	format bake.Format
	path   string
}

var mapFilePattern = regexp.MustCompile(`^([a-z0-9-]+)_([a-z]+)(?:_mip(\d+))?\.(png|tiff?)$`)

// scanMapsDirectory finds baked maps below dir. The first path element
// below dir names the material.
func scanMapsDirectory(dir string) ([]mapFile, error) {
	var files []mapFile

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		matches := mapFilePattern.FindStringSubmatch(filepath.Base(path))
		if matches == nil {
			return nil
		}
		kind, err := bake.ParseMapKind(matches[2])
		if err != nil {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 2 {
			return nil
		}

		level := 0
		if matches[3] != "" {
			level, _ = strconv.Atoi(matches[3])
		}
		format, err := bake.ParseFormat(matches[4])
		if err != nil {
			return err
		}

		files = append(files, mapFile{
			key:    texdb.MapKey{Material: parts[0], Surface: matches[1], Kind: string(kind), Level: level},
			format: format,
			path:   path,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, nil
}

// convertFolder stores every map found below inputDir in a new texdb file
// and returns the number of maps written. All maps must share one format.
func convertFolder(inputDir, outputFile, name, description string) (int, error) {
	files, err := scanMapsDirectory(inputDir)
	if err != nil {
		return 0, fmt.Errorf("failed to scan maps directory: %w", err)
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no maps found in %s", inputDir)
	}

	format := files[0].format
	size := 0
	for _, f := range files {
		if f.format != format {
			return 0, fmt.Errorf("mixed formats %s and %s in %s", format, f.format, inputDir)
		}
		if f.key.Level == 0 && size == 0 {
			img, err := bake.LoadMap(f.path)
			if err != nil {
				return 0, err
			}
			size = img.Bounds().Dx()
		}
	}

	meta := texdb.NewMetadata(name, string(format), size)
	meta.Description = description
	writer, err := texdb.New(outputFile, meta)
	if err != nil {
		return 0, fmt.Errorf("failed to create texdb writer: %w", err)
	}

	written := 0
	for i, f := range files {
		data, err := os.ReadFile(f.path)
		if err != nil {
			logger.Error("Failed to read map", "path", f.path, "error", err)
			continue
		}
		if err := writer.WriteMap(f.key, data); err != nil {
			logger.Error("Failed to write map", "key", f.key.String(), "error", err)
			continue
		}
		written++

		if (i+1)%100 == 0 {
			logger.Info("Progress", "converted", i+1, "total", len(files))
		}
	}

	if err := writer.Close(); err != nil {
		return written, fmt.Errorf("failed to finalize texdb: %w", err)
	}
	return written, nil
}
