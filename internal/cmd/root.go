package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/protex/internal/noise"
	"github.com/MeKo-Tech/protex/internal/preset"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "protex",
	Short: "A procedural painted, worn and rusty metal material",
	Long: `Protex evaluates a procedural material of painted metal whose paint wears
off and whose bare metal rusts, all driven by 3D noise in object space.

It bakes the material onto primitive surfaces as diffuse, normal, roughness and
metalness maps, stores them as files or in a texdb database, and serves them
over HTTP with on-demand baking.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("presets", "", "Material preset file (default: built-in presets)")
	rootCmd.PersistentFlags().String("noise", string(noise.BackendSimplex), "Noise backend (simplex, perlin, opensimplex)")
	rootCmd.PersistentFlags().String("output-dir", "./maps", "Output directory for baked maps")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")

	for _, key := range []string{"presets", "noise", "output-dir", "verbose"} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("PROTEX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// loadLibrary reads the configured preset file, or the built-in presets.
func loadLibrary() (*preset.Library, error) {
	path := viper.GetString("presets")
	if path == "" {
		return preset.LoadDefault()
	}
	return preset.LoadFile(path)
}

func noiseBackend() (noise.Backend, error) {
	return noise.ParseBackend(viper.GetString("noise"))
}
