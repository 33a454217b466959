package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/output"
	"github.com/joescharf/board/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store
	engine    *board.Engine

	verbose bool
	actorID string

	buildVersion string
	buildCommit  string
	buildDate    string
)

var rootCmd = &cobra.Command{
	Use:   "board",
	Short: "Sprint board with rank ordering and changelog-driven analytics",
	Long: `board manages a sprint board: projects, ranked work items, sprints,
and reviews. Every mutation is recorded in an append-only changelog,
which powers burndown charts, cumulative flow diagrams, sprint KPIs,
and velocity forecasts reconstructed as of any past date.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&actorID, "actor", "", "Actor id recorded in the changelog")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/board/config.yaml)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("board %s (commit %s, built %s)\n", buildVersion, buildCommit, buildDate)
	},
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("BOARD")
	viper.AutomaticEnv()

	defaultConfigDir, _ := configDirFunc()
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "board.db"))
	viper.SetDefault("port", 8080)
	viper.SetDefault("default_actor", "")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	if actorID == "" {
		actorID = viper.GetString("default_actor")
	}

	// Store and engine initialize lazily so config/version commands run
	// without a db.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getEngine returns the shared lifecycle engine, initializing the store as
// needed.
func getEngine() (*board.Engine, error) {
	if engine != nil {
		return engine, nil
	}
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	engine = board.New(s, nil)
	return engine, nil
}
