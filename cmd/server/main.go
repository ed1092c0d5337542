package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"facemirror/internal/bridge"
	"facemirror/internal/config"
	"facemirror/internal/logging"
	"facemirror/internal/profile"
	"facemirror/internal/realtime"
	"facemirror/internal/status"
	"facemirror/internal/view"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is set at build time via -ldflags.
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "facemirror",
	Short: "Facial recognition status service for a smart-mirror dashboard",
	Long: `facemirror bridges the status file written by the external facial
recognition process to the mirror UI: it polls the file, scans the
profile image directory, derives the display state, and pushes typed
notifications to dashboard clients over WebSocket.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the status bridge and WebSocket server",
	RunE:  runServe,
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the face profiles found in the profile directory",
	RunE:  runProfiles,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	cobra.OnInitialize(func() {
		// .env file is optional, don't fail if not found
		_ = godotenv.Load()
	})
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	rootCmd.AddCommand(serveCmd, profilesCmd, versionCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return fmt.Errorf("logging init: %w", err)
	}
	defer logging.Sync()

	store := status.NewStore(cfg.StatusFile)
	if err := store.Seed(); err != nil {
		// Not fatal: the external process may create the file itself.
		logging.Warn("cannot seed status file", zap.String("path", cfg.StatusFile), zap.Error(err))
	}

	lib := profile.NewLibrary(cfg.ProfileDir, cfg.PlaceholderImage)
	if profiles, err := lib.Scan(); err != nil {
		logging.Warn("profile scan failed", zap.String("dir", cfg.ProfileDir), zap.Error(err))
	} else {
		names := make([]string, 0, len(profiles))
		for _, p := range profiles {
			names = append(names, p.Name)
		}
		logging.Info("profiles loaded", zap.Int("count", len(profiles)), zap.Strings("names", names))
	}

	v := view.New(view.Config{
		GracePeriod:  cfg.GracePeriod,
		FadeDuration: cfg.FadeDuration,
		SleepOpacity: cfg.SleepOpacity,
		Dim:          cfg.Dim,
		GuestPrompt:  cfg.GuestPrompt,
	}, nil)

	var srv *realtime.Server
	br := bridge.New(store, lib, func(rec status.Record, imagePath string) {
		v.Apply(rec, imagePath)
		if srv != nil {
			srv.OnStatus(rec, imagePath)
		}
	})

	srv = realtime.New(br, lib, realtime.Config{
		StaticDir:  cfg.StaticDir,
		DebugPanel: cfg.DebugPanel,
	})
	v.Mount(srv)

	br.Start(cfg.PollInterval)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logging.Info("shutting down")
		br.Close()
		httpServer.Close()
	}()

	logging.Info("facemirror server running",
		zap.String("addr", cfg.ListenAddr),
		zap.String("status_file", cfg.StatusFile),
		zap.Duration("poll_interval", cfg.PollInterval))

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func runProfiles(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	lib := profile.NewLibrary(cfg.ProfileDir, cfg.PlaceholderImage)
	profiles, err := lib.Scan()
	if err != nil {
		return err
	}

	if len(profiles) == 0 {
		fmt.Printf("no profiles found in %s (expected <Name>-id.png)\n", cfg.ProfileDir)
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tIMAGE")
	for _, p := range profiles {
		fmt.Fprintf(tw, "%s\t%s\n", p.Name, p.ImagePath)
	}
	return tw.Flush()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
