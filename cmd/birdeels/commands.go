package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"birdeels/internal/compiler/lite"
	"birdeels/internal/config"
	"birdeels/internal/metadata"
	"birdeels/internal/module"
	"birdeels/internal/server"
	"birdeels/internal/store"
	"birdeels/internal/telemetry"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var (
	logFile        string
	verbosity      int
	configPath     string
	workspace      string
	tcpAddr        string
	websocketAddr  string
	metricExporter string
	traceExporter  string
	metricsAddr    string

	rootCmd = &cobra.Command{
		Use:   "birdeels",
		Short: "Language server for the Birdee language",
		Long: `birdeels speaks the Language Server Protocol over stdio (default),
TCP or WebSocket, compiling Birdee modules as they are edited.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version of the program",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "birdeels LSP server version %s\n", server.Version)
		},
	}

	dumpCmd = &cobra.Command{
		Use:   "dump [module]",
		Short: "Print the cached metadata of a module",
		Args:  cobra.ExactArgs(1),
		RunE:  runDump,
	}

	modulesCmd = &cobra.Command{
		Use:   "modules",
		Short: "List the modules recorded for the workspace",
		Args:  cobra.NoArgs,
		RunE:  runModules,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&logFile, "logfile", "", "write logs to this file instead of stderr")
	flags.CountVarP(&verbosity, "verbose", "v", "increase log verbosity")
	flags.StringVar(&configPath, "config", "", "JSON file with default settings")
	flags.StringVar(&workspace, "root", "", "workspace root for dump and modules (default: working directory)")

	serve := rootCmd.Flags()
	serve.StringVar(&tcpAddr, "tcp", "", "listen for one client on this TCP address instead of stdio")
	serve.StringVar(&websocketAddr, "websocket", "", "listen for WebSocket clients on this address instead of stdio")
	serve.StringVar(&metricExporter, "metrics", "none", "metric exporter: none, stdout or prometheus")
	serve.StringVar(&traceExporter, "traces", "none", "trace exporter: none or stdout")
	serve.StringVar(&metricsAddr, "metrics-addr", telemetry.DefaultConfig().MetricsAddr, "listen address of the prometheus handler")

	rootCmd.AddCommand(versionCmd, dumpCmd, modulesCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Give it some cores
	runtime.GOMAXPROCS(4)

	var sink io.Writer = os.Stderr
	var path *string
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		sink = f
		path = &logFile
	}
	commonlog.Configure(1+verbosity, path)
	log := commonlog.GetLogger("birdeels")
	log.Infof("Starting birdeels %s", server.Version)

	cfg, err := baseConfig()
	if err != nil {
		return err
	}

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = server.Version
	tcfg.MetricExporter = metricExporter
	tcfg.TraceExporter = traceExporter
	tcfg.MetricsAddr = metricsAddr
	tcfg.Writer = sink
	shutdownTelemetry, err := telemetry.Init(cmd.Context(), tcfg)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			log.Errorf("telemetry shutdown: %v", err)
		}
	}()

	srv, err := server.NewServer(lite.New(), server.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	switch {
	case tcpAddr != "":
		return srv.RunTCP(tcpAddr)
	case websocketAddr != "":
		return srv.RunWebSocket(websocketAddr)
	default:
		return srv.RunStdio()
	}
}

func runDump(cmd *cobra.Command, args []string) error {
	cfg, root, err := workspaceConfig()
	if err != nil {
		return err
	}
	cache := metadata.NewCache(cfg.CachePath(root), cfg.LibraryPath())
	data, err := cache.Get(module.Parse(args[0]))
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return fmt.Errorf("malformed metadata: %w", err)
	}
	out.WriteByte('\n')
	_, err = out.WriteTo(cmd.OutOrStdout())
	return err
}

func runModules(cmd *cobra.Command, args []string) error {
	cfg, root, err := workspaceConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.StatePath(root))
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.Modules()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	for _, rec := range records {
		compiled := "never compiled"
		if !rec.CompiledAt.IsZero() {
			compiled = rec.CompiledAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", rec.Name, rec.SourcePath, compiled)
		if len(rec.Imports) > 0 {
			fmt.Fprintf(w, "\timports %s\n", strings.Join(rec.Imports, ", "))
		}
		importers, err := st.Importers(rec.Name)
		if err != nil {
			return err
		}
		if len(importers) > 0 {
			fmt.Fprintf(w, "\timported by %s\n", strings.Join(importers, ", "))
		}
	}
	return nil
}

func baseConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	f, err := os.Open(configPath)
	if err != nil {
		return config.Config{}, err
	}
	defer f.Close()
	return config.LoadFromJSON(f)
}

// workspaceConfig resolves the settings a server started in the workspace
// would use before hearing from a client.
func workspaceConfig() (config.Config, string, error) {
	root := workspace
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return config.Config{}, "", err
		}
		root = wd
	}
	cfg, err := baseConfig()
	if err != nil {
		return cfg, root, err
	}
	cfg, err = config.LoadProjectFile(cfg, root)
	return cfg, root, err
}
