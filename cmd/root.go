package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tubeload/tubeload/internal/clipboard"
	"github.com/tubeload/tubeload/internal/config"
	"github.com/tubeload/tubeload/internal/download"
	"github.com/tubeload/tubeload/internal/history"
	"github.com/tubeload/tubeload/internal/logger"
	"github.com/tubeload/tubeload/internal/progress"
	"github.com/tubeload/tubeload/internal/session"
	"github.com/tubeload/tubeload/internal/tui"
	"github.com/tubeload/tubeload/internal/version"
)

var (
	appSettings   *config.Settings
	globalManager *download.Manager
	historyStore  *history.Store
)

var rootCmd = &cobra.Command{
	Use:     "tubeload [url]...",
	Short:   "A download manager for video clips",
	Long:    `Tubeload queues and downloads video clips, with a terminal UI, a loopback control API and clipboard monitoring.`,
	Version: version.Version,
	Args:    cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		initializeGlobalState()
		defer logger.Sync()

		isMaster, err := AcquireLock()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error acquiring lock: %v\n", err)
			os.Exit(1)
		}
		if !isMaster {
			fmt.Fprintln(os.Stderr, "Error: tubeload is already running.")
			fmt.Fprintln(os.Stderr, "Use 'tubeload add <url>' to add a download to the active instance.")
			os.Exit(1)
		}
		defer func() {
			if err := ReleaseLock(); err != nil {
				logger.Log.Warnw("error releasing lock", "error", err)
			}
		}()

		outputDir, _ := cmd.Flags().GetString("output")
		batchFile, _ := cmd.Flags().GetString("batch")
		portFlag, _ := cmd.Flags().GetInt("port")
		headless, _ := cmd.Flags().GetBool("headless")
		exitWhenDone, _ := cmd.Flags().GetBool("exit-when-done")
		demoFlag, _ := cmd.Flags().GetBool("demo")

		if outputDir == "" {
			outputDir = appSettings.General.DefaultDownloadDir
		}
		if outputDir == "" {
			outputDir = "."
		}
		_ = os.MkdirAll(outputDir, 0o755)

		if store, err := history.Open(filepath.Join(config.GetStateDir(), "tubeload.db")); err != nil {
			logger.Log.Warnw("history unavailable", "error", err)
		} else {
			historyStore = store
			defer historyStore.Close()
		}

		globalManager = newManager(demoFlag)
		defer globalManager.Shutdown()

		if historyStore != nil {
			go recordHistory(globalManager, historyStore)
		}

		port, ln := bindControlPort(portFlag)
		saveActivePort(port)
		defer removeActivePort()
		go startHTTPServer(ln, NewAPIHandler(globalManager, historyStore, port, outputDir))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if appSettings.General.ClipboardMonitor {
			monitor := clipboard.NewMonitor(0, func(u string) {
				if _, err := globalManager.Enqueue(download.Request{URL: u, Dir: outputDir}); err != nil {
					logger.Log.Warnw("clipboard enqueue rejected", "url", u, "error", err)
				}
			})
			go monitor.Run(ctx)
		}

		go func() {
			urls := append([]string(nil), args...)
			if batchFile != "" {
				fileURLs, err := readURLsFromFile(batchFile)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error reading batch file: %v\n", err)
				} else {
					urls = append(urls, fileURLs...)
				}
			}
			for _, u := range urls {
				if _, err := globalManager.Enqueue(download.Request{URL: u, Dir: outputDir}); err != nil {
					fmt.Fprintf(os.Stderr, "Error adding %s: %v\n", u, err)
				}
			}
		}()

		go checkForUpdates(ctx)

		if headless {
			runHeadless(globalManager, exitWhenDone)
			return
		}
		runTUI(globalManager, exitWhenDone)
	},
}

// newManager wires the transfer engine and demo policy from settings.
func newManager(demoFlag bool) *download.Manager {
	starter := session.NewFactory(session.Config{
		Client:         http.DefaultClient,
		UserAgent:      appSettings.Network.UserAgent,
		StallTimeout:   appSettings.Network.StallTimeout,
		ReportInterval: appSettings.Network.ReportInterval,
	})

	policy := download.Policy{}
	if demoFlag || appSettings.Demo.Enabled {
		policy = download.Policy{
			Enabled:         true,
			MaxClipDuration: appSettings.Demo.MaxClipDuration,
			MaxDownloads:    appSettings.Demo.MaxDownloads,
		}
	}

	return download.New(download.Options{
		Limit:   appSettings.Network.MaxConcurrentDownloads,
		Policy:  policy,
		Starter: starter,
	})
}

func bindControlPort(portFlag int) (int, net.Listener) {
	if portFlag > 0 {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", portFlag))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: could not bind to port %d: %v\n", portFlag, err)
			os.Exit(1)
		}
		return portFlag, ln
	}
	port, ln := findAvailablePort(1760)
	if ln == nil {
		fmt.Fprintln(os.Stderr, "Error: could not find available port")
		os.Exit(1)
	}
	return port, ln
}

// runTUI runs the queue view until the user quits.
func runTUI(m *download.Manager, exitWhenDone bool) {
	model := tui.NewModel(m, appSettings.General.Theme)
	p := tea.NewProgram(model, tea.WithAltScreen())

	if exitWhenDone {
		events, unsub := m.Subscribe()
		defer unsub()
		go func() {
			for ev := range events {
				if _, ok := ev.(download.AllCompleteMsg); ok {
					p.Send(tea.Quit())
					return
				}
			}
		}()
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

// runHeadless consumes manager events and logs them to stdout until
// interrupted, or until the queue drains when exitWhenDone is set.
func runHeadless(m *download.Manager, exitWhenDone bool) {
	events, unsub := m.Subscribe()
	defer unsub()

	for ev := range events {
		switch ev := ev.(type) {
		case download.ItemAddedMsg:
			fmt.Printf("Queued: %s [%s]\n", ev.Item.Filename, shortID(ev.Item.ID))
		case download.ItemStateMsg:
			printState(ev.Item)
		case download.AllCompleteMsg:
			fmt.Println("All downloads finished.")
			if exitWhenDone {
				return
			}
		}
	}
}

func printState(it download.Snapshot) {
	id := shortID(it.ID)
	switch it.Status {
	case download.StatusActive:
		fmt.Printf("Started: %s [%s]\n", it.Filename, id)
	case download.StatusCompleted:
		fmt.Printf("Completed: %s [%s] (%s)\n", it.Filename, id, progress.FormatSize(it.BytesTotal))
	case download.StatusFailed:
		fmt.Printf("Error: %s [%s]: %s\n", it.Filename, id, it.Error)
	case download.StatusPaused:
		fmt.Printf("Paused: %s [%s]\n", it.Filename, id)
	case download.StatusCancelled:
		fmt.Printf("Cancelled: %s [%s]\n", it.Filename, id)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// recordHistory mirrors queue changes into the history database.
func recordHistory(m *download.Manager, store *history.Store) {
	events, unsub := m.Subscribe()
	defer unsub()

	record := func(it download.Snapshot) {
		err := store.Record(history.Entry{
			ID:         it.ID,
			URL:        it.URL,
			Dest:       it.Dest,
			Filename:   it.Filename,
			Status:     it.Status.String(),
			TotalSize:  it.BytesTotal,
			Downloaded: it.BytesReceived,
			Error:      it.Error,
		})
		if err != nil {
			logger.Log.Warnw("history record failed", "id", it.ID, "error", err)
		}
	}

	for ev := range events {
		switch ev := ev.(type) {
		case download.ItemAddedMsg:
			record(ev.Item)
		case download.ItemStateMsg:
			record(ev.Item)
		}
	}
}

func checkForUpdates(ctx context.Context) {
	info, err := version.CheckForUpdate(ctx, version.Version)
	if err != nil || info == nil || !info.UpdateAvailable {
		return
	}
	logger.Log.Infow("update available",
		"current", info.CurrentVersion, "latest", info.LatestVersion, "url", info.ReleaseURL)
}

// enqueueRemote sends URLs to a running instance, a few at a time.
func enqueueRemote(urls []string, outputDir string, port int) int {
	var g errgroup.Group
	g.SetLimit(4)

	results := make([]bool, len(urls))
	for i, u := range urls {
		g.Go(func() error {
			if err := sendToServer(u, "", outputDir, port); err != nil {
				fmt.Fprintf(os.Stderr, "Error adding %s: %v\n", u, err)
				return nil
			}
			results[i] = true
			return nil
		})
	}
	_ = g.Wait()

	count := 0
	for _, ok := range results {
		if ok {
			count++
		}
	}
	return count
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringP("batch", "b", "", "File containing URLs to download (one per line)")
	rootCmd.Flags().StringP("output", "o", "", "Output directory")
	rootCmd.Flags().IntP("port", "p", 0, "Control API port (default: first available)")
	rootCmd.Flags().Bool("headless", false, "Run without the terminal UI")
	rootCmd.Flags().Bool("exit-when-done", false, "Exit when all downloads complete")
	rootCmd.Flags().Bool("demo", false, "Apply demo-mode download restrictions")
	rootCmd.SetVersionTemplate("tubeload version {{.Version}}\n")
}

// initializeGlobalState loads settings and configures directories and logging.
func initializeGlobalState() {
	if err := config.EnsureDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating app directories: %v\n", err)
		os.Exit(1)
	}

	settings, err := config.LoadSettings()
	if err != nil {
		settings = config.DefaultSettings()
	}
	appSettings = settings

	logsDir := config.GetLogsDir()
	if err := logger.Init(appSettings.General.LogLevel, logsDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
	logger.CleanupLogs(logsDir, appSettings.General.LogRetentionCount)
}
