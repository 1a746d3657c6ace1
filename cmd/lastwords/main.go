package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lastwords/lastwords/internal/config"
	"github.com/lastwords/lastwords/internal/daemon"
	"github.com/lastwords/lastwords/internal/database"
	"github.com/lastwords/lastwords/internal/reporter"
	"github.com/lastwords/lastwords/internal/tracker"
	"github.com/lastwords/lastwords/internal/web"
	"github.com/lastwords/lastwords/pkg/integrations/x11"
	"github.com/lastwords/lastwords/pkg/lastwords"
	"github.com/lastwords/lastwords/pkg/scheduler"
	"github.com/lastwords/lastwords/pkg/utils"
	"github.com/lastwords/lastwords/version"
)

const childEnv = "LASTWORDS_DAEMON_CHILD"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "start":
		startDaemon(false)
	case "serve":
		startDaemon(true)
	case "stop":
		stopDaemon()
	case "status":
		showStatus()
	case "shutdown":
		requestShutdown()
	case "report":
		generateReport()
	case "clear":
		clearDatabase()
	case "version":
		fmt.Printf("lastwords version %s\n", version.Version)
		fmt.Printf("  commit: %s\n", version.Commit)
		fmt.Printf("  built:  %s\n", version.Date)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`lastwords - Tells you when an application closed its last window

Usage:
  lastwords <command> [options]

Commands:
  start              Start the finish detector daemon
  serve              Start the daemon with the web API server
  stop               Stop the daemon
  status             Show daemon and detector status
  shutdown [timeout] Ask every tracked window to close (timeout: 500ms, 2s, ...)
  report [period]    Generate a finish report (period: day, week, month) [--json]
  clear              Clear all journal data from the database
  version            Show version information
  help               Show this help message

Examples:
  lastwords serve
  lastwords status
  lastwords shutdown 2s
  lastwords report week --json
  lastwords stop

Environment Variables:
  LASTWORDS_CONFIG            Config file (default ~/.config/lastwords/config.toml)
  LASTWORDS_GRACE_DELAY       Grace delay after the last window closed (ms or 5s)
  LASTWORDS_SHUTDOWN_TIMEOUT  Default grace delay for shutdown requests
  LASTWORDS_DB_PATH           Database file path
  LASTWORDS_PID_FILE          PID file path
  LASTWORDS_LOG_FILE          Daemon log file
  LASTWORDS_DISPLAY           X display to watch
  LASTWORDS_PID               Only track windows of this process
  LASTWORDS_TERMINATE         What to do once a shutdown finished (signal, exit, none)
  LASTWORDS_WEB_HOST          Web API host
  LASTWORDS_WEB_PORT          Web API port

Version: %s
`, version.Version)
}

func loadConfig() *config.Config {
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

func startDaemon(withWeb bool) {
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Check if already running
	dm := daemon.New(cfg.Daemon.PIDFile)
	running, pid, err := dm.IsRunning()
	if err != nil {
		log.Fatalf("Failed to check daemon status: %v", err)
	}
	if running {
		log.Fatalf("Daemon is already running (PID: %d)", pid)
	}

	if os.Getenv(childEnv) != "1" {
		// Parent process - fork and exit
		daemonize(cfg, withWeb)
		return
	}

	runDaemon(cfg, dm, withWeb)
}

func runDaemon(cfg *config.Config, dm *daemon.Daemon, withWeb bool) {
	logFile, err := os.OpenFile(cfg.Daemon.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err == nil {
		log.SetOutput(logFile)
		defer logFile.Close()
	}

	db, err := database.Connect(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if err := dm.WritePID(); err != nil {
		log.Fatalf("Failed to write PID file: %v", err)
	}
	defer dm.RemovePID()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := database.NewRepository(db)
	journal := tracker.NewService(repo)
	loop := scheduler.NewLoop(0)

	det := lastwords.New(loop, lastwords.Config{
		GraceDelay: cfg.GraceDelay(),
		Observer:   journal.Observe,
		OnError:    journal.ErrorReporter("detector"),
	})
	det.Register(lastwords.ListenerFunc(func() {
		log.Println("[lastwords] Application finished")
	}))

	sd := lastwords.NewShutdown(det, terminateAction(cfg, journal, cancel))

	if !x11.Reachable(cfg.X11.Display) {
		log.Fatalf("No X display to watch (session type: %s); set DISPLAY or LASTWORDS_DISPLAY", x11.DetectDisplayServer())
	}
	log.Printf("Display server: %s", x11.DetectDisplayServer())

	watcher := x11.NewWatcher(x11.Config{
		Display: cfg.X11.Display,
		PID:     uint32(cfg.X11.PID),
		OnError: journal.ErrorReporter("x11"),
	}, loop)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Loop error: %v", err)
		}
	}()

	journalDone := make(chan struct{})
	go func() {
		defer close(journalDone)
		if err := journal.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("Journal error: %v", err)
		}
	}()

	if err := det.Init(watcher); err != nil {
		cancel()
		<-journalDone
		log.Fatalf("Failed to watch X11 windows: %v", err)
	}
	defer watcher.Close()

	var webServer *web.Server
	if withWeb {
		shutdown := web.ShutdownFunc(func(timeout time.Duration) {
			if !loop.Post(func() { sd.RequestShutdown(timeout) }) {
				log.Println("[web] Loop stopped, shutdown request dropped")
			}
		})
		handler := web.NewHandler(cfg, repo, det, shutdown, journal)
		webServer = web.NewServer(cfg, handler, 0)

		go func() {
			if err := webServer.Start(); err != nil && err != http.ErrServerClosed {
				log.Printf("Web server error: %v", err)
				journal.ReportError("web", err)
			}
		}()
		log.Printf("Web API available at: http://%s", webServer.GetAddress())
	}

	log.Println("Starting lastwords daemon...")
	log.Printf("%s", cfg.String())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Println("Received shutdown signal")
	case <-ctx.Done():
		log.Println("Shutdown sequence finished, exiting")
	}

	cancel()
	<-loopDone
	<-journalDone

	if webServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := webServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down web server: %v", err)
		}
	}

	log.Println("Daemon stopped successfully")
}

// terminateAction is run once a shutdown sequence has finished
func terminateAction(cfg *config.Config, journal *tracker.Service, cancel context.CancelFunc) func() {
	switch cfg.Terminate.Mode {
	case config.TerminateSignal:
		pid := cfg.X11.PID
		return func() {
			log.Printf("[shutdown] Sending SIGTERM to %d", pid)
			if err := daemon.Terminate(pid); err != nil {
				journal.ReportError("shutdown", err)
			}
		}
	case config.TerminateExit:
		return cancel
	default:
		return func() {
			log.Println("[shutdown] Finished, terminate mode is none")
		}
	}
}

func stopDaemon() {
	cfg := loadConfig()
	dm := daemon.New(cfg.Daemon.PIDFile)

	running, pid, err := dm.IsRunning()
	if err != nil {
		log.Fatalf("Failed to check daemon status: %v", err)
	}

	if !running {
		fmt.Println("Daemon is not running")
		return
	}

	fmt.Printf("Stopping daemon (PID: %d)...\n", pid)
	if err := dm.Stop(); err != nil {
		log.Fatalf("Failed to stop daemon: %v", err)
	}

	fmt.Println("Daemon stopped successfully")
}

func apiURL(cfg *config.Config, path string) string {
	return fmt.Sprintf("http://%s:%d%s", cfg.Web.Host, cfg.Web.Port, path)
}

func showStatus() {
	cfg := loadConfig()
	dm := daemon.New(cfg.Daemon.PIDFile)

	running, pid, err := dm.IsRunning()
	if err != nil {
		log.Fatalf("Failed to check daemon status: %v", err)
	}

	if !running {
		fmt.Println("Status: Not running")
	} else {
		fmt.Printf("Status: Running (PID: %d)\n", pid)
		fmt.Printf("Grace Delay: %s\n", utils.FormatDelay(cfg.GraceDelay()))
		fmt.Printf("Database: %s\n", cfg.Database.Path)
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(apiURL(cfg, "/api/status"))
	if err != nil {
		fmt.Println("\nWeb API not reachable (start the daemon with 'serve')")
		return
	}
	defer resp.Body.Close()

	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Printf("\nInvalid status response: %v\n", err)
		return
	}

	fmt.Printf("\nDetector:\n")
	fmt.Printf("  State: %v\n", status["state"])
	fmt.Printf("  Alive windows: %v\n", status["alive"])
	if cycle, ok := status["cycle"].(string); ok && cycle != "" {
		fmt.Printf("  Cycle: %s\n", cycle)
	}
}

func requestShutdown() {
	cfg := loadConfig()

	url := apiURL(cfg, "/api/shutdown")
	if len(os.Args) > 2 {
		url += "?timeout=" + os.Args[2]
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(url, "application/json", nil)
	if err != nil {
		log.Fatalf("Failed to reach the daemon: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		log.Fatalf("Shutdown request rejected: %s", resp.Status)
	}
	fmt.Println("Shutdown requested")
}

func generateReport() {
	periodType := "day"
	if len(os.Args) > 2 {
		periodType = os.Args[2]
	}

	cfg := loadConfig()

	db, err := database.Connect(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	repo := database.NewRepository(db)
	rep := reporter.New(repo)

	// Check for JSON flag
	jsonOutput := false
	if len(os.Args) > 3 && os.Args[3] == "--json" {
		jsonOutput = true
	}

	report, err := rep.GenerateReport(periodType)
	if err != nil {
		log.Fatalf("Failed to generate report: %v", err)
	}

	if jsonOutput {
		jsonStr, err := rep.FormatReportJSON(report)
		if err != nil {
			log.Fatalf("Failed to format JSON: %v", err)
		}
		fmt.Println(jsonStr)
	} else {
		fmt.Println(rep.FormatReportText(report))
	}
}

func clearDatabase() {
	cfg := loadConfig()

	// Prompt for confirmation
	fmt.Print("This will delete all journal data. Are you sure? (yes/no): ")
	var response string
	fmt.Scanln(&response)

	if response != "yes" && response != "y" {
		fmt.Println("Operation cancelled")
		return
	}

	db, err := database.Connect(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	if err := repo.Clear(); err != nil {
		log.Fatalf("Failed to clear database: %v", err)
	}

	fmt.Println("Database cleared successfully")
}

func daemonize(cfg *config.Config, withWeb bool) {
	env := os.Environ()
	env = append(env, childEnv+"=1")

	args := os.Args

	procAttr := &os.ProcAttr{
		Env:   env,
		Files: []*os.File{nil, nil, nil}, // stdin, stdout, stderr to /dev/null
		Sys: &syscall.SysProcAttr{
			Setsid: true, // Create new session
		},
	}

	process, err := os.StartProcess(args[0], args, procAttr)
	if err != nil {
		log.Fatalf("Failed to start daemon process: %v", err)
	}

	fmt.Printf("Daemon started successfully (PID: %d)\n", process.Pid)
	if withWeb {
		fmt.Printf("Web API available at: %s\n", apiURL(cfg, ""))
	}
	fmt.Printf("Logs: %s\n", cfg.Daemon.LogFile)
}
