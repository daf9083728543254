// Screenwise watches the screen for freshly appeared questions, analyzes
// them with a multimodal model, and drives answer clicks through a
// browser-extension bridge.
//
// Usage:
//
//	screenwise run                        # start the watcher daemon
//	screenwise run --config config.yaml   # with a config file
//	screenwise credential set             # store the API key encrypted
//	screenwise credential clear           # remove the stored key
//	screenwise history                    # show recent selection outcomes
//	screenwise version                    # show version information
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/screenwise/screenwise/config"
	"github.com/screenwise/screenwise/internal/credstore"
	"github.com/screenwise/screenwise/internal/history"
	"go.uber.org/zap"
)

// Build-time injected.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const passphraseEnv = "SCREENWISE_PASSPHRASE"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runDaemonCmd(os.Args[2:])
	case "credential":
		runCredential(os.Args[2:])
	case "history":
		runHistory(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runDaemonCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	enable := fs.Bool("enable", true, "Arm the automation master switch at startup")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting screenwise",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	if err := runDaemon(cfg, *enable, logger); err != nil {
		logger.Fatal("daemon failed", zap.Error(err))
	}
	logger.Info("screenwise stopped")
}

func runCredential(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: screenwise credential <set|clear> [--config path]")
		os.Exit(1)
	}
	sub := args[0]

	fs := flag.NewFlagSet("credential", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args[1:])

	cfg := loadConfig(*configPath)
	store := credstore.NewStore(cfg.Credential.Path, passphrase())

	switch sub {
	case "set":
		fmt.Fprint(os.Stderr, "API key: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintf(os.Stderr, "Read API key: %v\n", err)
			os.Exit(1)
		}
		key := strings.TrimSpace(line)
		if key == "" {
			fmt.Fprintln(os.Stderr, "Empty API key")
			os.Exit(1)
		}
		if err := store.Save(key); err != nil {
			fmt.Fprintf(os.Stderr, "Save credential: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Credential stored")
	case "clear":
		if err := store.Clear(); err != nil {
			fmt.Fprintf(os.Stderr, "Clear credential: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Credential cleared")
	default:
		fmt.Fprintf(os.Stderr, "Unknown credential subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	session := fs.String("session", "", "Filter by session ID")
	limit := fs.Int("limit", 20, "Maximum records to show")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	store, err := history.Open(cfg.History.Path, zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Open history: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	records, err := store.RecentSelections(*session, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query history: %v\n", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		fmt.Println("No selection records")
		return
	}
	for _, r := range records {
		fmt.Printf("%s  %-20s  %-40.40s  %-20.20s  conf=%.2f attempts=%d %s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.Kind, r.QuestionText, r.OptionText, r.Confidence, r.Attempts, r.Detail)
	}
}

func loadConfig(path string) *config.Config {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// passphrase resolves the credential-store passphrase. Falling back to the
// hostname keeps the blob bound to the machine when no passphrase is set.
func passphrase() []byte {
	if p := os.Getenv(passphraseEnv); p != "" {
		return []byte(p)
	}
	host, err := os.Hostname()
	if err != nil {
		host = "screenwise"
	}
	return []byte("screenwise:" + host)
}

func printVersion() {
	fmt.Printf("screenwise %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`Screenwise - screen question watcher

Usage:
  screenwise <command> [options]

Commands:
  run         Start the watcher daemon
  credential  Manage the stored API key (set, clear)
  history     Show recent selection outcomes
  version     Show version information
  help        Show this help message

Options for 'run':
  --config <path>   Path to configuration file (YAML)
  --enable          Arm the automation master switch at startup (default true)

Examples:
  screenwise run --config /etc/screenwise/config.yaml
  screenwise credential set
  screenwise history --limit 50`)
}
