package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sigvend/sigvend-server/constdef"
	"github.com/sigvend/sigvend-server/utils"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "sigvend-server.conf"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "sigvend-server.log"
	defaultLogLevel       = "info"
	defaultDbFilename     = "sigvend.db"

	defaultSignalCLIBin  = "signal-cli"
	defaultWalletRPCBin  = "monero-wallet-rpc"
	defaultWalletRPCHost = "127.0.0.1"
	defaultWalletRPCPort = 18083
	defaultDaemonHost    = "127.0.0.1"
	defaultDaemonPort    = 18081
	defaultAdminListen   = "127.0.0.1:18483"

	defaultPollIntervalSeconds = 30
	defaultNodeCheckSeconds    = 60
	defaultMinReceiveSeconds   = 2
	defaultMaxReceiveSeconds   = 60
)

var (
	defaultHomeDir = utils.AppDataDir("sigvend-server", false)
	defaultLogDir  = filepath.Join(defaultHomeDir, defaultLogDirname)
)

// config defines the configuration options for the storefront daemon.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ShowVersion bool                  `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile  string                `short:"C" long:"configfile" description:"Path to configuration file"`
	AppDataDir  *utils.ExplicitString `short:"A" long:"appdata" description:"Application data directory for wallet files, database and logs"`
	LogDir      string                `long:"logdir" description:"Directory to log output."`
	DebugLevel  string                `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	DbPath      string                `long:"dbpath" description:"Path of the sqlite database file"`
	MasterPass  string                `long:"masterpass" default-mask:"-" description:"Master password keying the encrypted database columns. Prompted for when unset"`

	SignalCLIBin    string `long:"signalclibin" description:"Path of the signal-cli executable"`
	SignalAccount   string `short:"a" long:"signalaccount" description:"Registered Signal number the store sells from"`
	SignalConfigDir string `long:"signalconfigdir" description:"Directory holding the signal-cli account state"`
	DisableTrust    bool   `long:"notrust" description:"Disable the automatic trust attempt on first contact"`
	MinReceiveSec   int    `long:"minreceiveinterval" description:"Floor of the adaptive receive cadence in seconds (default: 2)"`
	MaxReceiveSec   int    `long:"maxreceiveinterval" description:"Ceiling of the adaptive receive cadence in seconds (default: 60)"`

	WalletRPCBin  string `long:"walletrpcbin" description:"Path of the monero-wallet-rpc executable"`
	WalletRPCHost string `long:"walletrpchost" description:"Bind address for the supervised wallet RPC"`
	WalletRPCPort int    `long:"walletrpcport" description:"Bind port for the supervised wallet RPC (default: 18083)"`
	WalletDir     string `long:"walletdir" description:"Directory holding the wallet files"`
	WalletFile    string `long:"walletfile" description:"Wallet file to open; created on first run when missing"`
	WalletPass    string `long:"walletpass" default-mask:"-" description:"Password of the wallet file"`
	NoWallet      bool   `long:"nowallet" description:"Run without a wallet (messaging only, payment features disabled)"`

	DaemonHost string `long:"daemonhost" description:"Hostname/IP of the monerod the wallet syncs against"`
	DaemonPort int    `long:"daemonport" description:"Port of the monerod RPC (default: 18081)"`
	Proxy      string `long:"proxy" description:"SOCKS5 proxy (host:port) used to reach a remote monerod, e.g. a Tor onion service"`

	PollIntervalSec int    `long:"pollinterval" description:"Seconds between payment poll sweeps (default: 30)"`
	Confirmations   uint64 `long:"confirmations" description:"Confirmations required before an order counts as paid (default: 10)"`
	OrderExpiryMin  int    `long:"orderexpiry" description:"Minutes a pending order waits for payment before expiring (default: 240)"`
	NodeCheckSec    int    `long:"nodecheckinterval" description:"Seconds between node health checks (default: 60)"`

	Currency          string `long:"currency" description:"Fiat currency product prices are quoted in (default: USD)"`
	CommissionAddr    string `long:"commissionaddr" description:"Address receiving the platform commission. Falls back to the one stored at registration"`
	CommissionPercent uint64 `long:"commissionpercent" description:"Integer percentage taken from each paid order (default: 5)"`
	MinCommission     uint64 `long:"mincommission" description:"Smallest commission worth paying out, in atomic units"`

	AdminListen string `long:"adminlisten" description:"Interface/port the admin RPC listens on (default: 127.0.0.1:18483)"`
	RPCUser     string `short:"u" long:"rpcuser" description:"Username for admin RPC connections"`
	RPCPass     string `short:"P" long:"rpcpass" default-mask:"-" description:"Password for admin RPC connections"`

	ProfilePort string `long:"profileport" description:"Enable HTTP profiling on given port -- NOTE port must be between 1024 and 65536"`
}

// newConfigParser returns a new command line flags parser.
func newConfigParser(cfg *config, options flags.Options) *flags.Parser {
	parser := flags.NewParser(cfg, options)
	return parser
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(defaultHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// supportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func supportedSubsystems() []string {
	// Convert the subsystemLoggers map keys to a slice.
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}

	// Sort the subsystems for stable display.
	sort.Strings(subsystems)
	return subsystems
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly.  An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		// Validate debug log level.
		if !validLogLevel(debugLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, debugLevel)
		}

		// Change the logging level for all subsystems.
		setLogLevels(debugLevel)

		return nil
	}

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			str := "The specified debug level contains an invalid " +
				"subsystem/level pair [%v]"
			return fmt.Errorf(str, logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		// Validate subsystem.
		if _, exists := subsystemLoggers[subsysID]; !exists {
			str := "The specified subsystem [%v] is invalid -- " +
				"supported subsytems %v"
			return fmt.Errorf(str, subsysID, supportedSubsystems())
		}

		// Validate log level.
		if !validLogLevel(logLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}

		setLogLevel(subsysID, logLevel)
	}

	return nil
}

// normalizeAddress returns addr with the passed default port appended if
// there is not already a port specified.
func normalizeAddress(addr, defaultPort string) string {
	_, _, err := net.SplitHostPort(addr)
	if err != nil {
		return net.JoinHostPort(addr, defaultPort)
	}
	return addr
}

// loadConfig initializes and parses the config using a config file and
// command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in the daemon functioning properly without any config
// settings while still allowing the user to override settings with config
// files and command line options.  Command line options always take
// precedence.
func loadConfig() (*config, []string, error) {
	cfg := config{
		ConfigFile:        filepath.Join(defaultHomeDir, defaultConfigFilename),
		AppDataDir:        utils.NewExplicitString(defaultHomeDir),
		LogDir:            defaultLogDir,
		DebugLevel:        defaultLogLevel,
		SignalCLIBin:      defaultSignalCLIBin,
		WalletRPCBin:      defaultWalletRPCBin,
		WalletRPCHost:     defaultWalletRPCHost,
		WalletRPCPort:     defaultWalletRPCPort,
		DaemonHost:        defaultDaemonHost,
		DaemonPort:        defaultDaemonPort,
		AdminListen:       defaultAdminListen,
		PollIntervalSec:   defaultPollIntervalSeconds,
		Confirmations:     constdef.DefaultRequiredConfirmations,
		OrderExpiryMin:    constdef.DefaultOrderExpiryMinutes,
		NodeCheckSec:      defaultNodeCheckSeconds,
		MinReceiveSec:     defaultMinReceiveSeconds,
		MaxReceiveSec:     defaultMaxReceiveSeconds,
		CommissionPercent: constdef.DefaultCommissionPercent,
		Currency:          "USD",
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.  Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := cfg
	preParser := newConfigParser(&preCfg, flags.HelpFlag)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version())
		os.Exit(0)
	}

	// Load additional config from file when one exists.
	var configFileError error
	parser := newConfigParser(&cfg, flags.Default)
	if fileExists(preCfg.ConfigFile) {
		err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
		if err != nil {
			if _, ok := err.(*os.PathError); !ok {
				fmt.Fprintf(os.Stderr, "Error parsing config "+
					"file: %v\n", err)
				fmt.Fprintln(os.Stderr, usageMessage)
				return nil, nil, err
			}
			configFileError = err
		}
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return nil, nil, err
	}

	// Create the home directory if it doesn't already exist.
	funcName := "loadConfig"
	homeDir := cleanAndExpandPath(cfg.AppDataDir.Value)
	err = os.MkdirAll(homeDir, 0700)
	if err != nil {
		// Show a nicer error message if it's because a symlink is
		// linked to a directory that does not exist (probably because
		// it's not mounted).
		if e, ok := err.(*os.PathError); ok && os.IsExist(err) {
			if link, lerr := os.Readlink(e.Path); lerr == nil {
				str := "is symlink %s -> %s mounted?"
				err = fmt.Errorf(str, e.Path, link)
			}
		}

		str := "%s: Failed to create home directory: %v"
		err := fmt.Errorf(str, funcName, err)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	// Paths under the data directory follow an explicitly set appdata.
	if cfg.AppDataDir.ExplicitlySet() && cfg.LogDir == defaultLogDir {
		cfg.LogDir = filepath.Join(homeDir, defaultLogDirname)
	}
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	if cfg.DbPath == "" {
		cfg.DbPath = filepath.Join(homeDir, defaultDbFilename)
	}
	cfg.DbPath = cleanAndExpandPath(cfg.DbPath)
	if cfg.WalletDir == "" {
		cfg.WalletDir = filepath.Join(homeDir, "wallets")
	}
	cfg.WalletDir = cleanAndExpandPath(cfg.WalletDir)

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	// Initialize log rotation. After log rotation has been initialized, the
	// logger variables may be used.
	initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("%s: %v", funcName, err.Error())
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	// Show version at startup.
	vendLog.Infof("Version %s", version())

	if cfg.SignalAccount == "" {
		str := "%s: A registered Signal account must be set with --signalaccount"
		err := fmt.Errorf(str, funcName)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}
	if cfg.RPCUser == "" || cfg.RPCPass == "" {
		str := "%s: Admin RPC credentials must be set with --rpcuser and --rpcpass"
		err := fmt.Errorf(str, funcName)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}
	if cfg.CommissionPercent > 100 {
		str := "%s: The commission percentage [%d] must be in [0, 100]"
		err := fmt.Errorf(str, funcName, cfg.CommissionPercent)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}
	if cfg.MinReceiveSec <= 0 || cfg.MaxReceiveSec < cfg.MinReceiveSec {
		str := "%s: Invalid receive cadence bounds [%d, %d]"
		err := fmt.Errorf(str, funcName, cfg.MinReceiveSec, cfg.MaxReceiveSec)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}
	if cfg.Proxy != "" {
		cfg.Proxy = normalizeAddress(cfg.Proxy, "9050")
	}

	// Warn about missing config file only after all other configuration is
	// done.  This prevents the warning on help messages and invalid
	// options.
	if configFileError != nil {
		vendLog.Warnf("%v", configFileError)
	}

	return &cfg, remainingArgs, nil
}

// pollInterval returns the payment poll interval as a duration.
func (c *config) pollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// orderExpiry returns the pending-order payment window as a duration.
func (c *config) orderExpiry() time.Duration {
	return time.Duration(c.OrderExpiryMin) * time.Minute
}
