package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sigvend/sigvend-server/adminserver"
	"github.com/sigvend/sigvend-server/chainclient"
	"github.com/sigvend/sigvend-server/dal"
	"github.com/sigvend/sigvend-server/feemgr"
	"github.com/sigvend/sigvend-server/model"
	"github.com/sigvend/sigvend-server/ordermgr"
	"github.com/sigvend/sigvend-server/service"
	"github.com/sigvend/sigvend-server/signalmgr"
	"github.com/sigvend/sigvend-server/utils"
	"github.com/sigvend/sigvend-server/walletclient"
	"github.com/sigvend/sigvend-server/walletmgr"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// logWriter implements an io.Writer that outputs to both standard output and
// the write-end pipe of an initialized log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	logRotator.Write(p)
	return len(p), nil
}

// Loggers per subsystem.  A single backend logger is created and all subsytem
// loggers created from it will write to the backend.  When adding new
// subsystems, add the subsystem logger variable here and to the
// subsystemLoggers map.
//
// Loggers can not be used before the log rotator has been initialized with a
// log file.  This must be performed early during application startup by calling
// initLogRotator.
var (
	// backendLog is the logging backend used to create all subsystem loggers.
	// The backend must not be used before the log rotator has been initialized,
	// or data races and/or nil pointer dereferences will occur.
	backendLog = btclog.NewBackend(logWriter{})

	// logRotator is one of the logging outputs.  It should be closed on
	// application shutdown.
	logRotator *rotator.Rotator

	vendLog         = backendLog.Logger("VEND")
	dalLog          = backendLog.Logger("DAL")
	modelLog        = backendLog.Logger("MODEL")
	utilsLog        = backendLog.Logger("UTILS")
	serviceLog      = backendLog.Logger("SRVC")
	walletClientLog = backendLog.Logger("WLCL")
	walletMgrLog    = backendLog.Logger("WLMG")
	chainLog        = backendLog.Logger("CHNC")
	orderLog        = backendLog.Logger("ORDR")
	feeLog          = backendLog.Logger("FEES")
	signalLog       = backendLog.Logger("SGNL")
	adminLog        = backendLog.Logger("ADMS")
)

// Initialize package-global logger variables.
func init() {
	dal.UseLogger(dalLog)
	model.UseLogger(modelLog)
	utils.UseLogger(utilsLog)
	service.UseLogger(serviceLog)
	walletclient.UseLogger(walletClientLog)
	walletmgr.UseLogger(walletMgrLog)
	chainclient.UseLogger(chainLog)
	ordermgr.UseLogger(orderLog)
	feemgr.UseLogger(feeLog)
	signalmgr.UseLogger(signalLog)
	adminserver.UseLogger(adminLog)
}

// subsystemLoggers maps each subsystem identifier to its associated logger.
var subsystemLoggers = map[string]btclog.Logger{
	"VEND":  vendLog,
	"DAL":   dalLog,
	"MODEL": modelLog,
	"UTILS": utilsLog,
	"SRVC":  serviceLog,
	"WLCL":  walletClientLog,
	"WLMG":  walletMgrLog,
	"CHNC":  chainLog,
	"ORDR":  orderLog,
	"FEES":  feeLog,
	"SGNL":  signalLog,
	"ADMS":  adminLog,
}

// initLogRotator initializes the logging rotater to write logs to logFile and
// create roll files in the same directory.  It must be called before the
// package-global log rotater variables are used.
func initLogRotator(logFile string) {
	logDir, _ := filepath.Split(logFile)
	err := os.MkdirAll(logDir, 0700)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
		os.Exit(1)
	}
	r, err := rotator.New(logFile, 10*1024, false, 30)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %v\n", err)
		os.Exit(1)
	}

	logRotator = r
}

// setLogLevel sets the logging level for provided subsystem.  Invalid
// subsystems are ignored.  Uninitialized subsystems are dynamically created as
// needed.
func setLogLevel(subsystemID string, logLevel string) {
	// Ignore invalid subsystems.
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}

	// Defaults to info if the log level is invalid.
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// setLogLevels sets the log level for all subsystem loggers to the passed
// level.  It also dynamically creates the subsystem loggers as needed, so it
// can be used to initialize the logging system.
func setLogLevels(logLevel string) {
	// Configure all sub-systems with the new logging level.  Dynamically
	// create loggers as needed.
	for subsystemID := range subsystemLoggers {
		setLogLevel(subsystemID, logLevel)
	}
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace":
		fallthrough
	case "debug":
		fallthrough
	case "info":
		fallthrough
	case "warn":
		fallthrough
	case "error":
		fallthrough
	case "critical":
		return true
	}
	return false
}
