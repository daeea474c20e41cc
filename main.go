package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sigvend/sigvend-server/chainclient"
	"github.com/sigvend/sigvend-server/dal"
	"github.com/sigvend/sigvend-server/service"
	"github.com/sigvend/sigvend-server/walletclient"
	"github.com/sigvend/sigvend-server/walletmgr"
)

var (
	cfg *config
)

const defaultWalletFilename = "store.wallet"

// pinAttempts is the number of PIN tries before startup is refused.
const pinAttempts = 3

func startProfileServer() {
	listenAddr := net.JoinHostPort("localhost", cfg.ProfilePort)
	vendLog.Infof("Profile server listening on %s", listenAddr)
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	vendLog.Errorf("%v", http.ListenAndServe(listenAddr, mux))
}

// promptLine prints the prompt and reads one whitespace-trimmed line.
func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	var line string
	if _, err := fmt.Scanln(&line); err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// bootstrapSeller creates the seller account on the first run and gates
// later runs behind the stored PIN.
func bootstrapSeller(ctx context.Context, masterPassword string) error {
	tx := dal.GetDB(ctx)
	sellerService := service.GetSellerService()

	exists, err := sellerService.SellerExists(ctx, tx)
	if err != nil {
		return err
	}
	if !exists {
		fmt.Println("It seems that it is the first time you start the server.")
		pin, err := promptLine("Please choose a PIN for the seller account: ")
		if err != nil {
			return err
		}
		walletFile := cfg.WalletFile
		if walletFile == "" {
			walletFile = defaultWalletFilename
		}
		_, err = sellerService.RegisterSeller(ctx, tx, pin, masterPassword,
			cfg.SignalAccount, walletFile, cfg.Currency, cfg.CommissionAddr)
		if err != nil {
			return err
		}
		vendLog.Infof("Seller account created, selling from %s", cfg.SignalAccount)
		return nil
	}

	for attempt := 1; ; attempt++ {
		pin, err := promptLine("PIN: ")
		if err != nil {
			return err
		}
		ok, err := sellerService.VerifyPIN(ctx, tx, pin)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if attempt >= pinAttempts {
			return errors.New("too many failed PIN attempts")
		}
		fmt.Println("Wrong PIN, try again.")
	}
}

// startWallet builds the supervisor and brings the wallet RPC up, creating
// the wallet file on the first run. A false return means limited mode:
// messaging stays available, payment features wait for the wallet.
func startWallet(ctx context.Context, walletRPC *walletclient.RPCClient, walletFile string) (*walletmgr.Supervisor, bool) {
	supCfg := walletmgr.Config{
		BinaryPath:     cfg.WalletRPCBin,
		BindHost:       cfg.WalletRPCHost,
		Port:           cfg.WalletRPCPort,
		WalletDir:      cfg.WalletDir,
		WalletFile:     walletFile,
		WalletPassword: cfg.WalletPass,
		DaemonAddress:  net.JoinHostPort(cfg.DaemonHost, fmt.Sprintf("%d", cfg.DaemonPort)),
		LogFile:        filepath.Join(cfg.LogDir, "monero-wallet-rpc.log"),
		PIDFile:        filepath.Join(cfg.WalletDir, "monero-wallet-rpc.pid"),
	}

	fresh := !fileExists(filepath.Join(cfg.WalletDir, walletFile))
	if fresh {
		// Wallet-dir mode so the RPC can create the file.
		supCfg.WalletFile = ""
	}
	supervisor := walletmgr.NewSupervisor(supCfg, walletRPC)

	if cfg.NoWallet {
		vendLog.Warnf("Wallet disabled by configuration, payment features are unavailable")
		return supervisor, false
	}

	var err error
	if fresh {
		vendLog.Infof("Wallet file %s not found, creating it", walletFile)
		err = supervisor.CreateWallet(ctx, walletFile, cfg.WalletPass)
	} else {
		err = supervisor.Start(ctx, false)
	}
	if err != nil {
		vendLog.Errorf("Wallet startup failed: %v", err)
		vendLog.Warnf("Continuing in limited mode: messaging works, payment " +
			"features are disabled until the wallet is reachable")
		return supervisor, false
	}
	return supervisor, true
}

func vendMain() error {
	// Load configuration and parse command line. This function also
	// initializes logging and configures it accordingly.
	tcfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = tcfg

	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	defer vendLog.Info("Shutdown complete")

	// Enable http profiling server if requested.
	if cfg.ProfilePort != "" {
		go func() {
			startProfileServer()
		}()
	}

	masterPassword := cfg.MasterPass
	if masterPassword == "" {
		masterPassword, err = promptLine("Master password: ")
		if err != nil {
			return err
		}
		if masterPassword == "" {
			return errors.New("a master password is required")
		}
	}

	// initiate database
	err = dal.InitDB(&dal.DBConfig{Path: cfg.DbPath}, true)
	if err != nil {
		return err
	}

	ctx := context.Background()
	tx := dal.GetDB(ctx)

	if err := bootstrapSeller(ctx, masterPassword); err != nil {
		return err
	}

	sellerService := service.GetSellerService()
	walletFile, err := sellerService.GetWalletFile(ctx, tx)
	if err != nil {
		return err
	}

	commissionAddr := cfg.CommissionAddr
	if commissionAddr == "" {
		commissionAddr, err = sellerService.GetCommissionAddress(ctx, tx, masterPassword)
		if err != nil {
			return err
		}
	}
	if commissionAddr == "" {
		vendLog.Warnf("No commission address configured, commission payouts are disabled")
	}

	node, err := service.GetNodeService().EnsureNode(ctx, tx, cfg.DaemonHost,
		cfg.DaemonPort, cfg.Proxy != "")
	if err != nil {
		return err
	}

	// Bring up the supervised wallet RPC; a failure degrades to limited
	// mode rather than refusing to start.
	walletRPC := walletclient.NewRPCClient(cfg.WalletRPCHost, cfg.WalletRPCPort,
		30*time.Second)
	supervisor, walletUp := startWallet(ctx, walletRPC, walletFile)

	daemonClient := chainclient.NewRPCClient(cfg.DaemonHost, cfg.DaemonPort,
		cfg.Proxy, 15*time.Second)
	monitor := chainclient.NewHealthMonitor(daemonClient, tx, node.ID,
		time.Duration(cfg.NodeCheckSec)*time.Second)

	svr, err := newServer(cfg, masterPassword, tx, walletRPC, supervisor,
		monitor, commissionAddr)
	if err != nil {
		return err
	}
	svr.orders.SetWalletAvailable(walletUp)

	if err := svr.Start(); err != nil {
		return err
	}

	addInterruptHandler(func() {
		supervisor.Stop()
	})
	addInterruptHandler(func() {
		svr.Stop()
	})

	// Wait until the interrupt signal is received from an OS signal or
	// shutdown is requested through one of the subsystems.
	<-interruptHandlersDone
	return nil
}

func main() {
	// Use all processor cores.
	runtime.GOMAXPROCS(runtime.NumCPU())

	if err := vendMain(); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
}
