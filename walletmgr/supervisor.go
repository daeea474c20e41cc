package walletmgr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sigvend/sigvend-server/errcode"
	"github.com/sigvend/sigvend-server/walletclient"
)

// State is the supervisor lifecycle state.
type State int

const (
	StateNotStarted State = iota
	StatePortCheck
	StateSpawned
	StatePollingReady
	StateReady
	StateFailed
)

// String returns the State in human-readable form.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StatePortCheck:
		return "port-check"
	case StateSpawned:
		return "spawned"
	case StatePollingReady:
		return "polling-ready"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Config carries the settings for one supervised monero-wallet-rpc child.
// It is built once at startup and never mutated.
type Config struct {
	// BinaryPath is the monero-wallet-rpc executable.
	BinaryPath string
	BindHost   string
	Port       int

	WalletDir      string
	WalletFile     string
	WalletPassword string
	// DaemonAddress is the host:port of the monerod the wallet syncs
	// against.
	DaemonAddress string

	// LogFile captures the child's combined output for diagnostics.
	LogFile string
	PIDFile string

	// PollInterval is the cadence of the readiness probe.
	PollInterval time.Duration
	// ReadyTimeout bounds readiness for a pre-existing wallet.
	ReadyTimeout time.Duration
	// FreshReadyTimeout bounds readiness for a wallet just created, which
	// must perform its initial chain sync first.
	FreshReadyTimeout time.Duration

	// OrphanKillWait is how long a graceful terminate is given before the
	// escalation to a forceful kill.
	OrphanKillWait time.Duration
}

// Supervisor brings a local wallet RPC endpoint to a ready state and keeps
// exactly one such child process alive per configured port. It owns the
// port and the process handle exclusively for the process lifetime.
type Supervisor struct {
	cfg    Config
	client *walletclient.RPCClient

	mtx     sync.Mutex
	state   State
	cmd     *exec.Cmd
	waitCh  chan error
	logFile *os.File
}

// NewSupervisor creates a supervisor. client must point at the same
// host/port the child is configured to bind.
func NewSupervisor(cfg Config, client *walletclient.RPCClient) *Supervisor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 90 * time.Second
	}
	if cfg.FreshReadyTimeout <= 0 {
		cfg.FreshReadyTimeout = 10 * time.Minute
	}
	if cfg.OrphanKillWait <= 0 {
		cfg.OrphanKillWait = 5 * time.Second
	}
	return &Supervisor{
		cfg:    cfg,
		client: client,
		state:  StateNotStarted,
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.state
}

// Client returns the RPC client bound to the supervised endpoint.
func (s *Supervisor) Client() *walletclient.RPCClient {
	return s.client
}

// Start brings the wallet RPC to a ready state. freshWallet selects the
// extended readiness window used right after wallet creation. Calling
// Start again while the tracked child is still alive is a no-op success;
// the supervisor never kills and respawns its own child.
func (s *Supervisor) Start(ctx context.Context, freshWallet bool) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.cmd != nil && s.processAlive() {
		log.Infof("Wallet RPC child (pid %d) already tracked and alive, start is a no-op",
			s.cmd.Process.Pid)
		return nil
	}

	s.state = StatePortCheck
	if s.portInUse() {
		log.Warnf("Port %d is occupied by an untracked process, treating it as orphaned",
			s.cfg.Port)
		if err := s.killOrphan(); err != nil {
			s.state = StateFailed
			return fmt.Errorf("unable to free port %d: %w", s.cfg.Port, err)
		}
		if s.portInUse() {
			s.state = StateFailed
			return fmt.Errorf("port %d is still occupied after killing orphan", s.cfg.Port)
		}
	}

	if err := s.spawn(); err != nil {
		s.state = StateFailed
		return err
	}
	s.state = StatePollingReady

	timeout := s.cfg.ReadyTimeout
	if freshWallet {
		timeout = s.cfg.FreshReadyTimeout
		log.Infof("Wallet was just created, extending readiness window to %v", timeout)
	}
	if err := s.pollReady(ctx, timeout); err != nil {
		s.state = StateFailed
		return err
	}

	s.state = StateReady
	log.Infof("Wallet RPC is ready on %s:%d (pid %d)", s.cfg.BindHost, s.cfg.Port,
		s.cmd.Process.Pid)
	return nil
}

// Stop terminates the tracked child gracefully with a bounded wait before
// escalating to a forceful kill, and removes the pid marker file. It is
// safe to call at interpreter teardown and more than once.
func (s *Supervisor) Stop() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.cmd == nil || s.cmd.Process == nil {
		s.removePIDFile()
		return
	}
	if !s.processAlive() {
		s.finishChild()
		return
	}

	pid := s.cmd.Process.Pid
	log.Infof("Stopping wallet RPC child (pid %d)...", pid)
	if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		log.Warnf("Unable to terminate wallet RPC child: %v", err)
	}

	select {
	case <-s.waitCh:
		log.Infof("Wallet RPC child exited")
	case <-time.After(s.cfg.OrphanKillWait):
		log.Warnf("Wallet RPC child did not exit in %v, killing", s.cfg.OrphanKillWait)
		_ = s.cmd.Process.Kill()
		<-s.waitCh
	}
	s.finishChild()
}

// CreateWallet spawns the RPC in wallet-dir mode when needed and asks it
// to create the named wallet file. Failures are reported with the
// dedicated error taxonomy so the operator message can be actionable.
func (s *Supervisor) CreateWallet(ctx context.Context, filename, password string) error {
	if _, err := exec.LookPath(s.cfg.BinaryPath); err != nil {
		return &errcode.WalletCreateError{
			Kind: errcode.WalletCreateToolMissing,
			Msg:  s.cfg.BinaryPath,
			Err:  err,
		}
	}

	if err := s.Start(ctx, false); err != nil {
		var deadline bool
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "not ready after") {
			deadline = true
		}
		kind := errcode.WalletCreateOther
		if deadline {
			kind = errcode.WalletCreateTimeout
		}
		return &errcode.WalletCreateError{Kind: kind, Msg: "wallet rpc did not start", Err: err}
	}

	if err := s.client.CreateWallet(ctx, filename, password); err != nil {
		return &errcode.WalletCreateError{
			Kind: errcode.WalletCreateOther,
			Msg:  "create_wallet call failed",
			Err:  err,
		}
	}
	return nil
}

// portInUse probes the configured port with a short TCP connect.
func (s *Supervisor) portInUse() bool {
	addr := net.JoinHostPort(s.cfg.BindHost, strconv.Itoa(s.cfg.Port))
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// killOrphan terminates whatever previous run left bound to the port. The
// pid marker file written at spawn time identifies it; without a marker
// there is nothing safe to kill.
func (s *Supervisor) killOrphan() error {
	pid, err := s.readPIDFile()
	if err != nil {
		return fmt.Errorf("port occupied and no pid marker found: %w", err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	log.Infof("Terminating orphaned wallet RPC process (pid %d)", pid)
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		// Already gone.
		s.removePIDFile()
		return nil
	}

	deadline := time.Now().Add(s.cfg.OrphanKillWait)
	for time.Now().Before(deadline) {
		if proc.Signal(syscall.Signal(0)) != nil {
			s.removePIDFile()
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}

	log.Warnf("Orphan (pid %d) survived terminate, killing", pid)
	if err := proc.Kill(); err != nil {
		return err
	}
	s.removePIDFile()
	return nil
}

func (s *Supervisor) spawn() error {
	args := []string{
		"--rpc-bind-ip", s.cfg.BindHost,
		"--rpc-bind-port", strconv.Itoa(s.cfg.Port),
		"--daemon-address", s.cfg.DaemonAddress,
		"--disable-rpc-login",
		"--non-interactive",
	}
	if s.cfg.WalletFile != "" {
		args = append(args,
			"--wallet-file", filepath.Join(s.cfg.WalletDir, s.cfg.WalletFile),
			"--password", s.cfg.WalletPassword,
		)
	} else {
		args = append(args, "--wallet-dir", s.cfg.WalletDir)
	}

	if dir := filepath.Dir(s.cfg.LogFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	logFile, err := os.OpenFile(s.cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}

	cmd := exec.Command(s.cfg.BinaryPath, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		logFile.Close()
		if errors.Is(err, exec.ErrNotFound) || os.IsNotExist(err) {
			return &errcode.WalletCreateError{
				Kind: errcode.WalletCreateToolMissing,
				Msg:  s.cfg.BinaryPath,
				Err:  err,
			}
		}
		return err
	}

	s.cmd = cmd
	s.logFile = logFile
	s.waitCh = make(chan error, 1)
	go func() {
		s.waitCh <- cmd.Wait()
	}()
	s.state = StateSpawned

	if err := s.writePIDFile(cmd.Process.Pid); err != nil {
		log.Warnf("Unable to write pid marker file: %v", err)
	}
	log.Infof("Spawned monero-wallet-rpc (pid %d), output captured in %s",
		cmd.Process.Pid, s.cfg.LogFile)
	return nil
}

// pollReady issues the readiness probe at a fixed interval until the
// endpoint answers, the child exits, or the window elapses. Failure
// reports distinguish a dead child (exit code) from an alive but
// unresponsive one (port diagnostics plus log tail).
func (s *Supervisor) pollReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := s.client.Height(ctx); err == nil {
			return nil
		}

		select {
		case waitErr := <-s.waitCh:
			exitCode := -1
			if s.cmd.ProcessState != nil {
				exitCode = s.cmd.ProcessState.ExitCode()
			}
			tail := s.tailLog(10)
			log.Errorf("Wallet RPC child exited during startup (exit code %d, wait err %v)",
				exitCode, waitErr)
			return fmt.Errorf("wallet rpc exited with code %d before becoming ready; last log lines:\n%s",
				exitCode, tail)
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			tail := s.tailLog(10)
			return fmt.Errorf("wallet rpc not ready after %v: process alive (pid %d) but port %d unresponsive; last log lines:\n%s",
				timeout, s.cmd.Process.Pid, s.cfg.Port, tail)
		}
	}
}

// processAlive reports whether the tracked child still answers signal 0.
// Callers must hold s.mtx.
func (s *Supervisor) processAlive() bool {
	if s.cmd == nil || s.cmd.Process == nil {
		return false
	}
	select {
	case err, ok := <-s.waitCh:
		if ok {
			// The child exited; keep the result for finishChild.
			go func() { s.waitCh <- err }()
		}
		return false
	default:
	}
	return s.cmd.Process.Signal(syscall.Signal(0)) == nil
}

func (s *Supervisor) finishChild() {
	if s.logFile != nil {
		s.logFile.Close()
		s.logFile = nil
	}
	s.cmd = nil
	s.state = StateNotStarted
	s.removePIDFile()
}

func (s *Supervisor) writePIDFile(pid int) error {
	if s.cfg.PIDFile == "" {
		return nil
	}
	return os.WriteFile(s.cfg.PIDFile, []byte(strconv.Itoa(pid)), 0600)
}

func (s *Supervisor) readPIDFile() (int, error) {
	if s.cfg.PIDFile == "" {
		return 0, errors.New("no pid marker file configured")
	}
	raw, err := os.ReadFile(s.cfg.PIDFile)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(raw)))
}

func (s *Supervisor) removePIDFile() {
	if s.cfg.PIDFile == "" {
		return
	}
	_ = os.Remove(s.cfg.PIDFile)
}

// tailLog returns the last n lines of the captured child output.
func (s *Supervisor) tailLog(n int) string {
	raw, err := os.ReadFile(s.cfg.LogFile)
	if err != nil {
		return fmt.Sprintf("(unable to read log file %s: %v)", s.cfg.LogFile, err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
