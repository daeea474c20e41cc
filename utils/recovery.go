package utils

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"
)

var panicFilename = "panic_dump"

// MyRecover is deferred at the top of the long-lived loop goroutines
// (payment poll, receive drain, node health) so a panic is logged and
// dumped to disk instead of crashing the daemon without a trace.
func MyRecover() {
	err := recover()
	if err == nil {
		return
	}
	var buf [4096]byte
	n := runtime.Stack(buf[:], false)
	log.Criticalf("Recovered from panic: %v\n%s", err, buf[:n])
	_ = DumpPanicInfo(fmt.Sprintf("%v\n%s", err, buf[:n]))
}

// DumpPanicInfo writes the panic report to a timestamped file in the
// working directory.
func DumpPanicInfo(info string) error {
	now := time.Now()
	fileName := panicFilename + "_" + now.Format("20060102150405") + "_" +
		strconv.FormatInt(now.Unix(), 10)
	log.Infof("Dumping panic info to %v...", fileName)
	if err := os.WriteFile(fileName, []byte(info), 0600); err != nil {
		log.Errorf("Unable to write panic file %v: %v", fileName, err)
		return err
	}
	return nil
}
