//go:build windows

package main

import "C"

import (
	"context"
	"os"
	"unsafe"

	"github.com/apex/log"
	clihander "github.com/apex/log/handlers/cli"
	"golang.org/x/sys/windows"

	"github.com/wnxd/membase/cmd/membase/imports"
	"github.com/wnxd/membase/host/self"
	"github.com/wnxd/membase/worker"
)

var (
	kernel32            = windows.NewLazySystemDLL("kernel32.dll")
	procAllocConsole    = kernel32.NewProc("AllocConsole")
	procFreeConsole     = kernel32.NewProc("FreeConsole")
	procSetConsoleTitle = kernel32.NewProc("SetConsoleTitleW")
)

// The runtime runs init after the loader has finished with the DLL, so the
// worker never calls into the loader while it holds its lock.
func init() {
	go attach()
}

func attach() {
	if imports.Console {
		if release, err := openConsole(imports.Name); err == nil {
			defer release()
		}
	}
	proc, err := self.Open()
	if err != nil {
		log.WithError(err).Error("open process")
		return
	}
	defer proc.Close()

	s := newSession(proc, worker.AsyncKeyState)
	if err = <-worker.Go(context.Background(), s.Feature); err != nil {
		log.WithError(err).Error(imports.Name + " stopped")
		return
	}
	log.Info(imports.Name + " detached")
}

func openConsole(title string) (func(), error) {
	if r, _, err := procAllocConsole.Call(); r == 0 {
		return nil, err
	}
	if ptr, err := windows.UTF16PtrFromString(title); err == nil {
		procSetConsoleTitle.Call(uintptr(unsafe.Pointer(ptr)))
	}
	out, err := os.OpenFile("CONOUT$", os.O_WRONLY, 0)
	if err != nil {
		procFreeConsole.Call()
		return nil, err
	}
	log.SetHandler(clihander.New(out))
	log.Debug("console allocated")
	return func() {
		log.SetHandler(clihander.Default)
		out.Close()
		procFreeConsole.Call()
	}, nil
}
