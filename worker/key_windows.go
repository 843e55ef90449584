//go:build windows

package worker

import "golang.org/x/sys/windows"

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procGetAsyncKeyState = user32.NewProc("GetAsyncKeyState")
)

// AsyncKeyState reads the key through GetAsyncKeyState.
func AsyncKeyState(key Key) (bool, error) {
	if err := procGetAsyncKeyState.Find(); err != nil {
		return false, err
	}
	r, _, _ := procGetAsyncKeyState.Call(uintptr(key))
	return r&0x8000 != 0, nil
}
