//go:build windows

package platform

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

type mutexRadioLock struct {
	handle windows.Handle
}

func acquireRadioLock(appID, target string) (RadioLock, error) {
	tokenUser, err := windows.GetCurrentProcessToken().GetTokenUser()
	if err != nil {
		return nil, fmt.Errorf("read current user token: %w", err)
	}
	sid := lockComponent(tokenUser.User.Sid.String(), "sid")

	name, err := windows.UTF16PtrFromString(`Local\` + appID + `-radio-` + target + `-` + sid)
	if err != nil {
		return nil, fmt.Errorf("encode radio mutex name: %w", err)
	}

	handle, err := windows.CreateMutex(nil, false, name)
	if err != nil {
		if handle != 0 {
			_ = windows.CloseHandle(handle)
		}
		if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
			return nil, ErrRadioInUse
		}

		return nil, fmt.Errorf("create radio mutex: %w", err)
	}

	return &mutexRadioLock{handle: handle}, nil
}

func (l *mutexRadioLock) Release() error {
	if l == nil || l.handle == 0 {
		return nil
	}

	err := windows.CloseHandle(l.handle)
	l.handle = 0
	if err != nil {
		return fmt.Errorf("close radio mutex: %w", err)
	}

	return nil
}
