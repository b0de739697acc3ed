// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import "syscall"

// fatalErrnos mean inotify ran out of watches (fs.inotify.max_user_watches)
// or the process or system ran out of file descriptors.
var fatalErrnos = []syscall.Errno{syscall.ENOSPC, syscall.EMFILE, syscall.ENFILE}
