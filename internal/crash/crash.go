/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"editpdfs/internal/domain"
	applog "editpdfs/internal/log"
	"editpdfs/internal/storage"
	"editpdfs/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

const stampLayout = "20060102-150405"

// Target tells Recover where to put the report and how to reach the live
// editor session. A nil Target writes the report to the temp dir only.
type Target struct {
	Dir   string
	State func() (domain.SessionState, bool)
}

func (t *Target) dir() string {
	if t == nil || t.Dir == "" {
		return os.TempDir()
	}
	return t.Dir
}

// Recover captures a panic, logs an error with stacktrace,
// writes an error report file, and attempts a crash-safe autosave
// of the live session (if the target exposes one).
//
// Usage: defer crash.Recover(target)
func Recover(t *Target) {
	if r := recover(); r != nil {
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		reportPath, err := writeReport(t, r, stack)
		if err != nil {
			l.Error("write crash report failed", slog.Any("err", err))
		}
		if path, ok, err := autosave(t); err != nil {
			l.Error("autosave crash snapshot failed", slog.Any("err", err))
		} else if ok {
			l.Info("autosave crash snapshot written", slog.String("path", path))
			_, _ = fmt.Fprintf(os.Stderr, "Unsaved edits were written to: %s\n", path)
		}

		if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
			l.Error("failed to write crash message to stderr", slog.Any("err", err))
		}
		if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
			l.Error("failed to write version info to stderr", slog.Any("err", err))
		}
		// Exit with a non-zero code to indicate failure in CLI context.
		exitFn(2)
	}
}

// autosave writes the live session next to the report. It reports false
// when there is nothing to save.
func autosave(t *Target) (string, bool, error) {
	if t == nil || t.State == nil {
		return "", false, nil
	}
	st, ok := t.State()
	if !ok {
		return "", false, nil
	}
	path := filepath.Join(t.dir(), "crash-autosave-"+time.Now().Format(stampLayout)+storage.SessionFileExt)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return path, false, err
	}
	if err := storage.WriteSessionFile(path, st); err != nil {
		return path, false, err
	}
	return path, true, nil
}

func writeReport(t *Target, panicVal any, stack []byte) (string, error) {
	dir := t.dir()
	_ = os.MkdirAll(dir, 0o755)
	fname := fmt.Sprintf("crash-%s.log", time.Now().Format(stampLayout))
	path := filepath.Join(dir, fname)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "editpdfs Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if t != nil && t.State != nil {
		if st, ok := t.State(); ok {
			_, _ = fmt.Fprintf(&buf, "Session: %s\n", st.FileName)
			_, _ = fmt.Fprintf(&buf, "Pages: %d Objects: %d TextEdits: %d\n", st.PageCount, len(st.Objects), len(st.TextEdits))
		}
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, err
	}
	_ = f.Sync()
	return path, nil
}
