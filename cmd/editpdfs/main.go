/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"editpdfs/internal/config"
	"editpdfs/internal/crash"
	applog "editpdfs/internal/log"
	"editpdfs/internal/version"
)

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "editpdfs: edit, annotate and assemble PDF documents")
	_, _ = fmt.Fprintf(w, "Version: %s\n", version.String())
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  editpdfs version|-v|--version                     Show version")
	_, _ = fmt.Fprintln(w, "  editpdfs apply <in.pdf> <session.json> [out.pdf]  Render a saved editing session into the PDF")
	_, _ = fmt.Fprintln(w, "  editpdfs merge <out.pdf> <in.pdf> <in.pdf>...     Merge documents in the given order")
	_, _ = fmt.Fprintln(w, "  editpdfs split <in.pdf> <pages>                   Extract pages, e.g. 1-3,5,8-")
	_, _ = fmt.Fprintln(w, "  editpdfs rotate <in.pdf> <deg> [pages]            Rotate pages clockwise (all when omitted)")
	_, _ = fmt.Fprintln(w, "  editpdfs compress <in.pdf>                        Re-save with compressed streams")
	_, _ = fmt.Fprintln(w, "  editpdfs sign <in.pdf> <sig.png> <page> <x> <y> <w> Place a signature image (points, top-left origin)")
	_, _ = fmt.Fprintln(w, "  editpdfs find <layer.html> <term> [flags]         Search a page text layer; --replace writes a session")
	_, _ = fmt.Fprintln(w, "  editpdfs session list|show <id>|rm <id>|export <id> <file>|import <file>")
	_, _ = fmt.Fprintln(w, "  editpdfs handoff push <in.pdf> | pull <token> [dir]  Hand a file to/from the server")
	_, _ = fmt.Fprintln(w, "  editpdfs serve                                    Run the HTTP API")
	_, _ = fmt.Fprintln(w, "  editpdfs ui [file.pdf]                            Launch desktop UI (build with -tags fyne for full UI)")
}

// errUsage reports malformed command lines.
var errUsage = errors.New("usage")

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func main() {
	cfg, secret, cerr := config.Load()
	if cerr != nil {
		cfg = config.Defaults()
		applog.Init(applog.FromEnv())
	} else {
		applog.Init(applog.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, AddSource: cfg.Logging.Source, File: cfg.Logging.File})
	}
	l := applog.WithComponent("cli")
	if cerr != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", cerr))
	}
	crashDir, _ := config.ConfigDir()
	defer crash.Recover(&crash.Target{Dir: crashDir})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	l.Debug("start", slog.Int("args", len(args)))
	app := &cli{cfg: cfg, secret: secret, out: os.Stdout, log: l}
	err := app.run(ctx, args)
	switch {
	case err == nil:
		return
	case errors.Is(err, errUsage):
		_, _ = fmt.Fprintln(os.Stderr, err)
		usage(os.Stderr)
		stop()
		os.Exit(2)
	default:
		l.Error("command failed", slog.Any("err", err))
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
