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
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"

	"editpdfs/internal/backend"
	"editpdfs/internal/config"
	"editpdfs/internal/editor"
	"editpdfs/internal/export"
	"editpdfs/internal/findreplace"
	applog "editpdfs/internal/log"
	"editpdfs/internal/pdfdoc"
	"editpdfs/internal/storage"
	"editpdfs/internal/textlayer"
	"editpdfs/internal/tools"
	"editpdfs/internal/ui"
	"editpdfs/internal/version"
)

// cli carries what every command needs.
type cli struct {
	cfg    config.AppConfig
	secret string
	out    io.Writer
	log    *slog.Logger
}

func (c *cli) printf(format string, args ...any) { _, _ = fmt.Fprintf(c.out, format, args...) }

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageErr("missing command")
	}
	rest := args[1:]
	switch args[0] {
	case "version", "--version", "-v":
		c.printf("editpdfs %s\n", version.String())
		return nil
	case "help", "-h", "--help":
		usage(c.out)
		return nil
	case "apply":
		return c.apply(ctx, rest)
	case "merge":
		return c.merge(ctx, rest)
	case "split":
		return c.split(ctx, rest)
	case "rotate":
		return c.rotate(ctx, rest)
	case "compress":
		return c.compress(ctx, rest)
	case "sign":
		return c.sign(ctx, rest)
	case "find":
		return c.find(rest)
	case "session":
		return c.session(ctx, rest)
	case "handoff":
		return c.handoff(ctx, rest)
	case "serve":
		return c.serve(ctx)
	case "ui":
		var path string
		if len(rest) > 0 {
			path = rest[0]
		}
		return ui.Run(path)
	}
	return usageErr("unknown command %q", args[0])
}

func readInput(path string) (tools.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tools.File{}, err
	}
	return tools.File{Name: filepath.Base(path), Data: data}, nil
}

// writeInto stores f under its own name in dir.
func (c *cli) writeInto(dir string, f tools.File) error {
	path := filepath.Join(dir, f.Name)
	if err := os.WriteFile(path, f.Data, 0o644); err != nil {
		return err
	}
	c.printf("%s (%d bytes)\n", path, len(f.Data))
	return nil
}

func (c *cli) apply(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usageErr("apply requires <in.pdf> and <session.json>")
	}
	src, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	st, err := storage.ReadSessionFile(args[1])
	if err != nil {
		return err
	}
	if err := editor.Validate(st); err != nil {
		return err
	}
	out := filepath.Join(filepath.Dir(args[0]), export.SuffixedFileName(args[0], c.cfg.Export.Suffix))
	if len(args) > 2 {
		out = args[2]
	}
	var buf bytes.Buffer
	opts := export.Options{Compress: c.cfg.Export.Compress, Title: filepath.Base(args[0])}
	if err := export.Export(ctx, src, st, &buf, opts); err != nil {
		return err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return err
	}
	c.log.Info("applied session", slog.String("in", args[0]), slog.String("out", out), slog.Int("objects", len(st.Objects)), slog.Int("text_edits", len(st.TextEdits)))
	c.printf("%s (%d bytes)\n", out, buf.Len())
	return nil
}

func (c *cli) merge(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return usageErr("merge requires <out.pdf> and at least two inputs")
	}
	var files []tools.File
	for _, p := range args[1:] {
		f, err := readInput(p)
		if err != nil {
			return err
		}
		files = append(files, f)
	}
	merged, err := tools.Merge(ctx, files)
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[0], merged.Data, 0o644); err != nil {
		return err
	}
	c.printf("%s (%d bytes)\n", args[0], len(merged.Data))
	return nil
}

func pageCountOf(f tools.File) (int, error) {
	doc, err := pdfdoc.Load(f.Data)
	if err != nil {
		return 0, err
	}
	return doc.PageCount(), nil
}

func (c *cli) split(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usageErr("split requires <in.pdf> and <pages>")
	}
	f, err := readInput(args[0])
	if err != nil {
		return err
	}
	n, err := pageCountOf(f)
	if err != nil {
		return err
	}
	pages, err := tools.ParsePages(args[1], n)
	if err != nil {
		return err
	}
	out, err := tools.Split(ctx, f, pages)
	if err != nil {
		return err
	}
	return c.writeInto(filepath.Dir(args[0]), out)
}

func (c *cli) rotate(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usageErr("rotate requires <in.pdf> and <deg>")
	}
	deg, err := strconv.Atoi(args[1])
	if err != nil {
		return usageErr("degrees must be an integer: %v", err)
	}
	f, err := readInput(args[0])
	if err != nil {
		return err
	}
	var pages []int
	if len(args) > 2 {
		n, err := pageCountOf(f)
		if err != nil {
			return err
		}
		if pages, err = tools.ParsePages(args[2], n); err != nil {
			return err
		}
	}
	out, err := tools.Rotate(ctx, f, deg, pages)
	if err != nil {
		return err
	}
	return c.writeInto(filepath.Dir(args[0]), out)
}

func (c *cli) compress(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usageErr("compress requires <in.pdf>")
	}
	f, err := readInput(args[0])
	if err != nil {
		return err
	}
	out, err := tools.Compress(ctx, f)
	if err != nil {
		return err
	}
	return c.writeInto(filepath.Dir(args[0]), out)
}

func (c *cli) sign(ctx context.Context, args []string) error {
	if len(args) < 6 {
		return usageErr("sign requires <in.pdf> <sig.png> <page> <x> <y> <w>")
	}
	page, err := strconv.Atoi(args[2])
	if err != nil {
		return usageErr("page: %v", err)
	}
	var nums [3]float64
	for i, s := range args[3:6] {
		if nums[i], err = strconv.ParseFloat(s, 64); err != nil {
			return usageErr("%s: %v", s, err)
		}
	}
	f, err := readInput(args[0])
	if err != nil {
		return err
	}
	sig, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	out, err := tools.Sign(ctx, f, sig, tools.SignOptions{Page: page, X: nums[0], Y: nums[1], Width: nums[2]})
	if err != nil {
		return err
	}
	return c.writeInto(filepath.Dir(args[0]), out)
}

// find searches one page text layer. With --replace the matches become text
// edits of a session, which is written to --out (stdout when empty).
func (c *cli) find(args []string) error {
	fs := flag.NewFlagSet("find", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	replace := fs.String("replace", "", "replacement text; every match is replaced")
	replaceSet := false
	caseSensitive := fs.Bool("case", false, "match case")
	wholeWord := fs.Bool("word", false, "match whole words only")
	page := fs.Int("page", 0, "page number when the markup does not carry one")
	zoom := fs.Float64("zoom", 100, "zoom the layer was rendered at, in percent")
	sessionIn := fs.String("session", "", "existing session file to add edits to")
	out := fs.String("out", "", "where to write the session after replacing")
	var pos []string
	for len(args) > 0 {
		if err := fs.Parse(args); err != nil {
			return usageErr("find: %v", err)
		}
		args = fs.Args()
		if len(args) > 0 {
			pos = append(pos, args[0])
			args = args[1:]
		}
	}
	fs.Visit(func(f *flag.Flag) { replaceSet = replaceSet || f.Name == "replace" })
	if len(pos) < 2 {
		return usageErr("find requires <layer.html> and <term>")
	}
	layerPath, term := pos[0], pos[1]

	fh, err := os.Open(layerPath)
	if err != nil {
		return err
	}
	layer, err := textlayer.ParseHTML(fh, textlayer.ParseOptions{Page: *page, Zoom: *zoom})
	_ = fh.Close()
	if err != nil {
		return err
	}

	var sess *editor.Session
	if *sessionIn != "" {
		st, err := storage.ReadSessionFile(*sessionIn)
		if err != nil {
			return err
		}
		if sess, err = editor.FromState(st, editor.Config{Zoom: *zoom, HistoryDepth: c.cfg.Editor.HistoryDepth}); err != nil {
			return err
		}
	} else {
		name := strings.TrimSuffix(filepath.Base(layerPath), filepath.Ext(layerPath)) + ".pdf"
		if sess, err = editor.New(name, layer.Page(), editor.Config{Zoom: *zoom, HistoryDepth: c.cfg.Editor.HistoryDepth}); err != nil {
			return err
		}
	}
	if err := sess.GoToPage(layer.Page()); err != nil {
		return err
	}

	eng := findreplace.NewEngine(sess, layer, findreplace.Config{Color: c.cfg.Editor.Color})
	matches, err := eng.Find(term, findreplace.Options{CaseSensitive: *caseSensitive, WholeWord: *wholeWord})
	if err != nil {
		return err
	}
	if !replaceSet {
		tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "PAGE\tSOURCE\tOFFSET\tTEXT\tBOX")
		for _, m := range matches {
			src := "run " + m.RunID
			if m.EditID != "" {
				src = "edit " + m.EditID
			}
			_, _ = fmt.Fprintf(tw, "%d\t%s\t%d-%d\t%q\t%.1f,%.1f %.1fx%.1f\n", m.Page, src, m.Start, m.End, m.MatchText, m.Box.X, m.Box.Y, m.Box.W, m.Box.H)
		}
		_ = tw.Flush()
		c.printf("%d match(es)\n", len(matches))
		return nil
	}

	n := 0
	if len(matches) > 0 {
		if n, err = eng.ReplaceAll(*replace); err != nil {
			return err
		}
	}
	c.log.Info("replaced", slog.String("term", term), slog.Int("count", n))
	st := sess.State()
	if *out == "" {
		data, err := storage.MarshalSession(st)
		if err != nil {
			return err
		}
		_, err = c.out.Write(append(data, '\n'))
		return err
	}
	if err := storage.WriteSessionFile(*out, st); err != nil {
		return err
	}
	c.printf("%d replacement(s), session written to %s\n", n, *out)
	return nil
}

func (c *cli) openStore(ctx context.Context) (*storage.Store, error) {
	path, err := c.cfg.Storage.ResolveDBPath()
	if err != nil {
		return nil, err
	}
	s, recovered, err := storage.OpenOrRecover(ctx, path)
	if err != nil {
		return nil, err
	}
	if recovered {
		c.log.Warn("session store was corrupt and has been recreated", slog.String("path", path))
	}
	return s, nil
}

func (c *cli) session(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageErr("session requires list, show, rm, export or import")
	}
	s, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	switch args[0] {
	case "list":
		infos, err := s.ListSessions(ctx, 100)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "ID\tFILE\tPAGES\tUPDATED")
		for _, in := range infos {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", in.ID, in.FileName, in.PageCount, in.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
		}
		return tw.Flush()
	case "show":
		if len(args) < 2 {
			return usageErr("session show requires <id>")
		}
		st, _, err := s.LoadSession(ctx, args[1])
		if err != nil {
			return err
		}
		data, err := storage.MarshalSession(st)
		if err != nil {
			return err
		}
		_, err = c.out.Write(append(data, '\n'))
		return err
	case "rm":
		if len(args) < 2 {
			return usageErr("session rm requires <id>")
		}
		if err := s.DeleteSession(ctx, args[1]); err != nil {
			return err
		}
		c.printf("deleted %s\n", args[1])
		return nil
	case "export":
		if len(args) < 3 {
			return usageErr("session export requires <id> and <file>")
		}
		st, _, err := s.LoadSession(ctx, args[1])
		if err != nil {
			return err
		}
		if err := storage.WriteSessionFile(args[2], st); err != nil {
			return err
		}
		c.printf("%s\n", args[2])
		return nil
	case "import":
		if len(args) < 2 {
			return usageErr("session import requires <file>")
		}
		st, err := storage.ReadSessionFile(args[1])
		if err != nil {
			return err
		}
		if err := editor.Validate(st); err != nil {
			return err
		}
		id := uuid.NewString()
		if err := s.SaveSession(applog.ContextWithSession(ctx, id), id, st); err != nil {
			return err
		}
		c.printf("%s\n", id)
		return nil
	}
	return usageErr("unknown session command %q", args[0])
}

func subject() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "cli"
}

func (c *cli) handoff(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usageErr("handoff requires push <in.pdf> or pull <token> [dir]")
	}
	client := backend.NewClient(c.cfg.Server.BaseURL, "")
	if _, err := client.RequestToken(ctx, subject()); err != nil {
		return fmt.Errorf("request token: %w", err)
	}
	switch args[0] {
	case "push":
		f, err := readInput(args[1])
		if err != nil {
			return err
		}
		tok, err := client.PushPending(ctx, f.Name, f.Data)
		if err != nil {
			return err
		}
		c.printf("%s\n", tok)
		return nil
	case "pull":
		name, data, err := client.PullPending(ctx, args[1])
		if err != nil {
			return err
		}
		dir := "."
		if len(args) > 2 {
			dir = args[2]
		}
		return c.writeInto(dir, tools.File{Name: filepath.Base(name), Data: data})
	}
	return usageErr("unknown handoff command %q", args[0])
}

func (c *cli) serve(ctx context.Context) error {
	s, err := c.openStore(ctx)
	if err != nil {
		c.log.Warn("local store unavailable, pending files stay in memory", slog.Any("err", err))
		s = nil
	}
	if s != nil {
		defer func() { _ = s.Close() }()
	}
	return backend.Start(ctx, c.cfg.Server, c.secret, s)
}
