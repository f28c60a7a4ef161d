// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The gitsnap command inspects, serves, mounts and exports a read-only
// snapshot of a Git repository at one revision.
//
// Usage:
//
//	gitsnap [global-flags] <cmd> [cmd-flags] [args]
//
// Global flags default to the GITSNAP_REPO, GITSNAP_REV,
// GITSNAP_LOG_LEVEL and GITSNAP_HTTP environment variables.
// A revision naming a local branch follows that branch as it moves;
// any other revision is resolved once at startup.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/gitsnap/gitfs"
	"golang.org/x/gitsnap/hostfs"
	"golang.org/x/gitsnap/internal/config"
	"golang.org/x/gitsnap/internal/logging"
)

type command struct {
	name string
	des  string
	run  func(*env, []string) error
}

var commands = map[string]command{}

func registerCommand(name, des string, run func(*env, []string) error) {
	if _, dup := commands[name]; dup {
		panic("duplicate registration of " + name)
	}
	commands[name] = command{name: name, des: des, run: run}
}

func registerCommands() {
	registerCommand("ls", "list paths in the snapshot", ls)
	registerCommand("cat", "print files from the snapshot", cat)
	registerCommand("stat", "describe paths in the snapshot", stat)
	registerCommand("serve", "serve the snapshot over HTTP", serve)
	registerCommand("mount", "mount the snapshot read-only with FUSE", mount)
	registerCommand("export", "copy the snapshot's files to file:// or gs:// URL", exportFiles)
}

func sortedCommands() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage of gitsnap: gitsnap [global-flags] <cmd> [cmd-flags]\n\nGlobal flags:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nCommands:\n\n")
	for _, name := range sortedCommands() {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", name, commands[name].des)
	}
	os.Exit(2)
}

// env is the state shared by all commands.
type env struct {
	ctx    context.Context
	cfg    *config.Config
	log    *zap.Logger
	stdout io.Writer
}

// open opens the configured repository at the configured revision.
func (e *env) open() (*gitfs.FileSystem, error) {
	dir, err := filepath.Abs(e.cfg.Repo)
	if err != nil {
		return nil, err
	}
	return gitfs.Open(hostfs.OS(), filepath.ToSlash(dir), gitfs.RevisionSpec(e.cfg.Rev), &gitfs.Options{Logger: e.log})
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("gitsnap: ")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	flag.StringVar(&cfg.Repo, "repo", cfg.Repo, "repository directory, a worktree or a bare repository")
	flag.StringVar(&cfg.Rev, "rev", cfg.Rev, "revision to expose: a branch, tag, commit hash or rev-parse expression")
	flag.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level: debug, info, warn or error")
	flag.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "listen address for the serve command")
	registerCommands()
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
	}
	cmd, ok := commands[args[0]]
	if !ok {
		log.Printf("unknown command %q", args[0])
		usage()
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	e := &env{ctx: ctx, cfg: cfg, log: logger, stdout: os.Stdout}
	if err := cmd.run(e, args[1:]); err != nil {
		logger.Sync()
		log.Fatalf("%s: %v", cmd.name, err)
	}
}
