// Copyright 2016-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package storectl provides a command-line tool to read and write a
// gateway store directly, usually over CBOR-RPC to a running
// restconfd.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/diffeo/go-restconf/backend"
	"github.com/diffeo/go-restconf/store"
	"github.com/satori/go.uuid"
	"github.com/urfave/cli"
)

// session holds what every command needs.
type session struct {
	Store       store.Store
	Concurrency int
}

func (s *session) Run(runner func()) {
	wg := sync.WaitGroup{}
	wg.Add(s.Concurrency)
	for i := 0; i < s.Concurrency; i++ {
		go func() {
			defer wg.Done()
			runner()
		}()
	}
	wg.Wait()
}

// args checks that a command got exactly n arguments.
func args(c *cli.Context, n int) (cli.Args, error) {
	if c.NArg() != n {
		return nil, fmt.Errorf("%v: expected %v arguments, got %v", c.Command.Name, n, c.NArg())
	}
	return c.Args(), nil
}

func printRevision(w io.Writer, rev store.Revision) {
	if rev.Version == 0 {
		fmt.Fprintln(w, "revision 0")
		return
	}
	fmt.Fprintf(w, "revision %d %s\n", rev.Version, rev.Modified.UTC().Format(time.RFC3339Nano))
}

func commands(s *session) []cli.Command {
	ctx := context.Background()
	return []cli.Command{
		{
			Name:      "get",
			Usage:     "print one leaf",
			ArgsUsage: "path",
			Action: func(c *cli.Context) error {
				a, err := args(c, 1)
				if err != nil {
					return err
				}
				value, err := s.Store.Get(ctx, a.First())
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, value)
				return nil
			},
		},
		{
			Name:      "set",
			Usage:     "write one leaf; an empty value deletes it",
			ArgsUsage: "path value",
			Action: func(c *cli.Context) error {
				a, err := args(c, 2)
				if err != nil {
					return err
				}
				return s.Store.Set(ctx, a.Get(0), a.Get(1))
			},
		},
		{
			Name:      "prune",
			Usage:     "delete a path and everything beneath it",
			ArgsUsage: "path",
			Action: func(c *cli.Context) error {
				a, err := args(c, 1)
				if err != nil {
					return err
				}
				return s.Store.Prune(ctx, a.First())
			},
		},
		{
			Name:      "search",
			Usage:     "list the children of a path",
			ArgsUsage: "path",
			Action: func(c *cli.Context) error {
				a, err := args(c, 1)
				if err != nil {
					return err
				}
				names, err := s.Store.Search(ctx, a.First())
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(c.App.Writer, name)
				}
				return nil
			},
		},
		{
			Name:      "tree",
			Usage:     "print every leaf at or beneath a path",
			ArgsUsage: "path",
			Action: func(c *cli.Context) error {
				a, err := args(c, 1)
				if err != nil {
					return err
				}
				snap, err := s.Store.GetTree(ctx, a.First())
				if err != nil {
					return err
				}
				for _, v := range snap.Values {
					fmt.Fprintf(c.App.Writer, "%s\t%s\n", v.Path, v.Value)
				}
				printRevision(c.App.Writer, snap.Revision)
				return nil
			},
		},
		{
			Name:      "revision",
			Usage:     "print the revision of a path",
			ArgsUsage: "path",
			Action: func(c *cli.Context) error {
				a, err := args(c, 1)
				if err != nil {
					return err
				}
				rev, err := s.Store.Revision(ctx, a.First())
				if err != nil {
					return err
				}
				printRevision(c.App.Writer, rev)
				return nil
			},
		},
		{
			Name:      "proxy",
			Usage:     "mount a remote store beneath a path",
			ArgsUsage: "path url",
			Action: func(c *cli.Context) error {
				a, err := args(c, 2)
				if err != nil {
					return err
				}
				return s.Store.Proxy(ctx, a.Get(0), a.Get(1))
			},
		},
		{
			Name:      "unproxy",
			Usage:     "remove a mount",
			ArgsUsage: "path url",
			Action: func(c *cli.Context) error {
				a, err := args(c, 2)
				if err != nil {
					return err
				}
				return s.Store.Unproxy(ctx, a.Get(0), a.Get(1))
			},
		},
		{
			Name:      "fill",
			Usage:     "write many uniquely named leaves beneath a path",
			ArgsUsage: "path",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "count",
					Value: 100,
					Usage: "number of leaves to write",
				},
			},
			Action: func(c *cli.Context) error {
				a, err := args(c, 1)
				if err != nil {
					return err
				}
				parent := a.First()
				if err := store.CheckPath(parent); err != nil {
					return err
				}
				count := c.Int("count")
				numbers := make(chan int)
				go func() {
					for i := 1; i <= count; i++ {
						numbers <- i
					}
					close(numbers)
				}()
				var lock sync.Mutex
				var firstErr error
				start := time.Now()
				s.Run(func() {
					for n := range numbers {
						name := uuid.NewV4().String()
						err := s.Store.Set(ctx, store.Join(parent, name), fmt.Sprint(n))
						if err != nil {
							lock.Lock()
							if firstErr == nil {
								firstErr = err
							}
							lock.Unlock()
						}
					}
				})
				if firstErr != nil {
					return firstErr
				}
				fmt.Fprintf(c.App.Writer, "wrote %d leaves in %v\n", count, time.Since(start))
				return nil
			},
		},
	}
}

func newApp(s *session) *cli.App {
	be := backend.Backend{Implementation: "rpc", Address: "tcp://localhost:5932"}
	app := cli.NewApp()
	app.Name = "storectl"
	app.Usage = "read and write a RESTCONF gateway store"
	app.Flags = []cli.Flag{
		cli.GenericFlag{
			Name:  "backend",
			Value: &be,
			Usage: "impl:[address] of the store",
		},
		cli.IntFlag{
			Name:  "concurrency",
			Value: runtime.NumCPU(),
			Usage: "run this many writers in parallel",
		},
	}
	app.Commands = commands(s)
	app.Before = func(c *cli.Context) (err error) {
		s.Store, err = be.Store()
		if err != nil {
			return
		}
		s.Concurrency = c.Int("concurrency")
		if s.Concurrency < 1 {
			s.Concurrency = 1
		}
		return
	}
	app.After = func(c *cli.Context) error {
		if closer, ok := s.Store.(io.Closer); ok {
			return closer.Close()
		}
		return nil
	}
	return app
}

func main() {
	app := newApp(&session{})
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
