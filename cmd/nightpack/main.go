// nightpack builds, bundles and installs the Nightingale desktop app.
package main

import (
	"context"
	"errors"
	"os"

	"git.sr.ht/~nightingale/nightpack"
	"git.sr.ht/~nightingale/nightpack/log"
	"git.sr.ht/~nightingale/nightpack/printer"

	"github.com/urfave/cli"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.L.Fatal(err)
	}
}

// newApp wires the commands. Errors reach the shell through cli.OsExiter.
func newApp() *cli.App {
	var (
		root    string
		config  string
		verbose bool
	)

	app := cli.NewApp()
	app.Name = "nightpack"
	app.Usage = "Package Nightingale for macOS and Linux"
	app.Version = "0.1.0"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "root, r",
			Usage:       "Project root",
			Value:       ".",
			Destination: &root,
		}, cli.StringFlag{
			Name:        "config, c",
			Usage:       "Config file (default <root>/" + nightpack.ConfigFile + ")",
			Destination: &config,
		}, cli.BoolFlag{
			Name:        "verbose",
			Usage:       "Full debug log",
			Destination: &verbose,
		},
	}

	app.Before = func(c *cli.Context) error {
		log.SetVerbose(verbose)
		return nil
	}

	load := func(c *cli.Context) (context.Context, *nightpack.Project, error) {
		ctx := log.WithLogger(context.Background(), log.L.WithField("cmd", c.Command.Name))
		p, err := nightpack.Load(root, config)
		if err != nil {
			return ctx, nil, cli.NewExitError(err.Error(), 1)
		}
		return ctx, p, nil
	}

	app.Commands = []cli.Command{
		{
			Name:  "app",
			Usage: "Build and assemble the macOS .app bundle",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "skip-build", Usage: "Bundle the existing release binary"},
				cli.BoolFlag{Name: "dmg", Usage: "Also write a disk image"},
			},
			Action: func(c *cli.Context) error {
				ctx, p, err := load(c)
				if err != nil {
					return err
				}
				report, err := nightpack.BundleMacOS(ctx, p, nightpack.MacOSOptions{
					SkipBuild: c.Bool("skip-build"),
					DMG:       c.Bool("dmg"),
				})
				if err != nil {
					return exit(err)
				}
				printer.Summary("macOS bundle created", p.Root, report)
				return nil
			},
		},
		{
			Name:  "linux",
			Usage: "Build and install for the current user",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "skip-build", Usage: "Install the existing release binary"},
				cli.BoolFlag{Name: "fetch-ytdlp", Usage: "Download the latest yt-dlp into ~/.local/bin"},
			},
			Action: func(c *cli.Context) error {
				ctx, p, err := load(c)
				if err != nil {
					return err
				}
				report, err := nightpack.InstallLinux(ctx, p, nightpack.LinuxOptions{
					SkipBuild:  c.Bool("skip-build"),
					FetchYTDLP: c.Bool("fetch-ytdlp"),
				})
				if err != nil {
					return exit(err)
				}
				printer.Summary("installed for "+p.Home, p.Root, report)
				return nil
			},
		},
		{
			Name:      "icon",
			Usage:     "Generate icon assets from a source image",
			ArgsUsage: "<path-to-source-image>",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "ico", Usage: "Also write a Windows icon"},
			},
			Action: func(c *cli.Context) error {
				// Validate before loading so a bad invocation touches nothing.
				if c.NArg() != 1 {
					return cli.NewExitError("usage: "+nightpack.IconUsage, 2)
				}
				ctx, p, err := load(c)
				if err != nil {
					return err
				}
				result, err := nightpack.GenerateIcons(ctx, p, c.Args().First(), nightpack.IconOptions{
					ICO: c.Bool("ico"),
				})
				if err != nil {
					return exit(err)
				}
				printer.Summary("icons generated", p.Root, &result.Report)
				return nil
			},
		},
	}

	return app
}

// exit maps procedure errors to exit codes: 2 for bad invocations, 1 for
// everything else.
func exit(err error) error {
	if errors.Is(err, nightpack.ErrUsage) || errors.Is(err, nightpack.ErrNoInput) {
		return cli.NewExitError("error: "+err.Error(), 2)
	}
	return cli.NewExitError("error: "+err.Error(), 1)
}
