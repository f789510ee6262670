// Command camquad shows live camera frames on a full-screen GPU quad.
package main

import (
	"fmt"
	"os"

	_ "github.com/gogpu/wgpu/hal/allbackends"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "camquad"
	app.Usage = "render live camera frames as a textured full-screen quad"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "YAML configuration file",
		},
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "open a window and show the camera",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "synthetic",
					Usage: "use a generated test pattern instead of a camera",
				},
				cli.StringFlag{
					Name:  "debug-listen",
					Usage: "serve /stats and /frame.png on this address",
				},
				cli.StringFlag{
					Name:  "image",
					Usage: "repeat a still PNG, JPEG, BMP, TIFF or WebP file instead of a camera",
				},
				cli.IntFlag{
					Name:  "samples",
					Usage: "MSAA sample count, 1 or 4",
				},
				cli.StringFlag{
					Name:  "title",
					Usage: "window title",
				},
				cli.StringFlag{
					Name:  "size",
					Usage: "window size as WIDTHxHEIGHT",
				},
			},
			Action: runWindow,
		},
		{
			Name:  "headless",
			Usage: "render frames offscreen and print statistics",
			Description: `
Open a GPU device on the selected backend without a window, feed it frames
from the configured camera and draw them into an offscreen target. The
latest frame can be written to a PNG file.`,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "backend, b",
					Usage: "hal backend: software, vulkan, metal, dx12, gl",
				},
				cli.IntFlag{
					Name:  "frames, n",
					Usage: "number of frames to draw",
				},
				cli.BoolFlag{
					Name:  "synthetic",
					Usage: "use a generated test pattern instead of a camera",
				},
				cli.StringFlag{
					Name:  "out, o",
					Usage: "write the latest frame to this PNG file",
				},
				cli.StringFlag{
					Name:  "image",
					Usage: "repeat a still PNG, JPEG, BMP, TIFF or WebP file instead of a camera",
				},
				cli.IntFlag{
					Name:  "samples",
					Usage: "MSAA sample count, 1 or 4",
				},
			},
			Action: runHeadless,
		},
		{
			Name:   "config",
			Usage:  "print the effective configuration as YAML",
			Action: printConfig,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "camquad: %v\n", err)
		os.Exit(1)
	}
}
