package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pillash/mp4util"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"cvvideo/config"
	"cvvideo/serve"
	"cvvideo/video/process"
	"cvvideo/video/sink"
	"cvvideo/video/source"
)

func sourceArg(c *cli.Context) (string, error) {
	if c.NArg() < 1 {
		return "", cli.Exit(fmt.Sprintf("usage: %s %s %s", c.App.Name, c.Command.Name, c.Command.ArgsUsage), 2)
	}
	return c.Args().Get(0), nil
}

func isDevice(src string) bool {
	_, err := strconv.Atoi(src)
	return err == nil
}

var infoCommand = &cli.Command{
	Name:      "info",
	Usage:     "Print the properties of a video file or device.",
	ArgsUsage: "SRC",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "json", Usage: "print as JSON"},
	},
	Action: func(c *cli.Context) error {
		src, err := sourceArg(c)
		if err != nil {
			return err
		}
		return source.WithCapture(src, func(vc *source.Capture) error {
			info := vc.Info()
			out := c.App.Writer
			if c.Bool("json") {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			fmt.Fprintf(out, "source:    %s\n", info.Source)
			fmt.Fprintf(out, "size:      %dx%d\n", info.Width, info.Height)
			fmt.Fprintf(out, "fps:       %.3f\n", info.FPS)
			fmt.Fprintf(out, "codec:     %q\n", info.Codec)
			fmt.Fprintf(out, "frames:    %d\n", info.FrameCount)
			fmt.Fprintf(out, "duration:  %.2fs\n", info.DurationSec)
			if strings.EqualFold(filepath.Ext(src), ".mp4") {
				if d, err := mp4util.Duration(src); err != nil {
					log.Warnf("Failed to read mp4 header duration: %v", err)
				} else {
					fmt.Fprintf(out, "container: %ds\n", d)
				}
			}
			return nil
		})
	},
}

var copyCommand = &cli.Command{
	Name:      "copy",
	Usage:     "Re-encode a video through OpenCV's VideoWriter.",
	ArgsUsage: "SRC DST",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "codec", Value: "MJPG", Usage: "four-character output codec"},
		&cli.Float64Flag{Name: "fps", Usage: "output frame rate; frames are dropped or repeated to match (default: source rate)"},
		&cli.IntFlag{Name: "width", Usage: "output width (default: source width)"},
		&cli.IntFlag{Name: "height", Usage: "output height (default: source height)"},
		&cli.BoolFlag{Name: "gray", Usage: "write grayscale frames"},
		&cli.BoolFlag{Name: "label", Usage: "draw the source frame index on every frame"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return cli.Exit("usage: copy SRC DST", 2)
		}
		src, dst := c.Args().Get(0), c.Args().Get(1)

		vc, err := source.Open(src)
		if err != nil {
			return err
		}
		info := vc.Info()

		o := sink.WriterOptions{
			Codec:   c.String("codec"),
			FPS:     info.FPS,
			Width:   info.Width,
			Height:  info.Height,
			IsColor: !c.Bool("gray"),
		}
		if v := c.Float64("fps"); v > 0 {
			o.FPS = v
		}
		if v := c.Int("width"); v > 0 {
			o.Width = v
		}
		if v := c.Int("height"); v > 0 {
			o.Height = v
		}
		if o.FPS <= 0 {
			vc.Close()
			return errors.Errorf("%s reports no frame rate; pass --fps", src)
		}

		w, err := sink.NewWriter(dst, o)
		if err != nil {
			vc.Close()
			return err
		}
		if !w.IsOpen() {
			vc.Close()
			w.Close()
			return errors.Errorf("cannot write %s with codec %s", dst, o.Codec)
		}

		var out sink.Sink = w
		var norm *sink.FPSNormalize
		if o.FPS != info.FPS {
			norm = sink.NewFPSNormalize(w, o.FPS)
			out = norm
		}

		stream := source.NewStream(vc, source.StreamOptions{Live: isDevice(src)})
		defer stream.Close()
		conform := process.NewConformer(o.Size(), !o.IsColor)
		defer conform.Close()

		n := 0
		for img := range stream.Get() {
			if c.Bool("label") {
				process.DrawLabel(&img.Mat, fmt.Sprintf("%d", img.Index))
			}
			err := out.Put(source.Image{Mat: conform.Apply(img.Mat), Time: img.Time, Index: img.Index})
			img.Release()
			if err != nil {
				out.Close()
				return errors.Wrapf(err, "write frame %d", n)
			}
			n++
		}
		if err := out.Close(); err != nil {
			return err
		}
		written := n
		if norm != nil {
			written = norm.Written()
		}
		log.Infof("Copied %d frames from %s into %d frames of %s", n, src, written, dst)
		return nil
	},
}

var extractCommand = &cli.Command{
	Name:      "extract",
	Usage:     "Write selected frames as JPEG files.",
	ArgsUsage: "SRC DIR",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "slice", Value: "::1", Usage: "frames to extract as start:stop:step; negative values count from the end"},
		&cli.IntFlag{Name: "width", Usage: "resize to this width, keeping the aspect ratio"},
		&cli.IntFlag{Name: "quality", Value: process.DefaultJPEGQuality, Usage: "JPEG quality, 1-100"},
		&cli.StringFlag{Name: "prefix", Value: "frame", Usage: "file name prefix"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return cli.Exit("usage: extract SRC DIR", 2)
		}
		src, dir := c.Args().Get(0), c.Args().Get(1)
		s, err := source.ParseSlice(c.String("slice"))
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}

		return source.WithCapture(src, func(vc *source.Capture) error {
			indices, err := s.Indices(vc.Len())
			if err != nil {
				return err
			}
			for _, i := range indices {
				m, err := vc.FrameAt(i)
				if errors.Is(err, source.ErrEndOfStream) {
					// Frame counts are estimates for some containers.
					log.Warnf("Source ended before frame %d", i)
					break
				}
				if err != nil {
					return err
				}
				path := filepath.Join(dir, fmt.Sprintf("%s_%06d.jpg", c.String("prefix"), i))
				err = process.WriteJPEG(path, m, image.Point{X: c.Int("width")}, c.Int("quality"))
				m.Close()
				if err != nil {
					return err
				}
				log.Debugf("Wrote %v", path)
			}
			log.Infof("Extracted %d frames from %s", len(indices), src)
			return nil
		})
	},
}

var playCommand = &cli.Command{
	Name:      "play",
	Usage:     "Show a video in a window. Press q or Esc to quit.",
	ArgsUsage: "SRC",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "loop", Usage: "start over at the end"},
	},
	Action: func(c *cli.Context) error {
		src, err := sourceArg(c)
		if err != nil {
			return err
		}
		return source.WithCapture(src, func(vc *source.Capture) error {
			delay := 1
			if fps := vc.FPS(); fps > 0 {
				delay = int(1000 / fps)
			}
			win := sink.NewWindow(src, delay)
			defer win.Close()

			for {
				n := 0
				for i, m := range vc.All() {
					win.Put(source.Image{Mat: m, Time: time.Now(), Index: i})
					n++
					if win.Quit {
						return nil
					}
				}
				if !c.Bool("loop") || n == 0 {
					return nil
				}
			}
		})
	},
}

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Serve a video over HTTP as MJPEG and random-access JPEG frames.",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Required: true, Usage: "JSON or YAML config file"},
	},
	Action: func(c *cli.Context) error {
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := config.Load(ctx, c.String("config")); err != nil {
			return err
		}
		cfg := config.Get()
		applyLogLevel(cfg)

		live := isDevice(cfg.Source)
		sc, err := source.Open(cfg.Source)
		if err != nil {
			return err
		}

		// Devices can usually be opened only once, so random access is
		// limited to files.
		var ra *serve.RandomAccess
		if !live {
			rc, err := source.Open(cfg.Source)
			if err != nil {
				sc.Close()
				return err
			}
			ra = serve.NewRandomAccess(rc)
		}

		s := serve.NewServer(ra, config.Get)
		defer s.Close()
		config.OnChange(func(cfg *config.Config) {
			applyLogLevel(cfg)
			s.ConfigChanged(cfg)
		})

		maxFPS := cfg.MaxFPS
		if maxFPS == 0 && !live {
			maxFPS = sc.FPS()
		}
		stream := source.NewStream(sc, source.StreamOptions{
			Live:      live,
			Loop:      cfg.Loop && !live,
			MaxFPS:    maxFPS,
			OnRestart: s.Restarted,
		})
		defer stream.Close()

		hs := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Port),
			Handler: s.Handler(),
		}
		go func() {
			log.Infof("Serving %s on port %d", cfg.Source, cfg.Port)
			if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("HTTP server failed: %v", err)
				stop()
			}
		}()

		err = s.Run(ctx, stream)
		if err == nil {
			// The stream ended; keep serving single frames until asked to stop.
			<-ctx.Done()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			log.Warnf("HTTP shutdown: %v", err)
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func applyLogLevel(cfg *config.Config) {
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
}
