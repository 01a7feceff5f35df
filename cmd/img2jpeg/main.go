// Command img2jpeg encodes image files or raw frames to baseline JPEG.
//
//	img2jpeg [-q N] [-o dir] [-j N] photo.heic scan.png ...
//	img2jpeg -raw -w 640 -h 480 -format YUYV frame.yuv
//
// Each input is written next to itself (or into -o) as <name>.jpg, or
// <name>.out.jpg when that would replace the input. Inputs whose outputs
// collide are refused before anything is written. The output file only
// appears once it is complete.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/renameio"
	"golang.org/x/sync/errgroup"

	"github.com/harliandi/go-img2jpeg/internal/converter"
	"github.com/harliandi/go-img2jpeg/pkg/jpeg"
)

type options struct {
	quality int
	outDir  string
	raw     bool
	width   int
	height  int
	format  jpeg.PixelFormat
	encode  *jpeg.Options
}

func main() {
	var (
		quality = flag.Int("q", jpeg.DefaultQuality, "JPEG quality (1-100)")
		outDir  = flag.String("o", "", "output directory (default: next to each input)")
		jobs    = flag.Int("j", runtime.NumCPU(), "number of files to encode concurrently")
		raw     = flag.Bool("raw", false, "inputs are raw frames described by -w, -h and -format")
		width   = flag.Int("w", 0, "raw frame width")
		height  = flag.Int("h", 0, "raw frame height")
		format  = flag.String("format", "rgb24", "raw frame pixel format (FourCC or name)")
		chunk   = flag.Int("chunk", jpeg.DefaultChunkSize, "output chunk size in bytes")
	)
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] file...\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	opts := options{
		quality: jpeg.ClampQuality(*quality),
		outDir:  *outDir,
		raw:     *raw,
		width:   *width,
		height:  *height,
		encode:  &jpeg.Options{ChunkSize: *chunk},
	}
	if opts.raw {
		f, err := jpeg.ParsePixelFormat(*format)
		if err != nil {
			log.Fatal(err)
		}
		opts.format = f
	}

	if err := run(context.Background(), flag.Args(), *jobs, opts); err != nil {
		log.Fatal(err)
	}
}

// errOutputConflict reports an output path that would overwrite an input or
// another input's output.
var errOutputConflict = errors.New("output path conflict")

// run encodes every input, at most jobs at a time. The first failure
// cancels the inputs that have not started yet.
func run(ctx context.Context, inputs []string, jobs int, opts options) error {
	outputs, err := planOutputs(opts.outDir, inputs)
	if err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(jobs, 1))
	for i, in := range inputs {
		out := outputs[i]
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			if err := encodeFile(in, out, opts); err != nil {
				return fmt.Errorf("%s: %w", in, err)
			}
			log.Printf("%s -> %s (%v)", in, out, time.Since(start))
			return nil
		})
	}
	return eg.Wait()
}

// outputPath replaces the extension of in with .jpg, placing the result in
// dir when it is set. An input that already has that name gets a .out.jpg
// suffix instead so it is never replaced.
func outputPath(dir, in string) string {
	stem := strings.TrimSuffix(in, filepath.Ext(in))
	if dir != "" {
		stem = filepath.Join(dir, filepath.Base(stem))
	}
	out := stem + ".jpg"
	if samePath(out, in) {
		out = stem + ".out.jpg"
	}
	return out
}

// planOutputs maps every input to its output path and fails before any
// work starts if an output would replace an input or collide with another
// output.
func planOutputs(dir string, inputs []string) ([]string, error) {
	outputs := make([]string, len(inputs))
	for i, in := range inputs {
		out := outputPath(dir, in)
		for j, other := range inputs {
			if samePath(out, other) {
				return nil, fmt.Errorf("%w: %s would overwrite input %s", errOutputConflict, inputs[i], inputs[j])
			}
		}
		for j := range i {
			if samePath(out, outputs[j]) {
				return nil, fmt.Errorf("%w: %s and %s both write %s", errOutputConflict, inputs[j], in, out)
			}
		}
		outputs[i] = out
	}
	return outputs, nil
}

// samePath compares cleaned paths case-insensitively, since the file
// system may not distinguish case.
func samePath(a, b string) bool {
	return strings.EqualFold(filepath.Clean(a), filepath.Clean(b))
}

// encodeFile streams the encoding of in into a pending file that replaces
// out once the encode succeeded.
func encodeFile(in, out string, opts options) error {
	img, err := readInput(in, opts)
	if err != nil {
		return err
	}
	img.Quality = opts.quality

	o, err := renameio.TempFile(filepath.Dir(out), out)
	if err != nil {
		return err
	}
	defer o.Cleanup()

	if err := jpeg.Encode(o, img, opts.encode); err != nil {
		return err
	}
	return o.CloseAtomicallyReplace()
}

// readInput loads in as a raw frame, or reads and decodes it as an image
// file.
func readInput(in string, opts options) (jpeg.Image, error) {
	if opts.raw {
		data, err := os.ReadFile(in)
		if err != nil {
			return jpeg.Image{}, err
		}
		return jpeg.Image{Pix: data, Width: opts.width, Height: opts.height, Format: opts.format}, nil
	}

	f, err := os.Open(in)
	if err != nil {
		return jpeg.Image{}, err
	}
	defer f.Close()
	data, err := converter.ReadImage(f)
	if err != nil {
		return jpeg.Image{}, err
	}
	decoded, _, err := converter.SafeDecode(data)
	if err != nil {
		return jpeg.Image{}, err
	}
	return converter.Describe(decoded), nil
}
