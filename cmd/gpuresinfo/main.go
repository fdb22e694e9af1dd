// Command gpuresinfo loads an image into a texture on a software device
// with a chosen capability profile and reports the negotiated formats, the
// mip chain and resource statistics.
//
// Usage:
//
//	gpuresinfo [-profile full|legacy|mobile|file.toml] [-format DXT5] [-mipmaps] [-compress] image.png
package main

import (
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/muesli/termenv"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gogpu/gpures"
	"github.com/gogpu/gpures/backend/soft"
)

func main() {
	var (
		profileName = flag.String("profile", "full", "capability profile: builtin name or TOML file")
		format      = flag.String("format", "auto", "requested internal format")
		kind        = flag.String("kind", "2d", "texture kind: 2d or rect")
		resize      = flag.Int("resize", 0, "resize to this width before upload (0 keeps the size)")
		mipmaps     = flag.Bool("mipmaps", false, "request a complete mip chain")
		compress    = flag.Bool("compress", false, "allow block-compressed storage")
		output      = flag.String("o", "", "write the downloaded level 0 to this file")
		verbose     = flag.Bool("v", false, "log resource lifecycle to stderr")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: gpuresinfo [flags] image")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if *verbose {
		gpures.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	prof, err := loadProfile(*profileName)
	if err != nil {
		log.Fatalf("Failed to load profile: %v", err)
	}
	caps, err := prof.caps()
	if err != nil {
		log.Fatalf("Invalid profile: %v", err)
	}
	requested, err := parseFormat(*format)
	if err != nil {
		log.Fatalf("Invalid format: %v", err)
	}
	var flags gpures.TextureFlags
	if *mipmaps {
		flags |= gpures.FlagMipmaps
	}
	if *compress {
		flags |= gpures.FlagCompression
	}

	src, err := imaging.Open(flag.Arg(0), imaging.AutoOrientation(true))
	if err != nil {
		log.Fatalf("Failed to load image: %v", err)
	}
	if *resize > 0 {
		src = imaging.Resize(src, *resize, 0, imaging.Lanczos)
	}

	dev := soft.New(soft.Config{Caps: caps, MaxBytes: prof.MaxMemoryMB * 1024 * 1024})
	stats := gpures.NewStatistics(gpures.StatsConfig{MaxMemoryMB: prof.MaxMemoryMB})
	r, err := gpures.NewRenderer(dev, gpures.WithStats(stats))
	if err != nil {
		log.Fatalf("Failed to create renderer: %v", err)
	}
	defer r.Close()

	img := gpures.NewImageFromGo(src)
	var tb *gpures.TextureBuffer
	switch strings.ToLower(*kind) {
	case "2d":
		tb, err = r.CreateTexture2D(img, requested, flags)
	case "rect", "rectangle":
		tb, err = r.CreateTextureRectangle(img, requested, flags)
	default:
		log.Fatalf("Unknown texture kind %q", *kind)
	}
	if err != nil {
		log.Fatalf("Failed to create texture: %v", err)
	}
	defer tb.Release()

	report(os.Stdout, prof, src.Bounds(), tb, stats.Snapshot())
	warn(termenv.NewOutput(os.Stderr), tb.Negotiation().Notes, tb.Warnings())

	if *output != "" {
		if err := save(tb, *output); err != nil {
			log.Fatalf("Failed to save: %v", err)
		}
		log.Printf("Level 0 saved to %s\n", *output)
	}
}

func report(w io.Writer, prof profile, bounds image.Rectangle, tb *gpures.TextureBuffer, snap gpures.StatsSnapshot) {
	p := message.NewPrinter(language.English)
	neg := tb.Negotiation()

	p.Fprintf(w, "profile   %s\n", prof.Name)
	p.Fprintf(w, "image     %dx%d\n", bounds.Dx(), bounds.Dy())
	p.Fprintf(w, "texture   %v %v flags=%v\n", tb.Kind(), tb.Format(), tb.Flags())
	p.Fprintf(w, "negotiate internal=%v fallback=%v source=%v precompressed=%v\n",
		neg.Internal, neg.Fallback, neg.Source, neg.Precompressed)
	p.Fprintf(w, "storage   compressed=%v\n", tb.Handle() != nil && tb.Handle().Compressed())

	p.Fprintf(w, "\n%-6s %-12s %s\n", "level", "size", "bytes")
	for _, l := range tb.MipChain() {
		p.Fprintf(w, "%-6d %-12v %d\n", l.Index, l.Size, l.Bytes)
	}
	p.Fprintf(w, "total  %d bytes\n", tb.GetTotalNumOfBytes())

	p.Fprintf(w, "\nresident %d of %d bytes (%.1f%%), peak %d, %d allocations\n",
		snap.TotalBytes, snap.BudgetBytes, snap.Utilization*100, snap.PeakBytes, snap.Allocations)
}

// warn prints degradations in yellow when stderr is a color terminal.
func warn(out *termenv.Output, notes, warnings []string) {
	for _, s := range append(notes, warnings...) {
		fmt.Fprintln(out, out.String("warning: "+s).Foreground(termenv.ANSIYellow))
	}
}

func save(tb *gpures.TextureBuffer, path string) error {
	data := tb.CopyDataToImage()
	if data == nil {
		return tb.Err()
	}
	img, err := data.ToGo(gpures.PartStatic)
	if err != nil {
		return err
	}
	return imaging.Save(img, path)
}
