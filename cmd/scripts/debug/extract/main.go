package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/foliobooks/folio/pkg/cbz"
	"github.com/foliobooks/folio/pkg/epub"
	"github.com/foliobooks/folio/pkg/extract"
	"github.com/foliobooks/folio/pkg/ingest"
	"github.com/foliobooks/folio/pkg/mediafile"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/foliobooks/folio/pkg/pdf"
	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"
)

func main() {
	log := logger.New()
	ctx := log.WithContext(context.Background())

	var opts struct {
		CoverOutput string `short:"o" long:"cover-output" description:"A path to output the cover image"`
		NoRenderer  bool   `long:"no-renderer" description:"Skip PDF page rendering"`
		Raw         bool   `short:"r" long:"raw" description:"Also print what the container parser reads"`
	}

	args, err := flags.Parse(&opts)
	if err != nil {
		log.Err(err).Fatal("flags parse error")
	}

	if len(args) != 1 {
		fmt.Println("go run ./cmd/scripts/debug/extract <path/to/book.{epub,pdf,cbz}>")
		os.Exit(1)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		log.Err(err).Fatal("read file error")
	}

	format, err := ingest.DetectFormat(filepath.Base(args[0]), "", data)
	if err != nil {
		log.Err(err).Fatal("format detection error")
	}

	if opts.Raw {
		raw, err := parseContainer(format.Container, data)
		if err != nil {
			log.Err(err).Fatal("container parse error")
		}
		fmt.Println(raw.String())
		fmt.Println()
	}

	var pages extract.PageOpener
	if !opts.NoRenderer {
		renderer := pdf.NewRenderer(1, 30*time.Second)
		defer renderer.Close()
		pages = extract.PDFPages(renderer)
	}
	extractor := extract.New(pages)
	file := extract.File{Name: filepath.Base(args[0]), Container: format.Container, Data: data}

	fmt.Printf("Container:       %s (%s)\n", format.Container, format.Format)

	meta := extractor.ExtractMetadata(ctx, file)
	switch m, ok := meta.Get(); {
	case ok:
		fmt.Printf("Title:           %s\nAuthor:          %s\n", m.Title, m.Author)
	case meta.Failed():
		fmt.Printf("Metadata:        failed: %v\n", meta.Err)
	default:
		fmt.Println("Metadata:        none")
	}

	cover := extractor.ExtractCover(ctx, file)
	c, ok := cover.Get()
	switch {
	case ok:
		fmt.Printf("Cover:           %s, %d bytes, from %s\n", c.MimeType, len(c.Data), c.Source)
	case cover.Failed():
		fmt.Printf("Cover:           failed: %v\n", cover.Err)
	default:
		fmt.Println("Cover:           none")
	}

	if opts.CoverOutput != "" && ok {
		out := opts.CoverOutput
		if filepath.Ext(out) == "" {
			out += mediafile.ExtensionForMimeType(c.MimeType)
		}
		if err := os.WriteFile(out, c.Data, 0644); err != nil {
			log.Err(err).Fatal("file write error")
		}
		fmt.Printf("Wrote cover to %s\n", out)
	}
}

func parseContainer(container string, data []byte) (*mediafile.ParsedMetadata, error) {
	switch container {
	case models.ContainerEPUB:
		book, err := epub.Open(data)
		if err != nil {
			return nil, err
		}
		return book.Metadata(), nil
	case models.ContainerCBZ:
		archive, err := cbz.Open(data)
		if err != nil {
			return nil, err
		}
		return archive.Metadata(), nil
	default:
		return pdf.ReadInfo(data)
	}
}
