package main

import (
	"fmt"
	"os"

	"github.com/codexlibris/codex/pkg/bookfile"
	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"
)

func main() {
	log := logger.New()

	var opts struct {
		CoverOutput string `short:"o" long:"cover-output" description:"A path to output the cover image"`
	}

	args, err := flags.Parse(&opts)
	if err != nil {
		log.Err(err).Fatal("flags parse error")
	}

	if len(args) != 1 {
		fmt.Println("go run ./cmd/scripts/debug/parse-book <path/to/book>")
		os.Exit(1)
	}

	md, err := bookfile.Extract(args[0])
	if err != nil {
		log.Err(err).Fatal("extract error")
	}

	fmt.Printf("Format: %s\n", md.Source)
	fmt.Printf("Title: %s\n", md.Title)
	fmt.Printf("Author(s): %v\n", md.Authors)
	fmt.Printf("Publisher: %s\n", md.Publisher)
	fmt.Printf("Published: %s\n", md.PublicationDate)
	fmt.Printf("Language: %s\n", md.Language)
	fmt.Printf("Series: %s", md.Series)
	if md.SeriesNumber != nil {
		fmt.Printf(" #%g", *md.SeriesNumber)
	}
	fmt.Println()
	fmt.Printf("Genres: %v\n", md.Genres)
	fmt.Printf("Age Rating: %s\n", md.AgeRating)
	if md.PageCount != nil {
		fmt.Printf("Pages: %d\n", *md.PageCount)
	}
	fmt.Printf("ISBN: %s\n", md.ISBN())
	for _, id := range md.Identifiers {
		fmt.Printf("Identifier: %s=%s\n", id.Type, id.Value)
	}
	fmt.Printf("Has Cover Data: %v\nCover Mime Type: %s\n", len(md.CoverData) > 0, md.CoverMimeType)

	if opts.CoverOutput != "" && md.CoverData != nil {
		f, err := os.Create(opts.CoverOutput)
		if err != nil {
			log.Err(err).Fatal("create file error")
		}
		_, err = f.Write(md.CoverData)
		if err != nil {
			log.Err(err).Fatal("file write error")
		}
	}
}
