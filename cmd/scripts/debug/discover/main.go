package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/foliobooks/folio/pkg/config"
	"github.com/foliobooks/folio/pkg/discovery"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"
)

func main() {
	log := logger.New()
	ctx := log.WithContext(context.Background())

	var opts struct {
		Author string `short:"a" long:"author" description:"Author to search for"`
	}

	args, err := flags.Parse(&opts)
	if err != nil {
		log.Err(err).Fatal("flags parse error")
	}

	if len(args) != 1 {
		fmt.Println(`go run ./cmd/scripts/debug/discover [-a "Author Name"] "<title>"`)
		os.Exit(1)
	}
	title := args[0]

	cfg, err := config.New()
	if err != nil {
		// Discovery needs no database; fall back to the defaults.
		cfg = config.NewForTest()
	}

	client := &http.Client{Timeout: cfg.DiscoveryRequestTimeout}
	resolver := discovery.NewResolver(cfg, client)

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Strategy", "Outcome", "Author", "Cover URL", "Took"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 5, WidthMax: 80},
		{Number: 6, Align: text.AlignRight},
	})

	for i, strategy := range resolver.Strategies() {
		start := time.Now()
		res := strategy.FindCover(ctx, title, opts.Author)
		took := time.Since(start).Round(time.Millisecond)

		outcome, author, url := "none", "", ""
		if c, ok := res.Get(); ok {
			outcome, author, url = "found", c.Author, c.URL
		} else if res.Failed() {
			outcome, url = "failed", res.Err.Error()
		}
		tw.AppendRow(table.Row{strconv.Itoa(i + 1), strategy.Name(), outcome, author, url, took.String()})
	}
	fmt.Println(tw.Render())

	winner := resolver.FindCover(ctx, title, opts.Author)
	fmt.Printf("Resolved: %s (%s)\n", winner.URL, winner.Source)
	if winner.Author != "" {
		fmt.Printf("Author:   %s\n", winner.Author)
	}
}
