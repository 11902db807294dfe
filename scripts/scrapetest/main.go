package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/use-agent/sillage/client"
)

// CLI flags
var (
	apiURL  = flag.String("api-url", "http://localhost:8000", "Sillage API base URL")
	apiKey  = flag.String("api-key", "", "API key for authenticated requests")
	maxAge  = flag.Duration("max-age", 0, "Reuse cached records younger than this")
	timeout = flag.Duration("timeout", 10*time.Minute, "Overall request timeout")
	output  = flag.String("output", "", "Optional path for the raw JSON response")
)

var defaultURLs = []string{
	"https://www.fragrantica.com/perfume/Davidoff/Zino-Davidoff-590.html",
	"https://www.fragrantica.com/perfume/Louis-Vuitton/Afternoon-Swim-53947.html",
}

func main() {
	flag.Parse()

	urls := flag.Args()
	if len(urls) == 0 {
		urls = defaultURLs
	}

	c := client.New(*apiURL, *apiKey, *timeout)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if _, err := c.Health(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure sillage is running (e.g. go run ./cmd/sillage)\n")
		os.Exit(1)
	}

	fmt.Printf("Scraping %d URL(s) via %s ...\n", len(urls), *apiURL)
	start := time.Now()
	resp, raw, err := c.Scrape(ctx, urls, *maxAge)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Done in %s\n\n", time.Since(start).Round(time.Millisecond))

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		pretty.Write(raw)
	}
	fmt.Println("API Response:")
	fmt.Println(pretty.String())
	fmt.Println()

	client.WriteSummary(os.Stdout, resp)

	if *output != "" {
		if err := os.WriteFile(*output, pretty.Bytes(), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nRaw response written to %s\n", *output)
	}
}
