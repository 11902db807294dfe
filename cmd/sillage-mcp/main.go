package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/sillage/api/handler"
	"github.com/use-agent/sillage/client"
)

func main() {
	apiURL := os.Getenv("SILLAGE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8000"
	}
	apiKey := os.Getenv("SILLAGE_API_KEY")

	c := client.New(apiURL, apiKey, 600*time.Second)

	s := server.NewMCPServer(
		"sillage",
		handler.Version,
		server.WithToolCapabilities(false),
	)

	scrapeTool := mcp.NewTool("scrape_fragrances",
		mcp.WithDescription("Extract structured fragrance data (title, house, gender, image, accords, notes pyramid) from one or more perfume product pages."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("Product page URLs to extract, processed in order"),
		),
		mcp.WithNumber("max_age",
			mcp.Description("Reuse a cached record younger than this many milliseconds (default: 0, always fetch)"),
		),
	)
	s.AddTool(scrapeTool, handleScrape(c))

	healthTool := mcp.NewTool("service_health",
		mcp.WithDescription("Report the sillage server status, fetch mode and browser pool usage."),
	)
	s.AddTool(healthTool, handleHealth(c))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleScrape(c *client.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := request.RequireStringSlice("urls")
		if err != nil {
			return mcp.NewToolResultError("urls is required and must be an array of strings"), nil
		}
		maxAge := time.Duration(request.GetFloat("max_age", 0)) * time.Millisecond

		resp, _, err := c.Scrape(ctx, urls, maxAge)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("scrape failed: %v", err)), nil
		}

		var sb strings.Builder
		client.WriteSummary(&sb, resp)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleHealth(c *client.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		h, err := c.Health(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("health check failed: %v", err)), nil
		}
		p := h.PoolStats
		return mcp.NewToolResultText(fmt.Sprintf(
			"Status: %s\nVersion: %s\nUptime: %s\nFetch mode: %s\nPages: %d active / %d live / %d max\n",
			h.Status, h.Version, h.Uptime, h.FetchMode, p.ActivePages, p.LivePages, p.MaxPages,
		)), nil
	}
}
