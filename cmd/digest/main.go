package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/openscience/digest/config"
	"github.com/openscience/digest/internal/digest"
	"github.com/openscience/digest/internal/publish"
	github_publisher "github.com/openscience/digest/internal/publish/github"
	notion_publisher "github.com/openscience/digest/internal/publish/notion"
	"github.com/openscience/digest/internal/search"
	"github.com/openscience/digest/internal/telemetry"
	"github.com/openscience/digest/provider"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "digest",
		Short: "Scheduled Open Science News Digest agent",
	}
	root.AddCommand(serveCMD(), onceCMD(), summaryCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildRunner wires the full publishing pipeline: completer, gatherer,
// GitHub issue publisher, and the optional Notion append sink.
func buildRunner(cfg *config.Config, tele *telemetry.Telemetry) (*digest.Runner, error) {
	if err := cfg.LLM.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Publish.GitHub.Validate(); err != nil {
		return nil, err
	}

	completer, err := provider.NewCompleter(provider.OpenAI, cfg.LLM)
	if err != nil {
		return nil, err
	}
	gatherer, err := search.NewGatherer(cfg.Search)
	if err != nil {
		return nil, err
	}

	primary := github_publisher.NewPublisher(
		cfg.Publish.GitHub.Token,
		cfg.Publish.GitHub.Repo,
		cfg.Publish.GitHub.BaseURL,
		cfg.Publish.RetryDelay,
		cfg.Publish.GitHub.Timeout,
		nil,
	)

	var sinks []publish.Publisher
	if cfg.Publish.Notion.Enabled() {
		appender, err := notion_publisher.NewAppender(cfg.Publish.Notion.Token, cfg.Publish.Notion.PageID)
		if err != nil {
			return nil, fmt.Errorf("notion sink: %w", err)
		}
		sinks = append(sinks, appender)
	}

	logger := log.New(os.Stdout, "[RUNNER] ", log.LstdFlags)
	return digest.NewRunner(cfg, completer, gatherer, primary, sinks, tele, logger), nil
}
