package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openscience/digest/config"
	"github.com/openscience/digest/internal/digest"
	"github.com/openscience/digest/internal/publish"
	"github.com/openscience/digest/internal/search"
	"github.com/openscience/digest/internal/search/tavily"
	"github.com/openscience/digest/provider"
)

const summarySystemPrompt = "You are an assistant that produces concise, professional email summaries of recent web findings. " +
	"Given search results and a query, produce an email body in Markdown. " +
	"Start with a short subject line, then a brief Executive Summary (3 bullets), then sections 'Policy', 'Tools', 'Research' if applicable. " +
	"For each item include title, one-line summary, and source URL. " +
	"If no items are relevant, return exactly: 'No significant items found in the past 48 hours.'"

// summaryCMD is the one-shot variant: search Tavily (or read a pre-structured
// JSON input), summarize, and write a dated local file instead of publishing.
func summaryCMD() *cobra.Command {
	var cfgPath, query, inputPath string
	var maxResults int

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "One-shot search-and-summarize run, written to a dated local file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if err := cfg.LLM.Validate(); err != nil {
				return err
			}
			if maxResults > 0 {
				cfg.Search.MaxResults = maxResults
			}

			results, fileQuery, err := loadSummaryInput(inputPath, cfg.Search.MaxResults)
			if err != nil {
				return err
			}
			if query == "" {
				query = fileQuery
			}
			if query == "" && inputPath == "" {
				return fmt.Errorf("--query is required when not using --input")
			}

			if len(results) == 0 && inputPath == "" {
				if cfg.Search.Tavily.APIKey == "" {
					return fmt.Errorf("search.tavily.api_key is required for a live summary search")
				}
				client := tavily.NewClient(
					cfg.Search.Tavily.APIKey,
					cfg.Search.Tavily.Endpoint,
					cfg.Search.Tavily.CABundle,
					cfg.Search.Tavily.Depth,
					cfg.Search.Timeout,
				)
				found, err := client.Search(cmd.Context(), query, cfg.Search.MaxResults)
				if err != nil {
					return fmt.Errorf("tavily search: %w", err)
				}
				for _, f := range found {
					results = append(results, search.Result{
						Title:       f.Title,
						Snippet:     f.Snippet,
						URL:         f.URL,
						PublishedAt: f.PublishedAt,
					})
				}
			}

			results = search.Filter(cmd.Context(), results, search.FilterOptions{
				Freshness:  cfg.Search.Freshness,
				MaxResults: cfg.Search.MaxResults,
			})
			blob := search.BuildContext(results, cfg.Search.MaxBlobSize)

			completer, err := provider.NewCompleter(provider.OpenAI, cfg.LLM)
			if err != nil {
				return err
			}
			llmCtx, cancel := context.WithTimeout(cmd.Context(), cfg.LLM.Timeout)
			defer cancel()
			completion, err := completer.Complete(llmCtx, summarySystemPrompt, summaryUserMessage(blob))
			if err != nil {
				return fmt.Errorf("completion request: %w", err)
			}

			body := digest.Sanitize(completion.Text)
			artifact, err := publish.NewFilePublisher(cfg.Publish.OutputDir).Publish(cmd.Context(), time.Now(), body)
			if err != nil {
				return err
			}
			cmd.Printf("Summary written to: %s\n", artifact.Location)
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default searches . and ./config)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "search query (optional when using --input)")
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "pre-structured JSON results file to use instead of a live search")
	cmd.Flags().IntVarP(&maxResults, "max-results", "n", 0, "maximum results to keep (default from config)")
	return cmd
}

func loadSummaryInput(path string, max int) ([]search.Result, string, error) {
	if path == "" {
		return nil, "", nil
	}
	return search.LoadInputFile(path, max)
}

func summaryUserMessage(blob string) string {
	if blob == "" {
		return "No search results were found. Produce the email-body markdown as described, stating explicitly that no significant items were found."
	}
	return fmt.Sprintf("Here's the search blob:\n\n%s\n\nProduce the email-body markdown as described.", blob)
}
