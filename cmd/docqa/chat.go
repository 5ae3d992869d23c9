package main

import (
	"bufio"
	"os"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/docqa/pkg/pipeline"
)

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with your documents (paste a URL to index it)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		sessionID := newSessionID()
		color.Cyan("\nChat with your documents (type 'exit' to quit)")
		color.New(color.Faint).Printf("session %s\n", sessionID)

		scanner := bufio.NewScanner(os.Stdin)
		userPrompt := color.New(color.FgGreen).PrintfFunc()

		for {
			userPrompt("\nYou: ")
			if !scanner.Scan() {
				break
			}

			query := strings.TrimSpace(scanner.Text())
			if strings.ToLower(query) == "exit" {
				break
			}
			if query == "" {
				continue
			}

			if url := urlRegex.FindString(query); url != "" {
				color.Blue("\nDetected URL: %s", url)
				if err := a.crawl(ctx, url); err != nil {
					color.Red("%v\n", err)
					continue
				}
				if query == url {
					continue
				}
				query = strings.TrimSpace(strings.Replace(query, url, "", 1))
			}

			if _, err := a.answer(ctx, pipeline.QueryRequest{Question: query, SessionID: sessionID}); err != nil {
				color.Red("Error: %v\n", err)
			}
		}

		return scanner.Err()
	},
}
