package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/tienvm/ragdoc/pkg/assistant"
	cfgPkg "github.com/tienvm/ragdoc/pkg/config"
	"github.com/tienvm/ragdoc/server"
)

func main() {
	var configPath string
	var docsPath string
	var serve bool
	var forceReload bool

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&docsPath, "docs", "", "File or directory to load before starting")
	flag.BoolVar(&serve, "serve", false, "Run the HTTP server instead of the interactive chat")
	flag.BoolVar(&forceReload, "force-reload", false, "Destroy the existing index before loading")
	flag.Parse()

	if err := run(configPath, docsPath, serve, forceReload); err != nil {
		log.Fatal(err)
	}
}

func run(configPath, docsPath string, serve, forceReload bool) error {
	config, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config error: %v", e)
		}
		return fmt.Errorf("invalid configuration")
	}

	bot, err := assistant.NewFromConfig(config)
	if err != nil {
		return fmt.Errorf("failed to initialize assistant: %v", err)
	}

	if docsPath != "" {
		if err := loadWithProgress(bot, docsPath, forceReload); err != nil {
			return err
		}
	}

	if serve {
		return server.New(bot).ListenAndServe(config.Server.Port)
	}

	return chatLoop(bot)
}

func loadWithProgress(bot *assistant.Assistant, path string, forceReload bool) error {
	color.Blue("\nLoading documents from %s", path)

	bar := getProgressBar(-1, " Embedding chunks...")
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(100 * time.Millisecond):
				status := bot.Status()
				if status.Total > 0 {
					bar.ChangeMax(status.Total)
				}
				bar.Set(status.Processed)
			}
		}
	}()

	count, err := bot.LoadDocuments(context.Background(), []string{path}, forceReload)
	close(done)
	bar.Finish()

	if err != nil {
		return fmt.Errorf("failed to load documents: %v", err)
	}

	color.Green("\n✓ Loaded %d chunks\n", count)
	return nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("chunks"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func chatLoop(bot *assistant.Assistant) error {
	color.Cyan("\nChat with your documents (type 'exit' to quit)")
	color.Cyan("Commands: 'load <path>' to load documents, 'clear' to reset the conversation, 'sources' to show the last answer's sources")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	var lastSources []string

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch {
		case strings.EqualFold(input, "exit"):
			return nil

		case strings.EqualFold(input, "clear"):
			if err := bot.ResetConversation(); err != nil {
				color.Red("Error: %v", err)
				continue
			}
			color.Yellow("Conversation history cleared")
			continue

		case strings.EqualFold(input, "sources"):
			if len(lastSources) == 0 {
				color.Yellow("No sources recorded for the last answer")
				continue
			}
			for i, src := range lastSources {
				color.Yellow("\nSource %d:\n%s", i+1, src)
			}
			continue

		case strings.HasPrefix(strings.ToLower(input), "load "):
			path := strings.TrimSpace(input[len("load "):])
			if err := loadWithProgress(bot, path, false); err != nil {
				color.Red("Error: %v", err)
			}
			continue
		}

		spinner := getSpinner(" Thinking...")
		start := time.Now()
		result := bot.Answer(context.Background(), input, true)
		spinner.Finish()

		lastSources = lastSources[:0]
		for _, src := range result.Sources {
			lastSources = append(lastSources, src.Content)
		}

		if result.Failure {
			color.Red("\n%s", result.Answer)
			continue
		}

		fmt.Print("\n")
		assistantPrompt("Assistant (%.2fs): %s\n", time.Since(start).Seconds(), result.Answer)
	}

	return nil
}
