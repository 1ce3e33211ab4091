package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/discourselab/poliscope/api/server"
	"github.com/discourselab/poliscope/internal/analysis"
	"github.com/discourselab/poliscope/internal/backend"
	"github.com/discourselab/poliscope/internal/config"
	"github.com/discourselab/poliscope/internal/engine"
)

func main() {
	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "analyze":
		runAnalyze(os.Args[2:])
	case "help":
		fallthrough
	default:
		help()
	}
}

func runServe(args []string) {
	serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
	host := serveCmd.String("host", "", "Bind address (overrides configuration)")
	port := serveCmd.String("port", "", "Port (overrides configuration)")
	serveCmd.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	eng, err := newEngine(cfg)
	if err != nil {
		log.Fatalf("failed to create analysis engine: %v", err)
	}

	srv := server.New(cfg, eng)
	slog.Info("starting server", "host", cfg.Server.Host, "port", cfg.Server.Port)
	if err := srv.Run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func runAnalyze(args []string) {
	analyzeCmd := flag.NewFlagSet("analyze", flag.ExitOnError)
	file := analyzeCmd.String("file", "", "Transcript file to analyze (- for stdin, .srt supported)")
	text := analyzeCmd.String("text", "", "Transcript text to analyze inline")
	model := analyzeCmd.String("model", "", "Model override (e.g. gpt-4)")
	language := analyzeCmd.String("language", "", "Commentary language override")
	temperature := analyzeCmd.Float64("temperature", -1, "Sampling temperature override (0.0-2.0)")
	baseURL := analyzeCmd.String("base-url", "", "Local endpoint base URL (e.g. http://localhost:1234/v1)")
	output := analyzeCmd.String("output", "", "Write the result to a file instead of stdout")
	analyzeCmd.Parse(args)

	if *file == "" && *text == "" {
		fmt.Println("Error: either -file or -text is required for analyze.")
		analyzeCmd.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if *baseURL != "" {
		cfg.Analysis.BaseURL = *baseURL
	}

	eng, err := newEngine(cfg)
	if err != nil {
		log.Fatalf("failed to create analysis engine: %v", err)
	}

	var opts []engine.Option
	if *model != "" {
		opts = append(opts, func(o *engine.Options) { o.Model = *model })
	}
	if *language != "" {
		opts = append(opts, func(o *engine.Options) { o.Language = *language })
	}
	if *temperature >= 0 {
		opts = append(opts, func(o *engine.Options) { o.Temperature = temperature })
	}

	ctx := context.Background()
	var result *analysis.Result
	if *text != "" {
		result, err = eng.AnalyzeText(ctx, *text, opts...)
	} else {
		result, err = eng.AnalyzeSource(ctx, *file, opts...)
	}
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("failed to encode result: %v", err)
	}

	if *output != "" {
		if err := os.WriteFile(*output, data, 0644); err != nil {
			log.Fatalf("failed to write result file: %v", err)
		}
		fmt.Printf("Result written to %s\n", *output)
		return
	}
	fmt.Println(string(data))
}

func newEngine(cfg *config.Config) (*engine.Engine, error) {
	provider, err := backend.NewOpenAI(cfg.Analysis)
	if err != nil {
		return nil, err
	}
	return engine.New(cfg.Analysis, provider), nil
}

func help() {
	fmt.Print(`
Usage: poliscope <command> [flags]

Commands:
  serve    Start the analysis HTTP server
  analyze  Analyze a transcript and print the result as JSON
  help     Show this help message

Examples:
  poliscope serve -port 8000
  poliscope analyze -file interview.srt -language English
  poliscope analyze -text "Waarom is dit besluit nu genomen?" -output result.json

Use 'poliscope <command> -h' for more information about a command.

`)
}
