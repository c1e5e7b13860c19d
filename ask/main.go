// Command ask answers one health question from the terminal.
//
//	ask -lang es "¿Qué es el dengue?"
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/dr-haathi/healthbot/internal/config"
	"github.com/dr-haathi/healthbot/internal/language"
	"github.com/dr-haathi/healthbot/internal/logger"
	"github.com/dr-haathi/healthbot/internal/models"
	"github.com/dr-haathi/healthbot/internal/pipeline"
)

func main() {
	lang := flag.String("lang", "en", "language of the question (en, hi, es, fr)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: ask [-lang code] question...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	question := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if question == "" {
		flag.Usage()
		os.Exit(2)
	}

	// Pipeline logs stay quiet unless LOG_LEVEL asks for them.
	log := logger.OrDiscard(nil)
	if os.Getenv("LOG_LEVEL") != "" {
		log = logger.New("ask")
	}
	if err := config.LoadDotEnv(); err != nil {
		color.Red("load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadAPI()
	if err != nil {
		color.Red("config: %v\n", err)
		os.Exit(1)
	}

	orchestrator, _, err := pipeline.FromConfig(cfg, log)
	if err != nil {
		color.Red("init pipeline: %v\n", err)
		os.Exit(1)
	}

	answer, err := orchestrator.Ask(context.Background(), question, models.Language(*lang))
	if err != nil {
		color.Red("%v\n", err)
		os.Exit(2)
	}
	printAnswer(os.Stdout, answer)
}

var (
	headingStyle = color.New(color.FgCyan, color.Bold)
	noticeStyle  = color.New(color.FgYellow)
	sourceStyle  = color.New(color.FgBlue)
	warnStyle    = color.New(color.FgRed, color.Italic)
)

func printAnswer(w io.Writer, answer models.StructuredAnswer) {
	labels := language.LabelsFor(answer.Language)

	for _, notice := range answer.Notices {
		noticeStyle.Fprintf(w, "%s\n\n", notice)
	}

	for _, section := range answer.Sections {
		if !answer.Fallback {
			headingStyle.Fprintf(w, "%s\n", labels.Heading(section.Category))
		}
		fmt.Fprint(w, section.Text())
		for _, id := range section.CitationIDs {
			fmt.Fprintf(w, " [%d]", id)
		}
		fmt.Fprint(w, "\n\n")
	}

	if len(answer.Citations) > 0 {
		headingStyle.Fprintf(w, "%s\n", labels.Sources)
		for _, c := range answer.Citations {
			sourceStyle.Fprintf(w, "[%d] %s", c.ID, c.Source)
			if c.URL != "" {
				fmt.Fprintf(w, " %s", c.URL)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	if answer.Disclaimer != "" {
		warnStyle.Fprintf(w, "%s\n", answer.Disclaimer)
	}
}
