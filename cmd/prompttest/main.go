package main

// Run one generation prompt against an invention description:
//   go run ./cmd/prompttest -invention invention.txt -kind search_queries -provider openai

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"iprisk-backend/internal/llm"
	"iprisk-backend/internal/llm/anthropic"
	"iprisk-backend/internal/llm/openai"
	"iprisk-backend/internal/patents"
	"iprisk-backend/internal/pipeline"
	"iprisk-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	inventionPath := flag.String("invention", "", "Path to a plain-text invention description")
	keywords := flag.String("keywords", "", "Comma separated technical keywords (optional)")
	kind := flag.String("kind", string(llm.KindSearchQueries), "Prompt kind: search_queries or conflict_score")
	provider := flag.String("provider", "offline", "Provider: openai, anthropic or offline")
	outPath := flag.String("out", "", "Path to write raw output (optional)")
	flag.Parse()

	if strings.TrimSpace(*inventionPath) == "" {
		exitErr("invention path is required")
	}
	raw, err := os.ReadFile(*inventionPath)
	if err != nil {
		exitErr(fmt.Sprintf("read invention: %v", err))
	}
	input := pipeline.InventionInput{Description: string(raw), Keywords: splitKeywords(*keywords)}
	if err := pipeline.ValidateInput(input); err != nil {
		exitErr(err.Error())
	}

	gen, err := buildGenerator(cfg, *provider)
	if err != nil {
		exitErr(err.Error())
	}

	ctx := context.Background()
	req, err := buildRequest(ctx, llm.Kind(strings.TrimSpace(*kind)), input)
	if err != nil {
		exitErr(err.Error())
	}

	output, err := gen.Generate(ctx, req)
	if err != nil {
		exitErr(fmt.Sprintf("%s generate: %v", gen.Name(), err))
	}
	output = llm.StripCodeFence(output)
	if pretty, err := prettyJSON([]byte(output)); err == nil {
		output = string(pretty)
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, []byte(output), 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}
	if _, err := os.Stdout.WriteString(output); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
	if !strings.HasSuffix(output, "\n") {
		_, _ = os.Stdout.WriteString("\n")
	}
}

// buildRequest renders the prompt for kind. Scoring runs against the best
// match from the bundled catalog.
func buildRequest(ctx context.Context, kind llm.Kind, input pipeline.InventionInput) (llm.Request, error) {
	switch kind {
	case llm.KindSearchQueries:
		return llm.NewRequest(kind, input)
	case llm.KindConflictScore:
		query := patents.Query{Text: strings.Join(append([]string{input.Description}, input.Keywords...), " ")}
		found, err := patents.NewStaticClient().Search(ctx, query)
		if err != nil {
			return llm.Request{}, fmt.Errorf("catalog search: %w", err)
		}
		ranked := patents.Rank(found, 1)
		if len(ranked) == 0 {
			return llm.Request{}, fmt.Errorf("no catalog reference matches the invention")
		}
		c := ranked[0]
		return llm.NewRequest(kind, struct {
			Description  string
			PatentNumber string
			Title        string
			Assignee     string
			LegalStatus  string
			Abstract     string
		}{input.Description, c.PatentNumber, c.Title, c.Assignee, c.LegalStatus, c.Abstract})
	default:
		return llm.Request{}, fmt.Errorf("unsupported prompt kind: %s", kind)
	}
}

func buildGenerator(cfg config.Config, provider string) (llm.Generator, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "offline":
		return llm.Offline{}, nil
	case "openai":
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.LLMTimeout)
	case "anthropic":
		return anthropic.NewClient(anthropic.Options{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.AnthropicModel,
			Timeout: cfg.LLMTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func splitKeywords(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func prettyJSON(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
