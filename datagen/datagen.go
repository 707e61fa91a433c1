package datagen

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strings"

	"ibt_platform/train/corpus"
	"ibt_platform/train/storage"
	"ibt_platform/utils/logging"

	"github.com/sashabaranov/go-openai"
)

// LLM is the chat model used to translate seed lines.
type LLM interface {
	Translate(ctx context.Context, systemPrompt, text string) (string, error)
}

type OpenAILLM struct {
	client *openai.Client
	model  string
}

func NewOpenAILLM(apiKey, model string) *OpenAILLM {
	client := openai.NewClient(apiKey)
	return &OpenAILLM{client: client, model: model}
}

func (l *OpenAILLM) Translate(ctx context.Context, systemPrompt, text string) (string, error) {
	res, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: l.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("error creating chat completion: %w", err)
	}

	if len(res.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return strings.TrimSpace(res.Choices[0].Message.Content), nil
}

// Generator translates monolingual source lines into seed parallel pairs,
// writing a two column csv with a header naming both language fields. Blank
// lines and per-line failures are skipped with collectible notices.
type Generator struct {
	Store      storage.Storage
	Llm        LLM
	SourceLang string
	TargetLang string
	MaxRows    int
}

type Report struct {
	Rows    int
	Skipped []corpus.SkipNotice
}

func (g *Generator) systemPrompt() string {
	return fmt.Sprintf(
		"You are a translator between two English language varieties. "+
			"Translate the user's %v text into %v, preserving meaning and tone. "+
			"Respond with the translation only.",
		g.SourceLang, g.TargetLang,
	)
}

func (g *Generator) Run(ctx context.Context, inputPath, outputPath string) (Report, error) {
	file, err := g.Store.Read(inputPath)
	if err != nil {
		return Report{}, err
	}
	defer file.Close()

	var data bytes.Buffer
	if _, err := data.ReadFrom(file); err != nil {
		return Report{}, fmt.Errorf("error reading input file %v: %w", inputPath, err)
	}

	var output bytes.Buffer
	writer := csv.NewWriter(&output)
	if err := writer.Write([]string{g.SourceLang, g.TargetLang}); err != nil {
		return Report{}, fmt.Errorf("error writing csv header: %w", err)
	}

	report := Report{}
	prompt := g.systemPrompt()

	for i, line := range strings.Split(data.String(), "\n") {
		if g.MaxRows > 0 && report.Rows >= g.MaxRows {
			break
		}

		text := strings.TrimSpace(line)
		if text == "" {
			report.Skipped = append(report.Skipped, corpus.SkipNotice{File: inputPath, Line: i + 1, Reason: "blank line"})
			continue
		}

		translation, err := g.Llm.Translate(ctx, prompt, text)
		if err != nil {
			if ctx.Err() != nil {
				return Report{}, ctx.Err()
			}
			slog.Warn("translation failed, skipping line", "line", i+1, "error", err, "code", logging.DATAGEN)
			report.Skipped = append(report.Skipped, corpus.SkipNotice{File: inputPath, Line: i + 1, Reason: fmt.Sprintf("translation failed: %v", err)})
			continue
		}
		if translation == "" {
			report.Skipped = append(report.Skipped, corpus.SkipNotice{File: inputPath, Line: i + 1, Reason: "empty translation"})
			continue
		}

		if err := writer.Write([]string{text, translation}); err != nil {
			return Report{}, fmt.Errorf("error writing csv row: %w", err)
		}
		report.Rows++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return Report{}, fmt.Errorf("error flushing csv output: %w", err)
	}

	if err := g.Store.Write(outputPath, &output); err != nil {
		return Report{}, err
	}

	slog.Info("generated seed pairs", "input", inputPath, "output", outputPath, "rows", report.Rows, "skipped", len(report.Skipped), "code", logging.DATAGEN)

	return report, nil
}
