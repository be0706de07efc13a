package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"docqa/internal/domain"
	"docqa/internal/metrics"
	"docqa/internal/port"
)

//go:embed templates/qa.txt
var defaultPrompt string

// PromptData is the data passed to the QA prompt template.
type PromptData struct {
	Context  string
	Question string
}

// LoadPrompt parses the template at path, or the built-in template when path is empty.
func LoadPrompt(path string) (*template.Template, error) {
	text := defaultPrompt
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt template: %w", err)
		}
		text = string(data)
	}
	tmpl, err := template.New("qa").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}
	return tmpl, nil
}

// QAUseCase answers questions by stuffing retrieved documents into a prompt.
type QAUseCase struct {
	retriever     port.Retriever
	llm           port.LLM
	prompt        *template.Template
	returnSources bool
	logger        *zap.Logger
}

// NewQAUseCase creates a new QA use case. A nil prompt uses the built-in template.
func NewQAUseCase(
	retriever port.Retriever,
	llm port.LLM,
	prompt *template.Template,
	returnSources bool,
	logger *zap.Logger,
) *QAUseCase {
	if prompt == nil {
		prompt = template.Must(LoadPrompt(""))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QAUseCase{
		retriever:     retriever,
		llm:           llm,
		prompt:        prompt,
		returnSources: returnSources,
		logger:        logger,
	}
}

// Answer retrieves context for question and asks the LLM. A failed retrieval
// is logged and answered without context.
func (u *QAUseCase) Answer(ctx context.Context, question string) (*domain.QAResult, error) {
	start := time.Now()

	docs, err := u.retriever.Retrieve(ctx, question)
	if err != nil {
		metrics.RetrievalErrorsTotal.Inc()
		u.logger.Warn("retrieval failed, answering without context", zap.String("query", question), zap.Error(err))
		docs = nil
	}

	prompt, err := u.renderPrompt(docs, question)
	if err != nil {
		return nil, err
	}

	answer, err := u.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	duration := time.Since(start)
	metrics.QADuration.WithLabelValues(u.llm.ModelName()).Observe(duration.Seconds())
	u.logger.Debug("question answered",
		zap.Int("documents", len(docs)),
		zap.Duration("duration", duration),
	)

	result := &domain.QAResult{
		Query:    question,
		Answer:   strings.TrimSpace(answer),
		Duration: duration,
	}
	if u.returnSources {
		result.Sources = docs
	}
	return result, nil
}

func (u *QAUseCase) renderPrompt(docs []domain.Document, question string) (string, error) {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}

	var buf bytes.Buffer
	data := PromptData{Context: strings.Join(parts, "\n\n"), Question: question}
	if err := u.prompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}
