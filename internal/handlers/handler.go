// internal/handlers/handler.go
package handlers

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"audit-orchestrator/internal/capabilities/genai"
	"audit-orchestrator/internal/capabilities/knowledge"
	"audit-orchestrator/internal/common/config"
	"audit-orchestrator/internal/common/text"
	"audit-orchestrator/internal/models"
	"audit-orchestrator/internal/orchestration/registry"
)

const (
	unknownTitle = "Unknown Document"
	unknownFile  = "Unknown"

	citationInstructions = "INSTRUCTIONS: When referencing information in your response, cite the specific document " +
		"using the format [DOC_XXX] where XXX is the document ID. Always provide detailed, comprehensive responses " +
		"with proper document citations."
)

// KnowledgeHandler answers a query from one specialized knowledge base.
type KnowledgeHandler interface {
	ID() models.HandlerID
	ProcessQuery(ctx context.Context, query string) (*models.HandlerOutput, error)
}

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
}

type Config struct {
	TopK         int
	ExcerptChars int
}

func NewConfig(appConfig *config.Config) *Config {
	return &Config{
		TopK:         appConfig.Knowledge.TopK,
		ExcerptChars: appConfig.Knowledge.ExcerptChars,
	}
}

// SearchHandler retrieves documents from its index and asks the text generator to answer
// from them.
type SearchHandler struct {
	descriptor models.HandlerDescriptor
	config     *Config
	searcher   knowledge.Searcher
	generator  genai.Generator
	logger     Logger
}

func NewSearchHandler(descriptor models.HandlerDescriptor, config *Config, searcher knowledge.Searcher, generator genai.Generator, log Logger) *SearchHandler {
	return &SearchHandler{
		descriptor: descriptor,
		config:     config,
		searcher:   searcher,
		generator:  generator,
		logger:     log,
	}
}

func (h *SearchHandler) ID() models.HandlerID {
	return h.descriptor.ID
}

func (h *SearchHandler) ProcessQuery(ctx context.Context, query string) (*models.HandlerOutput, error) {
	hits, err := h.searcher.Search(ctx, knowledge.Query{
		HandlerID: h.descriptor.ID,
		Index:     h.descriptor.Index,
		Namespace: h.descriptor.Namespace,
		Text:      query,
		TopK:      h.config.TopK,
	})
	if err != nil {
		return nil, err
	}

	sources, citations, contextParts := h.buildReferences(hits)

	prompt := buildUserPrompt(query, strings.Join(contextParts, "\n\n"), citations)
	response, err := h.generator.Generate(ctx, genai.Request{
		SystemPrompt: h.descriptor.SystemPrompt,
		UserPrompt:   prompt,
		Temperature:  h.descriptor.Temperature,
		MaxTokens:    h.descriptor.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	h.logger.Debug("handler answered", map[string]interface{}{
		"handlerId": string(h.descriptor.ID),
		"documents": len(sources),
	})

	return &models.HandlerOutput{
		Response:  response,
		Sources:   sources,
		Citations: citations,
	}, nil
}

func (h *SearchHandler) buildReferences(hits []models.SearchHit) ([]models.Source, []models.Citation, []string) {
	sources := make([]models.Source, 0, len(hits))
	citations := make([]models.Citation, 0, len(hits))
	var contextParts []string

	for i, hit := range hits {
		n := i + 1
		docID := fmt.Sprintf("DOC_%03d", n)

		if hit.Content != "" {
			contextParts = append(contextParts, fmt.Sprintf("[Document %d]: %s", n, hit.Content))
		}

		title := hit.MetadataString("title")
		if title == "" {
			title = unknownTitle
		}
		filePath := hit.MetadataString("file_path")
		meta := models.FileMetadata{
			FilePath:      filePath,
			FileName:      fileName(filePath),
			FileExtension: fileExtension(filePath),
			SourceType:    hit.MetadataString("source_type"),
			Date:          hit.MetadataString("date"),
			Company:       hit.MetadataString("company"),
			Category:      hit.MetadataString("category"),
			PageNumber:    hit.MetadataString("page_number"),
			Section:       hit.MetadataString("section"),
		}

		sources = append(sources, models.Source{
			DocumentID:     docID,
			Title:          title,
			RelevanceScore: hit.Score,
			Content:        text.Excerpt(hit.Content, h.config.ExcerptChars),
			HandlerID:      h.descriptor.ID,
			Metadata:       meta,
		})
		citations = append(citations, models.Citation{
			DocumentID:     docID,
			Title:          title,
			FileName:       meta.FileName,
			FileExtension:  meta.FileExtension,
			RelevanceScore: hit.Score,
			HandlerID:      h.descriptor.ID,
		})
	}
	return sources, citations, contextParts
}

func buildUserPrompt(query, documents string, citations []models.Citation) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(documents)
	if len(citations) > 0 {
		b.WriteString("\n\nDOCUMENT CITATIONS:\n")
		for _, c := range citations {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", c.DocumentID, c.Title, c.FileName)
		}
		b.WriteString("\n")
		b.WriteString(citationInstructions)
	}
	b.WriteString("\n\nQuery: ")
	b.WriteString(query)
	return b.String()
}

func fileName(path string) string {
	if path == "" {
		return unknownFile
	}
	return filepath.Base(path)
}

// fileExtension returns the lowercased extension including the dot, or "" when there is none.
func fileExtension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// Set is the closed set of handlers keyed by id.
type Set map[models.HandlerID]KnowledgeHandler

// NewSet builds one SearchHandler per registry descriptor.
func NewSet(reg *registry.Registry, searcher knowledge.Searcher, generator genai.Generator, config *Config, log Logger) Set {
	set := make(Set, reg.Len())
	for _, d := range reg.Descriptors() {
		set[d.ID] = NewSearchHandler(d, config, searcher, generator, log)
	}
	log.Info("knowledge handlers ready", map[string]interface{}{"handlers": len(set)})
	return set
}

func (s Set) Get(id models.HandlerID) (KnowledgeHandler, bool) {
	h, ok := s[id]
	return h, ok
}
