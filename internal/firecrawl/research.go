package firecrawl

import (
	"context"
	"path"
	"strings"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
)

// DefaultMaxTopics caps how many topics are researched per run
const DefaultMaxTopics = 5

// Metadata keys written by EnrichChunks
const (
	MetaResearchTopics = "research_topics"
	MetaTopic          = "topic"
)

// manifestTech maps well-known manifest files to the technology they imply
var manifestTech = map[string]string{
	"go.mod":           "Go",
	"package.json":     "JavaScript",
	"tsconfig.json":    "TypeScript",
	"requirements.txt": "Python",
	"pyproject.toml":   "Python",
	"setup.py":         "Python",
	"Pipfile":          "Python",
	"Cargo.toml":       "Rust",
	"pom.xml":          "Java",
	"build.gradle":     "Java",
	"build.gradle.kts": "Kotlin",
	"Gemfile":          "Ruby",
	"composer.json":    "PHP",
	"mix.exs":          "Elixir",
	"Package.swift":    "Swift",
	"pubspec.yaml":     "Dart",
	"Dockerfile":       "Docker",
	"CMakeLists.txt":   "C++",
}

// ExtractTopics returns research topics for a repository: its name
// followed by the technologies its manifest files reveal, in the order
// they are first found, capped at max
func ExtractTopics(repoName string, chunks []domain.Chunk, max int) []string {
	if max <= 0 {
		max = DefaultMaxTopics
	}

	var topics []string
	seen := make(map[string]struct{})
	add := func(t string) {
		if t == "" || len(topics) >= max {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		topics = append(topics, t)
	}

	add(repoName)
	for _, c := range chunks {
		if c.FilePath == "" {
			continue
		}
		base := path.Base(c.FilePath)
		if tech, ok := manifestTech[base]; ok {
			add(tech)
		} else if strings.HasSuffix(base, ".csproj") {
			add("C#")
		}
	}
	return topics
}

// PerformDeepResearch researches each topic in turn. A topic that fails
// keeps its error in the result and the remaining topics still run.
func PerformDeepResearch(ctx context.Context, scraper domain.Scraper, topics []string, opts domain.ResearchOptions, logger *utils.Logger) []domain.ResearchResult {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	logger.Info().Int("topics", len(topics)).Msg("Performing deep research")

	results := make([]domain.ResearchResult, 0, len(topics))
	for _, topic := range topics {
		if err := ctx.Err(); err != nil {
			results = append(results, domain.ResearchResult{Topic: topic, Error: err.Error()})
			continue
		}

		logger.Info().Str("topic", topic).Msg("Researching topic")
		res, err := scraper.DeepResearch(ctx, topic, opts)
		if err != nil {
			logger.Warn().Err(err).Str("topic", topic).Msg("Error researching topic")
			results = append(results, domain.ResearchResult{Topic: topic, Error: err.Error()})
			continue
		}
		res.Topic = topic
		results = append(results, *res)
		logger.Info().Str("topic", topic).Int("sources", len(res.Sources)).Msg("Research completed for topic")
	}
	return results
}

// EnrichChunks copies chunks and tags each copy with the topics whose
// research succeeded. One deep_research chunk holding the analysis is
// appended per successful topic.
func EnrichChunks(chunks []domain.Chunk, results []domain.ResearchResult) []domain.Chunk {
	var ok []domain.ResearchResult
	for _, r := range results {
		if !r.Failed() {
			ok = append(ok, r)
		}
	}

	names := make([]string, len(ok))
	for i, r := range ok {
		names[i] = r.Topic
	}
	topics := strings.Join(names, ", ")

	enriched := make([]domain.Chunk, 0, len(chunks)+len(ok))
	for _, c := range chunks {
		cp := c.Clone()
		if cp.Metadata == nil {
			cp.Metadata = make(map[string]string, 1)
		}
		cp.Metadata[MetaResearchTopics] = topics
		enriched = append(enriched, cp)
	}

	for _, r := range ok {
		if strings.TrimSpace(r.FinalAnalysis) == "" {
			continue
		}
		enriched = append(enriched, domain.Chunk{
			Text:       r.FinalAnalysis,
			SourceType: domain.SourceDeepResearch,
			Metadata: map[string]string{
				MetaTopic:          r.Topic,
				MetaResearchTopics: topics,
			},
		})
	}
	return enriched
}
