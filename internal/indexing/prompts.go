package indexing

import (
	"context"
	"strings"

	"github.com/veeky/veeky-backend/internal/platform/logger"
	"github.com/veeky/veeky-backend/internal/repos"
)

const (
	PromptPurposeKeyframeDescription = "keyframe_description"
	PromptPurposeTranscriptCleanup   = "transcript_cleanup"
)

var defaultPrompts = map[string]string{
	PromptPurposeKeyframeDescription: "Describe this frame from a {category} video in one or two factual sentences. " +
		"Mention visible objects, people, text and actions. Do not speculate about anything outside the frame.",
	PromptPurposeTranscriptCleanup: "The following is an automatic speech transcript from a {category} video. " +
		"Correct recognition errors, fix punctuation and casing, and remove filler words. " +
		"Return only the corrected transcript with no commentary.",
}

// PromptResolver resolves prompt templates from dynamic configuration with
// built-in defaults, substituting the video category into the template.
type PromptResolver struct {
	log     *logger.Logger
	prompts repos.PromptRepo
}

func NewPromptResolver(log *logger.Logger, prompts repos.PromptRepo) *PromptResolver {
	return &PromptResolver{
		log:     log.With("service", "PromptResolver"),
		prompts: prompts,
	}
}

// FetchPrompt returns the active configured template for the purpose, or the
// built-in default when none is configured. Configuration lookup failures
// degrade to the default rather than aborting the run.
func (r *PromptResolver) FetchPrompt(ctx context.Context, purpose, categoryName string) string {
	template := ""
	if r.prompts != nil {
		configured, err := r.prompts.ActiveTemplate(ctx, nil, purpose)
		if err != nil {
			r.log.Warn("prompt lookup failed, using default", "purpose", purpose, "error", err)
		} else {
			template = configured
		}
	}
	if template == "" {
		template = defaultPrompts[purpose]
	}
	return strings.ReplaceAll(template, "{category}", categoryName)
}
