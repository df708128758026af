package notice

import (
	"context"
	"fmt"
	"strings"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/aegis/internal/triage"
)

// Provider produces tailored notice text from a system instruction and a
// prompt. Implemented by the Claude client.
type Provider interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Draft is a ready-to-send enforcement notice for one work item.
type Draft struct {
	WorkItemID string `json:"work_item_id"`
	Template   string `json:"template"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	TailoredBy string `json:"tailored_by"`
}

// Drafter renders enforcement notices: template selection, placeholder fill,
// and optional model tailoring.
type Drafter struct {
	registry *Registry
	provider Provider
	logger   log.Logger
}

// NewDrafter creates a drafter. provider may be nil; drafts then come
// straight from the filled template.
func NewDrafter(registry *Registry, provider Provider, logger log.Logger) *Drafter {
	if logger == nil {
		logger = log.Nop()
	}
	return &Drafter{registry: registry, provider: provider, logger: logger}
}

// Templates returns the registered template catalog.
func (d *Drafter) Templates() []Template {
	return d.registry.List()
}

// Draft renders the notice for item under cfg. A configured provider tailors
// the body to the target platform; provider failure falls back to the filled
// template instead of failing the draft.
func (d *Drafter) Draft(ctx context.Context, item *triage.WorkItem, cfg triage.AutomationConfig) (*Draft, error) {
	name := triage.SelectTemplate(*item, cfg)
	tpl, ok := d.registry.Get(name)
	if !ok {
		// A platform rule can name a template nobody registered.
		d.logger.Warn(ctx, "preferred template not registered, using generic",
			"template", name, "platform", item.Platform)
		tpl, ok = d.registry.Get(triage.TemplateGeneric)
		if !ok {
			return nil, fmt.Errorf("template %s not registered", triage.TemplateGeneric)
		}
	}

	draft := &Draft{
		WorkItemID: item.ID,
		Template:   tpl.Name,
		Subject:    fill(tpl.Subject, item),
		Body:       fill(tpl.Body, item),
		TailoredBy: "template",
	}

	if d.provider == nil {
		return draft, nil
	}

	tailored, err := d.provider.Complete(ctx, tailorSystemPrompt, tailorPrompt(draft.Body, item))
	if err != nil {
		d.logger.Warn(ctx, "model tailoring failed, using template body",
			"error", err, "work_item_id", item.ID)
		return draft, nil
	}
	if body := strings.TrimSpace(tailored); body != "" {
		draft.Body = body
		draft.TailoredBy = "claude"
	}

	d.logger.Info(ctx, "notice drafted",
		"work_item_id", item.ID,
		"template", draft.Template,
		"tailored_by", draft.TailoredBy,
	)
	return draft, nil
}

const tailorSystemPrompt = `You finalize DMCA takedown notices for a content protection service.
Keep the legal structure and every factual claim of the draft exactly as
given. Adjust tone and phrasing for the target platform's abuse team, keep
the result under 250 words, and return only the notice text.`

func tailorPrompt(body string, item *triage.WorkItem) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Platform: %s\n", item.Platform)
	if item.Metadata.ContentType != "" {
		fmt.Fprintf(&sb, "Content type: %s\n", item.Metadata.ContentType)
	}
	if item.Metadata.Similarity != nil {
		fmt.Fprintf(&sb, "Match similarity: %.0f%%\n", *item.Metadata.Similarity)
	}
	fmt.Fprintf(&sb, "\nDraft notice:\n%s", body)
	return sb.String()
}

func fill(s string, item *triage.WorkItem) string {
	detected := "the date of detection"
	if !item.DetectedAt.IsZero() {
		detected = item.DetectedAt.UTC().Format("January 2, 2006")
	}
	source := item.Metadata.SourceURL
	if source == "" {
		source = "the reported location"
	}
	return strings.NewReplacer(
		"{{platform}}", item.Platform,
		"{{profile_name}}", item.ProfileName,
		"{{source_url}}", source,
		"{{detected_at}}", detected,
	).Replace(s)
}
