// Package notice drafts platform enforcement notices for work items:
// template selection, placeholder fill, and optional model tailoring.
package notice

import (
	"sync"

	"github.com/linnemanlabs/aegis/internal/triage"
)

// Template is a reusable enforcement notice. Subject and Body carry
// {{placeholder}} slots filled from the work item at draft time.
type Template struct {
	Name        string             `json:"name"`
	ContentType triage.ContentType `json:"content_type,omitempty"`
	Subject     string             `json:"subject"`
	Body        string             `json:"body"`
}

// Registry holds notice templates keyed by name. Safe for concurrent use;
// List preserves registration order.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Template
	order  []string
}

// NewRegistry creates an empty template registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Template)}
}

// Seeded returns a registry preloaded with the stock DMCA template set.
func Seeded() *Registry {
	r := NewRegistry()
	for _, t := range stockTemplates {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a template, keyed by its Name.
func (r *Registry) Register(t Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[t.Name]; !ok {
		r.order = append(r.order, t.Name)
	}
	r.byName[t.Name] = t
}

// Get retrieves a template by name.
func (r *Registry) Get(name string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// List returns all templates in registration order.
func (r *Registry) List() []Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Template, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

var stockTemplates = []Template{
	{
		Name:        triage.TemplateImageStandard,
		ContentType: triage.ContentImage,
		Subject:     "DMCA Takedown Notice - Unauthorized Image of {{profile_name}}",
		Body: `To the Content Operations Team at {{platform}},

We act on behalf of {{profile_name}}, the exclusive rights holder of the
photographic work appearing at {{source_url}}. The image was published
without license or consent, and its continued availability infringes our
client's copyright.

The infringement was detected on {{detected_at}}. We request expeditious
removal of the material identified above.

We have a good faith belief that the use described is not authorized by the
copyright owner, its agent, or the law. This notice is submitted under
17 U.S.C. 512(c).`,
	},
	{
		Name:        triage.TemplateVideoStandard,
		ContentType: triage.ContentVideo,
		Subject:     "DMCA Takedown Notice - Unauthorized Video of {{profile_name}}",
		Body: `To the Content Operations Team at {{platform}},

We act on behalf of {{profile_name}}, the exclusive rights holder of the
video recording appearing at {{source_url}}. The recording was republished
without license or consent, and its continued availability infringes our
client's copyright.

The infringement was detected on {{detected_at}}. We request expeditious
removal of the material identified above, including any re-encoded or
clipped derivatives hosted under the same account.

We have a good faith belief that the use described is not authorized by the
copyright owner, its agent, or the law. This notice is submitted under
17 U.S.C. 512(c).`,
	},
	{
		Name:        triage.TemplateAudioStandard,
		ContentType: triage.ContentAudio,
		Subject:     "DMCA Takedown Notice - Unauthorized Audio of {{profile_name}}",
		Body: `To the Content Operations Team at {{platform}},

We act on behalf of {{profile_name}}, the exclusive rights holder of the
audio recording appearing at {{source_url}}. The recording was distributed
without license or consent, and its continued availability infringes our
client's copyright.

The infringement was detected on {{detected_at}}. We request expeditious
removal of the material identified above.

We have a good faith belief that the use described is not authorized by the
copyright owner, its agent, or the law. This notice is submitted under
17 U.S.C. 512(c).`,
	},
	{
		Name:        triage.TemplateTextStandard,
		ContentType: triage.ContentText,
		Subject:     "DMCA Takedown Notice - Unauthorized Written Work of {{profile_name}}",
		Body: `To the Content Operations Team at {{platform}},

We act on behalf of {{profile_name}}, the exclusive rights holder of the
written work appearing at {{source_url}}. The text was reproduced without
license or consent, and its continued availability infringes our client's
copyright.

The infringement was detected on {{detected_at}}. We request expeditious
removal of the material identified above.

We have a good faith belief that the use described is not authorized by the
copyright owner, its agent, or the law. This notice is submitted under
17 U.S.C. 512(c).`,
	},
	{
		Name:    triage.TemplateGeneric,
		Subject: "DMCA Takedown Notice - Unauthorized Content of {{profile_name}}",
		Body: `To the Content Operations Team at {{platform}},

We act on behalf of {{profile_name}}, the exclusive rights holder of
original content appearing at {{source_url}}. The material was published
without license or consent, and its continued availability infringes our
client's copyright.

The infringement was detected on {{detected_at}}. We request expeditious
removal of the material identified above.

We have a good faith belief that the use described is not authorized by the
copyright owner, its agent, or the law. This notice is submitted under
17 U.S.C. 512(c).`,
	},
}
