package triage

// Notice template identifiers. The template bodies live in the notice
// package; triage only selects an identifier.
const (
	TemplateImageStandard = "dmca_image_standard"
	TemplateVideoStandard = "dmca_video_standard"
	TemplateAudioStandard = "dmca_audio_standard"
	TemplateTextStandard  = "dmca_text_standard"
	TemplateGeneric       = "dmca_generic"
)

// SelectTemplate returns the notice template for a work item: the platform
// rule's preferred template when one is set, else the content-type default,
// else the generic fallback. Total function, never fails.
func SelectTemplate(item WorkItem, cfg AutomationConfig) string {
	if r, ok := cfg.PlatformRules[item.Platform]; ok && r.PreferredTemplate != "" {
		return r.PreferredTemplate
	}
	switch item.Metadata.ContentType {
	case ContentImage:
		return TemplateImageStandard
	case ContentVideo:
		return TemplateVideoStandard
	case ContentAudio:
		return TemplateAudioStandard
	case ContentText:
		return TemplateTextStandard
	}
	return TemplateGeneric
}
