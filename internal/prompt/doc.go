// Package prompt holds the versioned prompt templates used by the pipeline
// stages.
//
// Every template has a stable key ("<id>@v<version>") and a canonical form:
// the text rendered with each field replaced by a "<Field>" placeholder and
// without the model-specific prefix and suffix. The key and the canonical form
// together identify the author of generated content, so editing a template's
// text must come with a version bump.
package prompt
