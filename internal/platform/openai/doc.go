// Package openai implements generation.Client against OpenAI-compatible chat
// completion servers such as vLLM. Constrained output uses vLLM's
// guided_choice extension.
package openai
