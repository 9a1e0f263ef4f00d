// Package openai implements the provider adapter for OpenAI's chat
// completions API.
//
// The wire types and streaming reader are exported because several other
// vendors (XAI, OpenRouter) speak the same chat-completions protocol; their
// adapters reuse this package's codec and differ only in endpoints, headers,
// and vendor-specific extensions.
package openai
