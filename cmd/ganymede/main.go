// Ganymede is a unified completion gateway and streaming task manager.
//
// It fronts multiple LLM vendors behind one streaming completion API,
// providing:
//   - Provider adapters for OpenAI, Anthropic, Google, xAI, and OpenRouter
//   - Total model-to-provider resolution with a pass-through aggregator
//   - Circuit breaking, rate limiting, caching, and cross-provider fallback
//   - Cost estimation, tracking, and per-request cost guards
//   - Background completion tasks with a durable, resumable event stream
//
// Usage:
//
//	# Start the server with default configuration
//	ganymede run
//
//	# Start with a custom configuration file
//	ganymede run --config /path/to/config.yaml
//
//	# Show version information
//	ganymede version
package main

func main() {
	Execute()
}
