/*
Package llmgate unifies heterogeneous LLM provider APIs behind one adapter
interface: chat, streaming, embeddings, vision, and tool calling over plain
HTTP, with retries and typed errors.

# Design Principles

  - Explicit configuration: adapters are configured from flat option maps,
    validated lazily at call time
  - Defensive response handling: provider payloads are read through coercing
    accessors that degrade to defaults instead of panicking
  - Predictable failures: every error carries a kind, the provider name, and
    the attempt count

# Quick Start

Create an adapter through the registry:

	reg := llmgate.NewRegistry(llmgate.RegistryOptions{})
	adapter, err := reg.CreateAdapter("openai", llmgate.Options{
	    "api_key": os.Getenv("OPENAI_API_KEY"),
	})
	if err != nil {
	    log.Fatal(err)
	}

	resp, err := adapter.ChatCompletion(context.Background(), &llmgate.Request{
	    Model: "gpt-4o-mini",
	    Messages: []llmgate.Message{
	        {Role: "user", Content: "Explain AI in one sentence."},
	    },
	})

# Streaming

Streams are pull-based; Next returns one text delta at a time and io.EOF at
the end:

	stream, err := adapter.StreamChatCompletion(ctx, req)
	if err != nil {
	    log.Fatal(err)
	}
	defer stream.Close()

	for {
	    delta, err := stream.Next()
	    if err == io.EOF {
	        break
	    }
	    if err != nil {
	        log.Fatal(err)
	    }
	    fmt.Print(delta)
	}

# Custom Providers

Register a factory to add or override an adapter type:

	reg.Register("my-gateway", func(opts adapters.BaseOptions) adapters.ProviderAdapter {
	    return adapters.NewOpenAICompatible("my-gateway", "https://llm.internal/v1", "default", opts)
	})

Unknown adapter types fall back to an OpenAI-compatible adapter, since most
gateways speak that dialect.
*/
package llmgate
