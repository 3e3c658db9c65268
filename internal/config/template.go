package config

const configTemplate = `# modelctl configuration file
# Provider settings control which model provider to use

# Global default provider (ollama, openai, gemini)
provider: ollama

# Global default model (optional, uses provider default if omitted)
# model: llama3.2

# Provider-specific settings
providers:
  ollama:
    base_url: http://localhost:11434
    # always, when_missing or never
    pull_strategy: when_missing
    poll_interval: 5s
    # 0 means no limit
    max_attempts: 0
    max_duration: 30m
    options:
      temperature: 0.8
      # provider_options:
      #   num_ctx: 4096
      #   keep_alive: 5m
  openai:
    # API key (prefer OPENAI_API_KEY environment variable)
    # api_key: ${OPENAI_API_KEY}
    # base_url: https://api.openai.com/v1
    options:
      model: gpt-4o-mini
  gemini:
    # API key (prefer GEMINI_API_KEY environment variable)
    # api_key: ${GEMINI_API_KEY}
    options:
      model: gemini-2.5-flash
  stability:
    # API key (prefer STABILITY_API_KEY environment variable)
    options:
      seed: 0
      provider_options:
        width: 1024
        height: 1024
        cfg_scale: 7
        steps: 30

# Per-command overrides (optional)
# Uncomment and customize as needed
#commands:
#  ask:
#    provider: openai
#    model: gpt-4o

# Observability settings
log_level: warn  # debug, info, warn, error
`
