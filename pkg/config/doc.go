// Package config provides configuration management for the PolicyGuard
// gateway.
//
// Configuration is loaded from a YAML file with environment variable
// overrides:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("policyguard.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention POLICYGUARD_SECTION_FIELD:
//
//   - POLICYGUARD_PROXY_LISTEN_ADDRESS overrides proxy.listen_address
//   - POLICYGUARD_POLICY_BACKEND overrides policy.backend
//   - POLICYGUARD_UPSTREAM_OPENAI_API_KEY overrides upstream.openai.api_key
//   - POLICYGUARD_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Singleton Pattern
//
//	if err := config.Initialize("policyguard.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//
// Tests should pass explicit *Config values instead of using the singleton.
package config
