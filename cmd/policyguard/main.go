// PolicyGuard is a policy arbitration gateway for LLM traffic.
//
// It sits between applications and LLM APIs and, for every prompt and
// completion:
//   - Detects PII, financial-harm phrases, entropy drift and tool calls
//   - Arbitrates the findings so the most restrictive action wins
//   - Redacts or blocks, failing closed when policies cannot be read
//   - Records hashed evidence of every verdict for audit
//
// Usage:
//
//	# Start the gateway
//	policyguard run --config config.yaml
//
//	# Evaluate text against the configured policies
//	echo "my ssn is 123-45-6789" | policyguard evaluate
//
//	# Validate policy files
//	policyguard policy validate policies.yaml
//
//	# Query recorded evidence
//	policyguard evidence query --since 24h --verdict BLOCK
package main

func main() {
	Execute()
}
