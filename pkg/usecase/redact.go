package usecase

import "strings"

const redactedMark = "[REDACTED]"

// redactSecrets replaces every occurrence of a secret value in the text.
// Step output is redacted before it is stored or shown anywhere.
func redactSecrets(text string, secrets []string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		text = strings.ReplaceAll(text, secret, redactedMark)
	}
	return text
}
