package llm

import (
	"fmt"
	"strings"
)

const DefaultSystemTemplate = `You are an enterprise knowledge assistant.
You must answer strictly using the provided context.

Rules:
- Use ONLY facts from the context
- Combine information from multiple context sections if needed
- Answer in complete sentences
- Be precise and detailed when the context allows
- If the context does not fully answer the question, say:
'This information is not fully available in the documents.'
`

const DefaultContextTemplate = `
Context:
%s
Question:
%s

Answer:
`

// FormatContext numbers the passages as [Context i] blocks.
func FormatContext(passages []string) string {
	var b strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&b, "[Context %d]\n%s\n\n", i+1, p)
	}
	return b.String()
}

func userPrompt(template, question string, passages []string) string {
	return fmt.Sprintf(template, FormatContext(passages), question)
}
