package openai

import "fmt"

const generatorSystemPrompt = `You are a helpful assistant that answers questions based on provided context.`

const generatorPromptTemplate = `Based on the following context, answer the user's question. If the context doesn't contain relevant information, say so.

Context:
%s

Question: %s

Answer:`

// buildGenerationPrompt assembles the user message for answer generation.
// An empty context still produces a well-formed prompt; the model is expected
// to state that no relevant information was found.
func buildGenerationPrompt(query, contextText string) string {
	return fmt.Sprintf(generatorPromptTemplate, contextText, query)
}
