package llm

import (
	"fmt"

	"github.com/openai/openai-go"
)

const systemPrompt = `You are a helpful assistant that answers questions based on provided context.
Your answers must be grounded in the context provided. If the context doesn't contain enough information to answer the question, say so.
Always cite your sources using the [Source N] references provided in the context.`

// BuildMessages assembles the grounded chat prompt from retrieved context
// and the user's question.
func BuildMessages(query, context string) []openai.ChatCompletionMessageParamUnion {
	user := fmt.Sprintf(`Context:
%s

Question: %s

Please answer the question based on the context above. Cite your sources using [Source N] notation.`, context, query)

	return []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(user),
	}
}
