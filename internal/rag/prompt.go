package rag

import (
	"fmt"

	"policy-rag/internal/llm"
)

// RefusalPhrase is what the model is told to write when the context has no answer.
const RefusalPhrase = "I cannot answer from the provided context."

const systemPrompt = `You are a policy assistant.
Answer ONLY using the provided context from the policy corpus.
If the answer is not in the context, refuse.

Rules:
- Do NOT use outside knowledge.
- Each Answer sentence MUST be on its own line and MUST end with a numbered citation like [1].
- You can use more than one citation per answer line like this [1][2].
- Use only citation numbers that exist in the Context labels.
- The Sources section MUST list only those references, exactly as shown in the Context labels.
- Every citation number used in Answer MUST appear in Sources.
- Every entry in Sources MUST be cited at least once in Answer.
- Include a Documents section listing each unique filename from Sources exactly once.
- Nothing may appear after the Documents section.`

const userPromptTemplate = `Question: %s

Context:
%s

Write the response in EXACTLY this format:

Answer:
sentence1 [1].
sentence2 [2].

Sources:
[1] <filename> p.<page>
[2] <filename> p.<page>

Documents:
<filename>
<filename>

Constraints:
- ONE sentence per line in Answer.
- Sources lines must be one per line.
- Documents must be unique filenames from Sources only.
- Nothing may appear after Documents.

If the answer is not in the context, write EXACTLY:
Answer:
%s

Sources:
(empty)

Documents:
(empty)`

// BuildMessages renders the system and user messages for one question.
func BuildMessages(question, contextText string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(userPromptTemplate, question, contextText, RefusalPhrase)},
	}
}
