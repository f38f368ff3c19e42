package service

import "fmt"

const RetrievalSystemPrompt = `You gather context for a question from a document index.

- Use the search_documents tool to find relevant chunks.
- You may search several times with different wordings. Make your last search the one whose results best cover the question.
- Do not answer the question yourself. Reply with a short note on what the last search found.`

const SummarizationSystemPrompt = `You answer questions using ONLY the provided context.

Each chunk in the context starts with a citation id such as [C1] or [C2].
- Put the citation id right after every statement taken from that chunk, e.g. "Statement [C1]." or "Statement [C1][C2]."
- Cite only ids that appear in the context. Never invent an id.
- If the context does not contain enough information, say that the question cannot be answered from the available documents.
- Be clear and concise. Do not add information that is not in the context.`

const VerificationSystemPrompt = `You check a draft answer against its context and remove hallucinations.

- Compare every claim of the draft with the context. Remove or correct anything the context does not support.
- Keep the citation ids of statements that remain. Drop the ids of statements you remove.
- When you add a correction from the context, cite the chunk it came from.
- Cite only ids that appear in the context.
- Return only the final answer text with its citations, no commentary.`

// BuildDraftPrompt is the user content of the drafting call.
func BuildDraftPrompt(question, context string) string {
	return fmt.Sprintf("Question: %s\n\nContext:\n%s", question, context)
}

// BuildVerificationPrompt is the user content of the verification call.
func BuildVerificationPrompt(question, context, draft string) string {
	return fmt.Sprintf(`Question: %s

Context:
%s

Draft Answer:
%s

Please verify and correct the draft answer, removing any unsupported claims.
Maintain all citations [C1], [C2], etc. in the final answer.`, question, context, draft)
}
