package services

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github/itish2003/autorag/models"
)

const answerTemplate = `You are an answer-generation agent for a Retrieval-Augmented Generation (RAG) system.

You are given:
- a user's question
- a set of context chunks extracted from the user's private documents

Rules:
1. Use ONLY the provided context to answer. Do NOT use outside knowledge.
2. If the answer is not clearly supported by the context, say:
   "I cannot answer this based on the provided context."
3. Be concise and factual.
4. Provide a confidence score between 0.0 and 1.0 that reflects how well the context supports your answer.
5. Provide citations: a list of objects { "source": string, "chunk_index": number } corresponding to the chunks you used.
6. If the confidence score is below {{.threshold}}, needs_human_review must be true.

Return ONLY valid JSON in this exact format:

{
  "answer": "<string>",
  "confidence": <float between 0 and 1>,
  "citations": [
    { "source": "<string>", "chunk_index": <number> }
  ],
  "needs_human_review": <boolean>
}

Question:
{{.question}}

Context Chunks:
{{.context}}`

const followupTemplate = `You are an assistant helping a user with document Q&A. The previous answer is the model's best guess but may be incomplete or unreliable. Ask one natural-sounding follow-up question that helps clarify the user's original question so the next answer can be more accurate. Base the follow-up on the mismatch between the user's question and the previous answer, and use the context chunks only as needed for grounding. Ask exactly one question in plain language.
Original question: {{.question}}
Previous answer: {{.answer}}
Context chunks:
{{.context}}`

const presentationPrompt = "You are a document text extractor. Read the following extracted text from a PowerPoint file and return ONLY the plain text content, with no formatting, explanations, or extra commentary."

func buildPresentationPrompt(slideText string) string {
	return slideText + "\n\n" + presentationPrompt
}

const extractionPrompt = "You are a document text extractor. Read the content of the attached file and return ONLY the plain text content, with no formatting, explanations, or extra commentary."

var (
	answerPrompt   = prompts.NewPromptTemplate(answerTemplate, []string{"question", "context", "threshold"})
	followupPrompt = prompts.NewPromptTemplate(followupTemplate, []string{"question", "answer", "context"})
)

// FormatContextBlocks renders hits as indexed "[i] source=..., chunk_index=..." blocks.
func FormatContextBlocks(hits []models.ContextHit) string {
	blocks := make([]string, len(hits))
	for i, h := range hits {
		blocks[i] = fmt.Sprintf("[%d] source=%s, chunk_index=%d\n%s\n", i, h.Source, h.ChunkIndex, h.Text)
	}
	return strings.Join(blocks, "\n\n")
}

func buildAnswerPrompt(question string, hits []models.ContextHit, threshold float64) (string, error) {
	out, err := answerPrompt.Format(map[string]any{
		"question":  question,
		"context":   FormatContextBlocks(hits),
		"threshold": fmt.Sprintf("%.2g", threshold),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render answer prompt: %w", err)
	}
	return out, nil
}

func buildFollowupPrompt(question, answer string, hits []models.ContextHit) (string, error) {
	out, err := followupPrompt.Format(map[string]any{
		"question": question,
		"answer":   answer,
		"context":  FormatContextBlocks(hits),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render follow-up prompt: %w", err)
	}
	return out, nil
}
