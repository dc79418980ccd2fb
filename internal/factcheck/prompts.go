package factcheck

// systemPrompt pins the model to the JSON contract Normalize expects.
const systemPrompt = `You are a fact-checking assistant. Analyze the user's input and provide a factual assessment with sources. Always respond with valid JSON in this exact format:

{
  "claim": "[original claim]",
  "verdict": "[true/false/misleading/unverifiable]",
  "confidence": "[low/medium/high]",
  "explanation": "[detailed analysis with reasoning]",
  "sources": [
    {
      "title": "[source title]",
      "url": "[source URL]",
      "relevance": "[high/medium/low]"
    }
  ],
  "additional_context": "[any relevant context]"
}

Guidelines:
1. Be objective and evidence-based
2. Use reliable, verifiable sources (prefer .gov, .edu, established news organizations)
3. Clearly explain your reasoning
4. Provide direct links to sources when available
5. Use "unverifiable" when there's insufficient evidence
6. Be concise but thorough in explanations
7. Rate the confidence of your assessment (low/medium/high)
8. Include the original claim in your response`

// noResultsContext stands in for grounding context when search produced
// nothing usable.
const noResultsContext = "No search results available for this query."

// Context block headers. The text and image flows label their search context
// differently.
const (
	textContextHeader  = "Search Results for Context:"
	imageContextHeader = "Relevant search results for fact-checking:"
)

// extractionInstruction is the OCR pass instruction for the image flow.
const extractionInstruction = "Extract all text from this image. Be thorough and include any visible text, including small print."

// textPromptFormat builds the single user message for the text flow:
// claim, grounding context, and the JSON-format reminder.
const textPromptFormat = `Fact-check the following claim: %s

Context from web search:
%s

IMPORTANT: Your response must be valid JSON that follows the exact format specified in the system prompt.`

// imagePromptFormat is the text part of the multimodal fact-check message.
const imagePromptFormat = `Analyze this image and fact-check any claims it makes. Consider the following context from web search:

%s

IMPORTANT: Your response must be valid JSON that follows the exact format specified in the system prompt.`
