package models

// System prompts keyed by language tag. Unknown tags fall back to the
// default language prompt.
var SystemPrompts = map[string]string{
	LanguageHR: `Ti si AI asistent koji pomaže korisnicima pronaći informacije u dokumentima.
Odgovori na hrvatskom jeziku na temelju priloženog konteksta.
Ako informacija nije dostupna u kontekstu, reci da ne znaš odgovor.
Uvijek navedi iz kojeg dokumenta dolaze informacije.`,
	LanguageEN: `You are an AI assistant helping users find information in documents.
Respond in English based on the provided context.
If information is not available in the context, say you don't know the answer.
Always cite which document the information comes from.`,
}

const (
	// ContextEntryTemplate frames one retrieved chunk inside the grounding
	// context: owning-document label first, then the chunk content.
	ContextEntryTemplate = "Dokument: %s\nSadržaj: %s"

	// UserPromptTemplate wraps the grounding context and the question into
	// the single user message sent to the model.
	UserPromptTemplate = "Kontekst:\n%s\n\nPitanje: %s"

	// NotConfiguredAnswer is returned when no generation backend is
	// configured. Callers always receive an answer value.
	NotConfiguredAnswer = "Generation backend not configured. Please provide a valid API key."

	// GenerationErrorPrefix prefixes the user-visible message an upstream
	// generation failure is converted into.
	GenerationErrorPrefix = "Greška pri generiranju odgovora: "
)
