package constants

// ContextPlaceholder is the synthetic first answer seeded into a new session
// while the server is still generating the real contextualization. The
// bounded session poll stops the first time the fetched answer differs from
// this exact string.
const ContextPlaceholder = "Generating document context..."

// PrimingPrefix wraps the extracted text into the synthetic first question of
// a new session.
const PrimingPrefix = "The following is the OCR-extracted text of a document. " +
	"Use it as context for every question that follows.\n\n"

// PrimingQuestion builds the first (synthetic) question of a session.
func PrimingQuestion(extractedText string) string {
	return PrimingPrefix + extractedText
}
