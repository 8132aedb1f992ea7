package entity

// Exchange is one (question, answer) turn of a session, in conversation order.
type Exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// LlmSession is the locally cached view of a server-owned conversation
// thread. Index 0 of History is the synthetic priming exchange: its question
// is the document's extracted text wrapped in the priming template, its
// answer the contextualization (or the placeholder while that is pending).
type LlmSession struct {
	ID         int64      `json:"id"`
	DocumentID int64      `json:"document_id"`
	History    []Exchange `json:"history"`
}

// Context returns the priming exchange, if present.
func (s *LlmSession) Context() (Exchange, bool) {
	if len(s.History) == 0 {
		return Exchange{}, false
	}
	return s.History[0], true
}

// Turns returns the ordinary Q/A turns, excluding the priming exchange.
func (s *LlmSession) Turns() []Exchange {
	if len(s.History) <= 1 {
		return nil
	}
	return append([]Exchange(nil), s.History[1:]...)
}

// Clone returns an independent copy safe to hand to readers.
func (s *LlmSession) Clone() LlmSession {
	return LlmSession{
		ID:         s.ID,
		DocumentID: s.DocumentID,
		History:    append([]Exchange(nil), s.History...),
	}
}
