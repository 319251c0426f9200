package generation

import "context"

// TopicDraft is one generated study topic before persistence.
type TopicDraft struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// CardDraft is one generated flashcard. TopicIndex points into the topics
// slice of the same StudyKit, or -1 when the card is unattached.
type CardDraft struct {
	Front      string `json:"front"`
	Back       string `json:"back"`
	TopicIndex int    `json:"topic_index"`
}

type StudyKit struct {
	Topics     []TopicDraft `json:"topics"`
	Flashcards []CardDraft  `json:"flashcards"`
}

// Generator produces study material from extracted document text.
type Generator interface {
	GenerateStudyKit(ctx context.Context, text, language string) (*StudyKit, error)
}
