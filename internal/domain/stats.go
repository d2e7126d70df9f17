package domain

// DatasetStats holds aggregate counts over the dataset.
type DatasetStats struct {
	Paragraphs          int64 `json:"paragraphs"`
	ParagraphsProcessed int64 `json:"paragraphs_processed"`
	ParagraphsBad       int64 `json:"paragraphs_bad"`
	Questions           int64 `json:"questions"`
	QuestionsFiltered   int64 `json:"questions_filtered"`
	QuestionsRejected   int64 `json:"questions_rejected"`
	QuestionsProcessed  int64 `json:"questions_processed"`
	Answers             int64 `json:"answers"`
	AnswersProcessed    int64 `json:"answers_processed"`
	Ratings             int64 `json:"ratings"`
	Authors             int64 `json:"authors"`
	Quarantined         int64 `json:"quarantined"`
}

// SampleAnswer is one answer of a sample together with its rating.
type SampleAnswer struct {
	AnswerID  int64   `json:"answer_id"`
	Setting   Setting `json:"setting"`
	Text      string  `json:"text"`
	Rating    int     `json:"rating"`
	Rationale string  `json:"rationale"`
}

// QASample is a fully rated question: its paragraph, the question and both
// machine answers.
type QASample struct {
	ParagraphID int64        `json:"paragraph_id"`
	PageName    string       `json:"page_name"`
	Paragraph   string       `json:"paragraph"`
	QuestionID  int64        `json:"question_id"`
	Question    string       `json:"question"`
	Context     string       `json:"context"`
	ZeroShot    SampleAnswer `json:"zero_shot"`
	InContext   SampleAnswer `json:"in_context"`
}
