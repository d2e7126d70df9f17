package prompt

// Field names used by the catalog templates.
const (
	FieldNumQuestions = "NumQuestions"
	FieldParagraph    = "Paragraph"
	FieldQuestion     = "Question"
	FieldFact         = "Fact"
	FieldAnswer       = "Answer"
	FieldReference    = "Reference"
)

// GenerateQuestions asks for a numbered list of self-contained questions
// about a fact.
var GenerateQuestions = MustNew("generate_questions", 1,
	"{{.Prefix}}Generate {{.NumQuestions}} short answer questions about the facts mentioned in the following paragraph. "+
		"The questions should be self-contained; meaning you avoid using references such as 'it', 'the game', 'the person', etc., "+
		"but should directly include the name of the referenced item instead. Remember to include relevant context in the question. "+
		"\n\nParagraph: {{.Paragraph}}\n{{.Suffix}}",
	FieldNumQuestions, FieldParagraph)

// FilterInContext asks whether a question is answerable from the fact alone.
var FilterInContext = MustNew("filter_in_context", 1,
	"Is the following question: \n\n {{.Question}} \n\n answerable using only the following fact? "+
		"\n\n Fact: {{.Fact}} \n\n Reply 'YES' and 'NO' only.",
	FieldQuestion, FieldFact)

// FilterZeroShot asks whether a question stands on its own.
var FilterZeroShot = MustNew("filter_zero_shot", 1,
	"Is the following question: \n\n {{.Question}} \n\n a valid question without additional context? "+
		"\n\n Reply 'YES' and 'NO' only.",
	FieldQuestion)

// AnswerZeroShot asks for an answer without the source fact.
var AnswerZeroShot = MustNew("answer_zero_shot", 1,
	"{{.Prefix}}Answer the following question in a succinct manner: {{.Question}}\n{{.Suffix}}",
	FieldQuestion)

// AnswerInContext asks for an answer given the source fact.
var AnswerInContext = MustNew("answer_in_context", 1,
	"{{.Prefix}}Using this fact: {{.Fact}} \n\n Answer the following question in a succinct manner: {{.Question}}\n{{.Suffix}}",
	FieldFact, FieldQuestion)

// RateAnswer asks for a 0-5 score with a rationale.
var RateAnswer = MustNew("rate_answer", 1,
	"{{.Prefix}}Based on this fact: \n\n `{{.Reference}}` \n\n Rate the following answer to the question - "+
		"Question: `{{.Question}}` \n\n Answer: `{{.Answer}}`; give a number from 0-5 where "+
		"0 is 'No answer or completely irrelevant', 1 is 'Significantly incorrect or incomplete', "+
		"2 is 'Partially correct; major inaccuracies or omissions', 3 is 'Correct but lacks depth; minimal detail', "+
		"4 is 'Mostly correct; minor errors, includes relevant details', 5 is 'Fully accurate and detailed; clear and comprehensive'. "+
		"Your answer should follow the form `Answer:<number> \n Rationale:<justify your judgment in a paragraph>`. \n{{.Suffix}}",
	FieldReference, FieldQuestion, FieldAnswer)

// FilterChoices are the only completions accepted from the filter templates.
var FilterChoices = []string{"YES", "NO"}
