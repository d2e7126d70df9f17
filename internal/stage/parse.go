package stage

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var (
	numberedLine   = regexp.MustCompile(`^[0-9]\.`)
	rationaleLabel = regexp.MustCompile(`(?i)rationale:`)
	ratingDigit    = regexp.MustCompile(`[0-5]`)
)

// ParseQuestions extracts up to limit questions from a numbered list. Only
// lines starting with a single digit and a dot after any indentation count;
// the rest is ignored. limit <= 0 keeps every question.
func ParseQuestions(text string, limit int) []string {
	var questions []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if !numberedLine.MatchString(line) {
			continue
		}
		q := strings.TrimSpace(line[2:])
		if q == "" {
			continue
		}
		questions = append(questions, q)
		if limit > 0 && len(questions) == limit {
			break
		}
	}
	return questions
}

// ParseRating reads a completion of the form "Answer:<0-5> \n Rationale:<text>".
// The score is the first digit between 0 and 5 anywhere in the text and the
// rationale is everything after the first "Rationale:" marker.
func ParseRating(text string) (int, string, error) {
	loc := rationaleLabel.FindStringIndex(text)
	if loc == nil {
		return 0, "", errors.New("missing rationale marker")
	}
	digit := ratingDigit.FindString(text)
	if digit == "" {
		return 0, "", errors.New("missing score")
	}
	score, err := strconv.Atoi(digit)
	if err != nil {
		return 0, "", err
	}
	return score, strings.TrimSpace(text[loc[1]:]), nil
}

// parseChoice accepts exactly YES or NO, ignoring case and surrounding space.
func parseChoice(text string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(text)) {
	case "YES":
		return true, nil
	case "NO":
		return false, nil
	default:
		return false, errors.New("expected YES or NO, got " + strconv.Quote(text))
	}
}
