package usecase

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Dood345/AlexaWhenDidI/internal/domain"
)

const (
	dateLayout        = "Monday, January 2, 2006"
	timeLayout        = "3:04 PM"
	dateTimeLayout    = "Monday, January 2, 2006 at 3:04 PM"
	confirmDateLayout = "Monday, January 2 at 3:04 PM"

	// noMatchToken is the literal reply the delete-candidate prompt demands
	// when the model finds no reasonable match.
	noMatchToken = "null"
)

// buildAnswerPrompt embeds every task with its human-readable local timestamp
// plus the current local date and time, and constrains the model to answer
// strictly from that context.
func buildAnswerPrompt(question string, tasks []domain.Task, now time.Time, loc *time.Location) string {
	localNow := now.In(loc)
	currentDate := localNow.Format(dateLayout)
	currentTime := localNow.Format(timeLayout)

	return strings.Join([]string{
		`You are an AI assistant for the "When Did I?" app. Your goal is to help users recall when they performed certain tasks or if they performed them on a specific day, based ONLY on the list of tasks they've logged.`,
		"",
		"Today's date is: " + currentDate + ".",
		"Current time is: " + currentTime + ".",
		"",
		"Here is the list of tasks the user has logged:",
		formatTaskList(tasks, loc),
		"",
		fmt.Sprintf("Now, please answer the user's question: %q", question),
		"",
		"Guidelines for your response:",
		"1. Base your answer strictly on the provided task list. Do not make assumptions or use external knowledge.",
		`2. If the user asks "when did I do X?", find all occurrences of X and list the dates/times. If not found, say so.`,
		fmt.Sprintf(`3. If the user asks "did I do X today?", check if X was logged with today's date (%s). Answer "Yes, you logged X today at [time]" or "No, you did not log X today according to the list." or "I could not find task X in your log."`, currentDate),
		`4. If the user asks "what did I do on [date]?", find all tasks logged on that specific date and list them. If none are found, state that no activities were logged on that day.`,
		"5. If the task list is empty and the user asks a question, state that no tasks have been logged.",
		"6. Keep your answers concise and directly address the question.",
		"7. If a task description is vague, and the query is specific, you might need to indicate that a direct match wasn't found but similar tasks were.",
		"8. When mentioning times, use the user's local timezone context.",
	}, "\n")
}

func formatTaskList(tasks []domain.Task, loc *time.Location) string {
	if len(tasks) == 0 {
		return "No tasks have been logged yet."
	}
	lines := make([]string, 0, len(tasks))
	for _, task := range tasks {
		when := time.UnixMilli(task.Timestamp).In(loc).Format(dateTimeLayout)
		lines = append(lines, fmt.Sprintf("- %q was logged on %s.", task.Text, when))
	}
	return strings.Join(lines, "\n")
}

// buildDeletePrompt lists every task as a {timestamp, text} pair and demands
// a bare numeric timestamp, or the no-match token, as the entire reply.
func buildDeletePrompt(description string, tasks []domain.Task) string {
	lines := make([]string, 0, len(tasks))
	for _, task := range tasks {
		lines = append(lines, fmt.Sprintf(`{ "timestamp": %d, "text": %q }`, task.Timestamp, task.Text))
	}

	return strings.Join([]string{
		"You are an AI assistant. Your job is to find the single best match from the list of tasks below based on the user's request.",
		"Here is the list of logged tasks in JSON format:",
		strings.Join(lines, "\n"),
		fmt.Sprintf("The user wants to delete the task related to: %q", description),
		fmt.Sprintf("Your response MUST be ONLY the numeric timestamp of the single most relevant task. Do not include any other text. If no reasonable match is found, respond with the word %q.", noMatchToken),
	}, "\n")
}

// parseDeleteCandidate extracts the timestamp from the model's reply. Any
// reply without a digit run, including the no-match token, means no match.
// Callers still have to verify the timestamp against the task list.
func parseDeleteCandidate(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, noMatchToken) {
		return 0, false
	}
	start := strings.IndexFunc(raw, unicode.IsDigit)
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	ts, err := strconv.ParseInt(raw[start:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// wantsSearchTool enables the model's search grounding when the query hints
// at time-sensitive external facts.
func wantsSearchTool(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(q, "weather") ||
		strings.Contains(q, "news") ||
		strings.Contains(q, "current events")
}

func formatConfirmDate(timestamp int64, loc *time.Location) string {
	return time.UnixMilli(timestamp).In(loc).Format(confirmDateLayout)
}
