package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Dood345/AlexaWhenDidI/internal/domain"
	"github.com/Dood345/AlexaWhenDidI/internal/integrations/gemini"
)

const (
	// NoTasksAnswer is spoken when a question arrives and nothing has been
	// logged yet; the reasoning engine is not consulted in that case.
	NoTasksAnswer = "You haven't logged any activities yet. You can log one by saying, log that I watered the plants."

	// NotConfiguredAnswer is the fixed degraded answer when the reasoning
	// engine has no usable API key.
	NotConfiguredAnswer = "Error: the answer service is not configured. Please set the Gemini API key for this skill."

	searchingSpeech = "<speak>Let me search through your activity log.</speak>"
)

type TaskStore interface {
	Append(ctx context.Context, userID, text string) (int64, error)
	ListDescending(ctx context.Context, userID string) ([]domain.Task, error)
	DeleteOne(ctx context.Context, userID string, timestamp int64) error
	DeleteAll(ctx context.Context, userID string) error
}

type ReasoningClient interface {
	GenerateContent(ctx context.Context, model, prompt string, withSearch bool) (gemini.Result, error)
}

// DeviceGateway covers the auxiliary platform lookups. Every call through it
// is best-effort: failures degrade the response, never abort it.
type DeviceGateway interface {
	Timezone(ctx context.Context, apiEndpoint, deviceID, accessToken string) (string, error)
	SendProgressiveResponse(ctx context.Context, apiEndpoint, accessToken, requestID, speech string) error
}

// Device is the per-request platform metadata usable for auxiliary lookups.
// Any field may be empty; lookups are skipped when required fields are missing.
type Device struct {
	DeviceID       string
	APIEndpoint    string
	APIAccessToken string
	RequestID      string
}

// TaskService orchestrates the activity-log flows: logging, question
// answering, the two-step delete, and clearing the log.
type TaskService struct {
	store      TaskStore
	llm        ReasoningClient
	devices    DeviceGateway
	model      string
	defaultLoc *time.Location
}

func NewTaskService(store TaskStore, llm ReasoningClient, devices DeviceGateway, model, defaultTimezone string) (*TaskService, error) {
	if store == nil {
		return nil, errors.New("usecase: task store must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: reasoning client must not be nil")
	}
	if devices == nil {
		return nil, errors.New("usecase: device gateway must not be nil")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("usecase: model must not be empty")
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return nil, errors.New("usecase: invalid default timezone " + defaultTimezone)
	}
	return &TaskService{
		store:      store,
		llm:        llm,
		devices:    devices,
		model:      model,
		defaultLoc: loc,
	}, nil
}

// Log appends one activity record for the user.
func (s *TaskService) Log(ctx context.Context, userID, activity string) error {
	if strings.TrimSpace(activity) == "" {
		return newError(ErrorValidation, "empty_activity", nil)
	}
	if _, err := s.store.Append(ctx, userID, activity); err != nil {
		return newError(ErrorStorage, "append_error", err)
	}
	return nil
}

type AnswerInput struct {
	UserID   string
	Question string
	Device   Device
}

// Answer fetches the user's log and asks the reasoning engine the question,
// grounded on the log and the device-local clock. An unconfigured engine
// yields the fixed configuration-error answer rather than a failure.
func (s *TaskService) Answer(ctx context.Context, in AnswerInput) (string, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return "", newError(ErrorValidation, "empty_question", nil)
	}

	s.sendSearchingFeedback(ctx, in.Device)
	loc := s.resolveLocation(ctx, in.Device)

	tasks, err := s.store.ListDescending(ctx, in.UserID)
	if err != nil {
		return "", newError(ErrorStorage, "list_error", err)
	}
	if len(tasks) == 0 {
		return NoTasksAnswer, nil
	}

	result, err := s.llm.GenerateContent(ctx, s.model, buildAnswerPrompt(question, tasks, timeNow(), loc), wantsSearchTool(question))
	if err != nil {
		if errors.Is(err, gemini.ErrNotConfigured) {
			return NotConfiguredAnswer, nil
		}
		return "", newError(ErrorReasoning, "generate_error", err)
	}
	return result.Text, nil
}

type DeleteInput struct {
	UserID      string
	Description string
	Device      Device
}

// DeleteCandidate is the single task the reasoning engine matched to a
// delete request, ready to be read back for confirmation.
type DeleteCandidate struct {
	Timestamp     int64
	Text          string
	FormattedDate string
}

// DeleteSearch reports the outcome of a delete-candidate lookup. Candidate is
// nil when no task matched; HasTasks distinguishes an empty log from a miss.
type DeleteSearch struct {
	Candidate *DeleteCandidate
	HasTasks  bool
}

// FindDeleteCandidate asks the reasoning engine which logged task a delete
// request refers to. An empty log or an unconfigured engine short-circuits to
// no match without a request. A numeric reply naming a timestamp that is not
// in the log is treated as no match.
func (s *TaskService) FindDeleteCandidate(ctx context.Context, in DeleteInput) (DeleteSearch, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return DeleteSearch{}, newError(ErrorValidation, "empty_description", nil)
	}

	tasks, err := s.store.ListDescending(ctx, in.UserID)
	if err != nil {
		return DeleteSearch{}, newError(ErrorStorage, "list_error", err)
	}
	if len(tasks) == 0 {
		return DeleteSearch{HasTasks: false}, nil
	}

	result, err := s.llm.GenerateContent(ctx, s.model, buildDeletePrompt(description, tasks), false)
	if err != nil {
		if errors.Is(err, gemini.ErrNotConfigured) {
			return DeleteSearch{HasTasks: true}, nil
		}
		return DeleteSearch{}, newError(ErrorReasoning, "candidate_error", err)
	}

	timestamp, ok := parseDeleteCandidate(result.Text)
	if !ok {
		return DeleteSearch{HasTasks: true}, nil
	}
	var matched *domain.Task
	for i := range tasks {
		if tasks[i].Timestamp == timestamp {
			matched = &tasks[i]
			break
		}
	}
	if matched == nil {
		return DeleteSearch{HasTasks: true}, nil
	}

	loc := s.resolveLocation(ctx, in.Device)
	return DeleteSearch{
		HasTasks: true,
		Candidate: &DeleteCandidate{
			Timestamp:     matched.Timestamp,
			Text:          matched.Text,
			FormattedDate: formatConfirmDate(matched.Timestamp, loc),
		},
	}, nil
}

// ConfirmDelete removes the previously confirmed task. Removing a task that
// is already gone is a no-op.
func (s *TaskService) ConfirmDelete(ctx context.Context, userID string, timestamp int64) error {
	if err := s.store.DeleteOne(ctx, userID, timestamp); err != nil {
		return newError(ErrorStorage, "delete_error", err)
	}
	return nil
}

// ClearAll removes every task for the user. An empty log clears cleanly.
func (s *TaskService) ClearAll(ctx context.Context, userID string) error {
	if err := s.store.DeleteAll(ctx, userID); err != nil {
		return newError(ErrorStorage, "delete_all_error", err)
	}
	return nil
}

// sendSearchingFeedback speaks interim feedback while the answer flow runs.
// Skipped when the envelope carries no API credentials.
func (s *TaskService) sendSearchingFeedback(ctx context.Context, d Device) {
	if d.APIEndpoint == "" || d.APIAccessToken == "" || d.RequestID == "" {
		return
	}
	if err := s.devices.SendProgressiveResponse(ctx, d.APIEndpoint, d.APIAccessToken, d.RequestID, searchingSpeech); err != nil {
		slog.Warn("progressive response failed, continuing without it",
			"err", newError(ErrorAuxiliary, "progressive_response_error", err))
	}
}

// resolveLocation looks up the device timezone for date formatting, falling
// back to the configured default zone on any failure.
func (s *TaskService) resolveLocation(ctx context.Context, d Device) *time.Location {
	if d.APIEndpoint == "" || d.DeviceID == "" || d.APIAccessToken == "" {
		return s.defaultLoc
	}
	tz, err := s.devices.Timezone(ctx, d.APIEndpoint, d.DeviceID, d.APIAccessToken)
	if err != nil {
		slog.Warn("timezone lookup failed, using default",
			"err", newError(ErrorAuxiliary, "timezone_lookup_error", err))
		return s.defaultLoc
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		slog.Warn("unknown device timezone, using default", "timezone", tz)
		return s.defaultLoc
	}
	return loc
}

var timeNow = func() time.Time {
	return time.Now()
}
