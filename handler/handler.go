// Package handler routes incoming voice-intent envelopes to the task
// use-cases. Every path produces spoken output: collaborator failures are
// converted to fixed apology utterances and a recover guard backstops the
// whole dispatch, so the skill never returns an error to the runtime.
package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Dood345/AlexaWhenDidI/internal/alexa"
	"github.com/Dood345/AlexaWhenDidI/internal/domain"
	"github.com/Dood345/AlexaWhenDidI/internal/usecase"
)

const (
	welcomeSpeech = `Welcome to When Did I. You can log an activity by saying, "log that I watered the plants", or ask a question like, "when did I last water the plants?"`

	helpSpeech = "You can do four things with When Did I. " +
		"First, you can log an activity, like 'log that I watered the roses'. " +
		"Second, you can ask a question, like 'when did I last water the plants?'. " +
		"Third, you can delete a specific task by saying, 'delete my task about the bills'. " +
		"And finally, if you want a clean slate, you can say, 'clear all tasks'. " +
		"What would you like to do?"

	goodbyeSpeech = "Goodbye!"

	missingActivitySpeech = "I didn't quite catch the activity. Please try again, for example by saying 'log that I watered the plants'."
	logErrorSpeech        = "I'm sorry, I had a problem saving that activity. Please try again."

	missingQuestionSpeech = "I didn't quite catch your question. Please try again."
	answerErrorSpeech     = "I'm sorry, I had a problem getting an answer for you. Please try again."

	missingDeleteSpeech   = "I'm not sure which task you want to delete. Please be more specific, for example, say 'delete my task about watering plants'."
	noTasksToDeleteSpeech = "You don't have any tasks to delete."
	deleteSearchErrSpeech = "Sorry, I had a problem finding that task."
	deleteRepromptSpeech  = "Should I delete this task? Say yes to delete or no to cancel."
	deleteErrorSpeech     = "Sorry, I had a problem deleting that task."
	deleteCancelSpeech    = "Okay, I won't delete that task."

	clearAllSpeech      = "Okay, I have cleared all of your tasks. You now have a clean slate."
	clearAllErrorSpeech = "Sorry, I had a problem clearing your tasks."

	fallbackSpeech = "Sorry, I had trouble doing what you asked. Please try again."
)

// TaskUseCase is the use-case surface the dispatcher routes into.
type TaskUseCase interface {
	Log(ctx context.Context, userID, activity string) error
	Answer(ctx context.Context, in usecase.AnswerInput) (string, error)
	FindDeleteCandidate(ctx context.Context, in usecase.DeleteInput) (usecase.DeleteSearch, error)
	ConfirmDelete(ctx context.Context, userID string, timestamp int64) error
	ClearAll(ctx context.Context, userID string) error
}

type Handler struct {
	uc TaskUseCase
}

func NewHandler(uc TaskUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc}, nil
}

// Handle dispatches one request envelope. It never returns a non-nil error:
// every failure path still yields valid spoken output.
func (h *Handler) Handle(ctx context.Context, env alexa.RequestEnvelope) (resp alexa.ResponseEnvelope, _ error) {
	logger := slog.With("requestId", requestID(env), "requestType", env.RequestType(), "intent", env.IntentName())

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic during dispatch", "panic", r)
			resp = alexa.NewResponseBuilder().
				Speak(fallbackSpeech).
				Reprompt(fallbackSpeech).
				Build()
		}
	}()

	state := domain.SessionStateFromAttributes(env.Session.Attributes)

	switch env.RequestType() {
	case alexa.RequestTypeLaunch:
		return alexa.NewResponseBuilder().
			Speak(welcomeSpeech).
			Reprompt(welcomeSpeech).
			Build(), nil

	case alexa.RequestTypeSessionEnded:
		logger.Info("session ended", "reason", env.Request.Reason)
		return alexa.NewResponseBuilder().Build(), nil

	case alexa.RequestTypeIntent:
		return h.handleIntent(ctx, logger, env, state), nil

	default:
		logger.Warn("unrecognized request type")
		return alexa.NewResponseBuilder().
			Speak(fallbackSpeech).
			Reprompt(fallbackSpeech).
			Build(), nil
	}
}

// handleIntent maps the intent to exactly one handler. The Yes/No intents are
// only recognized as delete confirmations while a delete is pending;
// otherwise they fall through to the fallback.
func (h *Handler) handleIntent(ctx context.Context, logger *slog.Logger, env alexa.RequestEnvelope, state domain.SessionState) alexa.ResponseEnvelope {
	switch name := env.IntentName(); {
	case name == alexa.IntentLogActivity:
		return h.logActivity(ctx, logger, env, state)
	case name == alexa.IntentQueryActivity:
		return h.queryActivity(ctx, logger, env, state)
	case name == alexa.IntentDeleteTask:
		return h.deleteTask(ctx, logger, env, state)
	case (name == alexa.IntentYes || name == alexa.IntentNo) && state.HasPendingDelete():
		return h.resolvePendingDelete(ctx, logger, env, state)
	case name == alexa.IntentClearAllTasks:
		return h.clearAllTasks(ctx, logger, env, state)
	case name == alexa.IntentHelp:
		return alexa.NewResponseBuilder().
			Speak(helpSpeech).
			Reprompt(helpSpeech).
			WithSessionAttributes(state.ToAttributes()).
			Build()
	case name == alexa.IntentCancel || name == alexa.IntentStop:
		return h.goodbye(state)
	default:
		logger.Warn("no handler matched intent")
		return alexa.NewResponseBuilder().
			Speak(fallbackSpeech).
			Reprompt(fallbackSpeech).
			WithSessionAttributes(state.ToAttributes()).
			Build()
	}
}

func (h *Handler) logActivity(ctx context.Context, logger *slog.Logger, env alexa.RequestEnvelope, state domain.SessionState) alexa.ResponseEnvelope {
	activity := env.SlotValue("activity")
	if activity == "" {
		return speak(missingActivitySpeech, state)
	}

	if err := h.uc.Log(ctx, env.UserID(), activity); err != nil {
		logger.Error("log activity failed", "err", err)
		return speak(logErrorSpeech, state)
	}
	return speak("Okay, I've logged that you "+activity+".", state)
}

func (h *Handler) queryActivity(ctx context.Context, logger *slog.Logger, env alexa.RequestEnvelope, state domain.SessionState) alexa.ResponseEnvelope {
	question := env.SlotValue("query")
	if question == "" {
		if date := env.SlotValue("date"); date != "" {
			question = "What did I do on " + date + "?"
		}
	}
	if question == "" {
		return speak(missingQuestionSpeech, state)
	}

	answer, err := h.uc.Answer(ctx, usecase.AnswerInput{
		UserID:   env.UserID(),
		Question: question,
		Device:   deviceFromEnvelope(env),
	})
	if err != nil {
		logger.Error("answer failed", "err", err)
		return speak(answerErrorSpeech, state)
	}
	return speak(answer, state)
}

func (h *Handler) deleteTask(ctx context.Context, logger *slog.Logger, env alexa.RequestEnvelope, state domain.SessionState) alexa.ResponseEnvelope {
	description := env.SlotValue("taskToDelete")
	if description == "" {
		return speak(missingDeleteSpeech, state)
	}

	search, err := h.uc.FindDeleteCandidate(ctx, usecase.DeleteInput{
		UserID:      env.UserID(),
		Description: description,
		Device:      deviceFromEnvelope(env),
	})
	if err != nil {
		logger.Error("delete candidate lookup failed", "err", err)
		return speak(deleteSearchErrSpeech, state)
	}
	if !search.HasTasks {
		return speak(noTasksToDeleteSpeech, state)
	}
	if search.Candidate == nil {
		return speak(`I'm sorry, I couldn't find a task related to "`+description+`" in your log.`, state)
	}

	pending := state.WithPendingDelete(search.Candidate.Timestamp, search.Candidate.Text)
	return alexa.NewResponseBuilder().
		Speak(`I found the task "` + search.Candidate.Text + `" from ` + search.Candidate.FormattedDate + ". Should I delete it? Say yes to delete or no to cancel.").
		Reprompt(deleteRepromptSpeech).
		WithSessionAttributes(pending.ToAttributes()).
		Build()
}

// resolvePendingDelete completes the confirm-or-cancel step. The pending
// state is cleared on both outcomes, and on failure: a retry restarts from
// the delete request.
func (h *Handler) resolvePendingDelete(ctx context.Context, logger *slog.Logger, env alexa.RequestEnvelope, state domain.SessionState) alexa.ResponseEnvelope {
	cleared := state.ClearPendingDelete()

	if env.IntentName() != alexa.IntentYes {
		return speak(deleteCancelSpeech, cleared)
	}

	if err := h.uc.ConfirmDelete(ctx, env.UserID(), state.PendingDeleteTimestamp); err != nil {
		logger.Error("confirm delete failed", "err", err)
		return speak(deleteErrorSpeech, cleared)
	}
	return speak(`Okay, I've deleted the task "`+state.PendingDeleteText+`".`, cleared)
}

func (h *Handler) clearAllTasks(ctx context.Context, logger *slog.Logger, env alexa.RequestEnvelope, state domain.SessionState) alexa.ResponseEnvelope {
	if err := h.uc.ClearAll(ctx, env.UserID()); err != nil {
		logger.Error("clear all failed", "err", err)
		return speak(clearAllErrorSpeech, state)
	}
	return speak(clearAllSpeech, state)
}

// goodbye ends the session. A still-pending delete is cancelled aloud so the
// user knows the task survived.
func (h *Handler) goodbye(state domain.SessionState) alexa.ResponseEnvelope {
	speech := goodbyeSpeech
	if state.HasPendingDelete() {
		speech = `Okay, I won't delete the task "` + state.PendingDeleteText + `". ` + goodbyeSpeech
	}
	return alexa.NewResponseBuilder().
		Speak(speech).
		EndSession().
		Build()
}

func speak(text string, state domain.SessionState) alexa.ResponseEnvelope {
	return alexa.NewResponseBuilder().
		Speak(text).
		WithSessionAttributes(state.ToAttributes()).
		Build()
}

func deviceFromEnvelope(env alexa.RequestEnvelope) usecase.Device {
	return usecase.Device{
		DeviceID:       env.Context.System.Device.DeviceID,
		APIEndpoint:    env.Context.System.APIEndpoint,
		APIAccessToken: env.Context.System.APIAccessToken,
		RequestID:      env.Request.RequestID,
	}
}

func requestID(env alexa.RequestEnvelope) string {
	if env.Request.RequestID != "" {
		return env.Request.RequestID
	}
	return uuid.NewString()
}
