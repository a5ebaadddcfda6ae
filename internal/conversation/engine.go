package conversation

import (
	"fmt"
	"strings"
	"time"
)

const ReadyMessage = "Your appointment request is ready. You can now proceed with the booking."

var questions = map[Step]string{
	StepDepartment:      "Welcome! Which government department would you like to visit?",
	StepService:         "Which service do you need from this department?",
	StepAgentType:       "What type of officer would you like to meet?",
	StepPreferredDate:   "Which date would you prefer? Please use YYYY-MM-DD.",
	StepPreferredTime:   "What time would suit you? Please use HH:MM.",
	StepAdditionalNotes: "Anything else we should know before your visit?",
}

const summaryTemplate = `Here is a summary of your appointment request:
Department: %s
Service: %s
Officer type: %s
Preferred date: %s
Preferred time: %s
Additional notes: %s

Everything is ready. You can now proceed with the booking.`

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// Summary renders the collected data. Missing fields show as "Not specified",
// missing notes as "None".
func Summary(d CollectedData) string {
	return fmt.Sprintf(summaryTemplate,
		orDefault(d.Department, "Not specified"),
		orDefault(d.Service, "Not specified"),
		orDefault(d.AgentType, "Not specified"),
		orDefault(d.PreferredDate, "Not specified"),
		orDefault(d.PreferredTime, "Not specified"),
		orDefault(d.AdditionalNotes, "None"),
	)
}

// Process applies one inbound message to s. The start step consumes nothing; every
// other step stores the trimmed message into its own field and moves on. Once
// complete, s only grows its history.
func Process(s *Session, message string, now time.Time) TurnResponse {
	var reply string

	switch s.CurrentStep {
	case StepComplete:
		reply = ReadyMessage
	case StepStart, "":
		s.CurrentStep = StepDepartment
		reply = questions[StepDepartment]
	default:
		s.CollectedData.set(s.CurrentStep, strings.TrimSpace(message))
		s.CurrentStep = next[s.CurrentStep]
		if s.CurrentStep == StepComplete {
			reply = Summary(s.CollectedData)
		} else {
			reply = questions[s.CurrentStep]
		}
	}

	s.History = append(s.History, Turn{
		UserMessage:    message,
		SystemResponse: reply,
		Timestamp:      now,
	})

	return TurnResponse{
		Response:      reply,
		CurrentStep:   s.CurrentStep,
		CollectedData: s.CollectedData,
		IsComplete:    s.IsComplete(),
	}
}
