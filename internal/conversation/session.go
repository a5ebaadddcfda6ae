package conversation

import "time"

type Step string

const (
	StepStart           Step = "start"
	StepDepartment      Step = "department"
	StepService         Step = "service"
	StepAgentType       Step = "agentType"
	StepPreferredDate   Step = "preferredDate"
	StepPreferredTime   Step = "preferredTime"
	StepAdditionalNotes Step = "additionalNotes"
	StepComplete        Step = "complete"
)

// next lists the step that follows each data-bearing step.
var next = map[Step]Step{
	StepStart:           StepDepartment,
	StepDepartment:      StepService,
	StepService:         StepAgentType,
	StepAgentType:       StepPreferredDate,
	StepPreferredDate:   StepPreferredTime,
	StepPreferredTime:   StepAdditionalNotes,
	StepAdditionalNotes: StepComplete,
}

type CollectedData struct {
	Department      string `json:"department,omitempty"`
	Service         string `json:"service,omitempty"`
	AgentType       string `json:"agentType,omitempty"`
	PreferredDate   string `json:"preferredDate,omitempty"`
	PreferredTime   string `json:"preferredTime,omitempty"`
	AdditionalNotes string `json:"additionalNotes,omitempty"`
}

// set stores v into the field filled by step. Steps that fill nothing are ignored.
func (d *CollectedData) set(step Step, v string) {
	switch step {
	case StepDepartment:
		d.Department = v
	case StepService:
		d.Service = v
	case StepAgentType:
		d.AgentType = v
	case StepPreferredDate:
		d.PreferredDate = v
	case StepPreferredTime:
		d.PreferredTime = v
	case StepAdditionalNotes:
		d.AdditionalNotes = v
	}
}

type Turn struct {
	UserMessage    string    `json:"userMessage"`
	SystemResponse string    `json:"systemResponse"`
	Timestamp      time.Time `json:"timestamp"`
}

type Session struct {
	SessionID     string        `json:"sessionId"`
	UserID        string        `json:"userId,omitempty"`
	CurrentStep   Step          `json:"currentStep"`
	CollectedData CollectedData `json:"collectedData"`
	History       []Turn        `json:"history"`
	CreatedAt     time.Time     `json:"createdAt"`
}

func NewSession(id, userID string, now time.Time) *Session {
	return &Session{
		SessionID:   id,
		UserID:      userID,
		CurrentStep: StepStart,
		CreatedAt:   now,
	}
}

func (s *Session) IsComplete() bool {
	return s.CurrentStep == StepComplete
}

// ExpiresAt is fixed at creation and never extended by activity.
func (s *Session) ExpiresAt() time.Time {
	return s.CreatedAt.Add(SessionTTL)
}

type TurnResponse struct {
	Response      string        `json:"response"`
	CurrentStep   Step          `json:"currentStep"`
	CollectedData CollectedData `json:"collectedData"`
	IsComplete    bool          `json:"isComplete"`
}
