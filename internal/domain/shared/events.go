package shared

import (
	"strconv"
	"time"
)

// EventType represents the type of domain event.
type EventType string

const (
	// Recommendation events
	EventRecommendationGenerated EventType = "recommendation.generated"

	// Pipeline events
	EventPipelineStarted   EventType = "pipeline.started"
	EventPipelineCompleted EventType = "pipeline.completed"
	EventPatternsMined     EventType = "pipeline.patterns_mined"
)

// Event is the base interface for all domain events.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time
	AggregateID() string
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
	}
}

// WithCorrelationID sets the correlation ID (the pipeline run id).
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Recommendation Events
// ═══════════════════════════════════════════════════════════════════════════

// RecommendationGeneratedEvent is emitted after a result has been appended to the store.
type RecommendationGeneratedEvent struct {
	BaseEvent
	StudentID        int64  `json:"student_id"`
	RecommendationID int64  `json:"recommendation_id"`
	RiskLevel        string `json:"risk_level"`
	Source           string `json:"source"`
}

// NewRecommendationGeneratedEvent creates the event for a stored result.
func NewRecommendationGeneratedEvent(studentID, recommendationID int64, riskLevel, source, runID string) RecommendationGeneratedEvent {
	return RecommendationGeneratedEvent{
		BaseEvent:        NewBaseEvent(EventRecommendationGenerated, strconv.FormatInt(studentID, 10)).WithCorrelationID(runID),
		StudentID:        studentID,
		RecommendationID: recommendationID,
		RiskLevel:        riskLevel,
		Source:           source,
	}
}

// Payload implements Event interface.
func (e RecommendationGeneratedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":        e.StudentID,
		"recommendation_id": e.RecommendationID,
		"risk_level":        e.RiskLevel,
		"source":            e.Source,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Pipeline Events
// ═══════════════════════════════════════════════════════════════════════════

// PipelineStartedEvent is emitted once the population has been loaded.
type PipelineStartedEvent struct {
	BaseEvent
	TotalStudents int `json:"total_students"`
}

// NewPipelineStartedEvent creates the start event of a run.
func NewPipelineStartedEvent(runID string, total int) PipelineStartedEvent {
	return PipelineStartedEvent{
		BaseEvent:     NewBaseEvent(EventPipelineStarted, runID).WithCorrelationID(runID),
		TotalStudents: total,
	}
}

// Payload implements Event interface.
func (e PipelineStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"total_students": e.TotalStudents,
	}
}

// PatternsMinedEvent is emitted after association rules were mined for a run.
type PatternsMinedEvent struct {
	BaseEvent
	Transactions int `json:"transactions"`
	Rules        int `json:"rules"`
}

// NewPatternsMinedEvent creates the mining event of a run.
func NewPatternsMinedEvent(runID string, transactions, rules int) PatternsMinedEvent {
	return PatternsMinedEvent{
		BaseEvent:    NewBaseEvent(EventPatternsMined, runID).WithCorrelationID(runID),
		Transactions: transactions,
		Rules:        rules,
	}
}

// Payload implements Event interface.
func (e PatternsMinedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"transactions": e.Transactions,
		"rules":        e.Rules,
	}
}

// PipelineCompletedEvent is emitted at the end of a full run.
type PipelineCompletedEvent struct {
	BaseEvent
	TotalStudents            int           `json:"total_students"`
	RecommendationsGenerated int           `json:"recommendations_generated"`
	PatternsFound            int           `json:"patterns_found"`
	Failed                   int           `json:"failed"`
	Duration                 time.Duration `json:"duration"`
}

// NewPipelineCompletedEvent creates the completion event of a run.
func NewPipelineCompletedEvent(runID string, total, generated, patterns, failed int, d time.Duration) PipelineCompletedEvent {
	return PipelineCompletedEvent{
		BaseEvent:                NewBaseEvent(EventPipelineCompleted, runID).WithCorrelationID(runID),
		TotalStudents:            total,
		RecommendationsGenerated: generated,
		PatternsFound:            patterns,
		Failed:                   failed,
		Duration:                 d,
	}
}

// Payload implements Event interface.
func (e PipelineCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"total_students":            e.TotalStudents,
		"recommendations_generated": e.RecommendationsGenerated,
		"patterns_found":            e.PatternsFound,
		"failed":                    e.Failed,
		"duration_ms":               e.Duration.Milliseconds(),
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler processes a single event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
