package domain

import "encoding/json"

// ReplyKind classifies the wire shape an AI reply arrived in.
type ReplyKind string

const (
	// ReplyText is a plain string reply.
	ReplyText ReplyKind = "text"
	// ReplyStructured is a JSON object reply.
	ReplyStructured ReplyKind = "structured"
	// ReplyEncoded is a JSON string whose content is itself a reply object.
	ReplyEncoded ReplyKind = "encoded"
)

// Recommendation is a course suggested by the assistant.
type Recommendation struct {
	CourseID           string   `json:"course_id"`
	CourseCode         string   `json:"course_code,omitempty"`
	CourseTitle        string   `json:"course_title"`
	CourseDescription  string   `json:"course_description,omitempty"`
	CareerAlignment    string   `json:"career_alignment,omitempty"`
	SkillDevelopment   []string `json:"skill_development,omitempty"`
	RelevanceReasoning string   `json:"relevance_reasoning,omitempty"`
	RelevanceScore     *float64 `json:"relevance_score,omitempty"`
}

// AIReply is the single internal representation of an assistant answer,
// regardless of the shape the advisor service used on the wire.
type AIReply struct {
	Kind               ReplyKind        `json:"kind"`
	Text               string           `json:"response"`
	RecommendedCourses []Recommendation `json:"recommended_courses,omitempty"`
	ChatTitle          string           `json:"chat_title,omitempty"`
	SessionID          string           `json:"session_id,omitempty"`
	Raw                json.RawMessage  `json:"-"`
}

// Message renders the reply as the payload stored on an assistant
// ChatMessage: an object with response text and optional recommendations.
func (r AIReply) Message() json.RawMessage {
	out := struct {
		Response           string           `json:"response"`
		RecommendedCourses []Recommendation `json:"recommended_courses,omitempty"`
		ChatTitle          string           `json:"chat_title,omitempty"`
	}{r.Text, r.RecommendedCourses, r.ChatTitle}
	b, _ := json.Marshal(out)
	return b
}
