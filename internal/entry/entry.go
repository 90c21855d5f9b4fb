// Package entry defines the capture record stored in the journal and the
// three-axis classification taxonomy applied to every transcript.
package entry

import (
	"regexp"
	"time"
)

// Type is the kind of thought captured in a memo.
type Type string

const (
	TypeTodo        Type = "todo"
	TypeIdea        Type = "idea"
	TypeLesson      Type = "lesson"
	TypeObservation Type = "observation"
	TypeReminder    Type = "reminder"
	TypeQuestion    Type = "question"
	TypeNote        Type = "note"
)

// Topic is the life area a memo belongs to.
type Topic string

const (
	TopicWork     Topic = "work"
	TopicFamily   Topic = "family"
	TopicPersonal Topic = "personal"
	TopicLearning Topic = "learning"
	TopicTTRPG    Topic = "ttrpg"
	TopicOther    Topic = "other"
)

// Urgency is how soon a memo needs attention.
type Urgency string

const (
	UrgencyNow      Urgency = "now"
	UrgencySoon     Urgency = "soon"
	UrgencyWhenever Urgency = "whenever"
)

// Types lists all valid types in display order.
var Types = []Type{
	TypeTodo, TypeIdea, TypeLesson, TypeObservation,
	TypeReminder, TypeQuestion, TypeNote,
}

var validTypes = map[Type]bool{
	TypeTodo: true, TypeIdea: true, TypeLesson: true, TypeObservation: true,
	TypeReminder: true, TypeQuestion: true, TypeNote: true,
}

var validTopics = map[Topic]bool{
	TopicWork: true, TopicFamily: true, TopicPersonal: true,
	TopicLearning: true, TopicTTRPG: true, TopicOther: true,
}

var validUrgencies = map[Urgency]bool{
	UrgencyNow: true, UrgencySoon: true, UrgencyWhenever: true,
}

// Classification labels one transcript on all three axes.
// Every field is always a valid member of its enumeration; construct values
// through ClassificationFrom or Fallback rather than directly from provider
// output.
type Classification struct {
	Type    Type    `json:"type"`
	Topic   Topic   `json:"topic"`
	Urgency Urgency `json:"urgency"`
}

// Fallback returns the universal fallback classification used whenever the
// provider cannot be reached or its output cannot be trusted.
func Fallback() Classification {
	return Classification{Type: TypeNote, Topic: TopicOther, Urgency: UrgencyWhenever}
}

// ClassificationFrom validates raw provider strings field by field. Each
// invalid field is independently replaced by its default member; valid
// fields are kept even when siblings are garbage.
func ClassificationFrom(typ, topic, urgency string) Classification {
	c := Fallback()
	if validTypes[Type(typ)] {
		c.Type = Type(typ)
	}
	if validTopics[Topic(topic)] {
		c.Topic = Topic(topic)
	}
	if validUrgencies[Urgency(urgency)] {
		c.Urgency = Urgency(urgency)
	}
	return c
}

// Valid reports whether all three fields are members of their enumerations.
func (c Classification) Valid() bool {
	return validTypes[c.Type] && validTopics[c.Topic] && validUrgencies[c.Urgency]
}

// Status is the lifecycle state of a journal entry. New is the only entry
// point; processed and archived are terminal for the pipeline.
type Status string

const (
	StatusNew       Status = "new"
	StatusProcessed Status = "processed"
	StatusArchived  Status = "archived"
)

// Entry is one durable capture record, serialized as a single JSON line in
// the journal file.
type Entry struct {
	ID             string         `json:"id"`
	Timestamp      time.Time      `json:"timestamp"`
	Transcription  string         `json:"transcription"`
	Classification Classification `json:"classification"`
	SourceFile     string         `json:"source_file"`
	Status         Status         `json:"status"`
}

// idTimeLayout matches the timestamp token recording shortcuts embed in
// artifact file names.
const idTimeLayout = "20060102_150405"

var idToken = regexp.MustCompile(`\d{8}_\d{6}`)

// DeriveID derives the deterministic entry ID for an artifact. If the file
// name embeds a YYYYMMDD_HHMMSS token that parses as a real timestamp, the
// ID is built from it; otherwise from now. IDs are intentionally not unique:
// re-processing the same artifact yields the same ID again.
func DeriveID(fileName string, now time.Time) string {
	if token := idToken.FindString(fileName); token != "" {
		if _, err := time.Parse(idTimeLayout, token); err == nil {
			return "cap_" + token
		}
	}
	return "cap_" + now.Format(idTimeLayout)
}
