// Package bot answers requester messages while no admin is on duty.
// Matching is keyword substring lookup over a fixed, ordered table.
package bot

import (
	"strings"

	"supportdesk/backend/internal/availability"
	"supportdesk/backend/internal/models"
)

// Category is one row of the response table.
type Category struct {
	Name     string
	Keywords []string
	Response string
	Buttons  []models.QuickReply
}

// Reply is the bot's answer to one message.
type Reply struct {
	Category string
	Text     string
	Buttons  []models.QuickReply
}

// Body converts the reply to a storable message body.
func (r Reply) Body() models.Body {
	return models.WithSuggestions(r.Text, r.Buttons)
}

const FallbackCategory = "fallback"

var mainMenu = []models.QuickReply{
	{Label: "Job Openings", Value: "job openings"},
	{Label: "Registration", Value: "register account"},
	{Label: "Resume Help", Value: "resume"},
	{Label: "Exams", Value: "exam schedule"},
	{Label: "Office Hours", Value: "office hours"},
}

// categories is scanned in order; the first hit wins. Do not reorder.
var categories = []Category{
	{
		Name:     "greeting",
		Keywords: []string{"hello", "good morning", "good afternoon", "good evening", "greetings", "kumusta", "magandang"},
		Response: "Hello! Welcome to the PESO Employment Help Desk.\nWhat can we help you with today?",
		Buttons:  mainMenu,
	},
	{
		Name:     "jobs",
		Keywords: []string{"job opening", "vacanc", "hiring", "job search", "find a job", "find job", "trabaho", "apply for"},
		Response: "You can browse current openings on the Jobs page.\nUse the filters to narrow by location, salary, or employment type, then click Apply on a posting.",
		Buttons: []models.QuickReply{
			{Label: "How to apply", Value: "how to apply"},
			{Label: "Requirements", Value: "requirements"},
			{Label: "Main menu", Value: "menu"},
		},
	},
	{
		Name:     "application",
		Keywords: []string{"how to apply", "application status", "applied", "my application"},
		Response: "Open a job posting and click Apply. Your applications and their status are listed under My Applications on your dashboard.\nEmployers are notified as soon as you apply.",
		Buttons: []models.QuickReply{
			{Label: "Resume Help", Value: "resume"},
			{Label: "Main menu", Value: "menu"},
		},
	},
	{
		Name:     "registration",
		Keywords: []string{"register", "registration", "sign up", "signup", "create account", "account", "password", "login", "log in"},
		Response: "To register, click Sign Up and fill in your personal details and a valid email address.\nIf you forgot your password, use Forgot Password on the login page.",
		Buttons: []models.QuickReply{
			{Label: "Requirements", Value: "requirements"},
			{Label: "Main menu", Value: "menu"},
		},
	},
	{
		Name:     "resume",
		Keywords: []string{"resume", "cv", "curriculum vitae", "biodata", "profile"},
		Response: "Upload your resume from the Profile page (PDF or DOCX).\nWe fill in your profile from the file; please review the extracted details before saving.",
		Buttons: []models.QuickReply{
			{Label: "Job Openings", Value: "job openings"},
			{Label: "Main menu", Value: "menu"},
		},
	},
	{
		Name:     "exams",
		Keywords: []string{"exam", "test schedule", "assessment", "pagsusulit"},
		Response: "Scheduled exams appear under Exams on your dashboard once an employer invites you.\nResults are posted after the exam is checked.",
		Buttons: []models.QuickReply{
			{Label: "Office Hours", Value: "office hours"},
			{Label: "Main menu", Value: "menu"},
		},
	},
	{
		Name:     "requirements",
		Keywords: []string{"requirement", "document", "valid id", "nbi", "clearance"},
		Response: "Common requirements: a valid government ID, an updated resume, and any certificates listed on the posting.\nSome employers also ask for NBI or barangay clearance.",
		Buttons: []models.QuickReply{
			{Label: "Job Openings", Value: "job openings"},
			{Label: "Main menu", Value: "menu"},
		},
	},
	{
		Name:     "office",
		Keywords: []string{"office hour", "schedule", "open", "location", "address", "where are you", "contact"},
		Response: "Our office is open Monday to Friday, 8:00 AM to 5:00 PM (Philippine time), except holidays.\nStaff answer this chat during office hours.",
		Buttons: []models.QuickReply{
			{Label: "Talk to staff", Value: "talk to staff"},
			{Label: "Main menu", Value: "menu"},
		},
	},
	{
		Name:     "agent",
		Keywords: []string{"staff", "agent", "human", "person", "admin", "representative"},
		Response: "Our staff are not available right now. Please leave your message here or come back during office hours (Mon-Fri, 8:00 AM to 5:00 PM).",
		Buttons: []models.QuickReply{
			{Label: "Main menu", Value: "menu"},
		},
	},
	{
		Name:     "menu",
		Keywords: []string{"menu", "help", "options"},
		Response: "Here is what I can help with:",
		Buttons:  mainMenu,
	},
	{
		Name:     "thanks",
		Keywords: []string{"thank", "salamat"},
		Response: "You're welcome! Is there anything else we can help you with?",
		Buttons:  mainMenu,
	},
	{
		Name:     "goodbye",
		Keywords: []string{"bye", "goodbye", "paalam"},
		Response: "Thank you for contacting the PESO Help Desk. Good luck with your job search!",
	},
}

const fallbackResponse = "Sorry, I didn't quite get that. Please choose one of the topics below, or type your question in a few words."

const (
	greetingOutsideHours = "Hello! Our staff are offline right now. Office hours are Monday to Friday, 8:00 AM to 5:00 PM (Philippine time).\nI'm the help desk assistant and I can answer common questions in the meantime."
	greetingBusy         = "Hello! All of our staff are busy at the moment.\nI'm the help desk assistant and I can answer common questions while you wait."
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "am": {}, "i": {}, "me": {}, "my": {},
	"to": {}, "of": {}, "for": {}, "in": {}, "on": {}, "at": {}, "and": {}, "or": {},
	"do": {}, "does": {}, "can": {}, "could": {}, "please": {}, "pls": {}, "what": {},
	"how": {}, "where": {}, "when": {}, "po": {}, "ang": {}, "ng": {}, "sa": {}, "ko": {},
}

var punctuation = strings.NewReplacer("?", "", "!", "", ".", "", ",", "")

// Responder matches messages against the category table.
type Responder struct {
	categories []Category
}

// NewResponder returns a responder over the built-in table.
func NewResponder() *Responder {
	return &Responder{categories: categories}
}

// Categories returns the table in match order.
func (r *Responder) Categories() []Category {
	return r.categories
}

// Normalize lowercases the text and strips ?!., punctuation and surrounding space.
func Normalize(text string) string {
	return strings.TrimSpace(punctuation.Replace(strings.ToLower(text)))
}

// StripStopWords drops stop words from normalized text.
func StripStopWords(normalized string) string {
	words := strings.Fields(normalized)
	kept := words[:0]
	for _, w := range words {
		if _, ok := stopWords[w]; !ok {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// Respond returns the first matching category's reply, or the fallback.
func (r *Responder) Respond(text string) Reply {
	normalized := Normalize(text)
	stripped := StripStopWords(normalized)

	if normalized != "" {
		for _, c := range r.categories {
			for _, kw := range c.Keywords {
				if strings.Contains(normalized, kw) || strings.Contains(stripped, kw) {
					return Reply{Category: c.Name, Text: c.Response, Buttons: c.Buttons}
				}
			}
		}
	}
	return Reply{Category: FallbackCategory, Text: fallbackResponse, Buttons: mainMenu}
}

// Greeting is the first message of a bot-served session.
func (r *Responder) Greeting(reason availability.Reason) Reply {
	text := greetingOutsideHours
	if reason == availability.ReasonBusy {
		text = greetingBusy
	}
	return Reply{Category: "greeting", Text: text, Buttons: mainMenu}
}
