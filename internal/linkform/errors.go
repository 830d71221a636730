package linkform

// ValidationError is a user-facing problem with the form. It never comes
// with a store mutation.
type ValidationError struct {
	Title   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Title + ": " + e.Message
}

var (
	ErrMissingFields   = &ValidationError{Title: "Missing fields", Message: "Please fill in all required fields."}
	ErrInvalidURL      = &ValidationError{Title: "Invalid URL", Message: "Please enter a valid URL."}
	ErrInvalidTime     = &ValidationError{Title: "Invalid time", Message: "Use the HH:MM format, for example 23:59."}
	ErrInvalidLeadTime = &ValidationError{Title: "Invalid reminder", Message: "Remind 1, 2, 3 or 7 days before the deadline."}
	ErrInvalidCategory = &ValidationError{Title: "Invalid category", Message: "Pick exams, internships, scholarships, events or applications."}
	ErrNoURLFound      = &ValidationError{Title: "No link found", Message: "We couldn't find a valid URL in your message. Please check and try again."}
)
