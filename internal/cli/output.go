package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w, or stdout when w is nil
func NewOutput(format string, w io.Writer) *Output {
	if w == nil {
		w = os.Stdout
	}
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		o.printJSON(Message{Message: msg})
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Account:
		o.printAccount(v)
	case LoginResult:
		o.printLoginResult(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Account response type (matches API)
type Account struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

// LoginResult combines the token and the account
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Account   `json:"user"`
}

// Message response type
type Message struct {
	Message string `json:"message"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printAccount(a Account) {
	active := "yes"
	if !a.IsActive {
		active = "no"
	}
	_, _ = fmt.Fprintf(o.w, "Account: %s (%s)\n", a.Username, a.ID)
	_, _ = fmt.Fprintf(o.w, "Email: %s\n", a.Email)
	_, _ = fmt.Fprintf(o.w, "Role: %s\n", a.Role)
	_, _ = fmt.Fprintf(o.w, "Active: %s\n", active)
	if a.LastLoginAt != nil {
		_, _ = fmt.Fprintf(o.w, "Last login: %s\n", a.LastLoginAt.Format(time.RFC3339))
	}
}

func (o *Output) printLoginResult(l LoginResult) {
	o.printAccount(l.User)
	_, _ = fmt.Fprintf(o.w, "Token expires: %s\n", l.ExpiresAt.Format(time.RFC3339))
}

func (o *Output) printHealthResult(h HealthResult) {
	_, _ = fmt.Fprintf(o.w, "Status: %s\n", h.Status)
}
