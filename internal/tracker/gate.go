package tracker

import (
	"sort"
	"strings"

	"github.com/noah-isme/notebook-tracker-api/internal/models"
)

// Template placeholders understood by RenderNotification.
const (
	TokenParentName  = "[Parent Name]"
	TokenStudentName = "[Student Name]"
	TokenSubject     = "[Subject]"
	TokenNextDate    = "[next date]"
)

// CanNotify reports whether a guardian notification may be sent for the submission.
func CanNotify(sub models.Submission) bool {
	switch sub.Status {
	case models.SubmissionStatusMissing:
		return !sub.NotificationSent
	case models.SubmissionStatusSubmitted, models.SubmissionStatusReturned:
		return false
	default:
		return false
	}
}

type substitution struct {
	at    int
	token string
	value string
}

// RenderNotification fills the first occurrence of each placeholder in template.
//
// Substitution is a single pass over the original template, so values are never
// re-scanned for placeholders. Placeholders whose field is empty are left as written.
func RenderNotification(template string, fields models.NotificationFields) string {
	candidates := []substitution{
		{token: TokenParentName, value: fields.ParentName},
		{token: TokenStudentName, value: fields.StudentName},
		{token: TokenSubject, value: fields.Subject},
		{token: TokenNextDate, value: fields.NextDate},
	}

	subs := make([]substitution, 0, len(candidates))
	for _, c := range candidates {
		if c.value == "" {
			continue
		}
		if at := strings.Index(template, c.token); at >= 0 {
			c.at = at
			subs = append(subs, c)
		}
	}
	if len(subs) == 0 {
		return template
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].at < subs[j].at })

	var b strings.Builder
	b.Grow(len(template))
	cursor := 0
	for _, s := range subs {
		b.WriteString(template[cursor:s.at])
		b.WriteString(s.value)
		cursor = s.at + len(s.token)
	}
	b.WriteString(template[cursor:])
	return b.String()
}
