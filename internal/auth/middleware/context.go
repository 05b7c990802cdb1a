package middleware

import "context"

type ctxKey string

const subjectKey ctxKey = "auth.subject"

// WithSubject returns a child context carrying the authenticated user id.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// SubjectFromContext extracts the user id attached by JWTMiddleware.
func SubjectFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(subjectKey).(string)
	return v, ok && v != ""
}
